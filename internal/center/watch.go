package center

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/reguctl/internal/une"
)

// Watcher keeps one telecontrol session alive and feeds every token the
// regulator sends to its callbacks. Lost links are redialed with the
// configured backoff.
type Watcher struct {
	Cfg Config

	// OnFrame receives every parsed frame, both exchange replies and
	// spontaneous reports. Optional.
	OnFrame func(une.Frame)
	// OnControl receives bare link-control bytes. Optional.
	OnControl func(byte)
	// OnConnect runs after each successful dial. Optional.
	OnConnect func(*Client)
}

// Run dials and consumes until ctx is cancelled. Returns ctx.Err() on
// cancellation; dial failures are retried, never returned.
func (w *Watcher) Run(ctx context.Context) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		client, err := Dial(ctx, w.Cfg)
		if err != nil {
			attempt++
			log.Warn().
				Str("addr", w.Cfg.Addr).
				Int("attempt", attempt).
				Err(err).
				Msg("center_connect_failed")
			if err := w.waitBackoff(ctx, attempt, rng); err != nil {
				return err
			}
			continue
		}
		attempt = 0
		log.Info().Str("addr", w.Cfg.Addr).Msg("center_connected")
		if w.OnConnect != nil {
			w.OnConnect(client)
		}

		err = w.consume(ctx, client)
		client.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Str("addr", w.Cfg.Addr).Err(err).Msg("center_session_lost")
		attempt++
		if err := w.waitBackoff(ctx, attempt, rng); err != nil {
			return err
		}
	}
}

// consume pumps tokens to the callbacks and polls the clock on the
// configured interval so the regulator sees a live center.
func (w *Watcher) consume(ctx context.Context, c *Client) error {
	toks := make(chan une.Token, 16)
	errs := make(chan error, 1)
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for {
			tok, err := c.ReadToken(rctx)
			if err != nil {
				errs <- err
				return
			}
			select {
			case toks <- tok:
			case <-rctx.Done():
				return
			}
		}
	}()

	interval := w.Cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	poll := time.NewTicker(interval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			c.conn.Close()
			return ctx.Err()
		case err := <-errs:
			return err
		case tok := <-toks:
			w.deliver(tok)
		case <-poll.C:
			if err := c.WriteFrame(une.Frame{Sub: une.SubPlans, Code: une.CodeSync}); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) deliver(tok une.Token) {
	if tok.Raw == nil {
		if w.OnControl != nil {
			w.OnControl(tok.Control)
		}
		return
	}
	f, err := une.Parse(tok.Raw)
	if err != nil {
		log.Warn().Err(err).Msg("center_frame_invalid")
		return
	}
	if w.OnFrame != nil {
		w.OnFrame(f)
	}
}

func (w *Watcher) waitBackoff(ctx context.Context, attempt int, rng *rand.Rand) error {
	delay := NextBackoffDelay(w.Cfg.Backoff, attempt, rng)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
