// Package relay sits between a traffic center and a real regulator,
// passing bytes through untouched while decoding both directions for
// structured logs and JSON-line capture files. Nothing is injected or
// altered; the relay is a wiretap with a plug on each end.
package relay

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/reguctl/internal/une"
)

// Direction labels for capture records.
const (
	DirCenterToDevice = "center_to_device"
	DirDeviceToCenter = "device_to_center"
)

// Record is one captured protocol unit, appended as a JSON line.
type Record struct {
	At        time.Time `json:"at"`
	Session   string    `json:"session"`
	Direction string    `json:"direction"`
	Kind      string    `json:"kind"`
	Code      string    `json:"code,omitempty"`
	Sub       int       `json:"sub,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	Control   string    `json:"control,omitempty"`
}

// Config carries the relay endpoints.
type Config struct {
	ListenAddr  string
	DeviceAddr  string
	CapturePath string
	DialTimeout time.Duration
}

// DefaultConfig returns the baseline relay settings.
func DefaultConfig() Config {
	return Config{
		ListenAddr:  ":19001",
		DialTimeout: 5 * time.Second,
	}
}

// Relay pumps one center link into one device link at a time.
type Relay struct {
	cfg Config

	captureMu sync.Mutex
	capture   *os.File
}

// New builds a relay and opens its capture file when one is configured.
func New(cfg Config) (*Relay, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	r := &Relay{cfg: cfg}
	if cfg.CapturePath != "" {
		f, err := os.OpenFile(cfg.CapturePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, err
		}
		r.capture = f
	}
	return r, nil
}

// Close releases the capture file.
func (r *Relay) Close() error {
	if r.capture == nil {
		return nil
	}
	return r.capture.Close()
}

// Run listens for centers until ctx is cancelled. Sessions are served
// one at a time; the real device only holds one link.
func (r *Relay) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", r.cfg.ListenAddr)
	if err != nil {
		return err
	}
	log.Info().
		Str("listen_addr", ln.Addr().String()).
		Str("device_addr", r.cfg.DeviceAddr).
		Msg("relay_start")
	return r.Serve(ctx, ln)
}

// Serve accepts center connections on ln until ctx is cancelled.
func (r *Relay) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		r.handle(ctx, conn)
	}
}

// handle wires one center connection to a fresh device connection and
// pumps until either side drops.
func (r *Relay) handle(ctx context.Context, center net.Conn) {
	defer center.Close()
	session := uuid.NewString()

	d := net.Dialer{Timeout: r.cfg.DialTimeout}
	device, err := d.DialContext(ctx, "tcp", r.cfg.DeviceAddr)
	if err != nil {
		log.Error().
			Str("session", session).
			Str("device_addr", r.cfg.DeviceAddr).
			Err(err).
			Msg("relay_device_unreachable")
		return
	}
	defer device.Close()

	log.Info().
		Str("session", session).
		Str("center", center.RemoteAddr().String()).
		Msg("relay_session_open")

	errs := make(chan error, 2)
	go func() { errs <- r.pump(session, DirCenterToDevice, device, center) }()
	go func() { errs <- r.pump(session, DirDeviceToCenter, center, device) }()

	select {
	case err := <-errs:
		log.Info().
			Str("session", session).
			Err(err).
			Msg("relay_session_close")
	case <-ctx.Done():
	}
	center.Close()
	device.Close()
	// Let the second pump drain before reusing the device link.
	<-errs
}

// pump copies src to dst and records every recovered protocol unit.
func (r *Relay) pump(session, direction string, dst, src net.Conn) error {
	var sc une.Scanner
	buf := make([]byte, 512)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
			sc.Append(buf[:n])
			for {
				tok, ok := sc.Next()
				if !ok {
					break
				}
				r.record(session, direction, tok)
			}
		}
		if err != nil {
			return err
		}
	}
}

func (r *Relay) record(session, direction string, tok une.Token) {
	rec := Record{
		At:        time.Now().UTC(),
		Session:   session,
		Direction: direction,
	}
	if tok.Raw == nil {
		rec.Kind = "control"
		rec.Control = une.ControlName(tok.Control)
		log.Debug().
			Str("session", session).
			Str("direction", direction).
			Str("control", rec.Control).
			Msg("relay_control")
	} else {
		f, err := une.Parse(tok.Raw)
		if err != nil {
			rec.Kind = "noise"
			rec.Payload = hex.EncodeToString(tok.Raw)
			log.Warn().
				Str("session", session).
				Str("direction", direction).
				Err(err).
				Msg("relay_frame_invalid")
		} else {
			rec.Kind = "frame"
			rec.Code = f.Code.String()
			rec.Sub = int(f.Sub)
			rec.Payload = hex.EncodeToString(f.Data)
			log.Debug().
				Str("session", session).
				Str("direction", direction).
				Str("code", rec.Code).
				Int("bytes", len(f.Data)).
				Msg("relay_frame")
		}
	}
	r.append(rec)
}

// append writes one capture line. Capture failures are logged and the
// pump keeps running; observation must never take the link down.
func (r *Relay) append(rec Record) {
	if r.capture == nil {
		return
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		log.Warn().Err(err).Msg("relay_capture_failed")
		return
	}
	payload = append(payload, '\n')
	r.captureMu.Lock()
	_, err = r.capture.Write(payload)
	r.captureMu.Unlock()
	if err != nil {
		log.Warn().Err(err).Msg("relay_capture_failed")
	}
}
