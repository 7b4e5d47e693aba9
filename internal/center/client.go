package center

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/danmuck/reguctl/internal/une"
)

// ErrRejected reports that the regulator answered an order with NAK.
var ErrRejected = errors.New("center: order rejected")

// Client is one dialed telecontrol session. Not safe for concurrent
// use; callers serialize exchanges the way the half-duplex link does.
type Client struct {
	cfg  Config
	conn net.Conn
	sc   une.Scanner
	buf  []byte

	// OnReport receives spontaneous frames that arrive while an
	// exchange waits for its reply. Optional.
	OnReport func(une.Frame)
}

// Dial connects to the regulator named in cfg.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	d := net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := d.DialContext(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, conn: conn, buf: make([]byte, 512)}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// RemoteAddr names the regulator endpoint of this session.
func (c *Client) RemoteAddr() string { return c.conn.RemoteAddr().String() }

// ReadToken returns the next frame or control byte from the link.
func (c *Client) ReadToken(ctx context.Context) (une.Token, error) {
	for {
		if tok, ok := c.sc.Next(); ok {
			return tok, nil
		}
		deadline := time.Now().Add(c.cfg.ReadTimeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		_ = c.conn.SetReadDeadline(deadline)
		n, err := c.conn.Read(c.buf)
		if err != nil {
			return une.Token{}, err
		}
		c.sc.Append(c.buf[:n])
	}
}

// WriteFrame sends one framed message.
func (c *Client) WriteFrame(f une.Frame) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	_, err := c.conn.Write(une.Build(f))
	return err
}

// WriteControl sends one bare link-control byte.
func (c *Client) WriteControl(b byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	_, err := c.conn.Write([]byte{b})
	return err
}

// Exchange writes req and waits for the reply frame carrying want.
// Acknowledgements are swallowed, a NAK aborts with ErrRejected, and
// spontaneous reports that interleave are handed to OnReport.
func (c *Client) Exchange(ctx context.Context, req une.Frame, want une.Code) (une.Frame, error) {
	if err := c.WriteFrame(req); err != nil {
		return une.Frame{}, err
	}
	for {
		tok, err := c.ReadToken(ctx)
		if err != nil {
			return une.Frame{}, err
		}
		if tok.Raw == nil {
			switch tok.Control {
			case une.NAK:
				return une.Frame{}, ErrRejected
			default:
			}
			continue
		}
		f, err := une.Parse(tok.Raw)
		if err != nil {
			continue
		}
		if f.Code == want {
			return f, nil
		}
		if c.OnReport != nil {
			c.OnReport(f)
		}
	}
}

// PollSync asks for the clock and cycle report.
func (c *Client) PollSync(ctx context.Context) (SyncStatus, error) {
	f, err := c.Exchange(ctx, une.Frame{Sub: une.SubPlans, Code: une.CodeSync}, une.CodeSync)
	if err != nil {
		return SyncStatus{}, err
	}
	return DecodeSync(f.Data)
}

// PollTraffic asks for the representation and command-source report.
func (c *Client) PollTraffic(ctx context.Context) (TrafficStatus, error) {
	f, err := c.Exchange(ctx, une.Frame{Sub: une.SubStatus, Code: une.CodeTraffic}, une.CodeTraffic)
	if err != nil {
		return TrafficStatus{}, err
	}
	return DecodeTraffic(f.Data)
}

// PollAlarms asks for the alarm summary.
func (c *Client) PollAlarms(ctx context.Context) (AlarmStatus, error) {
	f, err := c.Exchange(ctx, une.Frame{Sub: une.SubStatus, Code: une.CodeAlarms}, une.CodeAlarms)
	if err != nil {
		return AlarmStatus{}, err
	}
	return DecodeAlarms(f.Data)
}

// SelectPlan orders the plan with the given center-facing number. The
// regulator confirms with an empty plan-order echo.
func (c *Client) SelectPlan(ctx context.Context, external int) error {
	req := une.Frame{Sub: une.SubPlans, Code: une.CodePlanSelect, Data: []byte{byte(external)}}
	_, err := c.Exchange(ctx, req, une.CodePlanOrder)
	return err
}

// SetStates orders a representation and command source. repr is the
// wire representation code (0 off, 1 blink, 2 color).
func (c *Client) SetStates(ctx context.Context, repr byte, central bool) error {
	source, coordination := byte(0x00), byte(0x01)
	if central {
		source, coordination = 0x01, 0x03
	}
	req := une.Frame{Sub: une.SubPlans, Code: une.CodeStates, Data: []byte{repr & 0x03, source, coordination}}
	_, err := c.Exchange(ctx, req, une.CodeStates)
	return err
}

// SetTime pushes the center clock. The virtual regulator follows host
// time and only echoes the order; real cabinets reprogram theirs.
func (c *Client) SetTime(ctx context.Context, t time.Time) error {
	req := une.Frame{
		Sub:  une.SubStatus,
		Code: une.CodeTimeSet,
		Data: []byte{
			byte(t.Hour()),
			byte(t.Minute()),
			byte(t.Second()),
			byte(t.Day()),
			byte(t.Month()),
			byte(t.Year() % 100),
		},
	}
	_, err := c.Exchange(ctx, req, une.CodeTimeSet)
	return err
}

// QueryDirect asks for the raw internal lamp codes.
func (c *Client) QueryDirect(ctx context.Context) ([]byte, error) {
	f, err := c.Exchange(ctx, une.Frame{Sub: une.SubStatus, Code: une.CodeDirectQuery}, une.CodeDirectQuery)
	if err != nil {
		return nil, err
	}
	return f.Data, nil
}
