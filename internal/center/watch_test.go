package center

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/danmuck/reguctl/internal/testutil/testlog"
	"github.com/danmuck/reguctl/internal/une"
)

func TestWatcherReconnectsAndDeliversFrames(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		first := true
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			if first {
				// Simulate a regulator that drops the link right away.
				first = false
				conn.Close()
				continue
			}
			conn.Write(une.Build(une.Frame{Sub: une.SubStatus, Code: une.CodeAlarms, Data: []byte{0, 0, 0x10, 0}}))
			conn.Write(une.Build(une.Frame{Sub: une.SubStatus, Code: une.CodeGroupState, Data: []byte{0x10, 0x01}}))
			conn.Write([]byte{une.ACK})
			go io.Copy(io.Discard, conn)
		}
	}()

	cfg := DefaultConfig()
	cfg.Addr = ln.Addr().String()
	cfg.PollInterval = 50 * time.Millisecond
	cfg.Backoff = BackoffConfig{InitialDelay: 10 * time.Millisecond, Multiplier: 1.0, MaxDelay: 50 * time.Millisecond}

	frames := make(chan une.Frame, 8)
	controls := make(chan byte, 8)
	w := &Watcher{
		Cfg:       cfg,
		OnFrame:   func(f une.Frame) { frames <- f },
		OnControl: func(b byte) { controls <- b },
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	var got []une.Frame
	for len(got) < 2 {
		select {
		case f := <-frames:
			got = append(got, f)
		case <-deadline:
			t.Fatalf("received %d frames before timeout", len(got))
		}
	}
	if got[0].Code != une.CodeAlarms || got[1].Code != une.CodeGroupState {
		t.Fatalf("frame codes = 0x%02X 0x%02X, want alarms then group state", byte(got[0].Code), byte(got[1].Code))
	}

	select {
	case b := <-controls:
		if b != une.ACK {
			t.Fatalf("control = 0x%02X, want ACK", b)
		}
	case <-deadline:
		t.Fatalf("no control byte delivered")
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
