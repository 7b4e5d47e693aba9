package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/reguctl/internal/observability"
	"github.com/danmuck/reguctl/internal/relay"
)

func main() {
	cfg := relay.DefaultConfig()
	flag.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "address to accept the center on")
	flag.StringVar(&cfg.DeviceAddr, "device", "", "address of the real regulator (required)")
	flag.StringVar(&cfg.CapturePath, "capture", "", "JSON-line capture file; empty disables capture")
	flag.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "device dial timeout")
	flag.Parse()

	observability.InitLogger("relayctl")

	if cfg.DeviceAddr == "" {
		fmt.Fprintln(os.Stderr, "relayctl: -device is required")
		os.Exit(1)
	}

	r, err := relay.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "relayctl: %v\n", err)
		os.Exit(1)
	}
	defer r.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := r.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "relayctl: %v\n", err)
		os.Exit(1)
	}
}
