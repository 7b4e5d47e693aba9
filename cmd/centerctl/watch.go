package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/danmuck/reguctl/internal/center"
	"github.com/danmuck/reguctl/internal/une"
)

// WatchCmd returns the live watch command.
func WatchCmd() *cobra.Command {
	var raw bool
	var poll time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stay connected and render every report the regulator sends",
		Long: `watch keeps a telecontrol session open, polling sync at the given
interval and rendering every spontaneous report. Lost sessions are
redialed with backoff. Stop with Ctrl-C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg := center.DefaultConfig()
			cfg.Addr = regulatorAddr
			cfg.PollInterval = poll

			w := &center.Watcher{Cfg: cfg}
			w.OnConnect = func(c *center.Client) {
				fmt.Printf("%s connected to %s\n", time.Now().Format("15:04:05"), c.RemoteAddr())
			}
			w.OnFrame = func(f une.Frame) {
				fmt.Printf("%s %s\n", time.Now().Format("15:04:05"), renderFrame(f, raw))
			}
			if raw {
				w.OnControl = func(b byte) {
					fmt.Printf("%s control %s\n", time.Now().Format("15:04:05"), une.ControlName(b))
				}
			}

			err := w.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "include control bytes and undecoded payloads")
	cmd.Flags().DurationVar(&poll, "poll", 5*time.Second, "sync poll interval")
	return cmd
}
