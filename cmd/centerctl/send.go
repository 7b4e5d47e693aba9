package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/danmuck/reguctl/internal/center"
	"github.com/danmuck/reguctl/internal/regulator"
	"github.com/danmuck/reguctl/internal/une"
)

// withClient dials the regulator, runs one exchange and hangs up.
func withClient(addr string, run func(ctx context.Context, c *center.Client) error) error {
	cfg := center.DefaultConfig()
	cfg.Addr = addr

	ctx, cancel := context.WithTimeout(context.Background(), exchangeTimeout)
	defer cancel()

	c, err := center.Dial(ctx, cfg)
	if err != nil {
		return fmt.Errorf("dial %s: %w", cfg.Addr, err)
	}
	defer c.Close()
	return run(ctx, c)
}

// SyncCmd returns the sync poll command.
func SyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Poll the regulator clock and cycle position",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(regulatorAddr, func(ctx context.Context, c *center.Client) error {
				st, err := c.PollSync(ctx)
				if err != nil {
					return err
				}
				fmt.Println(renderSync(st))
				return nil
			})
		},
	}
}

// TrafficCmd returns the traffic status poll command.
func TrafficCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "traffic",
		Short: "Poll representation and command source",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(regulatorAddr, func(ctx context.Context, c *center.Client) error {
				st, err := c.PollTraffic(ctx)
				if err != nil {
					return err
				}
				fmt.Println(renderTraffic(st))
				return nil
			})
		},
	}
}

// AlarmsCmd returns the alarm summary poll command.
func AlarmsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alarms",
		Short: "Poll the alarm summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(regulatorAddr, func(ctx context.Context, c *center.Client) error {
				st, err := c.PollAlarms(ctx)
				if err != nil {
					return err
				}
				fmt.Println(renderAlarms(st))
				return nil
			})
		},
	}
}

// GroupsCmd returns the direct group-state query command.
func GroupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "Query the raw lamp state of every signal group",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(regulatorAddr, func(ctx context.Context, c *center.Client) error {
				codes, err := c.QueryDirect(ctx)
				if err != nil {
					return err
				}
				fmt.Println(renderDirectState(codes))
				return nil
			})
		},
	}
}

// DetectorsCmd returns the detector counter poll command.
func DetectorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detectors",
		Short: "Poll detector counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(regulatorAddr, func(ctx context.Context, c *center.Client) error {
				f, err := c.Exchange(ctx, une.Frame{Sub: une.SubStatus, Code: une.CodeDetectors}, une.CodeDetectors)
				if err != nil {
					return err
				}
				fmt.Println(renderDetectors(f.Data))
				return nil
			})
		},
	}
}

// PlanCmd returns the plan selection command.
func PlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <external-id>",
		Short: "Order the regulator onto a timing plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			external, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("plan id %q is not a number", args[0])
			}
			return withClient(regulatorAddr, func(ctx context.Context, c *center.Client) error {
				if err := c.SelectPlan(ctx, external); err != nil {
					if errors.Is(err, center.ErrRejected) {
						return fmt.Errorf("regulator rejected plan %d", external)
					}
					return err
				}
				fmt.Printf("plan %d confirmed\n", external)
				return nil
			})
		},
	}
}

// ModeCmd returns the representation and command-source order command.
func ModeCmd() *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "mode <off|blink|color>",
		Short: "Order a lamp representation and command source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repr, err := regulator.ParseRepresentation(args[0])
			if err != nil {
				return err
			}
			return withClient(regulatorAddr, func(ctx context.Context, c *center.Client) error {
				if err := c.SetStates(ctx, byte(repr), !local); err != nil {
					return err
				}
				source := "central"
				if local {
					source = "local"
				}
				fmt.Printf("representation %s, %s command confirmed\n", repr, source)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "hand command back to the cabinet")
	return cmd
}

// TimeCmd returns the clock set command.
func TimeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "time",
		Short: "Set the regulator clock to the local time",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(regulatorAddr, func(ctx context.Context, c *center.Client) error {
				now := time.Now()
				if err := c.SetTime(ctx, now); err != nil {
					return err
				}
				fmt.Printf("clock set to %s\n", now.Format("15:04:05"))
				return nil
			})
		},
	}
}
