package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/danmuck/reguctl/internal/observability"
)

var (
	regulatorAddr   string
	exchangeTimeout time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "centerctl",
		Short: "Traffic-center client for reguctl regulators",
		Long: `centerctl speaks the telecontrol protocol from the center side.
It can poll a regulator once, push plan and mode orders, watch live
reports, or drive a regulator from an interactive console.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			observability.InitLogger("centerctl")
		},
	}
	rootCmd.PersistentFlags().StringVar(&regulatorAddr, "addr", "127.0.0.1:19000", "regulator telecontrol address")
	rootCmd.PersistentFlags().DurationVar(&exchangeTimeout, "timeout", 10*time.Second, "per-exchange timeout")

	rootCmd.AddCommand(SyncCmd())
	rootCmd.AddCommand(TrafficCmd())
	rootCmd.AddCommand(AlarmsCmd())
	rootCmd.AddCommand(GroupsCmd())
	rootCmd.AddCommand(DetectorsCmd())
	rootCmd.AddCommand(PlanCmd())
	rootCmd.AddCommand(ModeCmd())
	rootCmd.AddCommand(TimeCmd())
	rootCmd.AddCommand(WatchCmd())
	rootCmd.AddCommand(ConsoleCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
