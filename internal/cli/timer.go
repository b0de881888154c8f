package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/devbar/internal/timer"
)

var timerSession string

var timerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Manage the session work timer",
}

var timerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start (or resume) the session timer",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := timer.Start(timerPath())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "timer running since %s\n", s.StartedAt.Format(time.Kitchen))
		return nil
	},
}

var timerStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the session timer",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := timer.Stop(timerPath())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "timer stopped after %s\n", s.Elapsed(time.Now()).Round(time.Second))
		return nil
	},
}

var timerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show timer state",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := timer.Load(timerPath())
		now := time.Now()
		switch {
		case s.StartedAt.IsZero():
			fmt.Fprintln(cmd.OutOrStdout(), "timer never started")
		case s.Active(now, cfg.IdleThreshold()):
			fmt.Fprintf(cmd.OutOrStdout(), "active, elapsed %s\n", s.Elapsed(now).Round(time.Second))
		case s.Running:
			fmt.Fprintf(cmd.OutOrStdout(), "running (idle), elapsed %s\n", s.Elapsed(now).Round(time.Second))
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "stopped, elapsed %s\n", s.Elapsed(now).Round(time.Second))
		}
		return nil
	},
}

func timerPath() string {
	return timer.PathFor(timer.StateDir(), timerSession)
}

func init() {
	timerCmd.PersistentFlags().StringVar(&timerSession, "session", "", "session id (default shared timer)")
	timerCmd.AddCommand(timerStartCmd, timerStopCmd, timerStatusCmd)
	rootCmd.AddCommand(timerCmd)
}
