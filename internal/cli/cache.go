package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/devbar/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the progress cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop all cached progress data",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := cache.New(cfg.Cache.Path, cfg.CacheTTL())
		c.Clear()
		fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache location and entry count",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := cache.New(cfg.Cache.Path, cfg.CacheTTL())
		fmt.Fprintf(cmd.OutOrStdout(), "path:    %s\n", c.Path())
		fmt.Fprintf(cmd.OutOrStdout(), "ttl:     %s\n", c.TTL())
		fmt.Fprintf(cmd.OutOrStdout(), "entries: %d\n", c.Len())
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd, cacheStatsCmd)
	rootCmd.AddCommand(cacheCmd)
}
