package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/fingerprint"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the classification cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the cache backend and entry count",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		c := fingerprint.Open(ctx, cfg.Cache)
		defer c.Close() //nolint:errcheck
		return printJSON(cmd.OutOrStdout(), c.Stats(ctx))
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached classification",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		c := fingerprint.Open(ctx, cfg.Cache)
		defer c.Close() //nolint:errcheck

		n, err := c.Clear(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("cache cleared", zap.Int("removed", n))
		return printJSON(cmd.OutOrStdout(), map[string]int{"removed": n})
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
