package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-engine/internal/fingerprint"
	"github.com/sells-group/lead-engine/internal/monitoring"
)

var statsAlerts bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show lead counts by bucket and status plus cache statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		src := monitoring.Sources{Leads: st}
		if cfg.Cache.Enabled {
			c := fingerprint.Open(ctx, cfg.Cache)
			defer c.Close() //nolint:errcheck
			src.Cache = c
		}

		snap, err := monitoring.NewCollector(src).Collect(ctx)
		if err != nil {
			return err
		}
		if !statsAlerts {
			return printJSON(cmd.OutOrStdout(), snap)
		}

		alerter := monitoring.NewAlerter(cfg.Monitoring)
		alerts := alerter.Evaluate(snap)
		alerter.SendAlerts(ctx, alerts)
		return printJSON(cmd.OutOrStdout(), struct {
			*monitoring.MetricsSnapshot
			Alerts []monitoring.Alert `json:"alerts"`
		}{snap, alerts})
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsAlerts, "alerts", false, "evaluate alert thresholds and send configured webhooks")
	rootCmd.AddCommand(statsCmd)
}
