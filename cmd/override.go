package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/lead-engine/internal/ledger"
	"github.com/sells-group/lead-engine/internal/model"
)

var (
	overrideScore  float64
	overrideReason string
	overrideActor  string
)

var overrideCmd = &cobra.Command{
	Use:   "override <lead-id>",
	Short: "Set a manual score on a lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		actor := overrideActor
		if actor == "" {
			actor = os.Getenv("USER")
		}

		o, err := ledger.New(st).Override(ctx, args[0], overrideScore, overrideReason, actor)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), o)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <lead-id>",
	Short: "Show a lead's override history, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		overrides, err := ledger.New(st).History(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), overrides)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <lead-id> <status>",
	Short: "Move a lead to a pipeline status (new, contacted, qualified, pitched, trial, won, lost, parked)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := ledger.New(st).SetStatus(ctx, args[0], model.LeadStatus(args[1])); err != nil {
			return err
		}
		lead, err := st.GetLead(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), lead)
	},
}

func init() {
	overrideCmd.Flags().Float64Var(&overrideScore, "score", 0, "new score, 0-100 (required)")
	overrideCmd.Flags().StringVar(&overrideReason, "reason", "", "why the score is being changed")
	overrideCmd.Flags().StringVar(&overrideActor, "actor", "", "who is changing the score (defaults to $USER)")
	_ = overrideCmd.MarkFlagRequired("score")
	rootCmd.AddCommand(overrideCmd, historyCmd, statusCmd)
}
