package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rescoreCmd = &cobra.Command{
	Use:   "rescore <lead-id>",
	Short: "Recompute a lead's score from its stored signal",
	Long:  "Re-runs classification (cache first), heuristics and composition for a lead. The new score supersedes any manual override.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initClassifier(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		b, err := env.Classifier.Rescore(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "rescore")
		}

		zap.L().Info("lead rescored",
			zap.String("lead_id", args[0]),
			zap.Float64("final", b.Final),
			zap.String("bucket", string(b.Bucket)),
		)
		return printJSON(cmd.OutOrStdout(), b)
	},
}

func init() {
	rootCmd.AddCommand(rescoreCmd)
}
