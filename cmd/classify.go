package main

import (
	"context"
	"io"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/ingest"
	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/pipeline"
)

var (
	classifyCSV      string
	classifyText     string
	classifyCompany  string
	classifyWebsite  string
	classifyIndustry string
	classifySource   string
	classifyURL      string
	classifyPosted   string
)

// classifyOutput is what the classify command prints.
type classifyOutput struct {
	Summary  pipeline.Summary   `json:"summary"`
	Outcomes []pipeline.Outcome `json:"outcomes"`
}

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify signals from a CSV file or a single --text",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		signals, err := classifyInput(ctx)
		if err != nil {
			return err
		}
		if len(signals) == 0 {
			zap.L().Warn("no signals to classify")
			return nil
		}

		env, err := initClassifier(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		return runClassify(ctx, env.Classifier, signals, cmd.OutOrStdout())
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyCSV, "csv", "", "path or http(s) URL of a CSV of signals (text,company_name,...)")
	classifyCmd.Flags().StringVar(&classifyText, "text", "", "signal text to classify")
	classifyCmd.Flags().StringVar(&classifyCompany, "company", "", "company name for --text")
	classifyCmd.Flags().StringVar(&classifyWebsite, "website", "", "company website for --text")
	classifyCmd.Flags().StringVar(&classifyIndustry, "industry", "", "company industry for --text")
	classifyCmd.Flags().StringVar(&classifySource, "source", string(model.SourceManual), "source type for --text")
	classifyCmd.Flags().StringVar(&classifyURL, "source-url", "", "source URL for --text")
	classifyCmd.Flags().StringVar(&classifyPosted, "posted-at", "", "posting date for --text (YYYY-MM-DD)")
	classifyCmd.MarkFlagsMutuallyExclusive("csv", "text")
	classifyCmd.MarkFlagsOneRequired("csv", "text")
	rootCmd.AddCommand(classifyCmd)
}

func classifyInput(ctx context.Context) ([]model.Signal, error) {
	if classifyCSV != "" {
		f, err := openInput(ctx, classifyCSV)
		if err != nil {
			return nil, eris.Wrap(err, "open signals csv")
		}
		defer f.Close() //nolint:errcheck

		signals, skipped, err := ingest.ReadSignals(f)
		if err != nil {
			return nil, err
		}
		zap.L().Info("signals loaded",
			zap.String("csv", classifyCSV),
			zap.Int("signals", len(signals)),
			zap.Int("skipped_blank", skipped),
		)
		return signals, nil
	}

	sig := model.Signal{
		Text:           classifyText,
		SourceType:     model.SourceType(classifySource),
		SourceURL:      classifyURL,
		CompanyName:    classifyCompany,
		CompanyWebsite: classifyWebsite,
		Industry:       classifyIndustry,
	}
	if classifyPosted != "" {
		t, err := ingest.ParseDate(classifyPosted)
		if err != nil {
			return nil, eris.Wrap(err, "parse --posted-at")
		}
		sig.PostedAt = &t
	}
	return []model.Signal{sig}, nil
}

// runClassify classifies signals, waits for background dossiers and prints
// the outcomes.
func runClassify(ctx context.Context, c *pipeline.Classifier, signals []model.Signal, w io.Writer) error {
	outcomes, err := c.ClassifyBatch(ctx, signals)
	if err != nil {
		return eris.Wrap(err, "classify batch")
	}
	c.Wait()

	sum := pipeline.Summarize(outcomes)
	zap.L().Info("classification complete",
		zap.Int("total", sum.Total),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("red_hot", sum.Buckets[model.BucketRedHot]),
		zap.Int("warm", sum.Buckets[model.BucketWarm]),
		zap.Int("cache_hits", sum.CacheHits),
	)
	return printJSON(w, classifyOutput{Summary: sum, Outcomes: outcomes})
}
