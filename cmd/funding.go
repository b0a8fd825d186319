package main

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/ingest"
	"github.com/sells-group/lead-engine/internal/model"
)

var fundingCSVPath string

var fundingCmd = &cobra.Command{
	Use:   "funding",
	Short: "Manage funding events used by the funding boost",
}

var fundingImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import funding events from CSV (company_name,event_type,amount_usd,announced_date,source)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		f, err := openInput(ctx, fundingCSVPath)
		if err != nil {
			return eris.Wrap(err, "open funding csv")
		}
		defer f.Close() //nolint:errcheck

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := importFunding(ctx, st, f)
		if err != nil {
			return err
		}
		zap.L().Info("funding import complete",
			zap.String("csv", fundingCSVPath),
			zap.Int("read", res.Read),
			zap.Int("inserted", res.Inserted),
		)
		return printJSON(cmd.OutOrStdout(), res)
	},
}

type fundingInserter interface {
	InsertFundingEvents(ctx context.Context, events []model.FundingEvent) (int, error)
}

type fundingImportResult struct {
	Read       int `json:"read"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
}

// importFunding decodes and stores events. Re-importing the same file
// inserts nothing.
func importFunding(ctx context.Context, st fundingInserter, r io.Reader) (*fundingImportResult, error) {
	events, err := ingest.ReadFundingEvents(r)
	if err != nil {
		return nil, err
	}
	n, err := st.InsertFundingEvents(ctx, events)
	if err != nil {
		return nil, eris.Wrap(err, "insert funding events")
	}
	return &fundingImportResult{Read: len(events), Inserted: n, Duplicates: len(events) - n}, nil
}

func init() {
	fundingImportCmd.Flags().StringVar(&fundingCSVPath, "csv", "", "path or http(s) URL of the CSV file (required)")
	_ = fundingImportCmd.MarkFlagRequired("csv")
	fundingCmd.AddCommand(fundingImportCmd)
	rootCmd.AddCommand(fundingCmd)
}
