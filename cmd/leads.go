package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/store"
)

var (
	leadsStatus  string
	leadsBucket  string
	leadsCompany string
	leadsOlder   int
	leadsLimit   int
	leadsOffset  int
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List leads, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter := store.LeadFilter{
			Status:    model.LeadStatus(leadsStatus),
			Bucket:    model.Bucket(leadsBucket),
			CompanyID: leadsCompany,
			Limit:     leadsLimit,
			Offset:    leadsOffset,
		}
		if leadsOlder > 0 {
			filter.CreatedBefore = time.Now().AddDate(0, 0, -leadsOlder)
		}

		leads, err := st.ListLeads(ctx, filter)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), leads)
	},
}

var leadCmd = &cobra.Command{
	Use:   "lead <lead-id>",
	Short: "Show one lead with its breakdown and dossier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lead, err := st.GetLead(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), struct {
			*model.Lead
			EffectiveScore float64 `json:"effective_score"`
			Overridden     bool    `json:"overridden"`
		}{lead, lead.EffectiveScore(), lead.Overridden()})
	},
}

func init() {
	leadsCmd.Flags().StringVar(&leadsStatus, "status", "", "filter by status")
	leadsCmd.Flags().StringVar(&leadsBucket, "bucket", "", "filter by bucket (red_hot, warm, nurture, parked)")
	leadsCmd.Flags().StringVar(&leadsCompany, "company-id", "", "filter by company ID")
	leadsCmd.Flags().IntVar(&leadsOlder, "older-than-days", 0, "only leads created more than N days ago")
	leadsCmd.Flags().IntVar(&leadsLimit, "limit", 50, "max leads to return")
	leadsCmd.Flags().IntVar(&leadsOffset, "offset", 0, "leads to skip")
	rootCmd.AddCommand(leadsCmd, leadCmd)
}
