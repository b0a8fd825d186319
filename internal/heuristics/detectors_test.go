package heuristics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-engine/internal/model"
)

var now = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) *time.Time {
	t := now.AddDate(0, 0, -n)
	return &t
}

// filler pads text past the short-text threshold without triggering anything.
const filler = " The role reports to the chief executive and works closely with sales and product on weekly planning and reviews."

func TestGhostJob(t *testing.T) {
	t.Parallel()
	d := NewGhostJobDetector(30)

	tests := []struct {
		name      string
		in        Input
		wantDelta float64
		wantFired bool
		reason    string
	}{
		{
			name:      "clean posting",
			in:        Input{Text: "Hiring a growth lead." + filler, CompanyName: "Acme", PostedAt: daysAgo(3), Now: now},
			wantFired: false,
		},
		{
			name:      "stale post scales with age",
			in:        Input{Text: "Hiring a growth lead." + filler, CompanyName: "Acme", PostedAt: daysAgo(38), Now: now},
			wantDelta: -8,
			wantFired: true,
			reason:    "post is 38 days old",
		},
		{
			name:      "age penalty capped",
			in:        Input{Text: "Hiring a growth lead." + filler, CompanyName: "Acme", PostedAt: daysAgo(200), Now: now},
			wantDelta: -20,
			wantFired: true,
		},
		{
			name:      "anonymous company",
			in:        Input{Text: "Hiring a growth lead." + filler, CompanyName: "Confidential", Now: now},
			wantDelta: -10,
			wantFired: true,
			reason:    "no company name",
		},
		{
			name:      "45 days and no company stacks to the bound",
			in:        Input{Text: "Hiring a growth lead." + filler, PostedAt: daysAgo(45), Now: now},
			wantDelta: -20,
			wantFired: true,
			reason:    "post is 45 days old; no company name",
		},
		{
			name:      "short text",
			in:        Input{Text: "Marketing role.", CompanyName: "Acme", Now: now},
			wantDelta: -5,
			wantFired: true,
			reason:    "very short text",
		},
		{
			name:      "long boilerplate",
			in:        Input{Text: strings.Repeat("x", 5001), CompanyName: "Acme", Now: now},
			wantDelta: -3,
			wantFired: true,
		},
		{
			name:      "template placeholders",
			in:        Input{Text: "Join [Company Name] as marketing lead, salary TBD." + filler, CompanyName: "Acme", Now: now},
			wantDelta: -15,
			wantFired: true,
			reason:    "[company name], TBD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adj, ok := d.Detect(tt.in)
			require.Equal(t, tt.wantFired, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantDelta, adj.Delta)
			assert.Contains(t, adj.Reason, tt.reason)
			assert.GreaterOrEqual(t, adj.Confidence, 0.0)
			assert.LessOrEqual(t, adj.Confidence, 1.0)
		})
	}
}

func TestFirstMarketer(t *testing.T) {
	t.Parallel()
	d := FirstMarketerDetector()

	_, ok := d.Detect(Input{Text: "Senior brand manager for a large CPG company."})
	assert.False(t, ok)

	adj, ok := d.Detect(Input{Text: "You will be our FIRST MARKETER."})
	require.True(t, ok)
	assert.Equal(t, 5.0, adj.Delta)
	assert.InDelta(t, 0.3, adj.Confidence, 0.001)
	assert.Contains(t, adj.Reason, "1 indicator (first marketer)")

	adj, ok = d.Detect(Input{Text: "As our first marketing hire you will own all of marketing and build marketing from scratch. " +
		"This is 0 to 1 marketing."})
	require.True(t, ok)
	assert.Equal(t, 15.0, adj.Delta)
	assert.Equal(t, 1.0, adj.Confidence)
	assert.Contains(t, adj.Reason, "first marketing hire")
	assert.Contains(t, adj.Reason, "own all of marketing")
}

func TestTone(t *testing.T) {
	t.Parallel()
	d := ToneDetector{}

	tests := []struct {
		name      string
		text      string
		wantFired bool
		wantDelta float64
		reason    string
	}{
		{"no tone phrases", "Marketing manager wanted.", false, 0, ""},
		{"pure founder", "We're building something new. Our mission is simple. Join us.", true, 10, "3 founder indicators, 0 HR indicators"},
		{"strong founder", "We're building the future. Our mission is clear, we believe in craft and my team wants to meet you. Requirements: 3 years.", true, 8, "4 founder indicators, 1 HR indicator"},
		{"mixed", "Join us! Our mission matters. Qualifications and requirements below.", false, 0, ""},
		{"pure HR", "The ideal candidate has the listed qualifications. Competitive salary and benefits package.", true, -5, "0 founder indicators, 4 HR indicators"},
		{"mostly HR", "Join us. The successful candidate meets the requirements and qualifications; to apply, please submit a CV.", true, -4, "HR tone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adj, ok := d.Detect(Input{Text: tt.text})
			require.Equal(t, tt.wantFired, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantDelta, adj.Delta)
			assert.Contains(t, adj.Reason, tt.reason)
		})
	}
}

func TestSilverBullet(t *testing.T) {
	t.Parallel()
	d := SilverBulletDetector()

	adj, ok := d.Detect(Input{Text: "We want viral growth."})
	require.True(t, ok)
	assert.Equal(t, -8.0, adj.Delta)

	adj, ok = d.Detect(Input{Text: "10x growth, viral growth, explosive growth and guaranteed success."})
	require.True(t, ok)
	assert.Equal(t, -20.0, adj.Delta)
	assert.Contains(t, adj.Reason, "4 indicators")

	_, ok = d.Detect(Input{Text: "Sustainable growth through content."})
	assert.False(t, ok)
}

func TestSpam(t *testing.T) {
	t.Parallel()
	d := SpamDetector()

	adj, ok := d.Detect(Input{Text: "Earn money fast! Work from home, no experience needed. Click here."})
	require.True(t, ok)
	assert.Equal(t, -40.0, adj.Delta)
	assert.Equal(t, 1.0, adj.Confidence)
	assert.Contains(t, adj.Reason, "earn money fast")

	adj, ok = d.Detect(Input{Text: "A proven multi-level marketing opportunity."})
	require.True(t, ok)
	assert.Equal(t, -15.0, adj.Delta)

	// Whole words only: "mlm" inside another token does not count.
	_, ok = d.Detect(Input{Text: "We use html mlmodels daily."})
	assert.False(t, ok)
}

func TestIndustry(t *testing.T) {
	t.Parallel()
	d := IndustryDetector{}

	tests := []struct {
		name      string
		in        Input
		wantFired bool
		wantDelta float64
		reason    string
	}{
		{"explicit saas", Input{Industry: "SaaS", Text: "Fix our pipeline and trial-to-paid conversion."}, true, 9, "saas industry pain (explicit)"},
		{"detected d2c", Input{Text: "A D2C skincare brand fighting churn and low repeat purchase rates."}, true, 6, "d2c industry pain (detected)"},
		{"detected marketplace", Input{Text: "Our marketplace needs liquidity and GMV growth."}, true, 6, "marketplace"},
		{"capped at four keywords", Input{Industry: "saas", Text: "pipeline MQL SQL conversion activation onboarding PLG"}, true, 12, "7 keywords"},
		{"no industry", Input{Text: "We need a marketer."}, false, 0, ""},
		{"industry without pain", Input{Industry: "saas", Text: "Great team, great product."}, false, 0, ""},
		{"unknown explicit falls back to text", Input{Industry: "fintech", Text: "B2B software with a weak pipeline."}, true, 3, "saas industry pain (detected)"},
		{"substring does not detect", Input{Text: "We ship a platformer game. Retention matters."}, false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adj, ok := d.Detect(tt.in)
			require.Equal(t, tt.wantFired, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantDelta, adj.Delta)
			assert.Contains(t, adj.Reason, tt.reason)
			assert.LessOrEqual(t, adj.Confidence, 0.9)
		})
	}
}

func TestFundingBooster(t *testing.T) {
	t.Parallel()
	f := NewFundingBooster(90, 10)

	events := []model.FundingEvent{
		{CompanyName: "Acme Labs, Inc.", EventType: "series_a", AmountUSD: 12_000_000, AnnouncedDate: now.AddDate(0, 0, -13)},
		{CompanyName: "Acme Labs", EventType: "seed", AnnouncedDate: now.AddDate(0, 0, -40)},
		{CompanyName: "Acme", EventType: "seed", AnnouncedDate: now.AddDate(0, 0, -5)},
		{CompanyName: "Acme Labs", EventType: "seed", AnnouncedDate: now.AddDate(-1, 0, 0)},
	}

	bonus, reason := f.Boost(Input{CompanyName: "ACME LABS", Now: now, FundingEvents: events})
	assert.Equal(t, 10.0, bonus, "one bonus regardless of how many events match")
	assert.Contains(t, reason, "series a 13 days ago ($12.0M)")
	assert.Contains(t, reason, "seed 40 days ago")
	assert.NotContains(t, reason, "5 days ago", "partial name must not match")

	bonus, _ = f.Boost(Input{CompanyName: "Acme Labs", Now: now, FundingEvents: events[3:]})
	assert.Zero(t, bonus, "event outside the window")

	bonus, _ = f.Boost(Input{CompanyName: "", Now: now, FundingEvents: events})
	assert.Zero(t, bonus)
}

func TestFundingBoosterPrefersCompanyID(t *testing.T) {
	t.Parallel()
	f := NewFundingBooster(90, 10)

	events := []model.FundingEvent{
		{CompanyID: "c-2", CompanyName: "Acme", AnnouncedDate: now.AddDate(0, 0, -3)},
	}
	bonus, _ := f.Boost(Input{CompanyID: "c-1", CompanyName: "Acme", Now: now, FundingEvents: events})
	assert.Zero(t, bonus, "different linked companies never match by name")

	bonus, _ = f.Boost(Input{CompanyID: "c-2", CompanyName: "Renamed Co", Now: now, FundingEvents: events})
	assert.Equal(t, 10.0, bonus)
}
