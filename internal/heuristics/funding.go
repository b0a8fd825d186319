package heuristics

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/lead-engine/internal/model"
)

// FundingBooster grants a single fixed bonus when the signal's company
// announced funding within the window. Events match on company ID when both
// sides carry one, otherwise on exact normalized company name.
type FundingBooster struct {
	window time.Duration
	bonus  float64
}

// NewFundingBooster builds a booster for events within windowDays.
func NewFundingBooster(windowDays int, bonus float64) *FundingBooster {
	if windowDays < 0 {
		windowDays = 0
	}
	return &FundingBooster{window: time.Duration(windowDays) * 24 * time.Hour, bonus: bonus}
}

// Window returns the lookback period.
func (f *FundingBooster) Window() time.Duration { return f.window }

// Boost returns the bonus and a reason naming the matched events, or zero
// and an empty reason. Multiple events still yield one bonus.
func (f *FundingBooster) Boost(in Input) (float64, string) {
	if f == nil || f.bonus <= 0 || len(in.FundingEvents) == 0 {
		return 0, ""
	}

	name := model.NormalizeCompanyName(in.CompanyName)
	since := in.Now.Add(-f.window)

	var hits []string
	for _, ev := range in.FundingEvents {
		if !sameCompany(in.CompanyID, name, ev) {
			continue
		}
		if ev.AnnouncedDate.Before(since) || ev.AnnouncedDate.After(in.Now) {
			continue
		}
		days := int(in.Now.Sub(ev.AnnouncedDate).Hours() / 24)
		desc := fmt.Sprintf("%s %d days ago", eventLabel(ev.EventType), days)
		if ev.AmountUSD > 0 {
			desc = fmt.Sprintf("%s ($%s)", desc, humanAmount(ev.AmountUSD))
		}
		hits = append(hits, desc)
	}
	if len(hits) == 0 {
		return 0, ""
	}
	return model.Clamp(f.bonus, 0, 100), "recent funding: " + strings.Join(hits, "; ")
}

func sameCompany(companyID, normName string, ev model.FundingEvent) bool {
	if companyID != "" && ev.CompanyID != "" {
		return companyID == ev.CompanyID
	}
	return normName != "" && normName == model.NormalizeCompanyName(ev.CompanyName)
}

func eventLabel(t string) string {
	if t == "" {
		return "funding"
	}
	return strings.ReplaceAll(t, "_", " ")
}

func humanAmount(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.0fK", v/1e3)
	}
	return fmt.Sprintf("%.0f", v)
}
