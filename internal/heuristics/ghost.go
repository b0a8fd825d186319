package heuristics

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/lead-engine/internal/model"
)

const (
	ghostMaxAgePenalty   = 20
	ghostNoCompany       = 10
	ghostShortText       = 5
	ghostLongText        = 3
	ghostTemplate        = 15
	ghostShortTextLength = 100
	ghostLongTextLength  = 5000
)

var templatePhrases = []phrase{
	newPhrase("this is a template", `this\s+is\s+a\s+template`),
	newPhrase("[insert company name]", `\[insert\s+company\s+name\]`),
	newPhrase("[company name]", `\[company\s+name\]`),
	newPhrase("TBD", `\btbd\b`),
	newPhrase("to be determined", `\bto\s+be\s+determined\b`),
}

// GhostJobDetector penalizes postings that look stale or never meant to be
// filled: old posts, anonymous companies, boilerplate length and unfilled
// template placeholders. Triggers stack up to the category bound.
type GhostJobDetector struct {
	maxAgeDays int
}

// NewGhostJobDetector flags posts older than maxAgeDays (30 if unset).
func NewGhostJobDetector(maxAgeDays int) GhostJobDetector {
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	return GhostJobDetector{maxAgeDays: maxAgeDays}
}

func (GhostJobDetector) Category() model.AdjustmentCategory { return model.CategoryGhostJob }

func (d GhostJobDetector) Detect(in Input) (model.HeuristicAdjustment, bool) {
	var penalty float64
	var reasons []string

	if in.PostedAt != nil && !in.Now.IsZero() {
		age := int(in.Now.Sub(*in.PostedAt).Hours() / 24)
		if over := age - d.maxAgeDays; over > 0 {
			penalty += math.Min(float64(over), ghostMaxAgePenalty)
			reasons = append(reasons, fmt.Sprintf("post is %d days old", age))
		}
	}

	if model.PlaceholderCompanyName(in.CompanyName) {
		penalty += ghostNoCompany
		reasons = append(reasons, "no company name")
	}

	switch n := utf8.RuneCountInString(strings.TrimSpace(in.Text)); {
	case n < ghostShortTextLength:
		penalty += ghostShortText
		reasons = append(reasons, fmt.Sprintf("very short text (%d chars)", n))
	case n > ghostLongTextLength:
		penalty += ghostLongText
		reasons = append(reasons, fmt.Sprintf("excessively long boilerplate (%d chars)", n))
	}

	if found := matches(templatePhrases, in.Text); len(found) > 0 {
		penalty += ghostTemplate
		reasons = append(reasons, "template placeholders: "+strings.Join(found, ", "))
	}

	if penalty == 0 {
		return model.HeuristicAdjustment{}, false
	}
	return model.HeuristicAdjustment{
		Category:   model.CategoryGhostJob,
		Delta:      model.ClampDelta(model.CategoryGhostJob, -penalty),
		Reason:     "ghost job: " + strings.Join(reasons, "; "),
		Confidence: math.Min(penalty/30, 1),
	}, true
}
