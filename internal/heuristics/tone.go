package heuristics

import (
	"fmt"
	"strings"

	"github.com/sells-group/lead-engine/internal/model"
)

var founderPhrases = []phrase{
	newPhrase("we're building", `\bwe(?:'|’)?re\s+building\b`),
	newPhrase("our mission", `\bour\s+mission\b`),
	newPhrase("our vision", `\bour\s+vision\b`),
	newPhrase("join us", `\bjoin\s+us\b`),
	newPhrase("we believe", `\bwe\s+believe\b`),
	newPhrase("I'm looking", `\bi(?:'|’)?m\s+looking\b`),
	newPhrase("I need", `\bi\s+need\b`),
	newPhrase("my team", `\bmy\s+team\b`),
	newPhrase("help us", `\bhelp\s+us\s+\w+`),
	newPhrase("excited to", `\bexcited\s+to\b`),
	newPhrase("passionate about", `\bpassionate\s+about\b`),
}

var hrPhrases = []phrase{
	newPhrase("the successful candidate", `\bthe\s+successful\s+candidate\b`),
	newPhrase("the ideal candidate", `\bthe\s+ideal\s+candidate\b`),
	newPhrase("responsibilities include", `\bresponsibilities\s+include\b`),
	newPhrase("qualifications", `\bqualifications\b`),
	newPhrase("requirements", `\brequirements\b`),
	newPhrase("competitive salary", `\bcompetitive\s+salary\b`),
	newPhrase("benefits package", `\bbenefits\s+package\b`),
	newPhrase("equal opportunity employer", `\bequal\s+opportunity\s+employer\b`),
	newPhrase("please submit", `\bplease\s+submit\b`),
	newPhrase("to apply", `\bto\s+apply\b`),
}

// ToneDetector rewards founder-written posts and penalizes HR boilerplate,
// based on the share of founder phrases among all tone phrases found.
// A mixed tone (40-60% founder) produces nothing.
type ToneDetector struct{}

func (ToneDetector) Category() model.AdjustmentCategory { return model.CategoryTone }

func (ToneDetector) Detect(in Input) (model.HeuristicAdjustment, bool) {
	founder := matches(founderPhrases, in.Text)
	hr := matches(hrPhrases, in.Text)
	total := len(founder) + len(hr)
	if total == 0 {
		return model.HeuristicAdjustment{}, false
	}

	ratio := float64(len(founder)) / float64(total)
	counts := fmt.Sprintf("%s, %s", countNoun(len(founder), "founder indicator"), countNoun(len(hr), "HR indicator"))

	switch {
	case ratio > 0.6:
		return model.HeuristicAdjustment{
			Category:   model.CategoryTone,
			Delta:      float64(int(ratio * 10)),
			Reason:     fmt.Sprintf("founder tone: %s (%s)", counts, strings.Join(founder, ", ")),
			Confidence: ratio,
		}, true
	case ratio < 0.4:
		return model.HeuristicAdjustment{
			Category:   model.CategoryTone,
			Delta:      -float64(int((1 - ratio) * 5)),
			Reason:     fmt.Sprintf("HR tone: %s (%s)", counts, strings.Join(hr, ", ")),
			Confidence: 1 - ratio,
		}, true
	}
	return model.HeuristicAdjustment{}, false
}
