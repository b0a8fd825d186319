package heuristics

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/sells-group/lead-engine/internal/model"
)

// Industry is a vertical with its own marketing pain vocabulary.
type Industry string

const (
	IndustryD2C         Industry = "d2c"
	IndustrySaaS        Industry = "saas"
	IndustryB2B         Industry = "b2b"
	IndustryEcommerce   Industry = "ecommerce"
	IndustryMarketplace Industry = "marketplace"
)

func wordPhrases(words ...string) []phrase {
	out := make([]phrase, len(words))
	for i, w := range words {
		out[i] = newPhrase(w, `\b`+regexp.QuoteMeta(w)+`\b`)
	}
	return out
}

var industryPainKeywords = map[Industry][]phrase{
	IndustryD2C: wordPhrases("retention", "churn", "CAC", "LTV", "abandoned cart",
		"repeat purchase", "customer loyalty", "DTC"),
	IndustrySaaS: wordPhrases("pipeline", "MQL", "SQL", "conversion", "trial-to-paid",
		"activation", "onboarding", "expansion", "PLG"),
	IndustryB2B: wordPhrases("lead generation", "enterprise sales", "ABM", "demand gen",
		"sales cycle", "deal velocity", "pipeline"),
	IndustryEcommerce: wordPhrases("cart abandonment", "conversion rate", "AOV", "ROAS",
		"product pages", "checkout", "SEO"),
	IndustryMarketplace: wordPhrases("supply-demand", "liquidity", "GMV", "take rate",
		"network effects", "two-sided"),
}

// detection order matters: the first industry whose markers appear wins.
var industryMarkers = []struct {
	industry Industry
	phrases  []phrase
}{
	{IndustryD2C, wordPhrases("d2c", "direct to consumer", "direct-to-consumer", "dtc", "ecom brand")},
	{IndustrySaaS, wordPhrases("saas", "software as a service", "b2b software")},
	{IndustryMarketplace, wordPhrases("marketplace", "platform", "two-sided")},
	{IndustryEcommerce, wordPhrases("ecommerce", "e-commerce", "online store")},
	{IndustryB2B, wordPhrases("b2b", "enterprise", "business to business")},
}

var industryAliases = map[string]Industry{
	"d2c": IndustryD2C, "dtc": IndustryD2C, "direct to consumer": IndustryD2C,
	"saas": IndustrySaaS, "software": IndustrySaaS,
	"b2b": IndustryB2B,
	"ecommerce": IndustryEcommerce, "e-commerce": IndustryEcommerce,
	"marketplace": IndustryMarketplace,
}

// ResolveIndustry maps an explicit industry label to a known Industry.
func ResolveIndustry(label string) (Industry, bool) {
	ind, ok := industryAliases[strings.ToLower(strings.TrimSpace(label))]
	return ind, ok
}

// DetectIndustry infers the industry from whole-word markers in text.
func DetectIndustry(text string) (Industry, bool) {
	for _, m := range industryMarkers {
		if len(matches(m.phrases, text)) > 0 {
			return m.industry, true
		}
	}
	return "", false
}

// IndustryDetector rewards industry-specific pain vocabulary. The industry
// comes from the signal when it names a known one, otherwise from the text.
type IndustryDetector struct{}

func (IndustryDetector) Category() model.AdjustmentCategory { return model.CategoryIndustry }

func (IndustryDetector) Detect(in Input) (model.HeuristicAdjustment, bool) {
	source := "explicit"
	ind, ok := ResolveIndustry(in.Industry)
	if !ok {
		if ind, ok = DetectIndustry(in.Text); !ok {
			return model.HeuristicAdjustment{}, false
		}
		source = "detected"
	}

	found := matches(industryPainKeywords[ind], in.Text)
	if len(found) == 0 {
		return model.HeuristicAdjustment{}, false
	}
	n := min(len(found), 4)
	return model.HeuristicAdjustment{
		Category: model.CategoryIndustry,
		Delta:    float64(n * 3),
		Reason: fmt.Sprintf("%s industry pain (%s): %s (%s)",
			ind, source, countNoun(len(found), "keyword"), strings.Join(found, ", ")),
		Confidence: math.Min(float64(len(found))*0.2, 0.9),
	}, true
}
