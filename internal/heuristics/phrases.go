package heuristics

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/sells-group/lead-engine/internal/model"
)

// phrase is a named case-insensitive pattern. The label appears in reasons.
type phrase struct {
	label string
	re    *regexp.Regexp
}

func newPhrase(label, pattern string) phrase {
	return phrase{label: label, re: regexp.MustCompile(`(?i)` + pattern)}
}

// matches returns the labels of every distinct phrase found in text. A
// phrase repeated many times still counts once.
func matches(phrases []phrase, text string) []string {
	var found []string
	for _, ph := range phrases {
		if ph.re.MatchString(text) {
			found = append(found, ph.label)
		}
	}
	return found
}

var firstMarketerPhrases = []phrase{
	newPhrase("first marketing hire", `\bfirst\s+marketing\s+hire\b`),
	newPhrase("first marketer", `\bfirst\s+marketer\b`),
	newPhrase("own all of marketing", `\bown\s+all\s+of\s+marketing\b`),
	newPhrase("own marketing", `\bown\s+marketing\b`),
	newPhrase("founding marketer", `\bfounding\s+marketer\b`),
	newPhrase("first head of growth", `\bhead\s+of\s+growth\b.*\bfirst\b`),
	newPhrase("0 to 1 marketing", `\b0\s*(?:to|-)\s*1\b.*\bmarketing\b`),
	newPhrase("build marketing from scratch", `\bbuild.*\bmarketing\s+from\s+scratch\b`),
	newPhrase("establish marketing function", `\bestablish.*\bmarketing\s+function\b`),
}

var silverBulletPhrases = []phrase{
	newPhrase("10x growth", `\b10x\s+growth\b`),
	newPhrase("100x growth", `\b100x\s+growth\b`),
	newPhrase("hockey stick growth", `\bhockey[\s-]+stick\s+growth\b`),
	newPhrase("overnight success", `\bovernight\s+success\b`),
	newPhrase("instant results", `\binstant\s+results\b`),
	newPhrase("viral growth", `\bviral\s+growth\b`),
	newPhrase("guaranteed success", `\bguaranteed\s+success\b`),
	newPhrase("triple revenue in a month", `\btriple\b.*\brevenue\b.*\bmonths?\b`),
	newPhrase("explosive growth", `\bexplosive\s+growth\b`),
}

var spamPhrases = []phrase{
	newPhrase("earn money fast", `\bearn\s+money\s+fast\b`),
	newPhrase("work from home", `\bwork\s+from\s+home\b`),
	newPhrase("no experience needed", `\bno\s+experience\s+needed\b`),
	newPhrase("MLM", `\bmlm\b`),
	newPhrase("multi-level marketing", `\bmulti[-\s]?level\s+marketing\b`),
	newPhrase("pyramid", `\bpyramid\b`),
	newPhrase("get rich quick", `\bget\s+rich\s+quick\b`),
	newPhrase("click here", `\bclick\s+here\b`),
	newPhrase("limited time offer", `\blimited\s+time\s+offer\b`),
}

// PhraseDetector scores a signal by how many distinct phrases from a set it
// contains. Each match is worth PerMatch, up to MaxMatches matches.
type PhraseDetector struct {
	category   model.AdjustmentCategory
	phrases    []phrase
	perMatch   float64
	maxMatches int
	confStep   float64
	describe   string
}

// FirstMarketerDetector boosts posts for a company's first marketing hire.
func FirstMarketerDetector() PhraseDetector {
	return PhraseDetector{
		category:   model.CategoryFirstMarketer,
		phrases:    firstMarketerPhrases,
		perMatch:   5,
		maxMatches: 3,
		confStep:   0.3,
		describe:   "first marketer role",
	}
}

// SilverBulletDetector penalizes unrealistic growth expectations.
func SilverBulletDetector() PhraseDetector {
	return PhraseDetector{
		category: model.CategorySilverBullet,
		phrases:  silverBulletPhrases,
		perMatch: -8,
		// Three matches would reach -24; the category bound stops at -20.
		maxMatches: 3,
		confStep:   0.4,
		describe:   "unrealistic expectations",
	}
}

// SpamDetector penalizes spammy copy heavily.
func SpamDetector() PhraseDetector {
	return PhraseDetector{
		category:   model.CategorySpam,
		phrases:    spamPhrases,
		perMatch:   -15,
		maxMatches: 3,
		confStep:   0.5,
		describe:   "spam indicators",
	}
}

func (d PhraseDetector) Category() model.AdjustmentCategory { return d.category }

func (d PhraseDetector) Detect(in Input) (model.HeuristicAdjustment, bool) {
	found := matches(d.phrases, in.Text)
	if len(found) == 0 {
		return model.HeuristicAdjustment{}, false
	}
	n := min(len(found), d.maxMatches)
	return model.HeuristicAdjustment{
		Category:   d.category,
		Delta:      model.ClampDelta(d.category, float64(n)*d.perMatch),
		Reason:     fmt.Sprintf("%s: %s (%s)", d.describe, countNoun(len(found), "indicator"), strings.Join(found, ", ")),
		Confidence: math.Min(float64(len(found))*d.confStep, 1),
	}, true
}

func countNoun(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
