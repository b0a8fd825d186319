package llm

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-engine/internal/model"
)

const classificationTemplate = `You are an expert lead qualification analyst. Analyze the signal (a job post, website text or similar) against the Ideal Customer Profile and return STRICT JSON. No extra text. ONLY JSON.

{icp_context}

Signal Text:
{signal_text}

Return exactly this JSON structure:
{
  "icp_match": true or false,
  "size_bucket": "1" or "2-5" or "6-10" or "11-20" or "unknown",
  "region": "india" or "other" or "unknown",
  "role_type": "first_marketer" or "agency_replacement" or "extra_headcount" or "unclear",
  "pain_tags": ["list", "of", "tags"],
  "score_fit": 0-50,
  "score_pain": 0-40,
  "score_data_quality": 0-10,
  "reason_short": "max 25 words",
  "situation": "max 40 words",
  "problem": "max 40 words",
  "implication": "max 40 words",
  "need_payoff": "max 40 words",
  "economic_buyer_guess": "founder" or "ceo" or "gm" or "other",
  "key_pain": "max 40 words",
  "chaos_flags": ["list", "of", "flags"],
  "silver_bullet_phrases": ["list", "of", "phrases"]
}

Scoring guidelines:
- score_fit (0-50): how well the company matches the ICP on size, industry and region.
- score_pain (0-40): how intense the marketing pain is: urgency, frustration, budget mentions.
- score_data_quality (0-10): how complete and reliable the signal is.`

const dossierTemplate = `You are a senior growth advisor. Given structured lead data and signal snippets, write a sharp, non-fluffy dossier for the sales team.

Lead Data:
{classification_json}

Signal Snippets:
{signal_text}

Return STRICT JSON with these fields:
{
  "snapshot": "40 words max, one sentence on who they are",
  "why_pain_bullets": ["why they have marketing pain", "bullet 2", "bullet 3"],
  "uncomfortable_truth": "1-2 sentences on what happens if they don't fix this",
  "reframe_suggestion": "1 strong reframe sentence flipping their thinking",
  "best_angle_bullets": ["angle 1 to approach them", "angle 2", "angle 3"],
  "challenger_insight": "the one uncomfortable truth to lead with"
}`

const maxSnippets = 5

// Templates holds the prompt bodies. Placeholders: {icp_context},
// {signal_text} and {classification_json}.
type Templates struct {
	Classification string `yaml:"classification"`
	Dossier        string `yaml:"dossier"`
}

// DefaultTemplates returns the built-in prompts.
func DefaultTemplates() Templates {
	return Templates{Classification: classificationTemplate, Dossier: dossierTemplate}
}

// LoadTemplates reads every *.yaml/*.yml file in dir. Each file maps
// template names to bodies; names missing from all files keep their
// defaults. An empty dir returns the defaults.
func LoadTemplates(dir string) (Templates, error) {
	t := DefaultTemplates()
	if dir == "" {
		return t, nil
	}

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return t, eris.Wrapf(err, "llm: glob prompts in %s", dir)
		}
		files = append(files, m...)
	}

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return t, eris.Wrapf(err, "llm: read prompt file %s", f)
		}
		var loaded Templates
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return t, eris.Wrapf(err, "llm: parse prompt file %s", f)
		}
		if loaded.Classification != "" {
			t.Classification = loaded.Classification
		}
		if loaded.Dossier != "" {
			t.Dossier = loaded.Dossier
		}
	}

	zap.L().Debug("llm: prompt templates loaded", zap.String("dir", dir), zap.Int("files", len(files)))
	return t, nil
}

// ClassificationPrompt renders the stage-1 prompt.
func (t Templates) ClassificationPrompt(signalText, icpContext string) string {
	return strings.NewReplacer(
		"{icp_context}", icpContext,
		"{signal_text}", signalText,
	).Replace(t.Classification)
}

// DossierPrompt renders the stage-2 prompt from the classification and up
// to five signal snippets.
func (t Templates) DossierPrompt(cls model.ClassificationResult, snippets []string) string {
	lead, _ := json.MarshalIndent(cls, "", "  ")

	if len(snippets) > maxSnippets {
		snippets = snippets[:maxSnippets]
	}
	lines := make([]string, len(snippets))
	for i, s := range snippets {
		lines[i] = "- " + strings.TrimSpace(s)
	}

	return strings.NewReplacer(
		"{classification_json}", string(lead),
		"{signal_text}", strings.Join(lines, "\n"),
	).Replace(t.Dossier)
}
