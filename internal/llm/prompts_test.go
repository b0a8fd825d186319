package llm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-engine/internal/model"
)

func TestClassificationPrompt(t *testing.T) {
	t.Parallel()
	p := DefaultTemplates().ClassificationPrompt("We need our first marketer.", "ICP Context:\n- Industries: saas")

	assert.Contains(t, p, "We need our first marketer.")
	assert.Contains(t, p, "- Industries: saas")
	assert.Contains(t, p, `"score_fit": 0-50`)
	assert.NotContains(t, p, "{signal_text}")
	assert.NotContains(t, p, "{icp_context}")
}

func TestDossierPrompt(t *testing.T) {
	t.Parallel()
	cls := model.ClassificationResult{RoleType: "first_marketer", KeyPain: "no pipeline"}
	snippets := []string{"one", "two", "three", "four", "five", "six"}

	p := DefaultTemplates().DossierPrompt(cls, snippets)
	assert.Contains(t, p, `"key_pain": "no pipeline"`)
	assert.Contains(t, p, "- five")
	assert.NotContains(t, p, "- six")
	assert.NotContains(t, p, "{classification_json}")
}

func TestLoadTemplates(t *testing.T) {
	t.Parallel()

	got, err := LoadTemplates("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTemplates(), got)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "classification.yaml"),
		[]byte("classification: |\n  Custom {icp_context} / {signal_text}\n"), 0o644))

	got, err = LoadTemplates(dir)
	require.NoError(t, err)
	assert.Equal(t, "Custom ctx / text\n", got.ClassificationPrompt("text", "ctx"))
	assert.Equal(t, dossierTemplate, got.Dossier, "missing templates keep defaults")
}

func TestLoadTemplates_BadYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("classification: [unterminated"), 0o644))

	_, err := LoadTemplates(dir)
	assert.Error(t, err)
}
