package pipeline

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Profile is one ideal customer profile.
type Profile struct {
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	SizeBuckets    []string `yaml:"size_buckets"`
	Industries     []string `yaml:"industries"`
	Locations      []string `yaml:"locations"`
	Stages         []string `yaml:"stages"`
	HiringKeywords []string `yaml:"hiring_keywords"`
	PainKeywords   []string `yaml:"pain_keywords"`
}

// ICPContext is the union of every profile, used to ground classification.
type ICPContext struct {
	SizeBuckets    []string
	Industries     []string
	PainKeywords   []string
	HiringKeywords []string
}

var defaultSizeBuckets = []string{"1", "2-5", "6-10", "11-20"}

// DefaultICP is the context used when no profile file is configured.
func DefaultICP() ICPContext {
	return ICPContext{SizeBuckets: slices.Clone(defaultSizeBuckets)}
}

// LoadICP reads profiles from a YAML file of the form
//
//	profiles:
//	  - name: Solo Founder
//	    industries: [consulting, agency]
//
// An empty path yields DefaultICP.
func LoadICP(path string) (ICPContext, error) {
	if path == "" {
		return DefaultICP(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ICPContext{}, eris.Wrapf(err, "pipeline: read icp file %s", path)
	}

	var doc struct {
		Profiles []Profile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ICPContext{}, eris.Wrapf(err, "pipeline: parse icp file %s", path)
	}
	return MergeProfiles(doc.Profiles), nil
}

// MergeProfiles unions the keyword lists of every profile. Lists are
// lower-cased, de-duplicated and sorted so the rendered context, and with it
// every cache key, is stable across runs.
func MergeProfiles(profiles []Profile) ICPContext {
	ctx := DefaultICP()
	for _, p := range profiles {
		ctx.Industries = append(ctx.Industries, p.Industries...)
		ctx.PainKeywords = append(ctx.PainKeywords, p.PainKeywords...)
		ctx.HiringKeywords = append(ctx.HiringKeywords, p.HiringKeywords...)
	}
	ctx.Industries = normalizeList(ctx.Industries)
	ctx.PainKeywords = normalizeList(ctx.PainKeywords)
	ctx.HiringKeywords = normalizeList(ctx.HiringKeywords)
	return ctx
}

// Text renders the context for the classification prompt.
func (c ICPContext) Text() string {
	var b strings.Builder
	b.WriteString("ICP Context:\n")
	fmt.Fprintf(&b, "- Size buckets: %s\n", joinOrNone(c.SizeBuckets))
	fmt.Fprintf(&b, "- Industries: %s\n", joinOrNone(c.Industries))
	fmt.Fprintf(&b, "- Pain keywords: %s\n", joinOrNone(c.PainKeywords))
	fmt.Fprintf(&b, "- Hiring keywords: %s", joinOrNone(c.HiringKeywords))
	return b.String()
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
