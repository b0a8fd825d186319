// Package fingerprint caches stage-1 classification results by content.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// KeyPrefix namespaces cache keys in shared stores.
const KeyPrefix = "model_cache:"

// Key derives the content-addressed cache key for a signal classified under
// an ICP context by a given model. Inputs are normalized first so copies of
// the same text that differ only in case or whitespace share a key.
func Key(signalText, contextText, modelID string) string {
	h := sha256.New()
	h.Write([]byte(Normalize(signalText)))
	h.Write([]byte{'|'})
	h.Write([]byte(Normalize(contextText)))
	h.Write([]byte{'|'})
	h.Write([]byte(strings.TrimSpace(modelID)))
	return KeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Normalize applies NFKC, case folding and whitespace collapsing.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}
