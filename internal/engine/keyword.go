package engine

import (
	"strings"

	"github.com/Veraticus/spice-tagger/internal/catalog"
	"github.com/Veraticus/spice-tagger/internal/model"
	"github.com/Veraticus/spice-tagger/internal/normalize"
)

const (
	keywordBaseConfidence     = 0.6
	keywordCoverageConfidence = 0.3
)

// KeywordMatch is the best plain keyword contained in a payee.
type KeywordMatch struct {
	Tag        string  `json:"tag"`
	Keyword    string  `json:"keyword"`
	Confidence float64 `json:"confidence"`
}

// KeywordMatcher is the last-resort matcher: any catalog keyword contained
// in the payee, scored by how much of the payee it covers.
type KeywordMatcher struct {
	tags []model.Tag
}

// NewKeywordMatcher creates a matcher over c.
func NewKeywordMatcher(c *catalog.Catalog) *KeywordMatcher {
	return &KeywordMatcher{tags: c.Tags()}
}

// Match returns the best keyword hit, or nil. Ties go to catalog order.
func (m *KeywordMatcher) Match(payee string) *KeywordMatch {
	length := normalize.Len(payee)
	if length == 0 {
		return nil
	}

	var best *KeywordMatch
	for _, tag := range m.tags {
		for _, kw := range tag.Keywords {
			if kw == "" || !strings.Contains(payee, kw) {
				continue
			}
			coverage := float64(normalize.Len(kw)) / float64(length)
			confidence := keywordBaseConfidence + keywordCoverageConfidence*coverage
			if best == nil || confidence > best.Confidence {
				best = &KeywordMatch{Tag: tag.Name, Keyword: kw, Confidence: confidence}
			}
		}
	}
	return best
}
