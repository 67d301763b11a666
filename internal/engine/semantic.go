package engine

import (
	"context"
	"strings"

	"github.com/Veraticus/spice-tagger/internal/catalog"
	"github.com/Veraticus/spice-tagger/internal/similarity"
)

// MaxSemanticDistance is the largest normalized edit distance the semantic
// model accepts as a match.
const MaxSemanticDistance = 0.35

type semanticEntry struct {
	keyword string
	tag     int
	tokens  int
}

// SemanticModel fuzzy-matches payee tokens against every tag's keyword bag.
// A keyword of n words is compared with each run of n consecutive payee words.
type SemanticModel struct {
	names       []string
	entries     []semanticEntry
	maxDistance float64
}

// NewSemanticModel indexes the keywords of c.
func NewSemanticModel(c *catalog.Catalog) *SemanticModel {
	m := &SemanticModel{maxDistance: MaxSemanticDistance}
	for i, tag := range c.Tags() {
		m.names = append(m.names, tag.Name)
		for _, kw := range tag.Keywords {
			m.entries = append(m.entries, semanticEntry{
				keyword: kw,
				tag:     i,
				tokens:  len(strings.Fields(kw)),
			})
		}
	}
	return m
}

// Name implements SubModel.
func (m *SemanticModel) Name() ModelName { return ModelSemantic }

// Distances returns, per tag in catalog order, the smallest distance from
// the payee to any of its keywords. Tags without keywords get 1.
func (m *SemanticModel) Distances(payee string) []float64 {
	dist := make([]float64, len(m.names))
	for i := range dist {
		dist[i] = 1
	}

	tokens := strings.Fields(payee)
	if len(tokens) == 0 {
		return dist
	}

	for _, e := range m.entries {
		if d := windowDistance(tokens, e.keyword, e.tokens); d < dist[e.tag] {
			dist[e.tag] = d
		}
	}
	return dist
}

// Predict implements SubModel. Ties go to the tag that comes first in the catalog.
func (m *SemanticModel) Predict(_ context.Context, q Query) (*Result, error) {
	if q.Payee == "" || len(m.names) == 0 {
		return nil, nil
	}

	dist := m.Distances(q.Payee)
	best := 0
	for i := 1; i < len(dist); i++ {
		if dist[i] < dist[best] {
			best = i
		}
	}
	if dist[best] > m.maxDistance {
		return nil, nil
	}

	return &Result{
		Model:      ModelSemantic,
		Tag:        m.names[best],
		Confidence: 1 - dist[best],
	}, nil
}

func windowDistance(tokens []string, keyword string, width int) float64 {
	if width <= 0 || len(tokens) <= width {
		return similarity.TokenDistance(strings.Join(tokens, " "), keyword)
	}

	best := 1.0
	for i := 0; i+width <= len(tokens); i++ {
		if d := similarity.TokenDistance(strings.Join(tokens[i:i+width], " "), keyword); d < best {
			best = d
			if best == 0 {
				break
			}
		}
	}
	return best
}
