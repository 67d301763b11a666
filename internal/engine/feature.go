package engine

import (
	"context"
	"strings"
	"unicode"

	"github.com/Veraticus/spice-tagger/internal/catalog"
	"github.com/Veraticus/spice-tagger/internal/model"
	"github.com/Veraticus/spice-tagger/internal/normalize"
)

// Feature score weights. Scores are out of 100.
const (
	keywordHitScore  = 30
	hintHitScore     = 25
	brandScore       = 10
	lengthScore      = 10
	lengthSaturation = 20
	digitScore       = 2
	specialScore     = 1
	maxFeatureScore  = 100
)

// FeatureVector is the shallow description of one payee.
type FeatureVector struct {
	// KeywordHits and HintHits are aligned with catalog order.
	KeywordHits []bool  `json:"keyword_hits"`
	HintHits    []bool  `json:"hint_hits"`
	BrandTag    string  `json:"brand_tag,omitempty"`
	Length      float64 `json:"length"`
	HasDigit    bool    `json:"has_digit"`
	HasSpecial  bool    `json:"has_special"`
}

// FeatureModel scores every catalog tag from keyword hits and textual features.
type FeatureModel struct {
	catalog *catalog.Catalog
	tags    []model.Tag
	hints   [][]string
}

// NewFeatureModel builds a feature model over c.
func NewFeatureModel(c *catalog.Catalog) *FeatureModel {
	tags := c.Tags()
	hints := make([][]string, len(tags))
	for i, tag := range tags {
		hints[i] = c.Hints(tag.Name)
	}
	return &FeatureModel{catalog: c, tags: tags, hints: hints}
}

// Name implements SubModel.
func (m *FeatureModel) Name() ModelName { return ModelFeature }

// Extract builds the feature vector for a normalized payee.
func (m *FeatureModel) Extract(payee string) FeatureVector {
	v := FeatureVector{
		KeywordHits: make([]bool, len(m.tags)),
		HintHits:    make([]bool, len(m.tags)),
		Length:      min(1, float64(normalize.Len(payee))/lengthSaturation),
	}

	for i, tag := range m.tags {
		v.KeywordHits[i] = containsAny(payee, tag.Keywords)
		v.HintHits[i] = containsAny(payee, m.hints[i])
	}

	for _, r := range payee {
		switch {
		case unicode.IsDigit(r):
			v.HasDigit = true
		case normalize.IsExtended(r):
			v.HasSpecial = true
		}
	}

	if first, _, _ := strings.Cut(payee, " "); first != "" {
		if tag, ok := m.catalog.BrandTag(first); ok {
			v.BrandTag = tag
		}
	}

	return v
}

// Scores returns the raw score of every tag, in catalog order.
func (m *FeatureModel) Scores(v FeatureVector) []float64 {
	shared := v.Length * lengthScore
	if v.HasDigit {
		shared += digitScore
	}
	if v.HasSpecial {
		shared += specialScore
	}

	scores := make([]float64, len(m.tags))
	for i, tag := range m.tags {
		score := shared
		if v.KeywordHits[i] {
			score += keywordHitScore
		}
		if v.HintHits[i] {
			score += hintHitScore
		}
		if v.BrandTag == tag.Name {
			score += brandScore
		}
		scores[i] = min(score, maxFeatureScore)
	}
	return scores
}

// Predict implements SubModel. Ties go to the tag that comes first in the catalog.
func (m *FeatureModel) Predict(_ context.Context, q Query) (*Result, error) {
	if q.Payee == "" || len(m.tags) == 0 {
		return nil, nil
	}

	v := m.Extract(q.Payee)
	scores := m.Scores(v)

	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	if scores[best] <= 0 {
		return nil, nil
	}

	return &Result{
		Model:      ModelFeature,
		Tag:        m.tags[best].Name,
		Confidence: min(1, scores[best]/maxFeatureScore),
		Features:   &v,
	}, nil
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(s, w) {
			return true
		}
	}
	return false
}
