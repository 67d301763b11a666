package engine

import "context"

// ModelName identifies an ensemble sub-model.
type ModelName string

// Sub-model names.
const (
	ModelFeature     ModelName = "feature"
	ModelSemantic    ModelName = "semantic"
	ModelStatistical ModelName = "statistical"
)

// Query is the input shared by every sub-model for one call.
type Query struct {
	History *History
	UserID  string
	// Payee is already normalized.
	Payee string
}

// Result is one sub-model's vote.
type Result struct {
	// Features is set by the feature model.
	Features   *FeatureVector `json:"features,omitempty"`
	Model      ModelName      `json:"model"`
	Tag        string         `json:"tag"`
	Confidence float64        `json:"confidence"`
}

// SubModel votes for a tag or abstains by returning a nil result.
// Implementations must be safe for concurrent use.
type SubModel interface {
	Name() ModelName
	Predict(ctx context.Context, q Query) (*Result, error)
}
