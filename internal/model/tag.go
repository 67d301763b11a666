// Package model defines the core domain models used throughout the application.
package model

// Tag is a spending category with the keywords that identify it.
type Tag struct {
	Name     string   `json:"name" yaml:"name"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// Clone returns a copy that shares no memory with t.
func (t Tag) Clone() Tag {
	keywords := make([]string, len(t.Keywords))
	copy(keywords, t.Keywords)
	return Tag{Name: t.Name, Keywords: keywords}
}
