package model

import (
	"fmt"
	"strings"
	"time"
)

// UserTagMemory is one confirmed (user, payee, tag) mapping and how often it was confirmed.
type UserTagMemory struct {
	UpdatedAt       time.Time `json:"updated_at"`
	UserID          string    `json:"user_id"`
	PayeeNormalized string    `json:"payee_normalized"`
	Tag             string    `json:"tag"`
	Count           int       `json:"count"`
	LastConfidence  float64   `json:"last_confidence"`
}

// Confirmation is a write-back request emitted when a user accepts or corrects a tag.
type Confirmation struct {
	UserID string `json:"user_id"`
	Payee  string `json:"payee"`
	Tag    string `json:"tag"`
	Weight int    `json:"weight"`
}

// Validate checks that the confirmation can be written.
func (c *Confirmation) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(c.Payee) == "" {
		return fmt.Errorf("payee is required")
	}
	if strings.TrimSpace(c.Tag) == "" {
		return fmt.Errorf("tag is required")
	}
	if c.Weight < 1 {
		return fmt.Errorf("weight must be at least 1, got %d", c.Weight)
	}
	return nil
}
