// Copyright 2025 JobFlow
// SPDX-License-Identifier: BUSL-1.1

// Package content stores the artifacts users choose to keep: generated
// cover letters, LinkedIn messages, and outreach emails. Saving is gated
// by the usage subsystem; deletes are soft so history stays auditable.
package content

import (
	"errors"
	"time"

	"jobflow/platform/usage"
)

var (
	// ErrContentNotFound is returned when a content item doesn't exist
	ErrContentNotFound = errors.New("content not found")
	// ErrInvalidContent is returned when a save request fails validation
	ErrInvalidContent = errors.New("invalid content")
)

// Item is a saved artifact. ActivityID links the history row written when
// the item was saved so a delete can retire both together.
type Item struct {
	ID            string             `json:"id"`
	UserID        string             `json:"user_id"`
	Kind          usage.ActivityType `json:"kind"`
	Title         string             `json:"title"`
	Body          string             `json:"body"`
	CompanyName   string             `json:"company_name,omitempty"`
	PositionTitle string             `json:"position_title,omitempty"`
	Recipient     string             `json:"recipient,omitempty"`
	LLMModel      string             `json:"llm_model,omitempty"`
	ActivityID    string             `json:"activity_id,omitempty"`
	IsDeleted     bool               `json:"is_deleted"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Validate checks the fields a save request must carry
func (i *Item) Validate() error {
	if i.UserID == "" || i.Body == "" {
		return ErrInvalidContent
	}
	switch i.Kind {
	case usage.ActivityCoverLetter, usage.ActivityLinkedInMessage, usage.ActivityEmail:
		return nil
	default:
		return ErrInvalidContent
	}
}

// ListOptions controls content listing
type ListOptions struct {
	UserID         string
	Kind           usage.ActivityType
	IncludeDeleted bool
	Limit          int
	Offset         int
}
