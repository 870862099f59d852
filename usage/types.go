// Copyright 2025 JobFlow
// SPDX-License-Identifier: BUSL-1.1

// Package usage provides per-user usage accounting for content generation.
// It gates LLM generations and saved activities against tier limits,
// tracks counters, and resets them on a rolling 30-day window.
package usage

import (
	"time"
)

// UserType represents the subscription tier of a user
type UserType string

const (
	UserTypeFree  UserType = "FREE"
	UserTypePlus  UserType = "PLUS"
	UserTypeAdmin UserType = "ADMIN"
)

// ActivityType identifies what kind of content an activity produced
type ActivityType string

const (
	ActivityCoverLetter     ActivityType = "cover_letter"
	ActivityLinkedInMessage ActivityType = "linkedin_message"
	ActivityEmail           ActivityType = "email"
)

// DecisionKind classifies why a check allowed or denied a request
type DecisionKind string

const (
	KindAllowed       DecisionKind = "allowed"
	KindAdminBypass   DecisionKind = "admin_bypass"
	KindUnlimited     DecisionKind = "unlimited"
	KindLimitReached  DecisionKind = "limit_reached"
	KindUserNotFound  DecisionKind = "user_not_found"
	KindNotConfigured DecisionKind = "not_configured"
	KindStorage       DecisionKind = "storage_error"
)

// User holds the accounting-relevant subset of a user row.
// Counter fields are mutated only by the tracker and the reset sweeper.
type User struct {
	ID                      string    `json:"id"`
	UserType                UserType  `json:"user_type"`
	IsAdmin                 bool      `json:"is_admin"`
	GenerationCount         int       `json:"generation_count"`
	FollowupGenerationCount int       `json:"followup_generation_count"`
	ActivityCount           int       `json:"activity_count"`
	MonthlyResetDate        time.Time `json:"monthly_reset_date"`
}

// Admin reports whether the user bypasses all limits
func (u *User) Admin() bool {
	return u.IsAdmin || u.UserType == UserTypeAdmin
}

// LimitSettings is the per-tier limit configuration.
// A limit of 0 disables that limit entirely.
type LimitSettings struct {
	UserType               UserType  `json:"user_type"`
	MaxActivities          int       `json:"max_activities"`
	MaxGenerations         int       `json:"max_generations"`
	MaxFollowupGenerations int       `json:"max_followup_generations"`
	IncludeFollowups       bool      `json:"include_followups"`
	UpdatedBy              string    `json:"updated_by,omitempty"`
	CreatedAt              time.Time `json:"created_at,omitempty"`
	UpdatedAt              time.Time `json:"updated_at,omitempty"`
}

// Validate validates the settings configuration
func (s *LimitSettings) Validate() error {
	if !isValidUserType(s.UserType) {
		return ErrInvalidUserType
	}
	if s.MaxActivities < 0 || s.MaxGenerations < 0 || s.MaxFollowupGenerations < 0 {
		return ErrInvalidLimit
	}
	return nil
}

func isValidUserType(t UserType) bool {
	switch t {
	case UserTypeFree, UserTypePlus, UserTypeAdmin:
		return true
	}
	return false
}

// Activity is one row of the append-only activity history log.
// Rows are soft-deleted when the underlying content is removed.
type Activity struct {
	ID            string       `json:"id"`
	UserID        string       `json:"user_id"`
	ActivityType  ActivityType `json:"activity_type"`
	CompanyName   string       `json:"company_name"`
	PositionTitle string       `json:"position_title,omitempty"`
	Recipient     string       `json:"recipient,omitempty"`
	LLMModel      string       `json:"llm_model,omitempty"`
	IsSaved       bool         `json:"is_saved"`
	IsFollowup    bool         `json:"is_followup"`
	IsDeleted     bool         `json:"is_deleted"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Decision is the result of a limit check. Message is a plain string
// meant for direct display in the UI on denial.
type Decision struct {
	Allowed      bool         `json:"allowed"`
	Kind         DecisionKind `json:"kind"`
	Message      string       `json:"message,omitempty"`
	CurrentCount int          `json:"current_count,omitempty"`
	Limit        int          `json:"limit,omitempty"`
	ResetDate    time.Time    `json:"reset_date,omitempty"`
}

// ListActivitiesOptions for filtering history queries
type ListActivitiesOptions struct {
	UserID         string    `json:"user_id"`
	Since          time.Time `json:"since,omitempty"`
	IncludeDeleted bool      `json:"include_deleted,omitempty"`
	Limit          int       `json:"limit,omitempty"`
	Offset         int       `json:"offset,omitempty"`
}

// NewActivity creates a history row with a fresh timestamp
func NewActivity(userID string, activityType ActivityType, companyName string) *Activity {
	return &Activity{
		UserID:       userID,
		ActivityType: activityType,
		CompanyName:  companyName,
		CreatedAt:    time.Now().UTC(),
	}
}
