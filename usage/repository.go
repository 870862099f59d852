// Copyright 2025 JobFlow
// SPDX-License-Identifier: BUSL-1.1

package usage

import (
	"context"
	"time"
)

// Repository defines the interface for usage data persistence
type Repository interface {
	// User counter operations
	GetUser(ctx context.Context, id string) (*User, error)
	IncrementGeneration(ctx context.Context, userID string, followup bool) error
	IncrementActivity(ctx context.Context, userID string) error
	SetMonthlyResetDate(ctx context.Context, userID string, resetDate time.Time) error
	ResetDueCounters(ctx context.Context, now time.Time, nextReset time.Time) (int64, error)

	// Limit settings operations
	GetSettings(ctx context.Context, userType UserType) (*LimitSettings, error)
	ListSettings(ctx context.Context) ([]LimitSettings, error)
	UpsertSettings(ctx context.Context, settings *LimitSettings) error

	// Activity history operations
	InsertActivity(ctx context.Context, activity *Activity) error
	SoftDeleteActivity(ctx context.Context, id string) error
	CountActivitiesSince(ctx context.Context, userID string, since time.Time) (int, error)
	ListActivities(ctx context.Context, opts ListActivitiesOptions) ([]Activity, int, error)

	// Utility
	Ping(ctx context.Context) error
}
