// Copyright 2025 JobFlow
// SPDX-License-Identifier: BUSL-1.1

package usage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// InitSchema creates the accounting tables if they do not exist
func (r *PostgresRepository) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(100) PRIMARY KEY,
		user_type VARCHAR(20) NOT NULL DEFAULT 'FREE',
		is_admin BOOLEAN NOT NULL DEFAULT false,
		generation_count INTEGER NOT NULL DEFAULT 0,
		followup_generation_count INTEGER NOT NULL DEFAULT 0,
		activity_count INTEGER NOT NULL DEFAULT 0,
		monthly_reset_date TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS usage_limit_settings (
		user_type VARCHAR(20) PRIMARY KEY,
		max_activities INTEGER NOT NULL DEFAULT 0,
		max_generations INTEGER NOT NULL DEFAULT 0,
		max_followup_generations INTEGER NOT NULL DEFAULT 0,
		include_followups BOOLEAN NOT NULL DEFAULT true,
		updated_by VARCHAR(100),
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS activity_history (
		id VARCHAR(100) PRIMARY KEY,
		user_id VARCHAR(100) NOT NULL,
		activity_type VARCHAR(50) NOT NULL,
		company_name VARCHAR(255) NOT NULL,
		position_title VARCHAR(255),
		recipient VARCHAR(255),
		llm_model VARCHAR(100),
		is_saved BOOLEAN NOT NULL DEFAULT false,
		is_followup BOOLEAN NOT NULL DEFAULT false,
		is_deleted BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_activity_user_created ON activity_history(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_users_reset_date ON users(monthly_reset_date);
	`

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// GetUser retrieves the accounting fields of a user by ID
func (r *PostgresRepository) GetUser(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, user_type, is_admin, generation_count,
		       followup_generation_count, activity_count, monthly_reset_date
		FROM users
		WHERE id = $1
	`

	var user User
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.UserType, &user.IsAdmin, &user.GenerationCount,
		&user.FollowupGenerationCount, &user.ActivityCount, &user.MonthlyResetDate,
	)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// IncrementGeneration bumps one generation counter by 1.
// The single-field increment is atomic at the storage layer.
func (r *PostgresRepository) IncrementGeneration(ctx context.Context, userID string, followup bool) error {
	column := "generation_count"
	if followup {
		column = "followup_generation_count"
	}

	query := fmt.Sprintf(`UPDATE users SET %s = %s + 1 WHERE id = $1`, column, column)

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to increment generation count: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

// IncrementActivity bumps the activity counter by 1
func (r *PostgresRepository) IncrementActivity(ctx context.Context, userID string) error {
	query := `UPDATE users SET activity_count = activity_count + 1 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to increment activity count: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

// SetMonthlyResetDate moves the reset window start for a single user
func (r *PostgresRepository) SetMonthlyResetDate(ctx context.Context, userID string, resetDate time.Time) error {
	query := `UPDATE users SET monthly_reset_date = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, userID, resetDate)
	if err != nil {
		return fmt.Errorf("failed to set monthly reset date: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

// ResetDueCounters zeroes counters for every user whose reset date has
// passed and advances their reset date in one bulk update.
func (r *PostgresRepository) ResetDueCounters(ctx context.Context, now time.Time, nextReset time.Time) (int64, error) {
	query := `
		UPDATE users SET
			generation_count = 0,
			followup_generation_count = 0,
			activity_count = 0,
			monthly_reset_date = $2
		WHERE monthly_reset_date <= $1
	`

	result, err := r.db.ExecContext(ctx, query, now, nextReset)
	if err != nil {
		return 0, fmt.Errorf("failed to reset counters: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}

	return rows, nil
}

// GetSettings retrieves limit settings for a user type
func (r *PostgresRepository) GetSettings(ctx context.Context, userType UserType) (*LimitSettings, error) {
	query := `
		SELECT user_type, max_activities, max_generations,
		       max_followup_generations, include_followups,
		       updated_by, created_at, updated_at
		FROM usage_limit_settings
		WHERE user_type = $1
	`

	var settings LimitSettings
	var updatedBy sql.NullString

	err := r.db.QueryRowContext(ctx, query, userType).Scan(
		&settings.UserType, &settings.MaxActivities, &settings.MaxGenerations,
		&settings.MaxFollowupGenerations, &settings.IncludeFollowups,
		&updatedBy, &settings.CreatedAt, &settings.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrSettingsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	settings.UpdatedBy = updatedBy.String
	return &settings, nil
}

// ListSettings returns settings for all user types
func (r *PostgresRepository) ListSettings(ctx context.Context) ([]LimitSettings, error) {
	query := `
		SELECT user_type, max_activities, max_generations,
		       max_followup_generations, include_followups,
		       updated_by, created_at, updated_at
		FROM usage_limit_settings
		ORDER BY user_type
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	var result []LimitSettings
	for rows.Next() {
		var settings LimitSettings
		var updatedBy sql.NullString

		if err := rows.Scan(
			&settings.UserType, &settings.MaxActivities, &settings.MaxGenerations,
			&settings.MaxFollowupGenerations, &settings.IncludeFollowups,
			&updatedBy, &settings.CreatedAt, &settings.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan settings: %w", err)
		}

		settings.UpdatedBy = updatedBy.String
		result = append(result, settings)
	}

	return result, rows.Err()
}

// UpsertSettings creates or replaces the settings row for a user type.
// At most one row exists per user type.
func (r *PostgresRepository) UpsertSettings(ctx context.Context, settings *LimitSettings) error {
	query := `
		INSERT INTO usage_limit_settings (
			user_type, max_activities, max_generations,
			max_followup_generations, include_followups,
			updated_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (user_type) DO UPDATE SET
			max_activities = EXCLUDED.max_activities,
			max_generations = EXCLUDED.max_generations,
			max_followup_generations = EXCLUDED.max_followup_generations,
			include_followups = EXCLUDED.include_followups,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		settings.UserType, settings.MaxActivities, settings.MaxGenerations,
		settings.MaxFollowupGenerations, settings.IncludeFollowups,
		nullString(settings.UpdatedBy), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert settings: %w", err)
	}

	return nil
}

// InsertActivity appends one row to the activity history log
func (r *PostgresRepository) InsertActivity(ctx context.Context, activity *Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO activity_history (
			id, user_id, activity_type, company_name, position_title,
			recipient, llm_model, is_saved, is_followup, is_deleted, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		activity.ID, activity.UserID, activity.ActivityType, activity.CompanyName,
		nullString(activity.PositionTitle), nullString(activity.Recipient),
		nullString(activity.LLMModel), activity.IsSaved, activity.IsFollowup,
		activity.IsDeleted, activity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}

	return nil
}

// SoftDeleteActivity marks a history row as deleted without removing it
func (r *PostgresRepository) SoftDeleteActivity(ctx context.Context, id string) error {
	query := `UPDATE activity_history SET is_deleted = true WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to soft delete activity: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return ErrActivityNotFound
	}

	return nil
}

// CountActivitiesSince counts history rows created at or after the given time
func (r *PostgresRepository) CountActivitiesSince(ctx context.Context, userID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM activity_history
		WHERE user_id = $1 AND created_at >= $2
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}

	return count, nil
}

// ListActivities lists history rows with filtering and pagination
func (r *PostgresRepository) ListActivities(ctx context.Context, opts ListActivitiesOptions) ([]Activity, int, error) {
	conditions := []string{"user_id = $1"}
	args := []interface{}{opts.UserID}
	argIndex := 2

	if !opts.Since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIndex))
		args = append(args, opts.Since)
		argIndex++
	}
	if !opts.IncludeDeleted {
		conditions = append(conditions, "is_deleted = false")
	}

	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM activity_history %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count activities: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, activity_type, company_name, position_title,
		       recipient, llm_model, is_saved, is_followup, is_deleted, created_at
		FROM activity_history
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argIndex, argIndex+1)

	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		var a Activity
		var positionTitle, recipient, llmModel sql.NullString

		if err := rows.Scan(
			&a.ID, &a.UserID, &a.ActivityType, &a.CompanyName, &positionTitle,
			&recipient, &llmModel, &a.IsSaved, &a.IsFollowup, &a.IsDeleted, &a.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan activity: %w", err)
		}

		a.PositionTitle = positionTitle.String
		a.Recipient = recipient.String
		a.LLMModel = llmModel.String
		activities = append(activities, a)
	}

	return activities, total, rows.Err()
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
