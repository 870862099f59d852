// Copyright 2025 JobFlow
// SPDX-License-Identifier: BUSL-1.1

package content

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

// InitSchema creates the saved content table if it does not exist
func (r *PostgresRepository) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS saved_content (
		id VARCHAR(100) PRIMARY KEY,
		user_id VARCHAR(100) NOT NULL,
		kind VARCHAR(50) NOT NULL,
		title VARCHAR(255) NOT NULL,
		body TEXT NOT NULL,
		company_name VARCHAR(255),
		position_title VARCHAR(255),
		recipient VARCHAR(255),
		llm_model VARCHAR(100),
		activity_id VARCHAR(100),
		is_deleted BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_content_user_created ON saved_content(user_id, created_at);
	`

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Insert stores a new content item, assigning its ID and timestamps
func (r *PostgresRepository) Insert(ctx context.Context, item *Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	query := `
		INSERT INTO saved_content (
			id, user_id, kind, title, body, company_name, position_title,
			recipient, llm_model, activity_id, is_deleted, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		item.ID, item.UserID, item.Kind, item.Title, item.Body,
		nullString(item.CompanyName), nullString(item.PositionTitle),
		nullString(item.Recipient), nullString(item.LLMModel),
		nullString(item.ActivityID), item.IsDeleted, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert content: %w", err)
	}
	return nil
}

// GetByID retrieves one content item, deleted or not
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Item, error) {
	query := `
		SELECT id, user_id, kind, title, body, company_name, position_title,
		       recipient, llm_model, activity_id, is_deleted, created_at, updated_at
		FROM saved_content
		WHERE id = $1
	`

	var item Item
	var companyName, positionTitle, recipient, llmModel, activityID sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID, &item.UserID, &item.Kind, &item.Title, &item.Body,
		&companyName, &positionTitle, &recipient, &llmModel, &activityID,
		&item.IsDeleted, &item.CreatedAt, &item.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content: %w", err)
	}

	item.CompanyName = companyName.String
	item.PositionTitle = positionTitle.String
	item.Recipient = recipient.String
	item.LLMModel = llmModel.String
	item.ActivityID = activityID.String
	return &item, nil
}

// List returns a page of a user's content plus the total row count
func (r *PostgresRepository) List(ctx context.Context, opts ListOptions) ([]Item, int, error) {
	conditions := []string{"user_id = $1"}
	args := []interface{}{opts.UserID}

	if !opts.IncludeDeleted {
		conditions = append(conditions, "is_deleted = false")
	}
	if opts.Kind != "" {
		args = append(args, opts.Kind)
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM saved_content WHERE %s`, where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count content: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, kind, title, body, company_name, position_title,
		       recipient, llm_model, activity_id, is_deleted, created_at, updated_at
		FROM saved_content
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list content: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var items []Item
	for rows.Next() {
		var item Item
		var companyName, positionTitle, recipient, llmModel, activityID sql.NullString
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.Kind, &item.Title, &item.Body,
			&companyName, &positionTitle, &recipient, &llmModel, &activityID,
			&item.IsDeleted, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan content: %w", err)
		}
		item.CompanyName = companyName.String
		item.PositionTitle = positionTitle.String
		item.Recipient = recipient.String
		item.LLMModel = llmModel.String
		item.ActivityID = activityID.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate content: %w", err)
	}

	return items, total, nil
}

// SoftDelete marks a content item as deleted, keeping the row
func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE saved_content
		SET is_deleted = true, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND is_deleted = false
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete content: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return ErrContentNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
