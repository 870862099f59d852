// Copyright 2025 JobFlow
// SPDX-License-Identifier: BUSL-1.1

package content

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"jobflow/platform/usage"
)

func newMockDB(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewPostgresRepository(db), mock
}

func TestInsertAssignsID(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectExec("INSERT INTO saved_content").
		WillReturnResult(sqlmock.NewResult(0, 1))

	item := &Item{
		UserID: "u1",
		Kind:   usage.ActivityCoverLetter,
		Title:  "Acme application",
		Body:   "Dear Hiring Manager,",
	}
	if err := repo.Insert(context.Background(), item); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if item.ID == "" {
		t.Error("insert should assign an ID")
	}
	if item.CreatedAt.IsZero() || item.UpdatedAt.IsZero() {
		t.Error("insert should set timestamps")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGetByID(t *testing.T) {
	repo, mock := newMockDB(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "kind", "title", "body", "company_name", "position_title",
		"recipient", "llm_model", "activity_id", "is_deleted", "created_at", "updated_at",
	}).AddRow("c1", "u1", "email", "Acme outreach", "Hello,", "Acme", nil, "jordan@acme.test", nil, "a1", false, now, now)

	mock.ExpectQuery("SELECT id, user_id, kind").
		WithArgs("c1").
		WillReturnRows(rows)

	item, err := repo.GetByID(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if item.Kind != usage.ActivityEmail || item.CompanyName != "Acme" {
		t.Errorf("unexpected item: %+v", item)
	}
	if item.ActivityID != "a1" {
		t.Errorf("activity_id = %q, want a1", item.ActivityID)
	}
	if item.PositionTitle != "" {
		t.Errorf("null position_title should scan as empty, got %q", item.PositionTitle)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectQuery("SELECT id, user_id, kind").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := repo.GetByID(context.Background(), "missing"); err != ErrContentNotFound {
		t.Errorf("expected ErrContentNotFound, got %v", err)
	}
}

func TestListFiltersDeleted(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM saved_content").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "kind", "title", "body", "company_name", "position_title",
		"recipient", "llm_model", "activity_id", "is_deleted", "created_at", "updated_at",
	}).AddRow("c1", "u1", "cover_letter", "Acme", "Dear,", nil, nil, nil, nil, nil, false, now, now)

	mock.ExpectQuery("SELECT id, user_id, kind").
		WithArgs("u1", 50, 0).
		WillReturnRows(rows)

	items, total, err := repo.List(context.Background(), ListOptions{UserID: "u1", Limit: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Errorf("total = %d, items = %d, want 1/1", total, len(items))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSoftDeleteNotFound(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectExec("UPDATE saved_content").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.SoftDelete(context.Background(), "missing"); err != ErrContentNotFound {
		t.Errorf("expected ErrContentNotFound, got %v", err)
	}
}

func TestSoftDelete(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectExec("UPDATE saved_content").
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SoftDelete(context.Background(), "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
