// Copyright 2025 JobFlow
// SPDX-License-Identifier: BUSL-1.1

package usage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
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

func TestGetUser(t *testing.T) {
	repo, mock := newMockDB(t)

	resetDate := time.Now().UTC().Add(-time.Hour)
	rows := sqlmock.NewRows([]string{
		"id", "user_type", "is_admin", "generation_count",
		"followup_generation_count", "activity_count", "monthly_reset_date",
	}).AddRow("u1", "FREE", false, 5, 2, 3, resetDate)

	mock.ExpectQuery("SELECT id, user_type, is_admin").
		WithArgs("u1").
		WillReturnRows(rows)

	user, err := repo.GetUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if user.UserType != UserTypeFree {
		t.Errorf("user type = %v, want FREE", user.UserType)
	}
	if user.GenerationCount != 5 || user.FollowupGenerationCount != 2 || user.ActivityCount != 3 {
		t.Errorf("counters = %d/%d/%d, want 5/2/3",
			user.GenerationCount, user.FollowupGenerationCount, user.ActivityCount)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGetUserNotFound(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectQuery("SELECT id, user_type, is_admin").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetUser(context.Background(), "missing")
	if err != ErrUserNotFound {
		t.Errorf("error = %v, want ErrUserNotFound", err)
	}
}

func TestIncrementGeneration(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectExec("UPDATE users SET generation_count = generation_count \\+ 1").
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.IncrementGeneration(context.Background(), "u1", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestIncrementGenerationFollowup(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectExec("UPDATE users SET followup_generation_count = followup_generation_count \\+ 1").
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.IncrementGeneration(context.Background(), "u1", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIncrementGenerationUnknownUser(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectExec("UPDATE users SET generation_count").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.IncrementGeneration(context.Background(), "missing", false)
	if err != ErrUserNotFound {
		t.Errorf("error = %v, want ErrUserNotFound", err)
	}
}

func TestResetDueCounters(t *testing.T) {
	repo, mock := newMockDB(t)

	now := time.Now().UTC()
	next := now.AddDate(0, 0, 30)

	mock.ExpectExec("UPDATE users SET").
		WithArgs(now, next).
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := repo.ResetDueCounters(context.Background(), now, next)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if affected != 3 {
		t.Errorf("affected = %d, want 3", affected)
	}
}

func TestGetSettingsNotFound(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectQuery("SELECT user_type, max_activities").
		WithArgs(UserTypePlus).
		WillReturnRows(sqlmock.NewRows([]string{"user_type"}))

	_, err := repo.GetSettings(context.Background(), UserTypePlus)
	if err != ErrSettingsNotFound {
		t.Errorf("error = %v, want ErrSettingsNotFound", err)
	}
}

func TestGetSettings(t *testing.T) {
	repo, mock := newMockDB(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"user_type", "max_activities", "max_generations",
		"max_followup_generations", "include_followups",
		"updated_by", "created_at", "updated_at",
	}).AddRow("FREE", 100, 50, 25, true, "admin-1", now, now)

	mock.ExpectQuery("SELECT user_type, max_activities").
		WithArgs(UserTypeFree).
		WillReturnRows(rows)

	settings, err := repo.GetSettings(context.Background(), UserTypeFree)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if settings.MaxActivities != 100 || settings.MaxGenerations != 50 {
		t.Errorf("limits = %d/%d, want 100/50", settings.MaxActivities, settings.MaxGenerations)
	}
	if settings.UpdatedBy != "admin-1" {
		t.Errorf("updated by = %q, want admin-1", settings.UpdatedBy)
	}
}

func TestUpsertSettings(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectExec("INSERT INTO usage_limit_settings").
		WithArgs("FREE", 100, 50, 25, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertSettings(context.Background(), &LimitSettings{
		UserType:               UserTypeFree,
		MaxActivities:          100,
		MaxGenerations:         50,
		MaxFollowupGenerations: 25,
		IncludeFollowups:       true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInsertActivityAssignsID(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectExec("INSERT INTO activity_history").
		WithArgs(sqlmock.AnyArg(), "u1", "cover_letter", "Acme",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			false, false, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	activity := &Activity{
		UserID:       "u1",
		ActivityType: ActivityCoverLetter,
		CompanyName:  "Acme",
	}
	if err := repo.InsertActivity(context.Background(), activity); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if activity.ID == "" {
		t.Error("expected generated activity ID")
	}
	if activity.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestSoftDeleteActivityNotFound(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectExec("UPDATE activity_history SET is_deleted = true").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SoftDeleteActivity(context.Background(), "missing")
	if err != ErrActivityNotFound {
		t.Errorf("error = %v, want ErrActivityNotFound", err)
	}
}

func TestCountActivitiesSince(t *testing.T) {
	repo, mock := newMockDB(t)

	since := time.Now().UTC().AddDate(0, 0, -10)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM activity_history").
		WithArgs("u1", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := repo.CountActivitiesSince(context.Background(), "u1", since)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 42 {
		t.Errorf("count = %d, want 42", count)
	}
}

func TestListActivitiesFiltersDeleted(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM activity_history").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "activity_type", "company_name", "position_title",
		"recipient", "llm_model", "is_saved", "is_followup", "is_deleted", "created_at",
	}).AddRow("a1", "u1", "email", "Acme", "Engineer", "jane@acme.test", "gpt-4o", true, false, false, now)

	mock.ExpectQuery("SELECT id, user_id, activity_type").
		WithArgs("u1", 50, 0).
		WillReturnRows(rows)

	activities, total, err := repo.ListActivities(context.Background(), ListActivitiesOptions{UserID: "u1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(activities) != 1 {
		t.Fatalf("total = %d, len = %d, want 1/1", total, len(activities))
	}
	if activities[0].PositionTitle != "Engineer" || activities[0].LLMModel != "gpt-4o" {
		t.Errorf("nullable columns not mapped: %+v", activities[0])
	}
}
