// Copyright 2025 JobFlow
// SPDX-License-Identifier: BUSL-1.1

package content

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobflow/platform/usage"
)

// memoryRepository is an in-memory content.Repository for service tests
type memoryRepository struct {
	items map[string]*Item

	insertErr error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{items: make(map[string]*Item)}
}

func (r *memoryRepository) Insert(ctx context.Context, item *Item) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.CreatedAt = time.Now().UTC()
	item.UpdatedAt = item.CreatedAt
	copied := *item
	r.items[item.ID] = &copied
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id string) (*Item, error) {
	if item, ok := r.items[id]; ok {
		copied := *item
		return &copied, nil
	}
	return nil, ErrContentNotFound
}

func (r *memoryRepository) List(ctx context.Context, opts ListOptions) ([]Item, int, error) {
	var items []Item
	for _, item := range r.items {
		if item.UserID != opts.UserID {
			continue
		}
		if item.IsDeleted && !opts.IncludeDeleted {
			continue
		}
		if opts.Kind != "" && item.Kind != opts.Kind {
			continue
		}
		items = append(items, *item)
	}
	return items, len(items), nil
}

func (r *memoryRepository) SoftDelete(ctx context.Context, id string) error {
	item, ok := r.items[id]
	if !ok || item.IsDeleted {
		return ErrContentNotFound
	}
	item.IsDeleted = true
	return nil
}

// usageStore is a minimal usage.Repository backing the gate in these tests
type usageStore struct {
	users      map[string]*usage.User
	settings   map[usage.UserType]*usage.LimitSettings
	activities map[string]*usage.Activity

	activityIncrements int
}

func newUsageStore() *usageStore {
	return &usageStore{
		users:      make(map[string]*usage.User),
		settings:   make(map[usage.UserType]*usage.LimitSettings),
		activities: make(map[string]*usage.Activity),
	}
}

func (s *usageStore) GetUser(ctx context.Context, id string) (*usage.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, usage.ErrUserNotFound
}

func (s *usageStore) IncrementGeneration(ctx context.Context, userID string, followup bool) error {
	return nil
}

func (s *usageStore) IncrementActivity(ctx context.Context, userID string) error {
	s.activityIncrements++
	return nil
}

func (s *usageStore) SetMonthlyResetDate(ctx context.Context, userID string, resetDate time.Time) error {
	return nil
}

func (s *usageStore) ResetDueCounters(ctx context.Context, now, nextReset time.Time) (int64, error) {
	return 0, nil
}

func (s *usageStore) GetSettings(ctx context.Context, userType usage.UserType) (*usage.LimitSettings, error) {
	if st, ok := s.settings[userType]; ok {
		return st, nil
	}
	return nil, usage.ErrSettingsNotFound
}

func (s *usageStore) ListSettings(ctx context.Context) ([]usage.LimitSettings, error) {
	return nil, nil
}

func (s *usageStore) UpsertSettings(ctx context.Context, settings *usage.LimitSettings) error {
	return nil
}

func (s *usageStore) InsertActivity(ctx context.Context, activity *usage.Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	activity.CreatedAt = time.Now().UTC()
	copied := *activity
	s.activities[activity.ID] = &copied
	return nil
}

func (s *usageStore) SoftDeleteActivity(ctx context.Context, id string) error {
	activity, ok := s.activities[id]
	if !ok {
		return usage.ErrActivityNotFound
	}
	activity.IsDeleted = true
	return nil
}

func (s *usageStore) CountActivitiesSince(ctx context.Context, userID string, since time.Time) (int, error) {
	count := 0
	for _, a := range s.activities {
		if a.UserID == userID && !a.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *usageStore) ListActivities(ctx context.Context, opts usage.ListActivitiesOptions) ([]usage.Activity, int, error) {
	return nil, 0, nil
}

func (s *usageStore) Ping(ctx context.Context) error {
	return nil
}

func newTestService(t *testing.T) (*Service, *memoryRepository, *usageStore) {
	t.Helper()
	store := newUsageStore()
	store.users["user-1"] = &usage.User{
		ID: "user-1", UserType: usage.UserTypeFree,
		MonthlyResetDate: time.Now().UTC().Add(-24 * time.Hour),
	}
	store.settings[usage.UserTypeFree] = &usage.LimitSettings{
		UserType: usage.UserTypeFree, MaxActivities: 3, MaxGenerations: 10, MaxFollowupGenerations: 5,
	}
	repo := newMemoryRepository()
	return NewService(repo, usage.NewService(store)), repo, store
}

func coverLetter(userID string) *Item {
	return &Item{
		UserID:      userID,
		Kind:        usage.ActivityCoverLetter,
		Title:       "Acme application",
		Body:        "Dear Hiring Manager,",
		CompanyName: "Acme",
		LLMModel:    "gpt-4o-mini",
	}
}

func TestSaveStoresItemAndTracks(t *testing.T) {
	svc, repo, store := newTestService(t)

	saved, decision, err := svc.Save(context.Background(), coverLetter("user-1"), false)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.NotNil(t, saved)

	assert.NotEmpty(t, saved.ID)
	assert.NotEmpty(t, saved.ActivityID, "saved item should link its history row")
	assert.Len(t, repo.items, 1)

	activity, ok := store.activities[saved.ActivityID]
	require.True(t, ok, "history row should exist")
	assert.True(t, activity.IsSaved)
	assert.Equal(t, usage.ActivityCoverLetter, activity.ActivityType)
	assert.Equal(t, 1, store.activityIncrements)
}

func TestSaveDeniedAtLimit(t *testing.T) {
	svc, repo, store := newTestService(t)
	ctx := context.Background()

	// MaxActivities is 3: the fourth save must be denied.
	for i := 0; i < 3; i++ {
		_, decision, err := svc.Save(ctx, coverLetter("user-1"), false)
		require.NoError(t, err)
		require.True(t, decision.Allowed, "save %d should be allowed", i+1)
	}

	saved, decision, err := svc.Save(ctx, coverLetter("user-1"), false)
	require.NoError(t, err)
	assert.Nil(t, saved)
	assert.False(t, decision.Allowed)
	assert.Equal(t, usage.KindLimitReached, decision.Kind)
	assert.Len(t, repo.items, 3)
	assert.Equal(t, 3, store.activityIncrements)
}

func TestSaveUnknownUserDenied(t *testing.T) {
	svc, repo, _ := newTestService(t)

	saved, decision, err := svc.Save(context.Background(), coverLetter("ghost"), false)
	require.NoError(t, err)
	assert.Nil(t, saved)
	assert.False(t, decision.Allowed)
	assert.Equal(t, usage.MsgUserNotFound, decision.Message)
	assert.Empty(t, repo.items)
}

func TestSaveValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		item *Item
	}{
		{"missing user", &Item{Kind: usage.ActivityEmail, Body: "x"}},
		{"missing body", &Item{UserID: "user-1", Kind: usage.ActivityEmail}},
		{"bad kind", &Item{UserID: "user-1", Kind: "haiku", Body: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Save(ctx, tt.item, false)
			assert.ErrorIs(t, err, ErrInvalidContent)
		})
	}
}

func TestDeleteSoftDeletesItemAndActivity(t *testing.T) {
	svc, repo, store := newTestService(t)
	ctx := context.Background()

	saved, _, err := svc.Save(ctx, coverLetter("user-1"), false)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, saved.ID, "user-1"))

	assert.True(t, repo.items[saved.ID].IsDeleted)
	assert.True(t, store.activities[saved.ActivityID].IsDeleted, "linked history row should be soft-deleted")

	// Second delete reports not found.
	assert.ErrorIs(t, svc.Delete(ctx, saved.ID, "user-1"), ErrContentNotFound)
}

func TestGetScopedToOwner(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	saved, _, err := svc.Save(ctx, coverLetter("user-1"), false)
	require.NoError(t, err)

	got, err := svc.Get(ctx, saved.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)

	_, err = svc.Get(ctx, saved.ID, "user-2")
	assert.ErrorIs(t, err, ErrContentNotFound)
}

func TestDeleteOtherUsersContent(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	saved, _, err := svc.Save(ctx, coverLetter("user-1"), false)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, saved.ID, "user-2"), ErrContentNotFound)
	assert.False(t, repo.items[saved.ID].IsDeleted)
}

func TestDeletedContentStillCounts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// The gate counts every history row in the window, deleted or not:
	// deleting saved content does not refund quota.
	var lastID string
	for i := 0; i < 3; i++ {
		saved, decision, err := svc.Save(ctx, coverLetter("user-1"), false)
		require.NoError(t, err)
		require.True(t, decision.Allowed)
		lastID = saved.ID
	}

	require.NoError(t, svc.Delete(ctx, lastID, "user-1"))

	_, decision, err := svc.Save(ctx, coverLetter("user-1"), false)
	require.NoError(t, err)
	assert.False(t, decision.Allowed, "deleting a save must not refund quota")
}

func TestListExcludesDeleted(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, _, err := svc.Save(ctx, coverLetter("user-1"), false)
	require.NoError(t, err)
	_, _, err = svc.Save(ctx, coverLetter("user-1"), false)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, first.ID, "user-1"))

	items, total, err := svc.List(ctx, ListOptions{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, items, 1)

	items, _, err = svc.List(ctx, ListOptions{UserID: "user-1", IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}
