// Copyright 2025 JobFlow
// SPDX-License-Identifier: BUSL-1.1

package usage

import (
	"context"
	"fmt"
	"log"
	"time"
)

// ResetWindowDays is the length of the accounting window
const ResetWindowDays = 30

// Service provides limit evaluation, usage tracking, and monthly resets.
// Evaluator methods are read-only except where documented; tracker methods
// are best-effort and never surface storage errors to the caller.
type Service struct {
	repo   Repository
	cache  SettingsCache
	logger *log.Logger

	// now is swappable for tests
	now func() time.Time
}

// NewService creates a usage service with an in-memory settings cache
func NewService(repo Repository) *Service {
	return NewServiceWithOptions(repo, nil, nil)
}

// NewServiceWithOptions creates a service with custom cache and logger
func NewServiceWithOptions(repo Repository, cache SettingsCache, logger *log.Logger) *Service {
	if cache == nil {
		cache = NewMemorySettingsCache(DefaultSettingsTTL)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		repo:   repo,
		cache:  cache,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// loadSettings returns limit settings through the cache.
// ErrSettingsNotFound is not cached: a missing row is a configuration
// error the admin is expected to fix at any moment.
func (s *Service) loadSettings(ctx context.Context, userType UserType) (*LimitSettings, error) {
	if cached := s.cache.Get(ctx, userType); cached != nil {
		cacheHitsTotal.Inc()
		return cached, nil
	}
	cacheMissesTotal.Inc()

	settings, err := s.repo.GetSettings(ctx, userType)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, settings)
	return settings, nil
}

// CanGenerate decides whether a user may run another generation.
// Read-only: no counter is touched.
func (s *Service) CanGenerate(ctx context.Context, userID string, isFollowup bool) Decision {
	d := s.canGenerate(ctx, userID, isFollowup)
	observeCheck("can_generate", d)
	return d
}

func (s *Service) canGenerate(ctx context.Context, userID string, isFollowup bool) Decision {
	user, err := s.repo.GetUser(ctx, userID)
	if err == ErrUserNotFound {
		return Decision{Kind: KindUserNotFound, Message: MsgUserNotFound}
	}
	if err != nil {
		s.logger.Printf("[Usage] Failed to load user %s: %v", userID, err)
		return Decision{Kind: KindStorage, Message: MsgCheckFailed}
	}

	if user.Admin() {
		return Decision{Allowed: true, Kind: KindAdminBypass}
	}

	settings, err := s.loadSettings(ctx, user.UserType)
	if err == ErrSettingsNotFound {
		return Decision{Kind: KindNotConfigured, Message: MsgNotConfigured}
	}
	if err != nil {
		s.logger.Printf("[Usage] Failed to load settings for %s: %v", user.UserType, err)
		return Decision{Kind: KindStorage, Message: MsgCheckFailed}
	}

	count, limit, noun := user.GenerationCount, settings.MaxGenerations, "generations"
	if isFollowup {
		count, limit, noun = user.FollowupGenerationCount, settings.MaxFollowupGenerations, "follow-up generations"
	}

	if limit == 0 {
		return Decision{Allowed: true, Kind: KindUnlimited, CurrentCount: count}
	}
	if count < limit {
		return Decision{Allowed: true, Kind: KindAllowed, CurrentCount: count, Limit: limit}
	}

	return Decision{
		Kind:         KindLimitReached,
		Message:      fmt.Sprintf("You've reached your monthly limit of %d %s. Upgrade to PLUS for more.", limit, noun),
		CurrentCount: count,
		Limit:        limit,
		ResetDate:    user.MonthlyResetDate,
	}
}

// CanSaveActivity decides whether a user may persist another activity.
// The effective count comes from the history log; loading it can reset
// the monthly window as a side effect once 30 days have elapsed.
func (s *Service) CanSaveActivity(ctx context.Context, userID string, isFollowup bool) Decision {
	d := s.canSaveActivity(ctx, userID, isFollowup)
	observeCheck("can_save_activity", d)
	return d
}

func (s *Service) canSaveActivity(ctx context.Context, userID string, isFollowup bool) Decision {
	user, err := s.repo.GetUser(ctx, userID)
	if err == ErrUserNotFound {
		return Decision{Kind: KindUserNotFound, Message: MsgUserNotFound}
	}
	if err != nil {
		s.logger.Printf("[Usage] Failed to load user %s: %v", userID, err)
		return Decision{Kind: KindStorage, Message: MsgCheckFailed}
	}

	if user.Admin() {
		return Decision{Allowed: true, Kind: KindAdminBypass}
	}

	settings, err := s.loadSettings(ctx, user.UserType)
	if err == ErrSettingsNotFound {
		return Decision{Kind: KindNotConfigured, Message: MsgNotConfigured}
	}
	if err != nil {
		s.logger.Printf("[Usage] Failed to load settings for %s: %v", user.UserType, err)
		return Decision{Kind: KindStorage, Message: MsgCheckFailed}
	}

	count, err := s.MonthlyActivityCount(ctx, userID, &user.MonthlyResetDate)
	if err != nil {
		s.logger.Printf("[Usage] Failed to count activities for %s: %v", userID, err)
		return Decision{Kind: KindStorage, Message: MsgCheckFailed}
	}

	if settings.MaxActivities == 0 {
		return Decision{Allowed: true, Kind: KindUnlimited, CurrentCount: count, ResetDate: user.MonthlyResetDate}
	}

	if isFollowup && !settings.IncludeFollowups {
		return Decision{Allowed: true, Kind: KindAllowed, CurrentCount: count, Limit: settings.MaxActivities, ResetDate: user.MonthlyResetDate}
	}

	if count < settings.MaxActivities {
		return Decision{Allowed: true, Kind: KindAllowed, CurrentCount: count, Limit: settings.MaxActivities, ResetDate: user.MonthlyResetDate}
	}

	return Decision{
		Kind:         KindLimitReached,
		Message:      fmt.Sprintf("You've used %d of your %d monthly activities. Upgrade to PLUS for more.", count, settings.MaxActivities),
		CurrentCount: count,
		Limit:        settings.MaxActivities,
		ResetDate:    user.MonthlyResetDate,
	}
}

// CheckActivityLimit is the counter-field twin of CanSaveActivity: it
// compares the running activity_count column instead of the history log.
// Both gates are kept; CanSaveActivity is authoritative for the save path.
func (s *Service) CheckActivityLimit(ctx context.Context, userID string) Decision {
	d := s.checkActivityLimit(ctx, userID)
	observeCheck("check_activity_limit", d)
	return d
}

func (s *Service) checkActivityLimit(ctx context.Context, userID string) Decision {
	user, err := s.repo.GetUser(ctx, userID)
	if err == ErrUserNotFound {
		return Decision{Kind: KindUserNotFound, Message: MsgUserNotFound}
	}
	if err != nil {
		s.logger.Printf("[Usage] Failed to load user %s: %v", userID, err)
		return Decision{Kind: KindStorage, Message: MsgCheckFailed}
	}

	if user.Admin() {
		return Decision{Allowed: true, Kind: KindAdminBypass}
	}

	settings, err := s.loadSettings(ctx, user.UserType)
	if err == ErrSettingsNotFound {
		return Decision{Kind: KindNotConfigured, Message: MsgNotConfigured}
	}
	if err != nil {
		s.logger.Printf("[Usage] Failed to load settings for %s: %v", user.UserType, err)
		return Decision{Kind: KindStorage, Message: MsgCheckFailed}
	}

	if settings.MaxActivities == 0 {
		return Decision{Allowed: true, Kind: KindUnlimited, CurrentCount: user.ActivityCount}
	}
	if user.ActivityCount < settings.MaxActivities {
		return Decision{Allowed: true, Kind: KindAllowed, CurrentCount: user.ActivityCount, Limit: settings.MaxActivities}
	}

	return Decision{
		Kind:         KindLimitReached,
		Message:      fmt.Sprintf("You've used %d of your %d monthly activities. Upgrade to PLUS for more.", user.ActivityCount, settings.MaxActivities),
		CurrentCount: user.ActivityCount,
		Limit:        settings.MaxActivities,
		ResetDate:    user.MonthlyResetDate,
	}
}

// TrackGeneration increments a generation counter after a successful LLM
// call. The caller is responsible for checking CanGenerate first; there is
// no limit re-check here. Admins are never incremented. Storage errors are
// logged and swallowed: accounting must never block content delivery.
func (s *Service) TrackGeneration(ctx context.Context, userID string, isFollowup bool) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		s.logger.Printf("[Usage] Failed to load user %s for generation tracking: %v", userID, err)
		return
	}
	if user.Admin() {
		return
	}

	if err := s.repo.IncrementGeneration(ctx, userID, isFollowup); err != nil {
		s.logger.Printf("[Usage] Failed to track generation for %s: %v", userID, err)
	}
}

// TrackActivity increments the activity counter after a save. Admins are
// never incremented, and excluded follow-ups leave the counter flat.
// Errors are logged and swallowed.
func (s *Service) TrackActivity(ctx context.Context, userID string, isFollowup bool) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		s.logger.Printf("[Usage] Failed to load user %s for activity tracking: %v", userID, err)
		return
	}
	if user.Admin() {
		return
	}

	if isFollowup {
		settings, err := s.loadSettings(ctx, user.UserType)
		if err != nil {
			s.logger.Printf("[Usage] Failed to load settings for activity tracking: %v", err)
			return
		}
		if !settings.IncludeFollowups {
			return
		}
	}

	if err := s.repo.IncrementActivity(ctx, userID); err != nil {
		s.logger.Printf("[Usage] Failed to track activity for %s: %v", userID, err)
	}
}

// TrackHistory appends one row to the activity log regardless of whether
// the generated content was kept. Errors are logged and swallowed.
func (s *Service) TrackHistory(ctx context.Context, activity *Activity) {
	if activity == nil {
		return
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = s.now()
	}
	if err := s.repo.InsertActivity(ctx, activity); err != nil {
		s.logger.Printf("[Usage] Failed to record activity history for %s: %v", activity.UserID, err)
	}
}

// MonthlyActivityCount returns the number of history rows in the current
// window. Pass a pre-fetched resetDate to skip one user read. When 30 or
// more days have elapsed the window is re-opened: the reset date is set to
// now and 0 is returned without counting.
func (s *Service) MonthlyActivityCount(ctx context.Context, userID string, resetDate *time.Time) (int, error) {
	var reset time.Time
	if resetDate != nil {
		reset = *resetDate
	} else {
		user, err := s.repo.GetUser(ctx, userID)
		if err != nil {
			return 0, err
		}
		reset = user.MonthlyResetDate
	}

	daysSinceReset := int(s.now().Sub(reset).Hours() / 24)
	if daysSinceReset >= ResetWindowDays {
		if err := s.repo.SetMonthlyResetDate(ctx, userID, s.now()); err != nil {
			return 0, err
		}
		return 0, nil
	}

	return s.repo.CountActivitiesSince(ctx, userID, reset)
}

// ResetMonthlyCounters zeroes counters for all past-due users in one bulk
// update and advances their reset date by 30 days. Idempotent: a second
// run in the same window matches no rows.
func (s *Service) ResetMonthlyCounters(ctx context.Context) (int64, error) {
	now := s.now()
	affected, err := s.repo.ResetDueCounters(ctx, now, now.AddDate(0, 0, ResetWindowDays))
	if err != nil {
		return 0, fmt.Errorf("failed to reset monthly counters: %w", err)
	}

	if affected > 0 {
		resetsTotal.Add(float64(affected))
		s.logger.Printf("[Usage] Reset monthly counters for %d users", affected)
	}
	return affected, nil
}

// GetSettings returns the settings for a user type, bypassing the cache
func (s *Service) GetSettings(ctx context.Context, userType UserType) (*LimitSettings, error) {
	return s.repo.GetSettings(ctx, userType)
}

// ListSettings returns settings for all user types
func (s *Service) ListSettings(ctx context.Context) ([]LimitSettings, error) {
	return s.repo.ListSettings(ctx)
}

// UpsertSettings validates and writes a settings row, then invalidates the
// cache entry so the change takes effect immediately
func (s *Service) UpsertSettings(ctx context.Context, settings *LimitSettings) error {
	if settings == nil {
		return ErrInvalidInput
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	if err := s.repo.UpsertSettings(ctx, settings); err != nil {
		return err
	}

	s.cache.Invalidate(ctx, settings.UserType)
	return nil
}

// GetUser returns the accounting view of a user
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	return s.repo.GetUser(ctx, userID)
}

// ListActivities lists a user's activity history
func (s *Service) ListActivities(ctx context.Context, opts ListActivitiesOptions) ([]Activity, int, error) {
	return s.repo.ListActivities(ctx, opts)
}

// SoftDeleteActivity marks an activity as deleted when its content is removed
func (s *Service) SoftDeleteActivity(ctx context.Context, id string) error {
	return s.repo.SoftDeleteActivity(ctx, id)
}

// IsHealthy checks if the service can reach its store
func (s *Service) IsHealthy(ctx context.Context) bool {
	return s.repo.Ping(ctx) == nil
}
