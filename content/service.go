// Copyright 2025 JobFlow
// SPDX-License-Identifier: BUSL-1.1

package content

import (
	"context"
	"errors"

	"jobflow/platform/shared/logger"
	"jobflow/platform/usage"
)

// Service coordinates saves with the usage subsystem: every save is gated
// by CanSaveActivity and recorded as a saved history row.
type Service struct {
	repo   Repository
	usage  *usage.Service
	logger *logger.Logger
}

// NewService creates a content service
func NewService(repo Repository, usageService *usage.Service) *Service {
	return &Service{
		repo:   repo,
		usage:  usageService,
		logger: logger.New("content"),
	}
}

// Save stores an item if the user's activity limit allows it. The decision
// is returned alongside the item so callers can surface the denial message.
// Tracking failures after a successful insert are logged, never surfaced.
func (s *Service) Save(ctx context.Context, item *Item, isFollowup bool) (*Item, usage.Decision, error) {
	if err := item.Validate(); err != nil {
		return nil, usage.Decision{}, err
	}

	decision := s.usage.CanSaveActivity(ctx, item.UserID, isFollowup)
	if !decision.Allowed {
		return nil, decision, nil
	}

	// History first: the activity row is what the save gate counts, so a
	// saved item without its row would undercount the next check.
	activity := &usage.Activity{
		UserID:        item.UserID,
		ActivityType:  item.Kind,
		CompanyName:   item.CompanyName,
		PositionTitle: item.PositionTitle,
		Recipient:     item.Recipient,
		LLMModel:      item.LLMModel,
		IsSaved:       true,
		IsFollowup:    isFollowup,
	}
	s.usage.TrackHistory(ctx, activity)
	item.ActivityID = activity.ID

	if err := s.repo.Insert(ctx, item); err != nil {
		return nil, decision, err
	}

	s.usage.TrackActivity(ctx, item.UserID, isFollowup)
	return item, decision, nil
}

// Get retrieves a content item by ID, scoped to its owner. A mismatch
// reports not-found rather than forbidden so item IDs are not probeable.
func (s *Service) Get(ctx context.Context, id, userID string) (*Item, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.UserID != userID {
		return nil, ErrContentNotFound
	}
	return item, nil
}

// List returns a page of a user's saved content
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Item, int, error) {
	if opts.Limit <= 0 || opts.Limit > 1000 {
		opts.Limit = 50
	}
	return s.repo.List(ctx, opts)
}

// Delete soft-deletes an item and its linked activity row. Callers pass
// the requesting user so one user cannot delete another's content.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if item.UserID != userID {
		return ErrContentNotFound
	}
	if item.IsDeleted {
		return ErrContentNotFound
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}

	if item.ActivityID != "" {
		if err := s.usage.SoftDeleteActivity(ctx, item.ActivityID); err != nil && !errors.Is(err, usage.ErrActivityNotFound) {
			s.logger.ErrorWithErr(userID, "", "Failed to delete linked activity", err, map[string]interface{}{
				"content_id":  id,
				"activity_id": item.ActivityID,
			})
		}
	}
	return nil
}
