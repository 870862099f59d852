// Copyright 2025 JobFlow
// SPDX-License-Identifier: BUSL-1.1

package content

import (
	"context"
)

// Repository defines the interface for saved content persistence
type Repository interface {
	Insert(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id string) (*Item, error)
	List(ctx context.Context, opts ListOptions) ([]Item, int, error)
	SoftDelete(ctx context.Context, id string) error
}
