// Copyright 2025 JobFlow
// SPDX-License-Identifier: BUSL-1.1

package usage

import "errors"

var (
	// ErrUserNotFound is returned when a user row does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrSettingsNotFound is returned when no limit settings exist for a user type
	ErrSettingsNotFound = errors.New("usage limit settings not found")

	// ErrActivityNotFound is returned when an activity row does not exist
	ErrActivityNotFound = errors.New("activity not found")

	// ErrInvalidUserType is returned for an unknown user type
	ErrInvalidUserType = errors.New("invalid user type: must be FREE, PLUS, or ADMIN")

	// ErrInvalidLimit is returned for negative limit values
	ErrInvalidLimit = errors.New("limits must not be negative")

	// ErrInvalidInput is returned for general invalid input
	ErrInvalidInput = errors.New("invalid input")
)

// Denial reason strings shown verbatim in the UI
const (
	MsgUserNotFound  = "User not found"
	MsgNotConfigured = "Usage limits not configured"
	MsgCheckFailed   = "Unable to verify usage limits, please try again"
)
