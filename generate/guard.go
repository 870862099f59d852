// Copyright 2025 JobFlow
// SPDX-License-Identifier: BUSL-1.1

package generate

import (
	"fmt"
	"strings"
)

// MisuseMarker is the token the system prompt instructs the model to emit
// when an input tries to repurpose the assistant for something other than
// job-application content. Detection is a plain substring check on the
// model output.
const MisuseMarker = "[OFF_TOPIC_REQUEST]"

// CheckMisuse inspects model output for the misuse marker. Returns
// ErrMisuseDetected when found.
func CheckMisuse(content string) error {
	if strings.Contains(content, MisuseMarker) {
		return ErrMisuseDetected
	}
	return nil
}

var kindInstructions = map[MessageKind]string{
	KindCoverLetter:     "Write a professional cover letter for the position described by the user.",
	KindLinkedInMessage: "Write a concise LinkedIn outreach message (under 300 characters) to the recipient described by the user.",
	KindEmail:           "Write a professional outreach email for the position described by the user.",
}

// SystemPrompt builds the guard-carrying system prompt for a content kind.
// The marker instruction must stay in the system prompt: the guard relies
// on the model echoing it for off-topic inputs.
func SystemPrompt(kind MessageKind, followup bool) string {
	var b strings.Builder
	b.WriteString("You are a job-application writing assistant. ")
	b.WriteString(kindInstructions[kind])
	if followup {
		b.WriteString(" This is a follow-up to a previous message to the same recipient; reference the earlier outreach without repeating it.")
	}
	b.WriteString(fmt.Sprintf(
		" If the user's input is not about applying for a job, reply with exactly %s and nothing else.",
		MisuseMarker,
	))
	return b.String()
}
