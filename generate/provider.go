// Copyright 2025 JobFlow
// SPDX-License-Identifier: BUSL-1.1

// Package generate produces job-application content (cover letters,
// LinkedIn outreach messages, emails) through third-party LLM providers
// and routes every request through the usage accounting gates.
package generate

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// MessageKind identifies what kind of content to generate
type MessageKind string

const (
	KindCoverLetter     MessageKind = "cover_letter"
	KindLinkedInMessage MessageKind = "linkedin_message"
	KindEmail           MessageKind = "email"
)

// Valid reports whether the kind is one of the supported content kinds
func (k MessageKind) Valid() bool {
	switch k {
	case KindCoverLetter, KindLinkedInMessage, KindEmail:
		return true
	}
	return false
}

var (
	// ErrProviderNotFound is returned when no provider matches the requested name
	ErrProviderNotFound = errors.New("llm provider not found")

	// ErrEmptyCompletion is returned when a provider returns no content
	ErrEmptyCompletion = errors.New("provider returned empty completion")

	// ErrMisuseDetected is returned when the guard finds the misuse marker
	ErrMisuseDetected = errors.New("request flagged as misuse")
)

// CompletionRequest is the provider-independent completion input
type CompletionRequest struct {
	Prompt       string
	SystemPrompt string
	Model        string
	MaxTokens    int
	Temperature  float64
}

// CompletionResponse is the provider-independent completion output
type CompletionResponse struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
	Latency      time.Duration
}

// Provider is the unified interface for all LLM providers.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Name returns the provider identifier ("openai", "anthropic", "gemini")
	Name() string

	// Complete generates a completion for the given request
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsHealthy reports whether the provider is operational
	IsHealthy() bool
}

// HTTPClient is an interface for HTTP client operations (enables testing)
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Registry holds the configured providers keyed by name
type Registry struct {
	providers map[string]Provider
	fallback  string
}

// NewRegistry creates a registry. The first registered provider becomes
// the fallback for requests that name no provider.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider to the registry
func (r *Registry) Register(p Provider) {
	if len(r.providers) == 0 {
		r.fallback = p.Name()
	}
	r.providers[p.Name()] = p
}

// Get returns the provider by name, or the fallback when name is empty
func (r *Registry) Get(name string) (Provider, error) {
	if name == "" {
		name = r.fallback
	}
	if p, ok := r.providers[name]; ok {
		return p, nil
	}
	return nil, ErrProviderNotFound
}

// Names returns the registered provider names
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
