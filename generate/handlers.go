// Copyright 2025 JobFlow
// SPDX-License-Identifier: BUSL-1.1

package generate

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"jobflow/platform/shared/logger"
	"jobflow/platform/usage"
)

// Handler provides the content generation HTTP API
type Handler struct {
	registry *Registry
	usage    *usage.Service
	logger   *logger.Logger
}

// NewHandler creates a new generation handler
func NewHandler(registry *Registry, usageService *usage.Service) *Handler {
	return &Handler{
		registry: registry,
		usage:    usageService,
		logger:   logger.New("generate"),
	}
}

// RegisterRoutes registers generation routes with a gorilla/mux router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/generate", h.Generate).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/generate/providers", h.ListProviders).Methods("GET", "OPTIONS")
}

// GenerateRequest is the request body for POST /api/v1/generate
type GenerateRequest struct {
	UserID        string      `json:"user_id"`
	Kind          MessageKind `json:"kind"`
	Prompt        string      `json:"prompt"`
	Provider      string      `json:"provider,omitempty"`
	Model         string      `json:"model,omitempty"`
	IsFollowup    bool        `json:"is_followup"`
	CompanyName   string      `json:"company_name,omitempty"`
	PositionTitle string      `json:"position_title,omitempty"`
	Recipient     string      `json:"recipient,omitempty"`
}

// GenerateResponse is the response body for a successful generation
type GenerateResponse struct {
	Content      string `json:"content"`
	Kind         string `json:"kind"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	LatencyMs    int64  `json:"latency_ms"`
	RequestID    string `json:"request_id"`
}

// Generate handles POST /api/v1/generate. The usage check gates the call
// before any provider is contacted; tracking runs after a successful
// completion and never fails the request.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	requestID := uuid.New().String()

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	// The header carries the verified token subject; the body field is only
	// a fallback for deployments running without auth.
	if userID := r.Header.Get("X-User-ID"); userID != "" {
		req.UserID = userID
	}
	if req.UserID == "" {
		h.writeError(w, "User ID required", http.StatusBadRequest)
		return
	}
	if !req.Kind.Valid() {
		h.writeError(w, "Invalid content kind", http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		h.writeError(w, "Prompt required", http.StatusBadRequest)
		return
	}

	decision := h.usage.CanGenerate(r.Context(), req.UserID, req.IsFollowup)
	if !decision.Allowed {
		status := http.StatusForbidden
		if decision.Kind == usage.KindStorage {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(decision)
		return
	}

	provider, err := h.registry.Get(req.Provider)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := provider.Complete(r.Context(), CompletionRequest{
		Prompt:       req.Prompt,
		SystemPrompt: SystemPrompt(req.Kind, req.IsFollowup),
		Model:        req.Model,
	})
	if err != nil {
		h.logger.ErrorWithErr(req.UserID, requestID, "Completion failed", err, map[string]interface{}{
			"provider": provider.Name(),
		})
		h.writeError(w, "Content generation failed", http.StatusBadGateway)
		return
	}

	if err := CheckMisuse(resp.Content); err != nil {
		h.logger.Warn(req.UserID, requestID, "Misuse marker in completion", map[string]interface{}{
			"provider": provider.Name(),
		})
		h.writeError(w, "Request was flagged as off-topic", http.StatusUnprocessableEntity)
		return
	}

	h.usage.TrackGeneration(r.Context(), req.UserID, req.IsFollowup)
	h.usage.TrackHistory(r.Context(), &usage.Activity{
		UserID:        req.UserID,
		ActivityType:  usage.ActivityType(req.Kind),
		CompanyName:   req.CompanyName,
		PositionTitle: req.PositionTitle,
		Recipient:     req.Recipient,
		LLMModel:      resp.Model,
		IsFollowup:    req.IsFollowup,
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(GenerateResponse{
		Content:      resp.Content,
		Kind:         string(req.Kind),
		Provider:     provider.Name(),
		Model:        resp.Model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		LatencyMs:    resp.Latency.Milliseconds(),
		RequestID:    requestID,
	})
}

// ListProviders handles GET /api/v1/generate/providers
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	names := h.registry.Names()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"providers": names,
		"total":     len(names),
	})
}

func (h *Handler) setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID, Authorization")
}

func (h *Handler) writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}
