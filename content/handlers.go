// Copyright 2025 JobFlow
// SPDX-License-Identifier: BUSL-1.1

package content

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"jobflow/platform/usage"
)

// Handler provides the saved content HTTP API
type Handler struct {
	service *Service
}

// NewHandler creates a new content handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers content routes with a gorilla/mux router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/content", h.Save).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/content", h.List).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/content/{id}", h.Get).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/content/{id}", h.Delete).Methods("DELETE", "OPTIONS")
}

// SaveRequest is the request body for POST /api/v1/content
type SaveRequest struct {
	UserID        string             `json:"user_id"`
	Kind          usage.ActivityType `json:"kind"`
	Title         string             `json:"title"`
	Body          string             `json:"body"`
	CompanyName   string             `json:"company_name,omitempty"`
	PositionTitle string             `json:"position_title,omitempty"`
	Recipient     string             `json:"recipient,omitempty"`
	LLMModel      string             `json:"llm_model,omitempty"`
	IsFollowup    bool               `json:"is_followup"`
}

// Save handles POST /api/v1/content
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	// Verified identity from the auth middleware wins over the body field.
	if userID := r.Header.Get("X-User-ID"); userID != "" {
		req.UserID = userID
	}

	item := &Item{
		UserID:        req.UserID,
		Kind:          req.Kind,
		Title:         req.Title,
		Body:          req.Body,
		CompanyName:   req.CompanyName,
		PositionTitle: req.PositionTitle,
		Recipient:     req.Recipient,
		LLMModel:      req.LLMModel,
	}

	saved, decision, err := h.service.Save(r.Context(), item, req.IsFollowup)
	if err == ErrInvalidContent {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
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

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(saved)
}

// List handles GET /api/v1/content
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	query := r.URL.Query()
	opts := ListOptions{
		UserID:         query.Get("user_id"),
		Kind:           usage.ActivityType(query.Get("kind")),
		IncludeDeleted: query.Get("include_deleted") == "true",
	}
	if opts.UserID == "" {
		opts.UserID = r.Header.Get("X-User-ID")
	}
	if opts.UserID == "" {
		h.writeError(w, "User ID required", http.StatusBadRequest)
		return
	}
	if limit := query.Get("limit"); limit != "" {
		opts.Limit, _ = strconv.Atoi(limit)
	}
	if offset := query.Get("offset"); offset != "" {
		opts.Offset, _ = strconv.Atoi(offset)
	}

	items, total, err := h.service.List(r.Context(), opts)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"content": items,
		"total":   total,
	})
}

// Get handles GET /api/v1/content/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		h.writeError(w, "User ID required", http.StatusBadRequest)
		return
	}

	item, err := h.service.Get(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		if err == ErrContentNotFound {
			h.writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(item)
}

// Delete handles DELETE /api/v1/content/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		h.writeError(w, "User ID required", http.StatusBadRequest)
		return
	}

	err := h.service.Delete(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		if err == ErrContentNotFound {
			h.writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
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
