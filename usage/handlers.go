// Copyright 2025 JobFlow
// SPDX-License-Identifier: BUSL-1.1

package usage

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

// Handler provides HTTP handlers for usage accounting APIs
type Handler struct {
	service *Service
}

// NewHandler creates a new usage handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers all usage routes with a gorilla/mux router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Limit settings endpoints
	r.HandleFunc("/api/v1/limits", h.ListSettings).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/limits/{userType}", h.GetSettings).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/limits/{userType}", h.UpsertSettings).Methods("PUT", "OPTIONS")

	// Check endpoints
	r.HandleFunc("/api/v1/usage/check-generation", h.CheckGeneration).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/usage/check-activity", h.CheckActivity).Methods("POST", "OPTIONS")

	// Usage views
	r.HandleFunc("/api/v1/usage/{userID}", h.GetUsage).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/usage/{userID}/history", h.GetHistory).Methods("GET", "OPTIONS")

	// Admin endpoints
	r.HandleFunc("/api/v1/admin/reset-sweep", h.RunResetSweep).Methods("POST", "OPTIONS")
}

// UpsertSettingsRequest is the request body for updating tier limits
type UpsertSettingsRequest struct {
	MaxActivities          int  `json:"max_activities"`
	MaxGenerations         int  `json:"max_generations"`
	MaxFollowupGenerations int  `json:"max_followup_generations"`
	IncludeFollowups       bool `json:"include_followups"`
}

// CheckRequest is the request body for both check endpoints
type CheckRequest struct {
	UserID     string `json:"user_id"`
	IsFollowup bool   `json:"is_followup"`
}

// ListSettings handles GET /api/v1/limits
func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	settings, err := h.service.ListSettings(r.Context())
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"settings": settings,
		"total":    len(settings),
	})
}

// GetSettings handles GET /api/v1/limits/{userType}
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	userType := UserType(mux.Vars(r)["userType"])
	if !isValidUserType(userType) {
		h.writeError(w, ErrInvalidUserType.Error(), http.StatusBadRequest)
		return
	}

	settings, err := h.service.GetSettings(r.Context(), userType)
	if err != nil {
		if err == ErrSettingsNotFound {
			h.writeError(w, "Settings not found", http.StatusNotFound)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(settings)
}

// requireAdmin verifies the requesting user is an admin. Writes the error
// response and returns false otherwise.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		h.writeError(w, "User ID required", http.StatusUnauthorized)
		return false
	}

	user, err := h.service.GetUser(r.Context(), userID)
	if err == ErrUserNotFound {
		h.writeError(w, "Admin access required", http.StatusForbidden)
		return false
	}
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return false
	}
	if !user.Admin() {
		h.writeError(w, "Admin access required", http.StatusForbidden)
		return false
	}
	return true
}

// UpsertSettings handles PUT /api/v1/limits/{userType}. Admin only.
// The write invalidates the settings cache so new limits apply immediately.
func (h *Handler) UpsertSettings(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if !h.requireAdmin(w, r) {
		return
	}

	userType := UserType(mux.Vars(r)["userType"])

	var req UpsertSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	settings := &LimitSettings{
		UserType:               userType,
		MaxActivities:          req.MaxActivities,
		MaxGenerations:         req.MaxGenerations,
		MaxFollowupGenerations: req.MaxFollowupGenerations,
		IncludeFollowups:       req.IncludeFollowups,
		UpdatedBy:              r.Header.Get("X-User-ID"),
	}

	if err := h.service.UpsertSettings(r.Context(), settings); err != nil {
		if err == ErrInvalidUserType || err == ErrInvalidLimit {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(settings)
}

// CheckGeneration handles POST /api/v1/usage/check-generation
func (h *Handler) CheckGeneration(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	// Verified identity from the auth middleware wins over the body field.
	if userID := r.Header.Get("X-User-ID"); userID != "" {
		req.UserID = userID
	}
	if req.UserID == "" {
		h.writeError(w, "User ID required", http.StatusBadRequest)
		return
	}

	decision := h.service.CanGenerate(r.Context(), req.UserID, req.IsFollowup)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(decision)
}

// CheckActivity handles POST /api/v1/usage/check-activity
func (h *Handler) CheckActivity(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if userID := r.Header.Get("X-User-ID"); userID != "" {
		req.UserID = userID
	}
	if req.UserID == "" {
		h.writeError(w, "User ID required", http.StatusBadRequest)
		return
	}

	decision := h.service.CanSaveActivity(r.Context(), req.UserID, req.IsFollowup)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(decision)
}

// GetUsage handles GET /api/v1/usage/{userID}
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID := mux.Vars(r)["userID"]

	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		if err == ErrUserNotFound {
			h.writeError(w, MsgUserNotFound, http.StatusNotFound)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	monthly, err := h.service.MonthlyActivityCount(r.Context(), userID, &user.MonthlyResetDate)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"user":                   user,
		"monthly_activity_count": monthly,
	})
}

// GetHistory handles GET /api/v1/usage/{userID}/history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	query := r.URL.Query()
	opts := ListActivitiesOptions{
		UserID:         mux.Vars(r)["userID"],
		IncludeDeleted: query.Get("include_deleted") == "true",
	}

	if since := query.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			h.writeError(w, "Invalid since timestamp", http.StatusBadRequest)
			return
		}
		opts.Since = t
	}

	opts.Limit = 50
	if limit := query.Get("limit"); limit != "" {
		opts.Limit, _ = strconv.Atoi(limit)
	}
	if opts.Limit <= 0 || opts.Limit > 1000 {
		opts.Limit = 50
	}
	if offset := query.Get("offset"); offset != "" {
		opts.Offset, _ = strconv.Atoi(offset)
	}

	activities, total, err := h.service.ListActivities(r.Context(), opts)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"activities": activities,
		"total":      total,
		"limit":      opts.Limit,
		"offset":     opts.Offset,
	})
}

// RunResetSweep handles POST /api/v1/admin/reset-sweep. Admin only.
func (h *Handler) RunResetSweep(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if !h.requireAdmin(w, r) {
		return
	}

	affected, err := h.service.ResetMonthlyCounters(r.Context())
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"users_reset": affected,
	})
}

// setCORSHeaders sets CORS headers on all responses (not just OPTIONS)
func (h *Handler) setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
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
