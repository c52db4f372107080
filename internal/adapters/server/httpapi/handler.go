// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/hylla/manas/internal/adapters/server/common"
	"github.com/hylla/manas/internal/domain"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	sessions common.SessionService
	recs     common.RecommendationService
	profiles common.ProfileService
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter; profiles may be nil.
func NewHandler(sessions common.SessionService, recs common.RecommendationService, profiles common.ProfileService) *Handler {
	return &Handler{
		sessions: sessions,
		recs:     recs,
		profiles: profiles,
	}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := normalizePath(r.URL.Path)
	segments := strings.Split(path, "/")
	switch {
	case path == "activities":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListActivities(w, r)
	case path == "recommendations":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleRecommend(w, r)
	case path == "sessions":
		switch r.Method {
		case http.MethodGet:
			h.handleListActiveSessions(w, r)
		case http.MethodPost:
			h.handleStartSession(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case segments[0] == "sessions" && len(segments) == 2:
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleGetSession(w, r, segments[1])
	case segments[0] == "sessions" && len(segments) == 3:
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleSessionAction(w, r, segments[1], segments[2])
	case segments[0] == "profiles" && len(segments) == 2:
		switch r.Method {
		case http.MethodGet:
			h.handleGetProfile(w, r, segments[1])
		case http.MethodPut:
			h.handleSaveProfile(w, r, segments[1])
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPut)
		}
	case segments[0] == "profiles" && len(segments) == 3 && segments[2] == "history":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleHistory(w, r, segments[1])
	default:
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	}
}

// handleListActivities serves GET `/activities`.
func (h *Handler) handleListActivities(w http.ResponseWriter, r *http.Request) {
	if h.recs == nil {
		writeUnavailable(w, "recommendation service is not configured")
		return
	}
	entries, err := h.recs.ListActivities(r.Context(), common.ListActivitiesRequest{
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": entries})
}

// handleRecommend serves POST `/recommendations`.
func (h *Handler) handleRecommend(w http.ResponseWriter, r *http.Request) {
	if h.recs == nil {
		writeUnavailable(w, "recommendation service is not configured")
		return
	}
	var req common.RecommendRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	recs, err := h.recs.Recommend(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": recs})
}

// handleStartSession serves POST `/sessions`.
func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		writeUnavailable(w, "session service is not configured")
		return
	}
	var req common.StartSessionRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	resp, err := h.sessions.StartSession(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleListActiveSessions serves GET `/sessions?user_id=`.
func (h *Handler) handleListActiveSessions(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		writeUnavailable(w, "session service is not configured")
		return
	}
	sessions, err := h.sessions.ListActiveSessions(r.Context(), common.ProfileRequest{
		UserID: strings.TrimSpace(r.URL.Query().Get("user_id")),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// handleGetSession serves GET `/sessions/{id}`.
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	if h.sessions == nil {
		writeUnavailable(w, "session service is not configured")
		return
	}
	session, err := h.sessions.GetSession(r.Context(), common.SessionRequest{SessionID: sessionID})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleSessionAction serves POST `/sessions/{id}/{action}`.
func (h *Handler) handleSessionAction(w http.ResponseWriter, r *http.Request, sessionID, action string) {
	if h.sessions == nil {
		writeUnavailable(w, "session service is not configured")
		return
	}
	ctx := r.Context()
	ref := common.SessionRequest{SessionID: sessionID}
	var (
		payload any
		err     error
	)
	switch action {
	case "input":
		var req common.ProcessInputRequest
		if err := decodeJSONBody(ctx, w, r, &req); err != nil {
			writeErrorFrom(w, err)
			return
		}
		req.SessionID = sessionID
		payload, err = h.sessions.ProcessInput(ctx, req)
	case "pause":
		payload, err = h.sessions.PauseSession(ctx, ref)
	case "resume":
		payload, err = h.sessions.ResumeSession(ctx, ref)
	case "abandon":
		payload, err = h.sessions.AbandonSession(ctx, ref)
	case "complete":
		payload, err = h.sessions.CompleteSession(ctx, ref)
	case "adaptations":
		var req common.AdaptationRequest
		if err := decodeJSONBody(ctx, w, r, &req); err != nil {
			writeErrorFrom(w, err)
			return
		}
		req.SessionID = sessionID
		payload, err = h.sessions.RequestAdaptation(ctx, req)
	case "engagement":
		var req common.EngagementRequest
		if err := decodeJSONBody(ctx, w, r, &req); err != nil {
			writeErrorFrom(w, err)
			return
		}
		req.SessionID = sessionID
		if err := h.sessions.RecordEngagement(ctx, req); err != nil {
			writeErrorFrom(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
			Context: map[string]any{"action": action},
		})
		return
	}
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// handleGetProfile serves GET `/profiles/{user_id}`.
func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request, userID string) {
	if h.profiles == nil {
		writeNotImplemented(w)
		return
	}
	user, err := h.profiles.GetProfile(r.Context(), common.ProfileRequest{UserID: userID})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleSaveProfile serves PUT `/profiles/{user_id}`.
func (h *Handler) handleSaveProfile(w http.ResponseWriter, r *http.Request, userID string) {
	if h.profiles == nil {
		writeNotImplemented(w)
		return
	}
	var user domain.UserContext
	if err := decodeJSONBody(r.Context(), w, r, &user); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if body := strings.TrimSpace(user.UserID); body != "" && body != userID {
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: "user_id in body does not match path",
		})
		return
	}
	user.UserID = userID
	saved, err := h.profiles.SaveProfile(r.Context(), user)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// handleHistory serves GET `/profiles/{user_id}/history`.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request, userID string) {
	if h.profiles == nil {
		writeNotImplemented(w)
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: "limit must be an integer",
			})
			return
		}
		limit = parsed
	}
	sessions, err := h.profiles.ListHistory(r.Context(), common.HistoryRequest{UserID: userID, Limit: limit})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrIneligible):
		writeJSONError(w, http.StatusUnprocessableEntity, APIError{
			Code:    "ineligible",
			Message: err.Error(),
			Hint:    "Ask for recommendations to find an activity that fits right now.",
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "conflict",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeUnavailable writes a structured 503 for an unwired dependency.
func writeUnavailable(w http.ResponseWriter, message string) {
	writeJSONError(w, http.StatusServiceUnavailable, APIError{
		Code:    "service_unavailable",
		Message: message,
	})
}

// writeNotImplemented writes a structured 501 for optional surfaces.
func writeNotImplemented(w http.ResponseWriter) {
	writeJSONError(w, http.StatusNotImplemented, APIError{
		Code:    "not_implemented",
		Message: "profile APIs are not available",
	})
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
