package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"stillmind/internal/model"
	"stillmind/internal/service"
)

// PresenceHandler handles the presence/stats endpoints
type PresenceHandler struct {
	svc *service.PresenceService
}

// NewPresenceHandler creates a new presence handler
func NewPresenceHandler(svc *service.PresenceService) *PresenceHandler {
	return &PresenceHandler{svc: svc}
}

// InitUser handles POST /v1/users/init
func (h *PresenceHandler) InitUser(w http.ResponseWriter, r *http.Request) {
	var req model.InitUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.svc.InitUser(r.Context(), req.UserID, req.DisplayName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// Heartbeat handles POST /v1/users/{id}/heartbeat
func (h *PresenceHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	counts, err := h.svc.ReportHeartbeat(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, counts)
}

// StartSession handles POST /v1/sessions
func (h *PresenceHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req model.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	sessionID, err := h.svc.StartSession(r.Context(), req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, model.StartSessionResponse{SessionID: sessionID})
}

// EndSession handles POST /v1/sessions/{id}/end
func (h *PresenceHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req model.EndSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var endedAt time.Time
	if req.EndedAt != "" {
		t, err := time.Parse(time.RFC3339, req.EndedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid endedAt timestamp")
			return
		}
		endedAt = t
	}

	if err := h.svc.EndSession(r.Context(), sessionID, req.DurationSeconds, endedAt); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// IncrementStats handles POST /v1/users/{id}/stats
func (h *PresenceHandler) IncrementStats(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	var delta model.StatsDelta
	if err := json.NewDecoder(r.Body).Decode(&delta); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.IncrementUserStats(r.Context(), userID, delta); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Leaderboard handles GET /v1/leaderboard
func (h *PresenceHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	page, err := h.svc.Leaderboard(r.Context(), userID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// Rank handles GET /v1/users/{id}/rank
func (h *PresenceHandler) Rank(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	rank, err := h.svc.UserRank(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"rank": rank})
}

// Helper functions
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
