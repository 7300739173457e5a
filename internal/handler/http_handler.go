package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/weiawesome/ttv-relay/internal/service"
)

// HTTPHandler serves the read-only admin API.
type HTTPHandler struct {
	service service.RelayService
}

func NewHTTPHandler(svc service.RelayService) *HTTPHandler {
	return &HTTPHandler{
		service: svc,
	}
}

// GetStats handles GET /api/v1/stats
func (h *HTTPHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Stats())
}

// GetRoom handles GET /api/v1/rooms/{room_id}
func (h *HTTPHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["room_id"]
	if roomID == "" {
		http.Error(w, "room_id is required", http.StatusBadRequest)
		return
	}

	snapshot, ok := h.service.Room(roomID)
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// GetPoll handles GET /api/v1/polls/{poll_id}
func (h *HTTPHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	pollID := mux.Vars(r)["poll_id"]
	if pollID == "" {
		http.Error(w, "poll_id is required", http.StatusBadRequest)
		return
	}

	snapshot, ok := h.service.Poll(pollID)
	if !ok {
		http.Error(w, "poll not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// HealthCheck handles GET /health
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
