package handler

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter mounts the websocket endpoint and the admin API. metrics is
// mounted at metricsPath when non-nil.
func NewRouter(ws *WSHandler, api *HTTPHandler, metricsPath string, metrics http.Handler) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/ws", ws.HandleWebSocket)

	router.HandleFunc("/api/v1/stats", api.GetStats).Methods("GET")
	router.HandleFunc("/api/v1/rooms/{room_id}", api.GetRoom).Methods("GET")
	router.HandleFunc("/api/v1/polls/{poll_id}", api.GetPoll).Methods("GET")
	router.HandleFunc("/health", api.HealthCheck).Methods("GET")

	if metrics != nil && metricsPath != "" {
		router.Handle(metricsPath, metrics).Methods("GET")
	}
	return router
}
