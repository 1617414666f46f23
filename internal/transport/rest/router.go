package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"stillmind/internal/service"
	"stillmind/internal/transport/rest/handler"
	"stillmind/internal/transport/rest/middleware"
	"stillmind/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	PresenceService *service.PresenceService
	WSHub           *ws.Hub
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	presenceHandler := handler.NewPresenceHandler(c.PresenceService)
	wsHandler := ws.NewHandler(c.WSHub)

	// CORS middleware (apply first; browser clients call this API directly)
	r.Use(corsMiddleware)
	r.Use(middleware.Logging)

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/users/init", presenceHandler.InitUser).Methods("POST", "OPTIONS")
	v1.HandleFunc("/users/{id}/heartbeat", presenceHandler.Heartbeat).Methods("POST", "OPTIONS")
	v1.HandleFunc("/users/{id}/stats", presenceHandler.IncrementStats).Methods("POST", "OPTIONS")
	v1.HandleFunc("/users/{id}/rank", presenceHandler.Rank).Methods("GET", "OPTIONS")
	v1.HandleFunc("/sessions", presenceHandler.StartSession).Methods("POST", "OPTIONS")
	v1.HandleFunc("/sessions/{id}/end", presenceHandler.EndSession).Methods("POST", "OPTIONS")
	v1.HandleFunc("/leaderboard", presenceHandler.Leaderboard).Methods("GET", "OPTIONS")

	// WebSocket route (live presence counts)
	v1.HandleFunc("/ws/presence", wsHandler.PresenceWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
