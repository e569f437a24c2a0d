package handlers

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/chepyr/go-task-board/internal/board"
	"github.com/chepyr/go-task-board/internal/db"
	"github.com/chepyr/go-task-board/shared"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const (
	defaultRequestTimeout = 5 * time.Second
	maxBodyBytes          = 1 << 20 // 1MB
)

type Handler struct {
	Board        *board.Service
	UserRepo     db.UserRepositoryInterface
	ActivityRepo db.ActivityRepositoryInterface
	RateLimiter  *RateLimiter
	WSHub        *WSHub
	JWTSecret    []byte
	Timeout      time.Duration
	Logger       logrus.FieldLogger
}

/*
NewRouter registers every route:
- POST /auth/register, POST /auth/login
- GET /users
- GET|POST /tasks, GET|PUT|DELETE /tasks/{id}
- POST /tasks/{id}/resolve-conflict, POST /tasks/{id}/smart-assign
- GET /activities?limit=
- GET /ws
*/
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)

	r.HandleFunc("/users", h.AuthMiddleware(h.ListUsers)).Methods(http.MethodGet)
	r.HandleFunc("/tasks", h.AuthMiddleware(h.ListTasks)).Methods(http.MethodGet)
	r.HandleFunc("/tasks", h.AuthMiddleware(h.CreateTask)).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{id}", h.AuthMiddleware(h.GetTask)).Methods(http.MethodGet)
	r.HandleFunc("/tasks/{id}", h.AuthMiddleware(h.UpdateTask)).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/tasks/{id}", h.AuthMiddleware(h.DeleteTask)).Methods(http.MethodDelete)
	r.HandleFunc("/tasks/{id}/resolve-conflict", h.AuthMiddleware(h.ResolveConflict)).Methods(http.MethodPost)
	r.HandleFunc("/tasks/{id}/smart-assign", h.AuthMiddleware(h.SmartAssign)).Methods(http.MethodPost)
	r.HandleFunc("/activities", h.AuthMiddleware(h.ListActivities)).Methods(http.MethodGet)
	r.HandleFunc("/ws", h.AuthMiddleware(h.HandleWebSocket)).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		shared.SendError(w, "Not found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		shared.SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})
	return r
}

func (h *Handler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return context.WithTimeout(r.Context(), timeout)
}

func (h *Handler) log() logrus.FieldLogger {
	if h.Logger == nil {
		return logrus.StandardLogger()
	}
	return h.Logger
}

func isJSONContentType(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// clientIP prefers the first X-Forwarded-For hop and falls back to the
// remote address without its port.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
