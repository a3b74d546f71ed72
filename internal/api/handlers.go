package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cocreate-app/cocreate/backend/internal/auth"
	"github.com/cocreate-app/cocreate/backend/internal/db"
	"github.com/cocreate-app/cocreate/backend/internal/ws"
)

// Languages the compile endpoint accepts, matching the editor's picker.
var supportedLanguages = map[string]bool{
	"python3": true, "java": true, "cpp": true, "nodejs": true,
	"c": true, "ruby": true, "go": true, "scala": true,
	"bash": true, "sql": true, "pascal": true, "csharp": true,
	"php": true, "swift": true, "rust": true, "r": true,
}

type API struct {
	hub         *ws.Hub
	database    *db.Database
	sessions    *auth.Service
	executorURL string
	httpClient  *http.Client
	log         *slog.Logger
}

func New(hub *ws.Hub, database *db.Database, sessions *auth.Service, executorURL string, executorTimeout time.Duration, log *slog.Logger) *API {
	if log == nil {
		log = slog.Default()
	}
	return &API{
		hub:         hub,
		database:    database,
		sessions:    sessions,
		executorURL: executorURL,
		httpClient:  &http.Client{Timeout: executorTimeout},
		log:         log,
	}
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding JSON response", "err", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"active_rooms":   a.hub.RoomCount(),
		"active_clients": a.hub.ClientCount(),
		"rooms":          a.hub.ActiveRooms(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}

	if a.database != nil {
		dbStats, err := a.database.GetStats()
		if err == nil {
			stats["registered_users"] = dbStats["user_count"]
			stats["active_sessions"] = dbStats["session_count"]
		}
	}

	jsonResponse(w, http.StatusOK, stats)
}

// Compile handler

type CompileRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type CompileResponse struct {
	Output string `json:"output"`
}

// CompileHandler forwards {code, language} to the configured execution
// service and relays its output. The relay never runs code itself.
func (a *API) CompileHandler(w http.ResponseWriter, r *http.Request) {
	var req CompileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !supportedLanguages[req.Language] {
		errorResponse(w, http.StatusBadRequest, "Unsupported language")
		return
	}

	if a.executorURL == "" {
		errorResponse(w, http.StatusServiceUnavailable, "Code execution is not configured")
		return
	}

	body, err := json.Marshal(req)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to encode request")
		return
	}

	resp, err := a.httpClient.Post(a.executorURL, "application/json", bytes.NewReader(body))
	if err != nil {
		a.log.Warn("executor unreachable", "err", err)
		errorResponse(w, http.StatusBadGateway, "Execution service unreachable")
		return
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		errorResponse(w, http.StatusBadGateway, "Failed to read execution output")
		return
	}

	var result CompileResponse
	if err := json.Unmarshal(out, &result); err != nil {
		// Executors that reply with plain text still get surfaced.
		result.Output = string(out)
	}

	jsonResponse(w, http.StatusOK, result)
}

// Auth handlers

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	if a.sessions == nil {
		errorResponse(w, http.StatusNotFound, "Auth is disabled")
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Username == "" {
		errorResponse(w, http.StatusBadRequest, "Email and username are required")
		return
	}

	err := a.sessions.Register(req.Email, req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		errorResponse(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrPasswordTooShort):
		errorResponse(w, http.StatusBadRequest, err.Error())
	case err != nil:
		a.log.Error("register failed", "err", err)
		errorResponse(w, http.StatusInternalServerError, "Registration failed")
	default:
		jsonResponse(w, http.StatusCreated, map[string]string{"status": "registered"})
	}
}

func (a *API) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if a.sessions == nil {
		errorResponse(w, http.StatusNotFound, "Auth is disabled")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := a.sessions.Login(req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		errorResponse(w, http.StatusUnauthorized, err.Error())
	case err != nil:
		a.log.Error("login failed", "err", err)
		errorResponse(w, http.StatusInternalServerError, "Login failed")
	default:
		jsonResponse(w, http.StatusOK, map[string]string{"token": token})
	}
}

func (a *API) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if a.sessions == nil {
		errorResponse(w, http.StatusNotFound, "Auth is disabled")
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		errorResponse(w, http.StatusBadRequest, "Token is required")
		return
	}
	if err := a.sessions.Logout(token); err != nil {
		errorResponse(w, http.StatusInternalServerError, "Logout failed")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "logged out"})
}
