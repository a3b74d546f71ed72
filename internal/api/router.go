package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cocreate-app/cocreate/backend/internal/ws"
)

// Router wires the HTTP surface: the websocket endpoint, the compile
// proxy, auth, and the health/stats probes.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))

	var authorizer ws.Authorizer
	if a.sessions != nil {
		authorizer = a.sessions
	}

	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		ws.ServeWs(a.hub, authorizer, w, req)
	})

	r.Get("/health", a.HealthHandler)
	r.Get("/api/stats", a.StatsHandler)
	r.Post("/compile", a.CompileHandler)

	r.Post("/api/auth/register", a.RegisterHandler)
	r.Post("/api/auth/login", a.LoginHandler)
	r.Post("/api/auth/logout", a.LogoutHandler)

	return r
}
