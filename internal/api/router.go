package api

import (
	"net/http"

	"github.com/ashureev/bot-console/internal/middleware"
	"github.com/ashureev/bot-console/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Routes groups the handlers mounted by NewRouter. Status and Health are optional.
type Routes struct {
	Identity       func(http.Handler) http.Handler
	Pages          *PageHandler
	Chat           *ChatHandler
	Auth           *AuthHandler
	Status         *StatusHandler
	Health         *HealthHandler
	AllowedOrigins []string
	AccessLog      bool
}

// NewRouter assembles the console's middleware chain and routes.
func NewRouter(routes Routes) chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	if routes.AccessLog {
		r.Use(chiMiddleware.Logger)
	}
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(routes.AllowedOrigins))
	if routes.Identity != nil {
		r.Use(routes.Identity)
	}

	if routes.Health != nil {
		routes.Health.RegisterHealth(r)
	}
	if routes.Status != nil {
		routes.Status.RegisterRoutes(r)
	}
	routes.Auth.RegisterRoutes(r)
	routes.Chat.RegisterRoutes(r)
	routes.Pages.RegisterRoutes(r)

	r.Handle("/static/*", web.StaticHandler())

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
