package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/podworks/pod-access-service/internal/http/handler"
	"github.com/podworks/pod-access-service/internal/http/middleware"
	"github.com/podworks/pod-access-service/internal/http/response"
	"github.com/podworks/pod-access-service/internal/security"
)

type Dependencies struct {
	BookingHandler  *handler.BookingHandler
	SessionHandler  *handler.SessionHandler
	Tokens          *security.TokenManager
	APIRateLimitRPM int
	ReadyCheck      func(r *http.Request) error
	EnableOTelHTTP  bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.StructuredRequestLogger)
	if dep.APIRateLimitRPM > 0 {
		r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute).Middleware())
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.ReadyCheck != nil {
			if err := dep.ReadyCheck(r); err != nil {
				response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", nil)
				return
			}
		}
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
	})

	provisioningAuth := middleware.ScopedToken(dep.Tokens, security.ScopeProvisioning)
	sessionAuth := middleware.ScopedToken(dep.Tokens, security.ScopeSession)

	r.Route("/api", func(r chi.Router) {
		r.Post("/setup-intent", dep.BookingHandler.SetupIntent)
		r.With(provisioningAuth).Post("/booking/finalize", dep.BookingHandler.Finalize)

		r.Group(func(r chi.Router) {
			r.Use(sessionAuth)
			r.Get("/provisioning-status", dep.SessionHandler.ProvisioningStatus)
			r.Get("/session", dep.SessionHandler.Session)
			r.Get("/session/preview", dep.SessionHandler.Preview)
			r.Get("/session/complete", dep.SessionHandler.Complete)
			r.Post("/session/end", dep.BookingHandler.EndSession)
		})

		r.Get("/pod", dep.SessionHandler.Pod)
	})

	if dep.EnableOTelHTTP {
		return otelhttp.NewHandler(r, "http.server")
	}
	return r
}
