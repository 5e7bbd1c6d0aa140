package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/reposync/admin-backend/internal/health"
	"github.com/reposync/admin-backend/internal/http/handler"
	"github.com/reposync/admin-backend/internal/http/middleware"
	"github.com/reposync/admin-backend/internal/http/response"
	"github.com/reposync/admin-backend/internal/security"
	"github.com/reposync/admin-backend/internal/service"
)

type Dependencies struct {
	DirectoryHandler  *handler.DirectoryHandler
	ImportHandler     *handler.ImportHandler
	PrincipalHandler  *handler.PrincipalHandler
	AuditHandler      *handler.AuditHandler
	JWTManager        *security.JWTManager
	PrincipalResolver *service.PrincipalResolver
	CORSOrigins       []string
	APIRateLimitRPM   int
	RateLimiter       RateLimiterFunc
	Idempotency       IdempotencyMiddlewareFactory
	Readiness         *health.ProbeRunner
	EnableOTelHTTP    bool
}

type RateLimiterFunc func(http.Handler) http.Handler
type IdempotencyMiddlewareFactory func(scope string) func(http.Handler) http.Handler

// importBodyLimit allows CSV uploads beyond the global request cap.
const importBodyLimit = 12 << 20

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))
	if dep.RateLimiter != nil {
		r.Use(dep.RateLimiter)
	} else {
		r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute).Middleware())
	}

	idempotent := dep.Idempotency
	if idempotent == nil {
		idempotent = func(string) func(http.Handler) http.Handler {
			return func(next http.Handler) http.Handler { return next }
		}
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(dep.JWTManager))
		r.Use(middleware.PrincipalMiddleware(dep.PrincipalResolver))

		r.Get("/me", dep.PrincipalHandler.Me)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdminScope)

			r.Route("/users", func(r chi.Router) {
				r.Get("/", dep.DirectoryHandler.SearchUsers)
				r.Get("/{id}", dep.DirectoryHandler.GetUser)
				r.With(middleware.CSRFMiddleware).Patch("/{id}", dep.DirectoryHandler.UpdateUser)
			})

			r.Route("/groups", func(r chi.Router) {
				r.Get("/", dep.DirectoryHandler.SearchGroups)
				r.Get("/{id}", dep.DirectoryHandler.GetGroup)
				r.Group(func(r chi.Router) {
					r.Use(middleware.CSRFMiddleware)
					r.With(idempotent("groups.create")).Post("/", dep.DirectoryHandler.CreateGroup)
					r.Patch("/{id}", dep.DirectoryHandler.UpdateGroup)
					r.Delete("/{id}", dep.DirectoryHandler.DeleteGroup)
					r.Post("/{id}/members", dep.DirectoryHandler.AddGroupMember)
					r.Delete("/{id}/members/{userID}", dep.DirectoryHandler.RemoveGroupMember)
				})
			})

			r.Get("/repositories", dep.DirectoryHandler.SearchRepositories)

			r.Route("/imports", func(r chi.Router) {
				submitChain := []func(http.Handler) http.Handler{
					middleware.CSRFMiddleware,
					middleware.BodyLimit(importBodyLimit),
					idempotent("imports.submit"),
				}
				r.With(submitChain...).Post("/", dep.ImportHandler.Submit)
				r.Get("/{id}", dep.ImportHandler.GetJob)
				r.With(middleware.RequireSystemAdmin).Get("/", dep.ImportHandler.ListJobs)
			})

			r.With(middleware.RequireSystemAdmin).Get("/audits", dep.AuditHandler.List)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
