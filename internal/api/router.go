package api

import (
	"net/http"
	"time"

	"codesteps/internal/api/handler"
	"codesteps/internal/app/service"
	"codesteps/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(
	authService *service.AuthService,
	progressService *service.ProgressService,
	adminService *service.CourseAdminService,
	testService *service.TestSessionService,
	auditService *service.AuditService,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Verifies "Authorization: Bearer <token>" and stashes claims; the
	// Authenticator middleware on protected groups enforces them.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(v1 chi.Router) {
		authHandler := handler.NewAuthHandler(authService)
		v1.Group(func(publicAuth chi.Router) {
			authHandler.RegisterRoutes(publicAuth)
		})

		courseHandler := handler.NewCourseHandler(progressService)
		v1.Route("/courses", courseHandler.RegisterRoutes)

		testHandler := handler.NewTestHandler(testService)
		v1.Route("/tests", testHandler.RegisterRoutes)

		adminHandler := handler.NewAdminHandler(adminService, testService, auditService)
		v1.Route("/admin", adminHandler.RegisterRoutes)
	})

	return r
}
