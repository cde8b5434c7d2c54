package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/username/tradejournal/backend/src/utils"
	"golang.org/x/time/rate"
)

// Router groups the handlers served under /api.
type Router struct {
	User      *UserHandler
	CSRF      *CSRFHandler
	Import    *ImportHandler
	Journal   *JournalHandler
	Dashboard *DashboardHandler
	Analysis  *AnalysisHandler

	AllowedOrigins []string
	Limiter        *rate.Limiter
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(ContextualLoggerMiddleware)
	r.Use(ProxyHeadersMiddleware)
	r.Use(CORSMiddleware(rt.AllowedOrigins))
	if rt.Limiter != nil {
		r.Use(RateLimitMiddleware(rt.Limiter))
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Trade Journal backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		// Public
		r.Group(func(r chi.Router) {
			r.Get("/auth/csrf", rt.CSRF.GetCSRFToken)
			r.Get("/auth/verify-email", rt.User.VerifyEmailHandler)
			r.Get("/auth/google/login", rt.User.HandleGoogleLogin)
			r.Get("/auth/google/callback", rt.User.HandleGoogleCallback)
		})

		// Authentication, CSRF protected
		r.Group(func(r chi.Router) {
			r.Use(rt.CSRF.Middleware)
			r.Post("/auth/login", rt.User.LoginUserHandler)
			r.Post("/auth/register", rt.User.RegisterUserHandler)
			r.Post("/auth/refresh", rt.User.RefreshTokenHandler)
			r.With(rt.User.AuthMiddleware).Post("/auth/logout", rt.User.LogoutUserHandler)
			r.Post("/auth/request-password-reset", rt.User.RequestPasswordResetHandler)
			r.Post("/auth/reset-password", rt.User.ResetPasswordHandler)
		})

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(rt.CSRF.Middleware)
			r.Use(rt.User.AuthMiddleware)

			r.Post("/imports", rt.Import.HandleImport)
			r.Get("/imports", rt.Import.HandleGetImports)

			r.Get("/positions", rt.Journal.HandleListPositions)
			r.Delete("/positions", rt.Journal.HandleDeleteAllPositions)
			r.Get("/positions/export", rt.Journal.HandleExportPositions)
			r.Get("/positions/{id}", rt.Journal.HandleGetPosition)
			r.Patch("/positions/{id}", rt.Journal.HandleUpdatePosition)
			r.Delete("/positions/{id}", rt.Journal.HandleDeletePosition)

			r.Get("/dashboard/metrics", rt.Dashboard.HandleGetMetrics)
			r.Get("/dashboard/fees", rt.Dashboard.HandleGetFees)
			r.Get("/valuation", rt.Dashboard.HandleGetValuation)
			r.Get("/analysis/{ticker}", rt.Analysis.HandleGetStockAnalysis)

			r.Get("/user/has-data", rt.User.HandleCheckUserData)
			r.Post("/user/change-password", rt.User.ChangePasswordHandler)
			r.Post("/user/delete-account", rt.User.DeleteAccountHandler)
			r.Get("/user/mfa/setup", rt.User.HandleSetupMFA)
			r.Post("/user/mfa/enable", rt.User.HandleEnableMFA)
			r.Post("/user/mfa/disable", rt.User.HandleDisableMFA)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			utils.SendJSONError(w, "Not found", http.StatusNotFound)
			return
		}
		http.NotFound(w, r)
	})
	return r
}
