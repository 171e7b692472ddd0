package app

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/handler"
	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/metrics"
	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/middleware"
	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/model"
	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/submission"
	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/web"
)

func (app *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(middleware.SecurityHeaders(app.config.IsProduction()))
	if len(app.config.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: app.config.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	// Health check and diagnostics
	r.Get("/api/health", handler.Health(app.db))
	r.Get("/api/diag/smtp", handler.NewDiagHandler(app.logger, app.smtp, app.dispatcher.Transport()).SMTP)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	authLimit := middleware.PerMinute(app.config.RateLimitPerMinute)
	uploadLimit := middleware.PerMinute(app.config.RateLimitPerMinute)
	authenticate := middleware.Authenticate(app.tokens)

	// Accounts
	authHandler := handler.NewAuthHandler(app.logger, app.userStore, app.tokens)
	r.Route("/api/auth", func(r chi.Router) {
		r.With(authLimit).Post("/register", authHandler.Register)
		r.With(authLimit).Post("/login", authHandler.Login)
		r.With(authenticate, middleware.RequireAuth).Get("/me", authHandler.Me)
	})

	// Radicaciones
	upload := app.config.Upload
	window := submission.WindowFrom(upload)
	submitHandler := handler.NewSubmitHandler(app.logger, handler.SubmitOptions{
		Limits:        submission.LimitsFrom(upload),
		Composer:      submission.Composer{From: app.config.Mail.From, To: app.config.Mail.To},
		Window:        window,
		EnforceWindow: upload.EnforceWindow,
	}, app.dispatcher)
	windowHandler := handler.NewWindowHandler(app.logger, window)

	r.Route("/api/radicaciones", func(r chi.Router) {
		r.Use(authenticate)
		r.With(middleware.RequireAuth).Get("/window", windowHandler.Get)
		r.Group(func(r chi.Router) {
			r.Use(uploadLimit)
			if app.config.Auth.RequireAuth {
				r.Use(middleware.RequireAuth, middleware.RequireRole(model.Roles...))
			}
			r.Post("/", submitHandler.Create)
		})
	})

	// Single-page app
	r.Handle("/*", web.SPA(os.DirFS(app.config.StaticDir)))
	return r
}
