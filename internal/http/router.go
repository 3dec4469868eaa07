package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/votefield/canvass/internal/assignment"
	"github.com/votefield/canvass/internal/config"
	"github.com/votefield/canvass/internal/contactlog"
	httpmiddleware "github.com/votefield/canvass/internal/http/middleware"
	"github.com/votefield/canvass/internal/service"
	"github.com/votefield/canvass/internal/user"
	"github.com/votefield/canvass/internal/voter"
)

// Handler holds everything the route tree needs.
type Handler struct {
	cfg      *config.Config
	auth     AuthProvider
	validate *validator.Validate
}

// NewRouter assembles the full route tree: a public group carrying the
// health check and the auth endpoints behind an IP rate limit, and a
// private group behind bearer auth and a per-user rate limit.
func NewRouter(cfg *config.Config, pool *pgxpool.Pool, authService *service.AuthService) http.Handler {
	h := &Handler{
		cfg:      cfg,
		auth:     authService,
		validate: validator.New(),
	}

	userRepo := user.NewRepository(pool)
	userHandler := user.NewHandler(user.NewService(userRepo))
	voterHandler := voter.NewHandler(voter.NewService(voter.NewRepository(pool)))
	assignmentHandler := assignment.NewHandler(assignment.NewService(assignment.NewRepository(pool)))
	contactLogHandler := contactlog.NewHandler(contactlog.NewService(contactlog.NewRepository(pool)))

	publicLimiter := httpmiddleware.NewRateLimiter(
		cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst)
	authLimiter := httpmiddleware.NewRateLimiter(
		cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(publicLimiter))

		public.Get("/health", h.health)

		public.Route("/auth", func(auth chi.Router) {
			auth.Post("/signup", h.signup)
			auth.Post("/login", h.login)
		})
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(authService.JWT(), authService.Denylist(), authService))
		private.Use(httpmiddleware.UserRateLimit(authLimiter))

		private.Get("/auth/me", h.me)
		private.Post("/auth/logout", h.logout)

		private.Route("/users", func(rr chi.Router) {
			user.Mount(rr, userHandler)
		})
		private.Route("/voters", func(rr chi.Router) {
			voter.Mount(rr, voterHandler)
		})
		private.Route("/assignments", func(rr chi.Router) {
			assignment.Mount(rr, assignmentHandler)
		})
		private.Route("/contact-logs", func(rr chi.Router) {
			contactlog.Mount(rr, contactLogHandler)
		})
	})

	return r
}
