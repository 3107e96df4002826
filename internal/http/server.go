// Package httpserver exposes the review platform over a JSON REST API under
// /api/v1.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Clark-Hu/yamdb/internal/auth"
	"github.com/Clark-Hu/yamdb/internal/catalog"
	"github.com/Clark-Hu/yamdb/internal/config"
	"github.com/Clark-Hu/yamdb/internal/domain"
	"github.com/Clark-Hu/yamdb/internal/reviews"
	"github.com/Clark-Hu/yamdb/internal/users"
)

// HealthChecker reports database reachability and pool usage. *store.Store
// implements it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
	Stats() *pgxpool.Stat
}

// ActorLookup resolves the subject of a verified token.
type ActorLookup interface {
	GetByID(ctx context.Context, id int64) (domain.User, error)
}

// Services groups the application services the handlers delegate to.
type Services struct {
	Catalog  *catalog.Service
	Reviews  *reviews.Service
	Comments *reviews.CommentService
	Users    *users.Service
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg      config.Config
	health   HealthChecker
	actors   ActorLookup
	svc      Services
	verifier auth.Verifier
	log      *zap.Logger
	router   chi.Router
	httpSrv  *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, health HealthChecker, actors ActorLookup, svc Services, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		health:   health,
		actors:   actors,
		svc:      svc,
		verifier: auth.NewVerifier(cfg.JWTSecret),
		log:      log,
		router:   chi.NewRouter(),
	}
	s.router.Use(requestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))
	if cfg.RateLimitEnabled {
		s.router.Use(s.rateLimit)
	}
	if cfg.RequestTimeoutSecs > 0 {
		s.router.Use(middleware.Timeout(time.Duration(cfg.RequestTimeoutSecs) * time.Second))
	}
	s.registerRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/token", s.handleIssueToken)

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.handleListCategories)
			r.Post("/", s.handleCreateCategory)
			r.Delete("/{slug}", s.handleDeleteCategory)
		})
		r.Route("/genres", func(r chi.Router) {
			r.Get("/", s.handleListGenres)
			r.Post("/", s.handleCreateGenre)
			r.Delete("/{slug}", s.handleDeleteGenre)
		})
		r.Route("/titles", func(r chi.Router) {
			r.Get("/", s.handleListTitles)
			r.Post("/", s.handleCreateTitle)
			r.Route("/{titleID}", func(r chi.Router) {
				r.Get("/", s.handleGetTitle)
				r.Patch("/", s.handleUpdateTitle)
				r.Delete("/", s.handleDeleteTitle)

				r.Route("/reviews", func(r chi.Router) {
					r.Get("/", s.handleListReviews)
					r.Post("/", s.handleCreateReview)
					r.Route("/{reviewID}", func(r chi.Router) {
						r.Get("/", s.handleGetReview)
						r.Patch("/", s.handleUpdateReview)
						r.Delete("/", s.handleDeleteReview)

						r.Route("/comments", func(r chi.Router) {
							r.Get("/", s.handleListComments)
							r.Post("/", s.handleCreateComment)
							r.Get("/{commentID}", s.handleGetComment)
							r.Patch("/{commentID}", s.handleUpdateComment)
							r.Delete("/{commentID}", s.handleDeleteComment)
						})
					})
				})
			})
		})
		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.handleListUsers)
			r.Post("/", s.handleCreateUser)
			r.Get("/me", s.handleGetMe)
			r.Patch("/me", s.handleUpdateMe)
			r.Get("/{username}", s.handleGetUser)
			r.Patch("/{username}", s.handleUpdateUser)
			r.Delete("/{username}", s.handleDeleteUser)
		})
	})
}

// Start boots the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.health == nil {
		respondError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "database not configured")
		return
	}
	if err := s.health.HealthCheck(ctx); err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		respondError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", http.StatusText(http.StatusServiceUnavailable))
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

type poolStats struct {
	TotalConns    int32 `json:"total_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	IdleConns     int32 `json:"idle_conns"`
	MaxConns      int32 `json:"max_conns"`
}

type readyResponse struct {
	Status string     `json:"status"`
	Pool   *poolStats `json:"pool,omitempty"`
}

// handleReadyz reports ready once the database answers, along with the
// connection pool usage.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.health == nil {
		respondError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "database not configured")
		return
	}
	if err := s.health.HealthCheck(ctx); err != nil {
		s.log.Warn("readiness check failed", zap.Error(err))
		respondError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", http.StatusText(http.StatusServiceUnavailable))
		return
	}
	resp := readyResponse{Status: "ready"}
	if stat := s.health.Stats(); stat != nil {
		resp.Pool = &poolStats{
			TotalConns:    stat.TotalConns(),
			AcquiredConns: stat.AcquiredConns(),
			IdleConns:     stat.IdleConns(),
			MaxConns:      stat.MaxConns(),
		}
	}
	respondJSON(w, r, http.StatusOK, resp)
}
