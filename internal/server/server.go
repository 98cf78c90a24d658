package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/starteducation/starteducation/internal/access"
	"github.com/starteducation/starteducation/internal/auth"
	"github.com/starteducation/starteducation/internal/database"
	"github.com/starteducation/starteducation/internal/metrics"
	"github.com/starteducation/starteducation/internal/progress"
	"github.com/starteducation/starteducation/internal/ratelimit"
	"github.com/starteducation/starteducation/internal/video"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	DB                    database.DBTX
	Pinger                Pinger
	Storage               video.ObjectStorage
	Publisher             progress.EventPublisher
	JWTSecret             string
	BaseURL               string
	S3PublicEndpoint      string
	AllowedOrigins        []string
	PlayerOrigins         []string
	AllowedFrameAncestors string
	EnrollmentRepair      bool
	ProgressRate          float64
	ProgressBurst         int
}

type Server struct {
	router           chi.Router
	pinger           Pinger
	authenticator    *auth.Authenticator
	gate             *access.Gate
	progressHandler  *progress.Handler
	videoHandler     *video.Handler
	limiter          *ratelimit.Limiter
	allowedOrigins   []string
	enrollmentRepair bool
}

// New builds the router. Without a DB only the health and metrics
// endpoints are registered; with one, JWTSecret must be set.
func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(SecurityConfig{
		BaseURL:               cfg.BaseURL,
		StorageEndpoint:       cfg.S3PublicEndpoint,
		PlayerOrigins:         cfg.PlayerOrigins,
		AllowedFrameAncestors: cfg.AllowedFrameAncestors,
	}))

	s := &Server{
		router:           r,
		pinger:           cfg.Pinger,
		allowedOrigins:   cfg.AllowedOrigins,
		enrollmentRepair: cfg.EnrollmentRepair,
	}

	if cfg.DB != nil {
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:8080"
		}

		rate, burst := cfg.ProgressRate, cfg.ProgressBurst
		if rate <= 0 {
			rate = 2
		}
		if burst <= 0 {
			burst = 10
		}

		s.authenticator = auth.NewAuthenticator(cfg.JWTSecret)
		s.gate = access.NewGate(cfg.DB)
		s.progressHandler = progress.NewHandler(progress.NewPostgresStore(cfg.DB), cfg.Publisher)
		s.videoHandler = video.NewHandler(cfg.DB, cfg.Storage, baseURL)
		s.limiter = ratelimit.NewLimiter(rate, burst)
	}

	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Handle("/metrics", metrics.Handler())

	if s.progressHandler == nil {
		return
	}

	repair := access.WithEnrollmentRepair(s.enrollmentRepair)

	s.router.Route("/video/progress", func(r chi.Router) {
		if len(s.allowedOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   s.allowedOrigins,
				AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
				AllowedHeaders:   []string{"Authorization", "Content-Type"},
				AllowCredentials: true,
				MaxAge:           300,
			}))
		}
		r.Use(s.limiter.Middleware)
		r.Use(s.authenticator.Middleware)
		r.With(s.gate.Middleware(access.JSONResponder{}, repair)).Post("/{videoId}", s.progressHandler.Save)
		r.Get("/{videoId}", s.progressHandler.Load)
	})

	s.router.With(s.limiter.Middleware, s.authenticator.Middleware).
		Get("/course/{courseId}/progress", s.progressHandler.CourseProgress)

	s.router.With(s.authenticator.Optional, s.gate.Middleware(access.NewRedirectResponder(), repair)).
		Get("/video/{videoId}", s.videoHandler.LessonPage)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","error":"database unreachable"}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
