package access

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/starteducation/starteducation/internal/auth"
	"github.com/starteducation/starteducation/internal/metrics"
)

type contextKey struct{}

func ContextWithDecision(ctx context.Context, d Decision) context.Context {
	return context.WithValue(ctx, contextKey{}, d)
}

func DecisionFromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(contextKey{}).(Decision)
	return d, ok
}

// Responder renders the denial cases. Each method must write a complete response.
type Responder interface {
	Unauthenticated(w http.ResponseWriter, r *http.Request)
	NotFound(w http.ResponseWriter, r *http.Request)
	Denied(w http.ResponseWriter, r *http.Request, d Decision)
}

type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	repair bool
}

// WithEnrollmentRepair toggles the post-grant enrollment reconciliation. It is on by default.
func WithEnrollmentRepair(enabled bool) MiddlewareOption {
	return func(c *middlewareConfig) { c.repair = enabled }
}

// Middleware checks the chi "videoId" URL param against the authenticated
// user and stores the Decision in the request context for granted requests.
func (g *Gate) Middleware(resp Responder, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := middlewareConfig{repair: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := auth.UserIDFromContext(r.Context())
			if userID == "" {
				resp.Unauthenticated(w, r)
				return
			}

			videoID := chi.URLParam(r, "videoId")
			d, err := g.Check(r.Context(), userID, videoID)
			if err != nil {
				if errors.Is(err, ErrVideoNotFound) {
					metrics.RecordAccessDecision(false, "not_found")
					resp.NotFound(w, r)
					return
				}
				slog.Error("access: check failed", "user_id", userID, "video_id", videoID, "error", err)
				metrics.RecordAccessDecision(false, "error")
				resp.Denied(w, r, d)
				return
			}

			metrics.RecordAccessDecision(d.Allowed, string(d.Reason))
			if !d.Allowed {
				resp.Denied(w, r, d)
				return
			}

			if cfg.repair && d.NeedsEnrollmentRepair() {
				ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
				err := g.ReconcileEnrollment(ctx, userID, d.CourseID)
				cancel()
				metrics.RecordEnrollmentRepair(err)
				if err != nil {
					slog.Error("access: enrollment repair failed", "user_id", userID, "course_id", d.CourseID, "error", err)
				} else {
					d.Enrolled = true
				}
			}

			next.ServeHTTP(w, r.WithContext(ContextWithDecision(r.Context(), d)))
		})
	}
}
