package progress

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/starteducation/starteducation/internal/access"
	"github.com/starteducation/starteducation/internal/auth"
	"github.com/starteducation/starteducation/internal/events"
	"github.com/starteducation/starteducation/internal/httputil"
	"github.com/starteducation/starteducation/internal/metrics"
	"github.com/starteducation/starteducation/internal/validate"
)

const maxSaveBodyBytes = 4 << 10

type EventPublisher interface {
	Publish(ctx context.Context, subject string, evt events.Event) error
}

type Handler struct {
	store     Store
	publisher EventPublisher
}

func NewHandler(store Store, publisher EventPublisher) *Handler {
	return &Handler{store: store, publisher: publisher}
}

type saveRequest struct {
	Seconds    *int `json:"seconds"`
	Completado bool `json:"completado"`
}

type saveResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type loadResponse struct {
	Success         bool       `json:"success"`
	Seconds         int        `json:"seconds"`
	Completado      bool       `json:"completado"`
	FechaCompletado *time.Time `json:"fecha_completado"`
}

type courseProgressResponse struct {
	Success         bool    `json:"success"`
	CourseID        string  `json:"courseId"`
	TotalVideos     int     `json:"totalVideos"`
	CompletedVideos int     `json:"completedVideos"`
	Percent         int     `json:"percent"`
	LastVideoID     *string `json:"lastVideoId"`
}

// Save handles POST /video/progress/{videoId}. It runs behind the access
// gate, so the video is known to exist and the user may watch it.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "videoId")

	var req saveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSaveBodyBytes)).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, saveResponse{Error: "invalid request body"})
		return
	}
	if req.Seconds == nil {
		httputil.WriteJSON(w, http.StatusBadRequest, saveResponse{Error: "seconds is required"})
		return
	}
	if msg := validate.PositionSeconds(*req.Seconds); msg != "" {
		httputil.WriteJSON(w, http.StatusBadRequest, saveResponse{Error: msg})
		return
	}

	res, err := h.store.Save(r.Context(), userID, videoID, *req.Seconds, req.Completado)
	metrics.RecordProgressSave(err)
	if err != nil {
		slog.Error("progress: save failed", "user_id", userID, "video_id", videoID, "error", err)
		httputil.WriteJSON(w, http.StatusInternalServerError, saveResponse{Error: "could not save progress"})
		return
	}

	if res.NewlyCompleted {
		metrics.RecordCompletion()
		var courseID string
		if d, ok := access.DecisionFromContext(r.Context()); ok {
			courseID = d.CourseID
		}
		completedAt := time.Now().UTC()
		if res.CompletedAt != nil {
			completedAt = *res.CompletedAt
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			h.publishCompletion(ctx, userID, videoID, courseID, completedAt)
		}()
	}

	httputil.WriteJSON(w, http.StatusOK, saveResponse{Success: true})
}

// Load handles GET /video/progress/{videoId}.
func (h *Handler) Load(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "videoId")
	if msg := validate.VideoID(videoID); msg != "" {
		httputil.WriteJSON(w, http.StatusOK, loadResponse{Success: true})
		return
	}

	p, err := h.store.Load(r.Context(), userID, videoID)
	if err != nil {
		slog.Error("progress: load failed", "user_id", userID, "video_id", videoID, "error", err)
		httputil.WriteJSON(w, http.StatusOK, loadResponse{Success: true})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, loadResponse{
		Success:         true,
		Seconds:         p.PositionSeconds,
		Completado:      p.Completed,
		FechaCompletado: p.CompletedAt,
	})
}

// CourseProgress handles GET /course/{courseId}/progress.
func (h *Handler) CourseProgress(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	courseID := chi.URLParam(r, "courseId")
	if msg := validate.CourseID(courseID); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	summary, err := h.store.CourseSummary(r.Context(), userID, courseID)
	if err != nil {
		slog.Error("progress: course summary failed", "user_id", userID, "course_id", courseID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "could not load course progress")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, courseProgressResponse{
		Success:         true,
		CourseID:        courseID,
		TotalVideos:     summary.TotalVideos,
		CompletedVideos: summary.CompletedVideos,
		Percent:         summary.Percent(),
		LastVideoID:     summary.LastVideoID,
	})
}

func (h *Handler) publishCompletion(ctx context.Context, userID, videoID, courseID string, completedAt time.Time) {
	if h.publisher == nil {
		return
	}

	evt, err := events.NewEvent(events.SubjectVideoCompleted, events.VideoCompleted{
		UserID:      userID,
		VideoID:     videoID,
		CompletedAt: completedAt,
	})
	if err == nil {
		err = h.publisher.Publish(ctx, events.SubjectVideoCompleted, evt)
	}
	if err != nil {
		slog.Error("progress: failed to publish video completion", "user_id", userID, "video_id", videoID, "error", err)
	}

	if courseID == "" {
		return
	}
	summary, err := h.store.CourseSummary(ctx, userID, courseID)
	if err != nil {
		slog.Error("progress: failed to load course summary", "user_id", userID, "course_id", courseID, "error", err)
		return
	}
	if !summary.Finished() {
		return
	}

	evt, err = events.NewEvent(events.SubjectCourseCompleted, events.CourseCompleted{
		UserID:      userID,
		CourseID:    courseID,
		TotalVideos: summary.TotalVideos,
	})
	if err == nil {
		err = h.publisher.Publish(ctx, events.SubjectCourseCompleted, evt)
	}
	if err != nil {
		slog.Error("progress: failed to publish course completion", "user_id", userID, "course_id", courseID, "error", err)
	}
}
