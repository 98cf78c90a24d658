// Package progress persists per-user playback positions and completion.
package progress

import (
	"context"
	"time"
)

// CompletionPercent is the share of a video that counts as watched.
const CompletionPercent = 98

type Progress struct {
	UserID          string
	VideoID         string
	PositionSeconds int
	Completed       bool
	StartedAt       time.Time
	CompletedAt     *time.Time
	UpdatedAt       time.Time
}

type SaveResult struct {
	Progress
	// NewlyCompleted is true only for the save that flipped Completed to true.
	NewlyCompleted bool
}

type Summary struct {
	CourseID        string
	TotalVideos     int
	CompletedVideos int
	LastVideoID     *string
}

func (s Summary) Percent() int {
	if s.TotalVideos == 0 {
		return 0
	}
	return s.CompletedVideos * 100 / s.TotalVideos
}

func (s Summary) Finished() bool {
	return s.TotalVideos > 0 && s.CompletedVideos >= s.TotalVideos
}

// Store is an upsert-only view of video_progress. Load returns the zero
// state for a pair that was never saved.
type Store interface {
	Save(ctx context.Context, userID, videoID string, positionSeconds int, completed bool) (SaveResult, error)
	Load(ctx context.Context, userID, videoID string) (Progress, error)
	CourseSummary(ctx context.Context, userID, courseID string) (Summary, error)
}

// IsComplete applies the completion rule. An unknown duration (<= 0) never completes.
func IsComplete(positionSeconds int, durationSeconds float64) bool {
	if durationSeconds <= 0 {
		return false
	}
	return float64(positionSeconds)*100 >= durationSeconds*CompletionPercent
}
