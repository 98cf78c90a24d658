package progress

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps progress in a map with the same upsert rules as PostgresStore.
type MemoryStore struct {
	mu      sync.Mutex
	rows    map[string]Progress
	courses map[string][]string
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:    make(map[string]Progress),
		courses: make(map[string][]string),
		now:     time.Now,
	}
}

// SetClock replaces the time source used for timestamps.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// SetCourseVideos registers the videos that make up a course for CourseSummary.
func (s *MemoryStore) SetCourseVideos(courseID string, videoIDs ...string) {
	s.mu.Lock()
	s.courses[courseID] = append([]string(nil), videoIDs...)
	s.mu.Unlock()
}

func (s *MemoryStore) Save(_ context.Context, userID, videoID string, positionSeconds int, completed bool) (SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := compositeKey(userID, videoID)
	row, exists := s.rows[key]
	if !exists {
		row = Progress{UserID: userID, VideoID: videoID, StartedAt: now}
	}
	wasCompleted := row.Completed

	row.PositionSeconds = positionSeconds
	row.UpdatedAt = now
	if completed && !row.Completed {
		row.Completed = true
	}
	if row.Completed && row.CompletedAt == nil {
		at := now
		row.CompletedAt = &at
	}
	s.rows[key] = row

	return SaveResult{Progress: cloneProgress(row), NewlyCompleted: row.Completed && !wasCompleted}, nil
}

func (s *MemoryStore) Load(_ context.Context, userID, videoID string) (Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[compositeKey(userID, videoID)]
	if !ok {
		return Progress{UserID: userID, VideoID: videoID}, nil
	}
	return cloneProgress(row), nil
}

func (s *MemoryStore) CourseSummary(_ context.Context, userID, courseID string) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := Summary{CourseID: courseID}
	var latest time.Time
	for _, videoID := range s.courses[courseID] {
		summary.TotalVideos++
		row, ok := s.rows[compositeKey(userID, videoID)]
		if !ok {
			continue
		}
		if row.Completed {
			summary.CompletedVideos++
		}
		if summary.LastVideoID == nil || row.UpdatedAt.After(latest) {
			id := videoID
			summary.LastVideoID = &id
			latest = row.UpdatedAt
		}
	}
	return summary, nil
}

func cloneProgress(p Progress) Progress {
	if p.CompletedAt != nil {
		at := *p.CompletedAt
		p.CompletedAt = &at
	}
	return p
}

func compositeKey(userID, videoID string) string {
	return userID + "\x00" + videoID
}
