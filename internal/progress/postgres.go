package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/starteducation/starteducation/internal/database"
)

type PostgresStore struct {
	db database.DBTX
}

func NewPostgresStore(db database.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// The prior CTE reads the pre-statement snapshot, so its value is the
// completion flag before this upsert ran.
const saveProgressSQL = `WITH prior AS (
    SELECT completed FROM video_progress WHERE user_id = $1 AND video_id = $2
)
INSERT INTO video_progress (user_id, video_id, position_seconds, completed, started_at, completed_at, updated_at)
VALUES ($1, $2, $3, $4, now(), CASE WHEN $4::boolean THEN now() END, now())
ON CONFLICT (user_id, video_id) DO UPDATE SET
    position_seconds = EXCLUDED.position_seconds,
    completed = video_progress.completed OR EXCLUDED.completed,
    completed_at = COALESCE(video_progress.completed_at, EXCLUDED.completed_at),
    updated_at = now()
RETURNING position_seconds, completed, started_at, completed_at, updated_at,
    COALESCE((SELECT completed FROM prior), false)`

func (s *PostgresStore) Save(ctx context.Context, userID, videoID string, positionSeconds int, completed bool) (SaveResult, error) {
	res := SaveResult{Progress: Progress{UserID: userID, VideoID: videoID}}
	var wasCompleted bool
	err := s.db.QueryRow(ctx, saveProgressSQL, userID, videoID, positionSeconds, completed).Scan(
		&res.PositionSeconds, &res.Completed, &res.StartedAt, &res.CompletedAt, &res.UpdatedAt, &wasCompleted,
	)
	if err != nil {
		return SaveResult{}, fmt.Errorf("upsert video progress: %w", err)
	}
	res.NewlyCompleted = res.Completed && !wasCompleted
	return res, nil
}

func (s *PostgresStore) Load(ctx context.Context, userID, videoID string) (Progress, error) {
	p := Progress{UserID: userID, VideoID: videoID}
	err := s.db.QueryRow(ctx,
		`SELECT position_seconds, completed, started_at, completed_at, updated_at
		 FROM video_progress WHERE user_id = $1 AND video_id = $2`,
		userID, videoID,
	).Scan(&p.PositionSeconds, &p.Completed, &p.StartedAt, &p.CompletedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Progress{UserID: userID, VideoID: videoID}, nil
		}
		return Progress{}, fmt.Errorf("load video progress: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) CourseSummary(ctx context.Context, userID, courseID string) (Summary, error) {
	summary := Summary{CourseID: courseID}
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(v.id),
		        COUNT(vp.video_id) FILTER (WHERE vp.completed),
		        (SELECT vp2.video_id::text FROM video_progress vp2
		         JOIN videos v2 ON v2.id = vp2.video_id
		         JOIN course_modules m2 ON m2.id = v2.module_id
		         WHERE vp2.user_id = $1 AND m2.course_id = $2
		         ORDER BY vp2.updated_at DESC LIMIT 1)
		 FROM videos v
		 JOIN course_modules m ON m.id = v.module_id
		 LEFT JOIN video_progress vp ON vp.video_id = v.id AND vp.user_id = $1
		 WHERE m.course_id = $2`,
		userID, courseID,
	).Scan(&summary.TotalVideos, &summary.CompletedVideos, &summary.LastVideoID)
	if err != nil {
		return Summary{}, fmt.Errorf("course progress summary: %w", err)
	}
	return summary, nil
}
