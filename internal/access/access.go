// Package access decides whether a user may watch or report progress on a
// video. A grant comes from an active subscription, an approved purchase of
// the video's course, or an active enrollment in it.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/starteducation/starteducation/internal/database"
	"github.com/starteducation/starteducation/internal/validate"
)

var ErrVideoNotFound = errors.New("video not found")

type Reason string

const (
	ReasonSubscription Reason = "subscription"
	ReasonPurchase     Reason = "purchase"
	ReasonEnrollment   Reason = "enrollment"
	ReasonNone         Reason = "none"
)

type Decision struct {
	VideoID   string
	CourseID  string
	Allowed   bool
	Reason    Reason
	Purchased bool
	Enrolled  bool
}

// NeedsEnrollmentRepair reports a purchase that has no active enrollment behind it.
func (d Decision) NeedsEnrollmentRepair() bool {
	return d.Allowed && d.Purchased && !d.Enrolled
}

type Gate struct {
	db database.DBTX
}

func NewGate(db database.DBTX) *Gate {
	return &Gate{db: db}
}

// Check never returns Allowed=true together with an error.
func (g *Gate) Check(ctx context.Context, userID, videoID string) (Decision, error) {
	d := Decision{VideoID: videoID, Reason: ReasonNone}
	if msg := validate.VideoID(videoID); msg != "" {
		return d, ErrVideoNotFound
	}

	err := g.db.QueryRow(ctx,
		`SELECT m.course_id FROM videos v
		 JOIN course_modules m ON m.id = v.module_id
		 WHERE v.id = $1`,
		videoID,
	).Scan(&d.CourseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return d, ErrVideoNotFound
		}
		return d, fmt.Errorf("resolve course for video: %w", err)
	}

	var subscribed bool
	if err := g.db.QueryRow(ctx,
		`SELECT EXISTS (
		    SELECT 1 FROM subscriptions
		    WHERE user_id = $1 AND status = 'active' AND expires_at > now()
		 )`,
		userID,
	).Scan(&subscribed); err != nil {
		return d, fmt.Errorf("check subscription: %w", err)
	}
	if subscribed {
		d.Allowed = true
		d.Reason = ReasonSubscription
		return d, nil
	}

	if err := g.db.QueryRow(ctx,
		`SELECT
		    EXISTS (SELECT 1 FROM purchases WHERE user_id = $1 AND course_id = $2 AND status = 'approved'),
		    EXISTS (SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2 AND status = 'active')`,
		userID, d.CourseID,
	).Scan(&d.Purchased, &d.Enrolled); err != nil {
		d.Purchased, d.Enrolled = false, false
		return d, fmt.Errorf("check purchase and enrollment: %w", err)
	}

	switch {
	case d.Purchased:
		d.Allowed = true
		d.Reason = ReasonPurchase
	case d.Enrolled:
		d.Allowed = true
		d.Reason = ReasonEnrollment
	}
	return d, nil
}

// ReconcileEnrollment creates or reactivates the enrollment for a purchased course.
func (g *Gate) ReconcileEnrollment(ctx context.Context, userID, courseID string) error {
	_, err := g.db.Exec(ctx,
		`INSERT INTO enrollments (user_id, course_id, status)
		 VALUES ($1, $2, 'active')
		 ON CONFLICT (user_id, course_id) DO UPDATE
		 SET status = 'active', updated_at = now()
		 WHERE enrollments.status <> 'active'`,
		userID, courseID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil
		}
		return fmt.Errorf("reconcile enrollment: %w", err)
	}
	return nil
}
