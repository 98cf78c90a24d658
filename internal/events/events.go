// Package events publishes playback milestones to NATS JetStream so that
// certificate issuance and reporting can react without polling the database.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	SubjectVideoCompleted  = "progress.video_completed"
	SubjectCourseCompleted = "progress.course_completed"
	streamName             = "PROGRESS"
)

type Event struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type VideoCompleted struct {
	UserID      string    `json:"user_id"`
	VideoID     string    `json:"video_id"`
	CompletedAt time.Time `json:"completed_at"`
}

type CourseCompleted struct {
	UserID      string `json:"user_id"`
	CourseID    string `json:"course_id"`
	TotalVideos int    `json:"total_videos"`
}

func NewEvent(eventType string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	}, nil
}

type Publisher struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// New connects to NATS and ensures the PROGRESS stream exists.
// An empty natsURL yields a publisher that only logs.
func New(natsURL string) (*Publisher, error) {
	if natsURL == "" {
		slog.Warn("events: NATS_URL not set, completion events will not be published")
		return &Publisher{}, nil
	}

	nc, err := nats.Connect(natsURL,
		nats.Name("starteducation"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	if _, err := js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{"progress.>"},
		Storage:  nats.FileStorage,
	}); err != nil {
		slog.Warn("events: failed to create stream (may already exist)", "stream", streamName, "error", err)
	}

	slog.Info("events: NATS publisher ready", "stream", streamName)
	return &Publisher{nc: nc, js: js}, nil
}

func (p *Publisher) Publish(ctx context.Context, subject string, evt Event) error {
	if p.js == nil {
		slog.Debug("events: stub publish", "subject", subject, "event_id", evt.EventID)
		return nil
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ack, err := p.js.Publish(subject, data, nats.Context(ctx), nats.MsgId(evt.EventID))
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	slog.Debug("events: published", "subject", subject, "event_id", evt.EventID, "seq", ack.Sequence)
	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
