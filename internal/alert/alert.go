// Package alert announces courses first stored during a run so a downstream
// notifier can deliver them. Delivery itself happens elsewhere.
package alert

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/course-ingest/internal/course"
	"github.com/JakeFAU/course-ingest/internal/logging"
)

// Source is the read side of the course store the job needs.
type Source interface {
	CreatedSince(ctx context.Context, since time.Time) ([]course.Course, error)
}

// Item is the per-course part of the payload.
type Item struct {
	Institution string `json:"institution"`
	Title       string `json:"title"`
	Region      string `json:"region"`
	Link        string `json:"link,omitempty"`
	DDay        string `json:"d_day,omitempty"`
}

// Payload is the published message body.
type Payload struct {
	RunID   string    `json:"run_id"`
	Since   time.Time `json:"since"`
	Count   int       `json:"count"`
	Courses []Item    `json:"courses"`
}

// Result reports what Run did.
type Result struct {
	Count     int
	MessageID string
}

// Job publishes the new-course trigger.
type Job struct {
	source    Source
	publisher course.Publisher
	topic     string
	runID     string
	logger    *zap.Logger
}

// NewJob builds a Job publishing to topic.
func NewJob(source Source, publisher course.Publisher, topic, runID string, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{source: source, publisher: publisher, topic: topic, runID: runID, logger: logger.Named("alert")}
}

// Run publishes one message listing courses created at or after since. No
// message is sent when there are none.
func (j *Job) Run(ctx context.Context, since time.Time) (Result, error) {
	courses, err := j.source.CreatedSince(ctx, since)
	if err != nil {
		return Result{}, fmt.Errorf("load new courses: %w", err)
	}
	if len(courses) == 0 {
		j.logger.Info("no new courses", zap.Time("since", since))
		return Result{}, nil
	}

	payload := Payload{RunID: j.runID, Since: since.UTC(), Count: len(courses), Courses: make([]Item, 0, len(courses))}
	for _, c := range courses {
		payload.Courses = append(payload.Courses, Item{
			Institution: c.Institution,
			Title:       c.Title,
			Region:      c.Region,
			Link:        c.Link,
			DDay:        c.DDay(),
		})
	}
	id, err := j.publisher.Publish(ctx, j.topic, payload)
	if err != nil {
		j.logger.Error("new-course alert failed", zap.Int("count", len(courses)), logging.Err(err))
		return Result{Count: len(courses)}, fmt.Errorf("publish new courses: %w", err)
	}
	j.logger.Info("new-course alert published",
		zap.String("run_id", j.runID),
		zap.Int("count", len(courses)),
		zap.String("message_id", id),
	)
	return Result{Count: len(courses), MessageID: id}, nil
}
