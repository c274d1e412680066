package services

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog/log"

	"udaay-be/models"
)

// ValidationJob is everything the worker needs to validate one submitted issue.
type ValidationJob struct {
	IssueID     string               `json:"issueId"`
	Image       []byte               `json:"image,omitempty"`
	MimeType    string               `json:"mimeType,omitempty"`
	ImageURL    string               `json:"imageUrl,omitempty"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Category    models.IssueCategory `json:"category"`
}

// JobHandler processes one job.
type JobHandler func(ctx context.Context, job ValidationJob) error

// ValidationQueue hands jobs off the request path.
type ValidationQueue interface {
	Enqueue(ctx context.Context, job ValidationJob) error
}

// InProcessQueue runs every job on its own goroutine with a background context.
type InProcessQueue struct {
	handler JobHandler
	wg      sync.WaitGroup
}

func NewInProcessQueue(handler JobHandler) *InProcessQueue {
	return &InProcessQueue{handler: handler}
}

func (q *InProcessQueue) Enqueue(ctx context.Context, job ValidationJob) error {
	// The job outlives the request that submitted it.
	jobCtx := context.WithoutCancel(ctx)

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("recover", r).
					Str("stack", string(debug.Stack())).
					Str("issue_id", job.IssueID).
					Msg("Panic in validation job")
			}
		}()

		if err := q.handler(jobCtx, job); err != nil {
			log.Error().Err(err).Str("issue_id", job.IssueID).Msg("Validation job failed")
		}
	}()
	return nil
}

// Wait blocks until every enqueued job has finished.
func (q *InProcessQueue) Wait() {
	q.wg.Wait()
}
