package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rs/zerolog/log"

	"udaay-be/models"
	"udaay-be/store"
	"udaay-be/validation"
)

// Validator classifies a submission. *validation.Orchestrator implements it.
type Validator interface {
	Validate(ctx context.Context, sub validation.Submission) (validation.Result, error)
}

const manualReviewNote = "Automatic validation unavailable; awaiting manual review."

// ValidationWorker consumes validation jobs.
type ValidationWorker struct {
	issues    store.IssueStore
	service   *IssueService
	validator Validator
	notifier  *Notifier
	fetcher   *http.Client
	now       func() time.Time
}

func NewValidationWorker(issues store.IssueStore, service *IssueService, validator Validator, notifier *Notifier) *ValidationWorker {
	return &ValidationWorker{
		issues:    issues,
		service:   service,
		validator: validator,
		notifier:  notifier,
		fetcher:   NewImageFetchClient(15 * time.Second),
		now:       time.Now,
	}
}

// Process validates one job. It is idempotent: an issue that already left pending or
// already carries a decision is skipped. A job whose cascade is exhausted records a
// manual review note and returns models.ErrAllProvidersFailed.
func (w *ValidationWorker) Process(ctx context.Context, job ValidationJob) error {
	id, err := ParseIssueID(job.IssueID)
	if err != nil {
		return err
	}

	issue, err := w.issues.Get(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		log.Warn().Str("issue_id", job.IssueID).Msg("Issue gone before validation, skipping")
		return nil
	}
	if err != nil {
		return goerr.Wrap(err, "failed to load issue for validation", goerr.V("issue_id", job.IssueID))
	}
	if issue.Status != models.StatusPending || issue.IsValidated() {
		log.Info().
			Str("issue_id", job.IssueID).
			Str("status", string(issue.Status)).
			Msg("Issue already validated, skipping")
		return nil
	}

	res, err := w.validator.Validate(ctx, w.submission(ctx, job))
	if errors.Is(err, models.ErrAllProvidersFailed) {
		w.markManualReview(ctx, issue)
		return err
	}
	if err != nil {
		return goerr.Wrap(err, "validation failed", goerr.V("issue_id", job.IssueID))
	}

	updated, err := w.service.ApplyValidation(ctx, issue, res)
	if errors.Is(err, models.ErrInvalidTransition) {
		log.Info().Str("issue_id", job.IssueID).Msg("Issue changed during validation, keeping stored state")
		return nil
	}
	if err != nil {
		return goerr.Wrap(err, "failed to apply validation", goerr.V("issue_id", job.IssueID))
	}

	log.Info().
		Str("issue_id", job.IssueID).
		Str("status", string(updated.Status)).
		Str("provider", string(res.ProviderUsed)).
		Float64("confidence", res.Confidence).
		Msg("Issue validated")
	return nil
}

func (w *ValidationWorker) submission(ctx context.Context, job ValidationJob) validation.Submission {
	sub := validation.Submission{
		Image:       job.Image,
		MimeType:    job.MimeType,
		Title:       job.Title,
		Description: job.Description,
		Category:    job.Category,
	}
	if len(sub.Image) == 0 && job.ImageURL != "" && !IsDataURI(job.ImageURL) {
		data, mimeType, err := FetchImage(ctx, w.fetcher, job.ImageURL)
		if err != nil {
			log.Warn().Err(err).Str("issue_id", job.IssueID).Msg("Could not fetch hosted image, validating without it")
		} else {
			sub.Image = data
			sub.MimeType = mimeType
		}
	}
	return sub
}

func (w *ValidationWorker) markManualReview(ctx context.Context, issue *models.Issue) {
	v := models.Validation{
		Validated:    false,
		ResponseText: manualReviewNote,
		ProviderUsed: models.ProviderNone,
		ValidatedAt:  w.now(),
	}
	updated, err := w.issues.MarkManualReview(ctx, issue.ID, v)
	if err != nil {
		log.Error().Err(err).Str("issue_id", issue.ID.Hex()).Msg("Failed to record manual review")
		return
	}
	w.notifier.NotifyIssue(ctx, updated, models.NotifyManualReview)
}
