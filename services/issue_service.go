package services

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"udaay-be/models"
	"udaay-be/store"
	"udaay-be/validation"
)

// IssueService drives issues through the workflow after submission.
type IssueService struct {
	issues   store.IssueStore
	notifier *Notifier
	now      func() time.Time
}

func NewIssueService(issues store.IssueStore, notifier *Notifier) *IssueService {
	return &IssueService{issues: issues, notifier: notifier, now: time.Now}
}

// ParseIssueID treats an id that is not a 24-char hex ObjectID as an unknown issue.
func ParseIssueID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, goerr.Wrap(models.ErrNotFound, "Issue not found", goerr.V("id", id))
	}
	return oid, nil
}

func (s *IssueService) Get(ctx context.Context, id string) (*models.Issue, error) {
	oid, err := ParseIssueID(id)
	if err != nil {
		return nil, err
	}
	return s.issues.Get(ctx, oid)
}

func (s *IssueService) LiveIssues(ctx context.Context, q store.LiveQuery) ([]models.Issue, error) {
	if q.Near != nil && !q.Near.IsValid() {
		return nil, goerr.Wrap(models.ErrInvalidInput, "coordinates out of range",
			goerr.V("lat", q.Near.Lat), goerr.V("lng", q.Near.Lng))
	}
	if q.Category != "" && !q.Category.IsValid() {
		return nil, goerr.Wrap(models.ErrInvalidInput, "Invalid category", goerr.V("category", q.Category))
	}
	return s.issues.FindLive(ctx, q)
}

func (s *IssueService) ReporterIssues(ctx context.Context, reporterID string, status models.IssueStatus) ([]models.Issue, error) {
	if status != "" && !status.IsValid() {
		return nil, goerr.Wrap(models.ErrInvalidInput, "Invalid status", goerr.V("status", status))
	}
	return s.issues.FindByReporter(ctx, reporterID, status)
}

func (s *IssueService) Upvote(ctx context.Context, id string) (*models.Issue, error) {
	oid, err := ParseIssueID(id)
	if err != nil {
		return nil, err
	}
	return s.issues.IncrementUpvotes(ctx, oid)
}

// OfficerUpdate is a PATCH from an officer. At least one field must be set.
type OfficerUpdate struct {
	Status   *models.IssueStatus
	Severity *models.Severity
	Note     string
}

func (s *IssueService) UpdateByOfficer(ctx context.Context, id, officerID string, upd OfficerUpdate) (*models.Issue, error) {
	oid, err := ParseIssueID(id)
	if err != nil {
		return nil, err
	}
	if upd.Status == nil && upd.Severity == nil {
		return nil, goerr.Wrap(models.ErrInvalidInput, "nothing to update")
	}
	if upd.Severity != nil && !upd.Severity.IsValid() {
		return nil, goerr.Wrap(models.ErrInvalidInput, "Invalid severity", goerr.V("severity", *upd.Severity))
	}

	issue, err := s.issues.Get(ctx, oid)
	if err != nil {
		return nil, err
	}

	if upd.Status == nil {
		return s.issues.UpdateSeverity(ctx, oid, *upd.Severity, s.now())
	}

	event, err := models.OfficerEventFor(issue.Status, *upd.Status)
	if err != nil {
		return nil, err
	}
	return s.fire(ctx, issue, event, officerID, func(u *store.TransitionUpdate) {
		u.Change.Note = upd.Note
		u.Severity = upd.Severity
	})
}

func (s *IssueService) VerifyResolution(ctx context.Context, id, reporterID string) (*models.Issue, error) {
	issue, err := s.reporterIssue(ctx, id, reporterID)
	if err != nil {
		return nil, err
	}
	return s.fire(ctx, issue, models.EventConfirmResolution, reporterID, nil)
}

func (s *IssueService) RejectResolution(ctx context.Context, id, reporterID, reason string) (*models.Issue, error) {
	issue, err := s.reporterIssue(ctx, id, reporterID)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	return s.fire(ctx, issue, models.EventRejectResolution, reporterID, func(u *store.TransitionUpdate) {
		u.Change.Note = reason
		if reason != "" {
			u.ResolutionRejection = &reason
		}
	})
}

func (s *IssueService) Delete(ctx context.Context, id, requesterID string) error {
	issue, err := s.reporterIssue(ctx, id, requesterID)
	if err != nil {
		return err
	}
	if err := s.issues.Delete(ctx, issue.ID); err != nil {
		return err
	}
	log.Info().Str("issue_id", issue.ID.Hex()).Str("user_id", requesterID).Msg("Issue deleted")
	return nil
}

// ApplyValidation records a provider result on a pending issue and publishes or
// rejects it.
func (s *IssueService) ApplyValidation(ctx context.Context, issue *models.Issue, res validation.Result) (*models.Issue, error) {
	event := models.DecideValidation(res.MatchesDescription, res.Confidence)
	v := models.Validation{
		Validated:          true,
		Confidence:         res.Confidence,
		MatchesDescription: res.MatchesDescription,
		ResponseText:       res.ResponseText,
		ProviderUsed:       res.ProviderUsed,
		ValidatedAt:        s.now(),
	}

	return s.fire(ctx, issue, event, string(models.ActorSystem), func(u *store.TransitionUpdate) {
		u.Validation = &v
		u.Change.Note = res.ResponseText
		if res.Severity.IsValid() {
			severity := res.Severity
			u.Severity = &severity
		}
		if res.DetectedCategory.IsValid() {
			detected := res.DetectedCategory
			u.DetectedCategory = &detected
			if event == models.EventValidationPassed && detected != models.Other && detected != issue.Category {
				u.Category = &detected
			}
		}
	})
}

// reporterIssue loads the issue and checks that requester reported it.
func (s *IssueService) reporterIssue(ctx context.Context, id, requester string) (*models.Issue, error) {
	oid, err := ParseIssueID(id)
	if err != nil {
		return nil, err
	}
	issue, err := s.issues.Get(ctx, oid)
	if err != nil {
		return nil, err
	}
	if requester == "" || issue.ReporterID != requester {
		return nil, goerr.Wrap(models.ErrForbidden, "only the reporter may do this",
			goerr.V("issue_id", issue.ID.Hex()), goerr.V("user_id", requester))
	}
	return issue, nil
}

// fire applies event to issue with a write conditional on its current status, then
// notifies the reporter.
func (s *IssueService) fire(ctx context.Context, issue *models.Issue, event models.IssueEvent, actorID string, mutate func(*store.TransitionUpdate)) (*models.Issue, error) {
	tr, err := models.NextTransition(issue.Status, event)
	if err != nil {
		return nil, err
	}

	u := store.TransitionUpdate{
		ID:       issue.ID,
		Expected: tr.From,
		Change: models.StatusChange{
			From:  tr.From,
			To:    tr.To,
			Event: event,
			Actor: actorID,
			At:    s.now(),
		},
		Reopen: tr.Reopens,
	}
	if mutate != nil {
		mutate(&u)
	}

	updated, err := s.issues.Transition(ctx, u)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("issue_id", updated.ID.Hex()).
		Str("from", string(tr.From)).
		Str("to", string(tr.To)).
		Str("event", string(event)).
		Msg("Issue status changed")

	s.notifier.NotifyIssue(ctx, updated, tr.Notify)
	return updated, nil
}
