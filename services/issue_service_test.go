package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"

	"udaay-be/models"
	"udaay-be/store"
	"udaay-be/validation"
)

func statusPtr(s models.IssueStatus) *models.IssueStatus { return &s }
func severityPtr(s models.Severity) *models.Severity  { return &s }

func TestIssueLifecycle(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	svc := newTestIssueService(m)
	issue := seedIssue(t, m, "citizen-1", models.StatusLive)
	id := issue.ID.Hex()

	updated, err := svc.UpdateByOfficer(ctx, id, "officer-1", OfficerUpdate{Status: statusPtr(models.StatusInProgress), Severity: severityPtr(models.SeverityCritical)})
	gt.NoError(t, err).Required()
	gt.Equal(t, updated.Status, models.StatusInProgress)
	gt.Equal(t, updated.Severity, models.SeverityCritical)

	updated, err = svc.UpdateByOfficer(ctx, id, "officer-1", OfficerUpdate{Status: statusPtr(models.StatusAwaitingVerification), Note: "patched"})
	gt.NoError(t, err).Required()
	gt.Equal(t, updated.Status, models.StatusAwaitingVerification)

	updated, err = svc.RejectResolution(ctx, id, "citizen-1", "still a hole")
	gt.NoError(t, err).Required()
	gt.Equal(t, updated.Status, models.StatusLive)
	gt.Equal(t, updated.ReopenCount, 1)
	gt.Equal(t, updated.ResolutionRejection, "still a hole")

	_, err = svc.UpdateByOfficer(ctx, id, "officer-1", OfficerUpdate{Status: statusPtr(models.StatusInProgress)})
	gt.NoError(t, err).Required()
	_, err = svc.UpdateByOfficer(ctx, id, "officer-1", OfficerUpdate{Status: statusPtr(models.StatusAwaitingVerification)})
	gt.NoError(t, err).Required()

	updated, err = svc.VerifyResolution(ctx, id, "citizen-1")
	gt.NoError(t, err).Required()
	gt.Equal(t, updated.Status, models.StatusResolved)
	gt.Equal(t, len(updated.History), 6)
	gt.Equal(t, updated.History[0].Actor, "officer-1")
	gt.Equal(t, updated.History[2].Note, "still a hole")

	kinds := map[models.NotificationKind]int{}
	list, err := m.ListNotifications(ctx, "citizen-1")
	gt.NoError(t, err).Required()
	for _, n := range list {
		kinds[n.Kind]++
	}
	gt.Equal(t, kinds[models.NotifyWorkStarted], 2)
	gt.Equal(t, kinds[models.NotifyAwaitingVerification], 2)
	gt.Equal(t, kinds[models.NotifyReopened], 1)
	gt.Equal(t, kinds[models.NotifyResolved], 1)

	t.Run("resolved cannot be moved back to live", func(t *testing.T) {
		_, err := svc.UpdateByOfficer(ctx, id, "officer-1", OfficerUpdate{Status: statusPtr(models.StatusLive)})
		gt.True(t, errors.Is(err, models.ErrInvalidTransition))
		var te *models.TransitionError
		gt.True(t, errors.As(err, &te))
		gt.Equal(t, te.Current, models.StatusResolved)

		stored, err := m.Get(ctx, issue.ID)
		gt.NoError(t, err).Required()
		gt.Equal(t, stored.Status, models.StatusResolved)
	})
}

func TestUpdateByOfficerInput(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	svc := newTestIssueService(m)
	issue := seedIssue(t, m, "citizen-1", models.StatusLive)

	t.Run("malformed id", func(t *testing.T) {
		_, err := svc.UpdateByOfficer(ctx, "not-an-id", "officer-1", OfficerUpdate{Severity: severityPtr(models.SeverityLow)})
		gt.True(t, errors.Is(err, models.ErrNotFound))
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := svc.UpdateByOfficer(ctx, issue.ID.Hex(), "officer-1", OfficerUpdate{Status: statusPtr("closed")})
		gt.True(t, errors.Is(err, models.ErrInvalidInput))
	})

	t.Run("unknown severity", func(t *testing.T) {
		_, err := svc.UpdateByOfficer(ctx, issue.ID.Hex(), "officer-1", OfficerUpdate{Severity: severityPtr("extreme")})
		gt.True(t, errors.Is(err, models.ErrInvalidInput))
	})

	t.Run("empty update", func(t *testing.T) {
		_, err := svc.UpdateByOfficer(ctx, issue.ID.Hex(), "officer-1", OfficerUpdate{})
		gt.True(t, errors.Is(err, models.ErrInvalidInput))
	})

	t.Run("severity only keeps status", func(t *testing.T) {
		updated, err := svc.UpdateByOfficer(ctx, issue.ID.Hex(), "officer-1", OfficerUpdate{Severity: severityPtr(models.SeverityHigh)})
		gt.NoError(t, err).Required()
		gt.Equal(t, updated.Status, models.StatusLive)
		gt.Equal(t, updated.Severity, models.SeverityHigh)
	})

	t.Run("officer cannot confirm resolution", func(t *testing.T) {
		_, err := svc.UpdateByOfficer(ctx, issue.ID.Hex(), "officer-1", OfficerUpdate{Status: statusPtr(models.StatusResolved)})
		gt.True(t, errors.Is(err, models.ErrInvalidTransition))
	})

	t.Run("missing issue", func(t *testing.T) {
		_, err := svc.UpdateByOfficer(ctx, "64b7f0c2a1b2c3d4e5f60718", "officer-1", OfficerUpdate{Severity: severityPtr(models.SeverityLow)})
		gt.True(t, errors.Is(err, models.ErrNotFound))
	})
}

func TestReporterOnlyActions(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	svc := newTestIssueService(m)
	issue := seedIssue(t, m, "citizen-1", models.StatusAwaitingVerification)

	_, err := svc.VerifyResolution(ctx, issue.ID.Hex(), "citizen-2")
	gt.True(t, errors.Is(err, models.ErrForbidden))

	_, err = svc.RejectResolution(ctx, issue.ID.Hex(), "citizen-2", "")
	gt.True(t, errors.Is(err, models.ErrForbidden))

	err = svc.Delete(ctx, issue.ID.Hex(), "citizen-2")
	gt.True(t, errors.Is(err, models.ErrForbidden))

	t.Run("verify outside awaiting-verification", func(t *testing.T) {
		live := seedIssue(t, m, "citizen-1", models.StatusLive)
		_, err := svc.VerifyResolution(ctx, live.ID.Hex(), "citizen-1")
		gt.True(t, errors.Is(err, models.ErrInvalidTransition))
	})

	t.Run("reject without reason", func(t *testing.T) {
		updated, err := svc.RejectResolution(ctx, issue.ID.Hex(), "citizen-1", "  ")
		gt.NoError(t, err).Required()
		gt.Equal(t, updated.Status, models.StatusLive)
		gt.Equal(t, updated.ResolutionRejection, "")
	})

	t.Run("owner delete", func(t *testing.T) {
		gt.NoError(t, svc.Delete(ctx, issue.ID.Hex(), "citizen-1")).Required()
		_, err := svc.Get(ctx, issue.ID.Hex())
		gt.True(t, errors.Is(err, models.ErrNotFound))

		err = svc.Delete(ctx, issue.ID.Hex(), "citizen-1")
		gt.True(t, errors.Is(err, models.ErrNotFound))
	})
}

func TestApplyValidation(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name     string
		res      validation.Result
		status   models.IssueStatus
		category models.IssueCategory
		kind     models.NotificationKind
	}{
		{
			name:     "passes above threshold and overrides category",
			res:      validation.Result{MatchesDescription: true, Confidence: 0.9, DetectedCategory: models.Water, Severity: models.SeverityHigh, ProviderUsed: models.ProviderVision},
			status:   models.StatusLive,
			category: models.Water,
			kind:     models.NotifyIssueLive,
		},
		{
			name:     "exactly at threshold is rejected",
			res:      validation.Result{MatchesDescription: true, Confidence: 0.6, DetectedCategory: models.Water, Severity: models.SeverityMedium, ProviderUsed: models.ProviderClassifier},
			status:   models.StatusRejected,
			category: models.Roads,
			kind:     models.NotifyIssueRejected,
		},
		{
			name:     "other does not override",
			res:      validation.Result{MatchesDescription: true, Confidence: 0.85, DetectedCategory: models.Other, Severity: models.SeverityLow, ProviderUsed: models.ProviderHeuristic},
			status:   models.StatusLive,
			category: models.Roads,
			kind:     models.NotifyIssueLive,
		},
		{
			name:     "no match",
			res:      validation.Result{MatchesDescription: false, Confidence: 0.95, Severity: models.SeverityLow, ProviderUsed: models.ProviderVision},
			status:   models.StatusRejected,
			category: models.Roads,
			kind:     models.NotifyIssueRejected,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := store.NewMemory()
			svc := newTestIssueService(m)
			issue := seedIssue(t, m, "citizen-1", models.StatusPending)

			updated, err := svc.ApplyValidation(ctx, issue, tc.res)
			gt.NoError(t, err).Required()
			gt.Equal(t, updated.Status, tc.status)
			gt.Equal(t, updated.Category, tc.category)
			gt.Equal(t, updated.Severity, tc.res.Severity)
			gt.True(t, updated.IsValidated())
			gt.Equal(t, updated.Validation.ProviderUsed, tc.res.ProviderUsed)
			gt.Equal(t, updated.Validation.Confidence, tc.res.Confidence)

			list, err := m.ListNotifications(ctx, "citizen-1")
			gt.NoError(t, err).Required()
			gt.Equal(t, len(list), 1)
			gt.Equal(t, list[0].Kind, tc.kind)
		})
	}

	t.Run("lost race surfaces as invalid transition", func(t *testing.T) {
		m := store.NewMemory()
		svc := newTestIssueService(m)
		issue := seedIssue(t, m, "citizen-1", models.StatusPending)
		stale := *issue

		_, err := svc.ApplyValidation(ctx, issue, validation.Result{MatchesDescription: true, Confidence: 0.9})
		gt.NoError(t, err).Required()

		_, err = svc.ApplyValidation(ctx, &stale, validation.Result{MatchesDescription: false, Confidence: 0.1})
		var te *models.TransitionError
		gt.True(t, errors.As(err, &te))
		gt.Equal(t, te.Current, models.StatusLive)
	})
}

func TestConcurrentUpvotes(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	svc := newTestIssueService(m)
	issue := seedIssue(t, m, "citizen-1", models.StatusLive)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Upvote(ctx, issue.ID.Hex())
			gt.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := svc.Get(ctx, issue.ID.Hex())
	gt.NoError(t, err).Required()
	gt.Equal(t, stored.Upvotes, int64(issue.Upvotes+2))

	_, err = svc.Upvote(ctx, "64b7f0c2a1b2c3d4e5f60718")
	gt.True(t, errors.Is(err, models.ErrNotFound))
}

func TestLiveAndReporterQueries(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	svc := newTestIssueService(m)
	seedIssue(t, m, "citizen-1", models.StatusLive)
	seedIssue(t, m, "citizen-1", models.StatusPending)
	seedIssue(t, m, "citizen-2", models.StatusLive)

	live, err := svc.LiveIssues(ctx, store.LiveQuery{})
	gt.NoError(t, err).Required()
	gt.Equal(t, len(live), 2)

	mine, err := svc.ReporterIssues(ctx, "citizen-1", "")
	gt.NoError(t, err).Required()
	gt.Equal(t, len(mine), 2)

	pending, err := svc.ReporterIssues(ctx, "citizen-1", models.StatusPending)
	gt.NoError(t, err).Required()
	gt.Equal(t, len(pending), 1)

	_, err = svc.ReporterIssues(ctx, "citizen-1", "archived")
	gt.True(t, errors.Is(err, models.ErrInvalidInput))

	_, err = svc.LiveIssues(ctx, store.LiveQuery{Near: &models.Coordinates{Lat: 120, Lng: 0}})
	gt.True(t, errors.Is(err, models.ErrInvalidInput))
}
