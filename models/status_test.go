package models_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/gt"

	"udaay-be/models"
)

func TestNextTransition(t *testing.T) {
	cases := []struct {
		from  models.IssueStatus
		event models.IssueEvent
		to    models.IssueStatus
	}{
		{models.StatusPending, models.EventValidationPassed, models.StatusLive},
		{models.StatusPending, models.EventValidationFailed, models.StatusRejected},
		{models.StatusLive, models.EventStartWork, models.StatusInProgress},
		{models.StatusInProgress, models.EventMarkResolved, models.StatusAwaitingVerification},
		{models.StatusAwaitingVerification, models.EventConfirmResolution, models.StatusResolved},
		{models.StatusAwaitingVerification, models.EventRejectResolution, models.StatusLive},
	}
	for _, tc := range cases {
		t.Run(string(tc.event), func(t *testing.T) {
			tr, err := models.NextTransition(tc.from, tc.event)
			gt.NoError(t, err)
			gt.Equal(t, tr.To, tc.to)
		})
	}
}

func TestNextTransitionRejectsUnknownEdges(t *testing.T) {
	t.Run("validation cannot fire twice", func(t *testing.T) {
		_, err := models.NextTransition(models.StatusLive, models.EventValidationPassed)
		gt.True(t, errors.Is(err, models.ErrInvalidTransition))
	})

	t.Run("terminal states have no exits", func(t *testing.T) {
		for _, s := range []models.IssueStatus{models.StatusRejected, models.StatusResolved} {
			gt.True(t, s.IsTerminal())
			for _, e := range []models.IssueEvent{
				models.EventValidationPassed, models.EventStartWork, models.EventMarkResolved,
				models.EventConfirmResolution, models.EventRejectResolution,
			} {
				_, err := models.NextTransition(s, e)
				gt.Error(t, err)
			}
		}
	})

	t.Run("error carries current status", func(t *testing.T) {
		_, err := models.NextTransition(models.StatusInProgress, models.EventConfirmResolution)
		var te *models.TransitionError
		gt.True(t, errors.As(err, &te))
		gt.Equal(t, te.Current, models.StatusInProgress)
	})
}

func TestOfficerEventFor(t *testing.T) {
	ev, err := models.OfficerEventFor(models.StatusLive, models.StatusInProgress)
	gt.NoError(t, err)
	gt.Equal(t, ev, models.EventStartWork)

	ev, err = models.OfficerEventFor(models.StatusInProgress, models.StatusAwaitingVerification)
	gt.NoError(t, err)
	gt.Equal(t, ev, models.EventMarkResolved)

	t.Run("resolved back to live is not an officer edge", func(t *testing.T) {
		_, err := models.OfficerEventFor(models.StatusResolved, models.StatusLive)
		gt.True(t, errors.Is(err, models.ErrInvalidTransition))
	})

	t.Run("officers cannot confirm on behalf of the reporter", func(t *testing.T) {
		_, err := models.OfficerEventFor(models.StatusAwaitingVerification, models.StatusResolved)
		gt.True(t, errors.Is(err, models.ErrInvalidTransition))
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := models.OfficerEventFor(models.StatusLive, "done")
		gt.True(t, errors.Is(err, models.ErrInvalidInput))
	})
}

func TestDecideValidation(t *testing.T) {
	gt.Equal(t, models.DecideValidation(true, 0.61), models.EventValidationPassed)
	gt.Equal(t, models.DecideValidation(true, 0.6), models.EventValidationFailed)
	gt.Equal(t, models.DecideValidation(false, 0.95), models.EventValidationFailed)
	gt.Equal(t, models.DecideValidation(true, 0.85), models.EventValidationPassed)
}

func TestParseCategory(t *testing.T) {
	c, ok := models.ParseCategory(" Roads ")
	gt.True(t, ok)
	gt.Equal(t, c, models.Roads)

	_, ok = models.ParseCategory("sanitation")
	gt.False(t, ok)
}

func TestNewLocationStoresLngLatPoint(t *testing.T) {
	loc := models.NewLocation(models.Coordinates{Lat: 12.9, Lng: 77.6})
	gt.Equal(t, loc.Point.Type, "Point")
	gt.Equal(t, loc.Point.Coordinates[0], 77.6)
	gt.Equal(t, loc.Point.Coordinates[1], 12.9)
}
