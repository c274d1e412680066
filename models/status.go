package models

import (
	"fmt"

	"github.com/m-mizutani/goerr/v2"
)

// IssueStatus enum
type IssueStatus string

const (
	StatusPending              IssueStatus = "pending"
	StatusLive                 IssueStatus = "live"
	StatusRejected             IssueStatus = "rejected"
	StatusInProgress           IssueStatus = "in-progress"
	StatusAwaitingVerification IssueStatus = "awaiting-verification"
	StatusResolved             IssueStatus = "resolved"
)

func (s IssueStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusLive, StatusRejected, StatusInProgress, StatusAwaitingVerification, StatusResolved:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s IssueStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusResolved
}

// IssueEvent is something that moves an issue along the workflow.
type IssueEvent string

const (
	EventValidationPassed  IssueEvent = "validation-passed"
	EventValidationFailed  IssueEvent = "validation-failed"
	EventStartWork         IssueEvent = "start-work"
	EventMarkResolved      IssueEvent = "mark-resolved"
	EventConfirmResolution IssueEvent = "confirm-resolution"
	EventRejectResolution  IssueEvent = "reject-resolution"
)

// Actor is the party allowed to fire an event.
type Actor string

const (
	ActorSystem   Actor = "system"
	ActorOfficer  Actor = "officer"
	ActorReporter Actor = "reporter"
)

// Transition is one edge of the workflow together with its side effects.
type Transition struct {
	From    IssueStatus
	To      IssueStatus
	Event   IssueEvent
	Actor   Actor
	Notify  NotificationKind
	Reopens bool
}

var transitions = []Transition{
	{From: StatusPending, To: StatusLive, Event: EventValidationPassed, Actor: ActorSystem, Notify: NotifyIssueLive},
	{From: StatusPending, To: StatusRejected, Event: EventValidationFailed, Actor: ActorSystem, Notify: NotifyIssueRejected},
	{From: StatusLive, To: StatusInProgress, Event: EventStartWork, Actor: ActorOfficer, Notify: NotifyWorkStarted},
	{From: StatusInProgress, To: StatusAwaitingVerification, Event: EventMarkResolved, Actor: ActorOfficer, Notify: NotifyAwaitingVerification},
	{From: StatusAwaitingVerification, To: StatusResolved, Event: EventConfirmResolution, Actor: ActorReporter, Notify: NotifyResolved},
	{From: StatusAwaitingVerification, To: StatusLive, Event: EventRejectResolution, Actor: ActorReporter, Notify: NotifyReopened, Reopens: true},
}

// TransitionError is returned when an event does not apply to the current status.
type TransitionError struct {
	Current IssueStatus
	Event   IssueEvent
	Target  IssueStatus
}

func (e *TransitionError) Error() string {
	if e.Event == "" {
		return fmt.Sprintf("%s: cannot move from %q to %q", ErrInvalidTransition.Error(), e.Current, e.Target)
	}
	return fmt.Sprintf("%s: %q is not allowed while %q", ErrInvalidTransition.Error(), e.Event, e.Current)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// NextTransition looks up the edge fired by event from current.
func NextTransition(current IssueStatus, event IssueEvent) (Transition, error) {
	for _, t := range transitions {
		if t.From == current && t.Event == event {
			return t, nil
		}
	}
	return Transition{}, &TransitionError{Current: current, Event: event}
}

// OfficerEventFor maps a requested target status to the officer event that reaches it.
func OfficerEventFor(current, target IssueStatus) (IssueEvent, error) {
	if !target.IsValid() {
		return "", goerr.Wrap(ErrInvalidInput, "unknown status", goerr.V("status", target))
	}
	for _, t := range transitions {
		if t.Actor == ActorOfficer && t.From == current && t.To == target {
			return t.Event, nil
		}
	}
	return "", &TransitionError{Current: current, Target: target}
}

// LiveConfidenceThreshold is the exclusive lower bound for publishing an issue.
const LiveConfidenceThreshold = 0.6

// DecideValidation applies the publication rule to a validation outcome.
func DecideValidation(matchesDescription bool, confidence float64) IssueEvent {
	if matchesDescription && confidence > LiveConfidenceThreshold {
		return EventValidationPassed
	}
	return EventValidationFailed
}
