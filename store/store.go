// Package store persists issues and notifications.
package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"udaay-be/models"
)

const (
	DefaultRadiusMeters = 10000
	MaxLiveResults      = 100
	MaxNotifications    = 50
)

// LiveQuery filters the public feed. Near is optional; without it results are newest first.
type LiveQuery struct {
	Near         *models.Coordinates
	RadiusMeters float64
	Category     models.IssueCategory
}

func (q LiveQuery) radius() float64 {
	if q.RadiusMeters <= 0 {
		return DefaultRadiusMeters
	}
	return q.RadiusMeters
}

// TransitionUpdate moves an issue from Expected to Change.To. The write only happens if
// the stored status still equals Expected.
type TransitionUpdate struct {
	ID       primitive.ObjectID
	Expected models.IssueStatus
	Change   models.StatusChange

	Severity            *models.Severity
	Category            *models.IssueCategory
	DetectedCategory    *models.IssueCategory
	Validation          *models.Validation
	ResolutionRejection *string
	Reopen              bool
}

// apply mutates issue in memory the same way the Mongo update does.
func (u TransitionUpdate) apply(issue *models.Issue) {
	issue.Status = u.Change.To
	issue.UpdatedAt = u.Change.At
	issue.History = append(issue.History, u.Change)
	if u.Severity != nil {
		issue.Severity = *u.Severity
	}
	if u.Category != nil {
		issue.Category = *u.Category
	}
	if u.DetectedCategory != nil {
		issue.DetectedCategory = *u.DetectedCategory
	}
	if u.Validation != nil {
		v := *u.Validation
		issue.Validation = &v
	}
	if u.ResolutionRejection != nil {
		issue.ResolutionRejection = *u.ResolutionRejection
	}
	if u.Reopen {
		issue.ReopenCount++
	}
}

// IssueStore is the persistence surface for issues.
type IssueStore interface {
	Create(ctx context.Context, issue *models.Issue) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	FindLive(ctx context.Context, q LiveQuery) ([]models.Issue, error)
	FindByReporter(ctx context.Context, reporterID string, status models.IssueStatus) ([]models.Issue, error)
	// Transition fails with *models.TransitionError when the stored status differs from
	// u.Expected, and with models.ErrNotFound when the issue does not exist.
	Transition(ctx context.Context, u TransitionUpdate) (*models.Issue, error)
	// MarkManualReview records a non-decisive validation on a still pending issue.
	MarkManualReview(ctx context.Context, id primitive.ObjectID, v models.Validation) (*models.Issue, error)
	UpdateSeverity(ctx context.Context, id primitive.ObjectID, severity models.Severity, at time.Time) (*models.Issue, error)
	IncrementUpvotes(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// NotificationStore keeps per-user notification inboxes.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id primitive.ObjectID, userID string) (*models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int64, error)
}
