// Package services holds the issue workflow: submission, validation jobs, lifecycle
// transitions, geo queries and reporter notifications.
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
)

// Notifier writes inbox entries for reporters.
type Notifier struct {
	store store.NotificationStore
	now   func() time.Time
}

func NewNotifier(s store.NotificationStore) *Notifier {
	return &Notifier{store: s, now: time.Now}
}

func (n *Notifier) Notify(ctx context.Context, userID string, issueID primitive.ObjectID, kind models.NotificationKind, message string) error {
	if strings.TrimSpace(userID) == "" {
		return goerr.Wrap(models.ErrInvalidInput, "notification needs a user")
	}
	notification := &models.Notification{
		UserID:    userID,
		IssueID:   issueID,
		Kind:      kind,
		Message:   message,
		CreatedAt: n.now(),
	}
	if err := n.store.CreateNotification(ctx, notification); err != nil {
		return goerr.Wrap(err, "failed to create notification", goerr.V("user_id", userID), goerr.V("kind", kind))
	}
	return nil
}

// NotifyIssue tells the reporter of issue about kind. Failures are logged only; a lost
// notification never undoes a status change.
func (n *Notifier) NotifyIssue(ctx context.Context, issue *models.Issue, kind models.NotificationKind) {
	if n == nil || kind == "" || issue == nil {
		return
	}
	if err := n.Notify(ctx, issue.ReporterID, issue.ID, kind, kind.Message(issue.Title)); err != nil {
		log.Error().
			Err(err).
			Str("issue_id", issue.ID.Hex()).
			Str("kind", string(kind)).
			Msg("Failed to notify reporter")
	}
}

func (n *Notifier) List(ctx context.Context, userID string) ([]models.Notification, error) {
	list, err := n.store.ListNotifications(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list notifications", goerr.V("user_id", userID))
	}
	return list, nil
}

func (n *Notifier) MarkRead(ctx context.Context, userID, id string) (*models.Notification, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, goerr.Wrap(models.ErrNotFound, "Notification not found", goerr.V("id", id))
	}
	return n.store.MarkNotificationRead(ctx, oid, userID)
}

func (n *Notifier) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return n.store.MarkAllNotificationsRead(ctx, userID)
}

func (n *Notifier) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return n.store.CountUnreadNotifications(ctx, userID)
}
