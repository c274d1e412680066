package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationKind enum
type NotificationKind string

const (
	NotifyIssueLive            NotificationKind = "issue_live"
	NotifyIssueRejected        NotificationKind = "issue_rejected"
	NotifyWorkStarted          NotificationKind = "work_started"
	NotifyAwaitingVerification NotificationKind = "awaiting_verification"
	NotifyResolved             NotificationKind = "resolved"
	NotifyReopened             NotificationKind = "reopened"
	NotifyManualReview         NotificationKind = "manual_review"
)

// Message renders the user-facing text for an issue title.
func (k NotificationKind) Message(title string) string {
	switch k {
	case NotifyIssueLive:
		return fmt.Sprintf("Your issue %q passed validation and is now live.", title)
	case NotifyIssueRejected:
		return fmt.Sprintf("Your issue %q could not be verified as a civic issue.", title)
	case NotifyWorkStarted:
		return fmt.Sprintf("Work has started on %q.", title)
	case NotifyAwaitingVerification:
		return fmt.Sprintf("%q was marked resolved. Please confirm the fix.", title)
	case NotifyResolved:
		return fmt.Sprintf("%q is resolved. Thank you for reporting.", title)
	case NotifyReopened:
		return fmt.Sprintf("%q was reopened for further work.", title)
	case NotifyManualReview:
		return fmt.Sprintf("%q is waiting for manual review.", title)
	}
	return title
}

// Notification is an inbox entry for a user
type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"userId" json:"userId"`
	IssueID   primitive.ObjectID `bson:"issueId" json:"issueId"`
	Kind      NotificationKind   `bson:"kind" json:"kind"`
	Message   string             `bson:"message" json:"message"`
	IsRead    bool               `bson:"isRead" json:"isRead"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
