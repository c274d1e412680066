package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueCategory enum
type IssueCategory string

const (
	Roads       IssueCategory = "roads"
	Garbage     IssueCategory = "garbage"
	Water       IssueCategory = "water"
	Electricity IssueCategory = "electricity"
	Other       IssueCategory = "other"
)

// Categories lists every accepted category in display order.
var Categories = []IssueCategory{Roads, Garbage, Water, Electricity, Other}

func (c IssueCategory) IsValid() bool {
	switch c {
	case Roads, Garbage, Water, Electricity, Other:
		return true
	}
	return false
}

// ParseCategory normalizes user input ("Roads", " water ") into a category.
func ParseCategory(s string) (IssueCategory, bool) {
	c := IssueCategory(strings.ToLower(strings.TrimSpace(s)))
	return c, c.IsValid()
}

// Severity enum
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// DefaultSeverity is used until validation or an officer says otherwise.
const DefaultSeverity = SeverityMedium

func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// ProviderName identifies which validation tier produced a result.
type ProviderName string

const (
	ProviderVision     ProviderName = "vision"
	ProviderClassifier ProviderName = "classifier"
	ProviderHeuristic  ProviderName = "heuristic"
	ProviderNone       ProviderName = "none"
)

// GeoPoint is the GeoJSON point backing the 2dsphere index. Coordinates are [lng, lat].
type GeoPoint struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
}

// Coordinates is a bare lat/lng pair as received from clients.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c Coordinates) IsValid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Location of an issue. Lat/Lng are always stored, address fields are best effort.
type Location struct {
	Lat     float64  `bson:"lat" json:"lat"`
	Lng     float64  `bson:"lng" json:"lng"`
	Address string   `bson:"address,omitempty" json:"address,omitempty"`
	City    string   `bson:"city,omitempty" json:"city,omitempty"`
	State   string   `bson:"state,omitempty" json:"state,omitempty"`
	Point   GeoPoint `bson:"point" json:"-"`
}

func NewLocation(c Coordinates) Location {
	return Location{
		Lat: c.Lat,
		Lng: c.Lng,
		Point: GeoPoint{
			Type:        "Point",
			Coordinates: []float64{c.Lng, c.Lat},
		},
	}
}

// Validation is the outcome recorded by the validation worker.
type Validation struct {
	Validated          bool         `bson:"validated" json:"validated"`
	Confidence         float64      `bson:"confidence" json:"confidence"`
	MatchesDescription bool         `bson:"matchesDescription" json:"matchesDescription"`
	ResponseText       string       `bson:"responseText" json:"responseText"`
	ProviderUsed       ProviderName `bson:"providerUsed" json:"providerUsed"`
	ValidatedAt        time.Time    `bson:"validatedAt" json:"validatedAt"`
}

// StatusChange is one entry of an issue's status history.
type StatusChange struct {
	From  IssueStatus `bson:"from" json:"from"`
	To    IssueStatus `bson:"to" json:"to"`
	Event IssueEvent  `bson:"event" json:"event"`
	Actor string      `bson:"actor" json:"actor"`
	Note  string      `bson:"note,omitempty" json:"note,omitempty"`
	At    time.Time   `bson:"at" json:"at"`
}

// Issue represents a civic issue reported by a citizen
type Issue struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ReporterID          string             `bson:"reporterId" json:"reporterId"`
	Title               string             `bson:"title" json:"title"`
	Description         string             `bson:"description" json:"description"`
	Category            IssueCategory      `bson:"category" json:"category"`
	DetectedCategory    IssueCategory      `bson:"detectedCategory,omitempty" json:"detectedCategory,omitempty"`
	ImageURL            string             `bson:"imageUrl" json:"imageUrl"`
	Location            Location           `bson:"location" json:"location"`
	Status              IssueStatus        `bson:"status" json:"status"`
	Severity            Severity           `bson:"severity" json:"severity"`
	Upvotes             int64              `bson:"upvotes" json:"upvotes"`
	Validation          *Validation        `bson:"validation,omitempty" json:"validation,omitempty"`
	ResolutionRejection string             `bson:"resolutionRejection,omitempty" json:"resolutionRejection,omitempty"`
	ReopenCount         int                `bson:"reopenCount" json:"reopenCount"`
	History             []StatusChange     `bson:"history,omitempty" json:"history,omitempty"`
	CreatedAt           time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// NewIssue builds a freshly submitted issue in the pending state.
func NewIssue(reporterID, title, description string, category IssueCategory, imageURL string, location Location, now time.Time) *Issue {
	return &Issue{
		ID:          primitive.NewObjectID(),
		ReporterID:  reporterID,
		Title:       title,
		Description: description,
		Category:    category,
		ImageURL:    imageURL,
		Location:    location,
		Status:      StatusPending,
		Severity:    DefaultSeverity,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsValidated reports whether a provider produced a decision for this issue.
func (i *Issue) IsValidated() bool {
	return i.Validation != nil && i.Validation.Validated
}
