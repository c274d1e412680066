package services

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rs/zerolog/log"

	"udaay-be/models"
	"udaay-be/store"
)

// SubmitRequest is a citizen report as received from the HTTP layer. Exactly one of
// Image or ImageURL carries the photo; ImageURL may be a data URI.
type SubmitRequest struct {
	ReporterID  string
	Title       string
	Description string
	Category    string
	Location    string
	Image       []byte
	MimeType    string
	ImageURL    string
}

// SubmissionService accepts reports and hands them to the validation queue.
type SubmissionService struct {
	issues   store.IssueStore
	images   ImageStore
	geocoder Geocoder
	queue    ValidationQueue
	now      func() time.Time
}

// NewSubmissionService wires the service. images and geocoder may be nil.
func NewSubmissionService(issues store.IssueStore, images ImageStore, geocoder Geocoder, queue ValidationQueue) *SubmissionService {
	return &SubmissionService{
		issues:   issues,
		images:   images,
		geocoder: geocoder,
		queue:    queue,
		now:      time.Now,
	}
}

// ParseLocation decodes the {"lat":..,"lng":..} form field.
func ParseLocation(raw string) (models.Coordinates, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.Coordinates{}, goerr.Wrap(models.ErrInvalidInput, "Location is required")
	}
	var c struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return models.Coordinates{}, goerr.Wrap(models.ErrInvalidInput, "Invalid location format")
	}
	if c.Lat == nil || c.Lng == nil {
		return models.Coordinates{}, goerr.Wrap(models.ErrInvalidInput, "Location must include lat and lng")
	}
	coords := models.Coordinates{Lat: *c.Lat, Lng: *c.Lng}
	if !coords.IsValid() {
		return models.Coordinates{}, goerr.Wrap(models.ErrInvalidInput, "Location out of range",
			goerr.V("lat", coords.Lat), goerr.V("lng", coords.Lng))
	}
	return coords, nil
}

// Submit persists a pending issue and enqueues its validation. It returns as soon as
// the issue is stored.
func (s *SubmissionService) Submit(ctx context.Context, req SubmitRequest) (*models.Issue, error) {
	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	if title == "" || description == "" {
		return nil, goerr.Wrap(models.ErrInvalidInput, "Title and description are required")
	}
	category, ok := models.ParseCategory(req.Category)
	if !ok {
		return nil, goerr.Wrap(models.ErrInvalidInput, "Invalid category", goerr.V("category", req.Category))
	}
	coords, err := ParseLocation(req.Location)
	if err != nil {
		return nil, err
	}

	job := ValidationJob{Title: title, Description: description, Category: category}
	var imageURL string

	switch {
	case len(req.Image) > 0:
		mimeType, err := CheckImage(req.Image, req.MimeType)
		if err != nil {
			return nil, err
		}
		job.Image, job.MimeType = req.Image, mimeType
		imageURL = s.storeImage(ctx, req.Image, mimeType)

	case IsDataURI(req.ImageURL):
		data, declared, err := ParseDataURI(req.ImageURL)
		if err != nil {
			return nil, err
		}
		mimeType, err := CheckImage(data, declared)
		if err != nil {
			return nil, err
		}
		job.Image, job.MimeType = data, mimeType
		imageURL = s.storeImage(ctx, data, mimeType)

	case strings.TrimSpace(req.ImageURL) != "":
		u, err := url.Parse(strings.TrimSpace(req.ImageURL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, goerr.Wrap(models.ErrInvalidInput, "Invalid image URL")
		}
		imageURL = u.String()
		job.ImageURL = imageURL

	default:
		return nil, goerr.Wrap(models.ErrInvalidInput, "Image is required")
	}

	location := models.NewLocation(coords)
	if s.geocoder != nil {
		addr, err := s.geocoder.ReverseGeocode(ctx, coords)
		if err != nil {
			log.Warn().Err(err).Float64("lat", coords.Lat).Float64("lng", coords.Lng).Msg("Reverse geocoding failed")
		} else {
			location.Address, location.City, location.State = addr.Formatted, addr.City, addr.State
		}
	}

	issue := models.NewIssue(req.ReporterID, title, description, category, imageURL, location, s.now())
	if err := s.issues.Create(ctx, issue); err != nil {
		return nil, goerr.Wrap(err, "failed to create issue")
	}

	log.Info().
		Str("issue_id", issue.ID.Hex()).
		Str("reporter_id", issue.ReporterID).
		Str("category", string(category)).
		Msg("Issue submitted")

	job.IssueID = issue.ID.Hex()
	if err := s.queue.Enqueue(ctx, job); err != nil {
		log.Error().Err(err).Str("issue_id", job.IssueID).Msg("Failed to enqueue validation, issue stays pending")
	}
	return issue, nil
}

// storeImage uploads the photo, falling back to an inline data URI.
func (s *SubmissionService) storeImage(ctx context.Context, data []byte, mimeType string) string {
	if s.images == nil {
		return DataURI(mimeType, data)
	}
	u, err := s.images.UploadImage(ctx, data, mimeType)
	if err != nil {
		log.Warn().Err(err).Msg("Image upload failed, storing inline")
		return DataURI(mimeType, data)
	}
	return u
}
