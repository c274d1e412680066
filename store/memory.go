package store

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"udaay-be/models"
)

// Memory implements IssueStore and NotificationStore in process. It is used by tests
// and when no MongoDB URI is configured in development.
type Memory struct {
	mu            sync.RWMutex
	issues        map[primitive.ObjectID]*models.Issue
	notifications map[primitive.ObjectID]*models.Notification
}

func NewMemory() *Memory {
	return &Memory{
		issues:        make(map[primitive.ObjectID]*models.Issue),
		notifications: make(map[primitive.ObjectID]*models.Notification),
	}
}

// cloneIssue returns a copy so callers never share the stored record.
func cloneIssue(issue *models.Issue) *models.Issue {
	c := *issue
	if issue.Validation != nil {
		v := *issue.Validation
		c.Validation = &v
	}
	c.History = append([]models.StatusChange(nil), issue.History...)
	c.Location.Point.Coordinates = append([]float64(nil), issue.Location.Point.Coordinates...)
	return &c
}

func notFound(id primitive.ObjectID) error {
	return goerr.Wrap(models.ErrNotFound, "issue not found", goerr.V("id", id.Hex()))
}

func (m *Memory) Create(ctx context.Context, issue *models.Issue) error {
	if issue == nil {
		return goerr.New("issue is nil")
	}
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.issues[issue.ID]; exists {
		return goerr.New("duplicate issue id", goerr.V("id", issue.ID.Hex()))
	}
	m.issues[issue.ID] = cloneIssue(issue)
	return nil
}

func (m *Memory) Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	issue, ok := m.issues[id]
	if !ok {
		return nil, notFound(id)
	}
	return cloneIssue(issue), nil
}

const earthRadiusMeters = 6371000

// distanceMeters is the haversine distance between two coordinates.
func distanceMeters(a, b models.Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

func (m *Memory) FindLive(ctx context.Context, q LiveQuery) ([]models.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type candidate struct {
		issue    *models.Issue
		distance float64
	}
	var found []candidate
	for _, issue := range m.issues {
		if issue.Status != models.StatusLive {
			continue
		}
		if q.Category != "" && issue.Category != q.Category {
			continue
		}
		c := candidate{issue: issue}
		if q.Near != nil {
			c.distance = distanceMeters(*q.Near, models.Coordinates{Lat: issue.Location.Lat, Lng: issue.Location.Lng})
			if c.distance > q.radius() {
				continue
			}
		}
		found = append(found, c)
	}

	sort.Slice(found, func(i, j int) bool {
		if q.Near != nil {
			return found[i].distance < found[j].distance
		}
		return found[i].issue.CreatedAt.After(found[j].issue.CreatedAt)
	})

	if len(found) > MaxLiveResults {
		found = found[:MaxLiveResults]
	}
	issues := make([]models.Issue, 0, len(found))
	for _, c := range found {
		issue := cloneIssue(c.issue)
		issue.History = nil
		issues = append(issues, *issue)
	}
	return issues, nil
}

func (m *Memory) FindByReporter(ctx context.Context, reporterID string, status models.IssueStatus) ([]models.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	issues := []models.Issue{}
	for _, issue := range m.issues {
		if issue.ReporterID != reporterID {
			continue
		}
		if status != "" && issue.Status != status {
			continue
		}
		issues = append(issues, *cloneIssue(issue))
	}
	sort.Slice(issues, func(i, j int) bool {
		return issues[i].CreatedAt.After(issues[j].CreatedAt)
	})
	return issues, nil
}

func (m *Memory) Transition(ctx context.Context, u TransitionUpdate) (*models.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	issue, ok := m.issues[u.ID]
	if !ok {
		return nil, notFound(u.ID)
	}
	if issue.Status != u.Expected {
		return nil, &models.TransitionError{Current: issue.Status, Event: u.Change.Event}
	}
	u.apply(issue)
	return cloneIssue(issue), nil
}

func (m *Memory) MarkManualReview(ctx context.Context, id primitive.ObjectID, v models.Validation) (*models.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	issue, ok := m.issues[id]
	if !ok {
		return nil, notFound(id)
	}
	if issue.Status != models.StatusPending {
		return nil, &models.TransitionError{Current: issue.Status, Event: models.EventValidationFailed}
	}
	issue.Validation = &v
	issue.UpdatedAt = v.ValidatedAt
	return cloneIssue(issue), nil
}

func (m *Memory) UpdateSeverity(ctx context.Context, id primitive.ObjectID, severity models.Severity, at time.Time) (*models.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	issue, ok := m.issues[id]
	if !ok {
		return nil, notFound(id)
	}
	issue.Severity = severity
	issue.UpdatedAt = at
	return cloneIssue(issue), nil
}

func (m *Memory) IncrementUpvotes(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	issue, ok := m.issues[id]
	if !ok {
		return nil, notFound(id)
	}
	issue.Upvotes++
	return cloneIssue(issue), nil
}

func (m *Memory) Delete(ctx context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.issues[id]; !ok {
		return notFound(id)
	}
	delete(m.issues, id)
	for nid, n := range m.notifications {
		if n.IssueID == id {
			delete(m.notifications, nid)
		}
	}
	return nil
}

func (m *Memory) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *n
	m.notifications[n.ID] = &c
	return nil
}

func (m *Memory) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := []models.Notification{}
	for _, n := range m.notifications {
		if n.UserID == userID {
			list = append(list, *n)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if len(list) > MaxNotifications {
		list = list[:MaxNotifications]
	}
	return list, nil
}

func (m *Memory) MarkNotificationRead(ctx context.Context, id primitive.ObjectID, userID string) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notifications[id]
	if !ok || n.UserID != userID {
		return nil, goerr.Wrap(models.ErrNotFound, "notification not found", goerr.V("id", id.Hex()))
	}
	n.IsRead = true
	c := *n
	return &c, nil
}

func (m *Memory) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var modified int64
	for _, n := range m.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			modified++
		}
	}
	return modified, nil
}

func (m *Memory) CountUnreadNotifications(ctx context.Context, userID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, n := range m.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}
