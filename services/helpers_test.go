package services

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"udaay-be/models"
	"udaay-be/store"
)

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func jpegBytes(n int) []byte {
	b := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x11}, n)...)
	return b
}

func pngBytes() []byte {
	return append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 200)...)
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []ValidationJob
	err  error
}

func (q *recordingQueue) Enqueue(ctx context.Context, job ValidationJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return q.err
}

type fakeImageStore struct {
	err     error
	uploads int
}

func (f *fakeImageStore) UploadImage(ctx context.Context, data []byte, contentType string) (string, error) {
	f.uploads++
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.example/issues/photo.jpg", nil
}

type fakeGeocoder struct {
	addr Address
	err  error
}

func (f *fakeGeocoder) ReverseGeocode(ctx context.Context, c models.Coordinates) (Address, error) {
	return f.addr, f.err
}

func newTestIssueService(m *store.Memory) *IssueService {
	n := NewNotifier(m)
	n.now = fixedNow
	s := NewIssueService(m, n)
	s.now = fixedNow
	return s
}

// seedIssue stores an issue already moved to status.
func seedIssue(t *testing.T, m *store.Memory, reporter string, status models.IssueStatus) *models.Issue {
	t.Helper()
	issue := models.NewIssue(reporter, "Pothole on 5th", "large pothole causing traffic hazard", models.Roads,
		"https://cdn.example/p.jpg", models.NewLocation(models.Coordinates{Lat: 12.97, Lng: 77.59}), testNow)
	issue.Status = status
	gt.NoError(t, m.Create(context.Background(), issue)).Required()
	return issue
}

var errBoom = goerr.New("boom")
