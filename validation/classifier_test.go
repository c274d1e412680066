package validation

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"udaay-be/models"
)

type classifierCall struct {
	auth      string
	imageSize int
	mimeType  string
}

func newClassifierServer(t *testing.T, status int, body string) (*httptest.Server, *classifierCall) {
	t.Helper()
	call := &classifierCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ai/verify" {
			http.NotFound(w, r)
			return
		}
		call.auth = r.Header.Get("Authorization")
		if file, header, err := r.FormFile("image"); err == nil {
			data, _ := io.ReadAll(file)
			call.imageSize = len(data)
			call.mimeType = header.Header.Get("Content-Type")
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, call
}

func TestClassifierProviderValidate(t *testing.T) {
	ctx := context.Background()

	t.Run("posts image with internal token", func(t *testing.T) {
		srv, call := newClassifierServer(t, http.StatusOK, `{"issue":"Water leak","confidence_reason":"pipe burst","priority":"Medium"}`)
		p := NewClassifierProvider(ClassifierConfig{BaseURL: srv.URL + "/", Secret: "internal-secret"})

		res, err := p.Validate(ctx, sampleSubmission())
		gt.NoError(t, err).Required()
		gt.True(t, strings.HasPrefix(call.auth, "Bearer "))
		gt.Equal(t, call.imageSize, 512)
		gt.Equal(t, call.mimeType, "image/jpeg")

		gt.True(t, res.MatchesDescription)
		gt.Equal(t, res.Confidence, 0.75)
		gt.Equal(t, res.DetectedCategory, models.Water)
		gt.Equal(t, res.Severity, models.SeverityMedium)
		gt.Equal(t, res.ResponseText, "pipe burst")
	})

	t.Run("low priority does not clear the live threshold", func(t *testing.T) {
		srv, _ := newClassifierServer(t, http.StatusOK, `{"issue":"Trash","priority":"Low"}`)
		p := NewClassifierProvider(ClassifierConfig{BaseURL: srv.URL, Secret: "s"})

		res, err := p.Validate(ctx, sampleSubmission())
		gt.NoError(t, err).Required()
		gt.Equal(t, res.Confidence, 0.6)
		gt.False(t, res.MatchesDescription)
		gt.Equal(t, res.DetectedCategory, models.Garbage)
	})

	t.Run("unknown priority uses fallback", func(t *testing.T) {
		srv, _ := newClassifierServer(t, http.StatusOK, `{"issue":"Something","priority":"urgent"}`)
		p := NewClassifierProvider(ClassifierConfig{BaseURL: srv.URL, Secret: "s"})

		res, err := p.Validate(ctx, sampleSubmission())
		gt.NoError(t, err).Required()
		gt.Equal(t, res.Confidence, 0.7)
		gt.True(t, res.MatchesDescription)
		gt.Equal(t, res.DetectedCategory, models.Other)
		gt.Equal(t, res.ResponseText, "AI validation completed")
	})

	t.Run("failures", func(t *testing.T) {
		cases := []struct {
			name   string
			status int
			body   string
		}{
			{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
			{"unauthorized", http.StatusUnauthorized, `{"error":"bad token"}`},
			{"not json", http.StatusOK, `<html></html>`},
			{"empty reply", http.StatusOK, `{}`},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				srv, _ := newClassifierServer(t, tc.status, tc.body)
				p := NewClassifierProvider(ClassifierConfig{BaseURL: srv.URL, Secret: "s"})
				_, err := p.Validate(ctx, sampleSubmission())
				gt.True(t, errors.Is(err, models.ErrProviderFailure))
			})
		}
	})

	t.Run("not configured", func(t *testing.T) {
		p := NewClassifierProvider(ClassifierConfig{})
		_, err := p.Validate(ctx, sampleSubmission())
		gt.True(t, errors.Is(err, models.ErrProviderFailure))
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		t.Cleanup(srv.Close)

		p := NewClassifierProvider(ClassifierConfig{BaseURL: srv.URL, Secret: "s"})
		ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err := p.Validate(ctx, sampleSubmission())
		gt.True(t, errors.Is(err, models.ErrProviderFailure))
	})
}

func TestImageFilename(t *testing.T) {
	gt.Equal(t, imageFilename("image/png"), "issue.png")
	gt.Equal(t, imageFilename("application/octet-stream"), "issue.jpg")
}
