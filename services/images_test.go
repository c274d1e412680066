package services

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"udaay-be/models"
)

func TestCheckImage(t *testing.T) {
	t.Run("declared type with parameters", func(t *testing.T) {
		ct, err := CheckImage(jpegBytes(10), "Image/JPEG; charset=binary")
		gt.NoError(t, err).Required()
		gt.Equal(t, ct, "image/jpeg")
	})

	t.Run("octet-stream is sniffed", func(t *testing.T) {
		ct, err := CheckImage(pngBytes(), "application/octet-stream")
		gt.NoError(t, err).Required()
		gt.Equal(t, ct, "image/png")
	})

	t.Run("text is rejected", func(t *testing.T) {
		_, err := CheckImage([]byte("just some plain text here"), "")
		gt.True(t, errors.Is(err, models.ErrInvalidInput))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := CheckImage(nil, "image/png")
		gt.True(t, errors.Is(err, models.ErrInvalidInput))
	})
}

func TestParseDataURI(t *testing.T) {
	data, ct, err := ParseDataURI(DataURI("image/gif", []byte("GIF89a")))
	gt.NoError(t, err).Required()
	gt.Equal(t, ct, "image/gif")
	gt.Equal(t, string(data), "GIF89a")

	for _, bad := range []string{
		"https://img.example/a.png",
		"data:image/png;base64",
		"data:image/png,rawbytes",
		"data:image/png;base64,!!!",
	} {
		_, _, err := ParseDataURI(bad)
		gt.True(t, errors.Is(err, models.ErrInvalidInput))
	}
}

func TestFetchImage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngBytes())
	})
	mux.HandleFunc("/page.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx := context.Background()

	data, ct, err := FetchImage(ctx, srv.Client(), srv.URL+"/ok.png")
	gt.NoError(t, err).Required()
	gt.Equal(t, ct, "image/png")
	gt.Equal(t, len(data), len(pngBytes()))

	_, _, err = FetchImage(ctx, srv.Client(), srv.URL+"/page.html")
	gt.Error(t, err)

	_, _, err = FetchImage(ctx, srv.Client(), srv.URL+"/missing.jpg")
	gt.Error(t, err)
}

func TestImageFetchClientRefusesNonPublicHosts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(pngBytes())
	}))
	t.Cleanup(srv.Close)

	_, _, err := FetchImage(context.Background(), NewImageFetchClient(time.Second), srv.URL+"/ok.png")
	gt.Error(t, err)
	gt.Equal(t, hits.Load(), int32(0))
}

func TestIsPublicIP(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1":       false,
		"::1":             false,
		"10.1.2.3":        false,
		"172.16.0.9":      false,
		"192.168.1.10":    false,
		"169.254.169.254": false,
		"100.64.0.1":      false,
		"0.0.0.0":         false,
		"fd00::1":         false,
		"::ffff:10.0.0.1": false,
		"8.8.8.8":         true,
		"142.250.72.14":   true,
		"2001:4860::8888": true,
	}
	for addr, public := range cases {
		t.Run(addr, func(t *testing.T) {
			gt.Equal(t, isPublicIP(net.ParseIP(addr)), public)
		})
	}
}
