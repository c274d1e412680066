package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"udaay-be/models"
)

// MaxImageBytes is the largest accepted upload.
const MaxImageBytes = 10 << 20

var allowedImageTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// ImageStore keeps uploaded issue photos and returns a URL for them.
type ImageStore interface {
	UploadImage(ctx context.Context, data []byte, contentType string) (string, error)
}

// CheckImage enforces the size limit and the allowed types. An empty or generic
// contentType is replaced by the sniffed one.
func CheckImage(data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", goerr.Wrap(models.ErrInvalidInput, "Image is required")
	}
	if len(data) > MaxImageBytes {
		return "", goerr.Wrap(models.ErrInvalidInput, "Image exceeds 10MB limit", goerr.V("size", len(data)))
	}

	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(data).String()
	}
	if _, ok := allowedImageTypes[contentType]; !ok {
		return "", goerr.Wrap(models.ErrInvalidInput, "Only image files are allowed", goerr.V("content_type", contentType))
	}
	return contentType, nil
}

// DataURI inlines an image as data:<mime>;base64,...
func DataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// ParseDataURI decodes a base64 data URI.
func ParseDataURI(s string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, "", goerr.Wrap(models.ErrInvalidInput, "not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", goerr.Wrap(models.ErrInvalidInput, "malformed data URI")
	}
	contentType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, "", goerr.Wrap(models.ErrInvalidInput, "data URI must be base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", goerr.Wrap(models.ErrInvalidInput, "invalid base64 image data")
	}
	return data, contentType, nil
}

var errBlockedImageHost = goerr.New("image host is not a public address")

// cgnatRange is the shared address space of RFC 6598, which net.IP does not flag as private.
var cgnatRange = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// NewImageFetchClient returns the client used for citizen supplied image URLs. It
// only connects to public addresses, checked after DNS resolution and on every redirect.
func NewImageFetchClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: refuseNonPublicAddress,
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               nil,
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func refuseNonPublicAddress(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return goerr.Wrap(errBlockedImageHost, "malformed dial address", goerr.V("address", address))
	}
	if ip := net.ParseIP(host); ip == nil || !isPublicIP(ip) {
		return goerr.Wrap(errBlockedImageHost, "refusing to fetch image", goerr.V("address", address))
	}
	return nil
}

func isPublicIP(ip net.IP) bool {
	switch {
	case ip.IsLoopback(), ip.IsPrivate(), ip.IsUnspecified(),
		ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(), ip.IsMulticast():
		return false
	}
	return !cgnatRange.Contains(ip)
}

// FetchImage downloads a hosted image for validation.
func FetchImage(ctx context.Context, client *http.Client, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", goerr.Wrap(err, "failed to create image request", goerr.V("url", url))
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", goerr.Wrap(err, "failed to fetch image", goerr.V("url", url))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", goerr.New("image host returned non-200", goerr.V("url", url), goerr.V("status", resp.StatusCode))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return nil, "", goerr.Wrap(err, "failed to read image", goerr.V("url", url))
	}
	contentType, err := CheckImage(data, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

// MinIOImageStore uploads issue photos to a MinIO or S3 compatible bucket.
type MinIOImageStore struct {
	client         *minio.Client
	bucketName     string
	publicEndpoint string
	now            func() time.Time
}

type MinIOConfig struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

func NewMinIOImageStore(ctx context.Context, cfg MinIOConfig) (*MinIOImageStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create MinIO client", goerr.V("endpoint", cfg.Endpoint))
	}

	publicEndpoint := strings.TrimSuffix(strings.TrimSpace(cfg.PublicEndpoint), "/")
	if publicEndpoint == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicEndpoint = scheme + "://" + cfg.Endpoint
	}

	s := &MinIOImageStore{
		client:         client,
		bucketName:     cfg.Bucket,
		publicEndpoint: publicEndpoint,
		now:            time.Now,
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		log.Warn().Err(err).Str("bucket", cfg.Bucket).Msg("Failed to check bucket existence (will continue)")
	} else if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			log.Error().Err(err).Str("bucket", cfg.Bucket).Msg("Failed to create bucket")
		} else {
			policy := fmt.Sprintf(`{"Version": "2012-10-17","Statement": [{"Action": ["s3:GetObject"],"Effect": "Allow","Principal": {"AWS": ["*"]},"Resource": ["arn:aws:s3:::%s/*"],"Sid": ""}]}`, cfg.Bucket)
			if err := client.SetBucketPolicy(ctx, cfg.Bucket, policy); err != nil {
				log.Error().Err(err).Msg("Failed to set bucket policy")
			}
		}
	}

	log.Info().
		Str("endpoint", cfg.Endpoint).
		Str("public_endpoint", publicEndpoint).
		Str("bucket", cfg.Bucket).
		Msg("MinIO image store initialized")
	return s, nil
}

func (s *MinIOImageStore) UploadImage(ctx context.Context, data []byte, contentType string) (string, error) {
	key := s.objectKey(contentType)
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", goerr.Wrap(models.ErrStorageFailure, "failed to upload image",
			goerr.V("key", key), goerr.V("cause", err.Error()))
	}

	url := s.ImageURL(key)
	log.Info().Str("key", key).Str("url", url).Msg("Image uploaded")
	return url, nil
}

func (s *MinIOImageStore) objectKey(contentType string) string {
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		ext = "bin"
	}
	return fmt.Sprintf("issues/%s/%s.%s", s.now().Format("2006-01-02"), uuid.NewString(), ext)
}

func (s *MinIOImageStore) ImageURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicEndpoint, s.bucketName, key)
}

func (s *MinIOImageStore) HealthCheck(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return goerr.Wrap(err, "MinIO health check failed")
	}
	if !exists {
		return goerr.New("bucket does not exist", goerr.V("bucket", s.bucketName))
	}
	return nil
}
