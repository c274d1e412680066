package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rs/zerolog/log"

	"udaay-be/models"
	authUtils "udaay-be/utils"
)

// DefaultClassifierIssuer is the issuer claim the classification backend accepts.
const DefaultClassifierIssuer = "civicfix-backend"

// ClassifierConfig configures the secondary classification backend.
type ClassifierConfig struct {
	BaseURL    string
	Secret     string
	Issuer     string
	TokenTTL   time.Duration
	Confidence ConfidenceTable
	Keywords   KeywordTable
	HTTPClient *http.Client
}

// ClassifierProvider posts the image to the internal classification service.
type ClassifierProvider struct {
	baseURL    string
	secret     string
	issuer     string
	tokenTTL   time.Duration
	confidence ConfidenceTable
	keywords   KeywordTable
	client     *http.Client
}

func NewClassifierProvider(cfg ClassifierConfig) *ClassifierProvider {
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultClassifierIssuer
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 5 * time.Minute
	}
	if cfg.Confidence == nil {
		cfg.Confidence = DefaultClassifierConfidence
	}
	if cfg.Keywords == nil {
		cfg.Keywords = DefaultCategoryKeywords
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &ClassifierProvider{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		secret:     cfg.Secret,
		issuer:     cfg.Issuer,
		tokenTTL:   cfg.TokenTTL,
		confidence: cfg.Confidence,
		keywords:   cfg.Keywords,
		client:     cfg.HTTPClient,
	}
}

func (p *ClassifierProvider) Name() models.ProviderName { return models.ProviderClassifier }

func (p *ClassifierProvider) Validate(ctx context.Context, sub Submission) (Result, error) {
	if p.baseURL == "" {
		return Result{}, goerr.Wrap(models.ErrProviderFailure, "classifier URL not configured")
	}
	if len(sub.Image) == 0 {
		return Result{}, goerr.Wrap(models.ErrProviderFailure, "no image bytes to classify")
	}

	token, err := authUtils.GenerateInternalToken(p.secret, p.issuer, p.tokenTTL)
	if err != nil {
		return Result{}, goerr.Wrap(models.ErrProviderFailure, "failed to mint internal token", goerr.V("cause", err.Error()))
	}

	body, contentType, err := imageForm(sub)
	if err != nil {
		return Result{}, goerr.Wrap(models.ErrProviderFailure, "failed to build form", goerr.V("cause", err.Error()))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/ai/verify", body)
	if err != nil {
		return Result{}, goerr.Wrap(models.ErrProviderFailure, "failed to create request", goerr.V("cause", err.Error()))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, goerr.Wrap(models.ErrProviderFailure, "classifier request failed", goerr.V("cause", err.Error()))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, goerr.Wrap(models.ErrProviderFailure, "failed to read classifier response", goerr.V("cause", err.Error()))
	}
	if resp.StatusCode != http.StatusOK {
		log.Error().
			Int("status_code", resp.StatusCode).
			Str("body", string(raw)).
			Msg("Classifier returned error")
		return Result{}, goerr.Wrap(models.ErrProviderFailure, "classifier returned non-200", goerr.V("status", resp.StatusCode))
	}

	var r reply
	if err := json.Unmarshal([]byte(stripCodeFence(string(raw))), &r); err != nil {
		return Result{}, goerr.Wrap(models.ErrProviderFailure, "classifier response is not JSON", goerr.V("body", string(raw)))
	}
	if strings.TrimSpace(r.Issue) == "" && strings.TrimSpace(r.Priority) == "" {
		return Result{}, goerr.Wrap(models.ErrProviderFailure, "classifier response is empty", goerr.V("body", string(raw)))
	}

	return p.mapReply(r), nil
}

func (p *ClassifierProvider) mapReply(r reply) Result {
	confidence := p.confidence.Lookup(r.Priority, 0.7)
	reason := r.ConfidenceReason
	if reason == "" {
		reason = "AI validation completed"
	}
	return Result{
		MatchesDescription: confidence > models.LiveConfidenceThreshold,
		Confidence:         confidence,
		DetectedCategory:   p.keywords.Match(r.Issue),
		Severity:           severityFromPriority(r.Priority),
		ResponseText:       reason,
	}
}

// imageForm encodes the image as the single multipart part "image".
func imageForm(sub Submission) (io.Reader, string, error) {
	mimeType := sub.MimeType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, imageFilename(mimeType)))
	header.Set("Content-Type", mimeType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(sub.Image); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func imageFilename(mimeType string) string {
	ext := strings.TrimPrefix(mimeType, "image/")
	if ext == "" || ext == mimeType {
		ext = "jpg"
	}
	return "issue." + ext
}
