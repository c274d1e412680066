package validation

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"udaay-be/models"
)

// InvalidLabel is the issue type the vision model uses for non-civic images.
const InvalidLabel = "INVALID"

const invalidConfidence = 0.2

const visionPrompt = `You are a civic issue verification AI for an urban reporting system.

Analyze the provided image and:
1. Identify if it shows a civic issue (Garbage, Pothole, Drainage, Streetlight, WaterLeak, etc.)
2. Classify the issue type
3. Assess the severity/priority
4. Determine if this appears to be a legitimate public issue

If the image does NOT show a clear civic issue or appears to be spam/invalid, respond with "INVALID".

RESPOND WITH STRICT JSON ONLY (no markdown, no text before/after):
{
  "issue": "Issue type or INVALID",
  "confidence_reason": "Brief explanation of what was detected",
  "priority": "High/Medium/Low"
}`

// contentGenerator is the slice of the genai client the provider needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// VisionConfig selects either the Gemini API (APIKey) or Vertex AI (Project/Location).
type VisionConfig struct {
	APIKey     string
	Project    string
	Location   string
	Model      string
	Confidence ConfidenceTable
	Keywords   KeywordTable
}

// VisionProvider asks a multimodal Gemini model to classify the image.
type VisionProvider struct {
	generator  contentGenerator
	model      string
	confidence ConfidenceTable
	keywords   KeywordTable
}

// NewVisionProvider builds the provider. Without credentials the provider is still
// returned, but every call fails so the cascade moves on.
func NewVisionProvider(ctx context.Context, cfg VisionConfig) (*VisionProvider, error) {
	p := newVisionProvider(nil, cfg)

	var clientConfig *genai.ClientConfig
	switch {
	case cfg.APIKey != "":
		clientConfig = &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	case cfg.Project != "":
		clientConfig = &genai.ClientConfig{Project: cfg.Project, Location: cfg.Location, Backend: genai.BackendVertexAI}
	default:
		log.Warn().Msg("Vision provider has no credentials, it will always fall through")
		return p, nil
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}
	p.generator = client.Models
	return p, nil
}

func newVisionProvider(generator contentGenerator, cfg VisionConfig) *VisionProvider {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Confidence == nil {
		cfg.Confidence = DefaultVisionConfidence
	}
	if cfg.Keywords == nil {
		cfg.Keywords = DefaultCategoryKeywords
	}
	return &VisionProvider{
		generator:  generator,
		model:      cfg.Model,
		confidence: cfg.Confidence,
		keywords:   cfg.Keywords,
	}
}

func (p *VisionProvider) Name() models.ProviderName { return models.ProviderVision }

func (p *VisionProvider) Validate(ctx context.Context, sub Submission) (Result, error) {
	if p.generator == nil {
		return Result{}, goerr.Wrap(models.ErrProviderFailure, "vision provider not configured")
	}
	if len(sub.Image) == 0 {
		return Result{}, goerr.Wrap(models.ErrProviderFailure, "no image bytes to analyze")
	}

	mimeType := sub.MimeType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(visionPrompt),
			genai.NewPartFromBytes(sub.Image, mimeType),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.2),
		MaxOutputTokens: 500,
	}

	resp, err := p.generator.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return Result{}, goerr.Wrap(models.ErrProviderFailure, "vision request failed", goerr.V("cause", err.Error()))
	}
	if resp == nil {
		return Result{}, goerr.Wrap(models.ErrProviderFailure, "empty vision response")
	}

	text := stripCodeFence(resp.Text())
	if text == "" {
		return Result{}, goerr.Wrap(models.ErrProviderFailure, "vision response has no text")
	}

	var r reply
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return Result{}, goerr.Wrap(models.ErrProviderFailure, "vision response is not JSON", goerr.V("text", text))
	}
	if strings.TrimSpace(r.Issue) == "" {
		return Result{}, goerr.Wrap(models.ErrProviderFailure, "vision response has no issue type", goerr.V("text", text))
	}

	return p.mapReply(r), nil
}

func (p *VisionProvider) mapReply(r reply) Result {
	reason := r.ConfidenceReason
	if reason == "" {
		reason = "Vision analysis completed"
	}

	if strings.EqualFold(strings.TrimSpace(r.Issue), InvalidLabel) {
		return Result{
			MatchesDescription: false,
			Confidence:         invalidConfidence,
			DetectedCategory:   models.Other,
			Severity:           models.SeverityLow,
			ResponseText:       reason,
		}
	}

	return Result{
		MatchesDescription: true,
		Confidence:         p.confidence.Lookup(r.Priority, p.confidence.Lookup("medium", 0.7)),
		DetectedCategory:   p.keywords.Match(r.Issue),
		Severity:           severityFromPriority(r.Priority),
		ResponseText:       reason,
	}
}
