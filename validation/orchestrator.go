package validation

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rs/zerolog/log"

	"udaay-be/models"
)

// DefaultProviderTimeout bounds a single provider call.
const DefaultProviderTimeout = 30 * time.Second

// Orchestrator runs providers strictly in order and returns the first success.
type Orchestrator struct {
	providers []Provider
	timeout   time.Duration
}

func NewOrchestrator(timeout time.Duration, providers ...Provider) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return &Orchestrator{providers: providers, timeout: timeout}
}

// Providers returns the tier names in cascade order.
func (o *Orchestrator) Providers() []models.ProviderName {
	names := make([]models.ProviderName, 0, len(o.providers))
	for _, p := range o.providers {
		names = append(names, p.Name())
	}
	return names
}

// Validate returns models.ErrAllProvidersFailed when no tier produced an answer.
func (o *Orchestrator) Validate(ctx context.Context, sub Submission) (Result, error) {
	var lastErr error
	for _, p := range o.providers {
		res, err := o.try(ctx, p, sub)
		if err != nil {
			log.Warn().
				Err(err).
				Str("provider", string(p.Name())).
				Msg("Validation provider failed, falling through")
			lastErr = err
			continue
		}

		res.ProviderUsed = p.Name()
		res.Confidence = clamp(res.Confidence)
		if !res.Severity.IsValid() {
			res.Severity = models.DefaultSeverity
		}
		if !res.DetectedCategory.IsValid() {
			res.DetectedCategory = models.Other
		}

		log.Info().
			Str("provider", string(res.ProviderUsed)).
			Bool("matches", res.MatchesDescription).
			Float64("confidence", res.Confidence).
			Msg("Validation provider answered")
		return res, nil
	}

	opts := []goerr.Option{goerr.V("providers", len(o.providers))}
	if lastErr != nil {
		opts = append(opts, goerr.V("last_error", lastErr.Error()))
	}
	return Result{}, goerr.Wrap(models.ErrAllProvidersFailed, "validation cascade exhausted", opts...)
}

func (o *Orchestrator) try(ctx context.Context, p Provider, sub Submission) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return p.Validate(ctx, sub)
}
