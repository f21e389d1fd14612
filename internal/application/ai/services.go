package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	domai "github.com/bryanwahyu/pyq-analyzer/internal/domain/ai"
	"github.com/bryanwahyu/pyq-analyzer/internal/domain/questions"
	"github.com/bryanwahyu/pyq-analyzer/internal/infra/ai/prompt"
	"github.com/bryanwahyu/pyq-analyzer/internal/logging"
	"github.com/bryanwahyu/pyq-analyzer/internal/metrics"
)

// Enhancer cleans extracted text with a single completion call.
type Enhancer struct {
	client domai.Client
}

func NewEnhancer(client domai.Client) *Enhancer {
	return &Enhancer{client: client}
}

func (e *Enhancer) Enhance(ctx context.Context, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", domai.ErrEmptyText
	}
	out, err := e.client.Complete(ctx, prompt.EnhanceSystemPrompt(), prompt.EnhanceUserPrompt(raw))
	if err != nil {
		return "", fmt.Errorf("enhance: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("enhance: %w", domai.ErrEmptyResponse)
	}
	return out, nil
}

// LLMClassifier asks the model for a JSON array of classified questions.
type LLMClassifier struct {
	client   domai.Client
	subjects []string
}

func NewLLMClassifier(client domai.Client, subjects []string) *LLMClassifier {
	return &LLMClassifier{client: client, subjects: subjects}
}

func (c *LLMClassifier) Classify(ctx context.Context, text string) ([]questions.Candidate, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domai.ErrEmptyText
	}
	resp, err := c.client.Complete(ctx, prompt.AnalyzeSystemPrompt(c.subjects), prompt.AnalyzeUserPrompt(text))
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	cands, err := prompt.ParseCandidates(resp)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	return cands, nil
}

// FallbackClassifier runs Primary and switches to Fallback when Primary
// errors, answers with the wrong shape or finds nothing.
type FallbackClassifier struct {
	Primary  questions.Classifier
	Fallback questions.Classifier
	log      *zap.Logger
}

func NewFallbackClassifier(primary, fallback questions.Classifier, log *zap.Logger) *FallbackClassifier {
	return &FallbackClassifier{Primary: primary, Fallback: fallback, log: logging.OrNop(log)}
}

func (f *FallbackClassifier) Classify(ctx context.Context, text string) ([]questions.Candidate, error) {
	if f.Primary == nil {
		return f.Fallback.Classify(ctx, text)
	}

	cands, err := f.Primary.Classify(ctx, text)
	if err == nil && len(cands) > 0 {
		return cands, nil
	}
	// cancellation is not a classifier failure
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	reason := fallbackReason(err)
	metrics.ClassifierFallbacks.WithLabelValues(reason).Inc()
	f.log.Warn("primary classifier unusable, using local fallback",
		zap.String("reason", reason), zap.Error(err))

	return f.Fallback.Classify(ctx, text)
}

func fallbackReason(err error) string {
	switch {
	case err == nil:
		return "empty"
	case errors.Is(err, prompt.ErrShape):
		return "shape"
	case errors.Is(err, domai.ErrQuotaExceeded):
		return "quota"
	default:
		return "error"
	}
}
