package bootstrap

import (
	"context"
	"sync"

	"go.uber.org/zap"

	appai "github.com/bryanwahyu/pyq-analyzer/internal/application/ai"
	"github.com/bryanwahyu/pyq-analyzer/internal/config"
	"github.com/bryanwahyu/pyq-analyzer/internal/domain/questions"
	"github.com/bryanwahyu/pyq-analyzer/internal/infra/ai/openai"
	"github.com/bryanwahyu/pyq-analyzer/internal/infra/video"
)

// tenantClients builds model and video clients from keys tenants stored
// under settings/api-keys. Clients are cached per key so a key is dialed
// once, not once per run.
type tenantClients struct {
	cfg      *config.Config
	subjects []string
	local    questions.Classifier
	log      *zap.Logger

	mu     sync.Mutex
	llm    map[string]*openai.Client
	videos map[string]*video.YouTube
}

func newTenantClients(cfg *config.Config, subjects []string, local questions.Classifier, log *zap.Logger) *tenantClients {
	return &tenantClients{
		cfg:      cfg,
		subjects: subjects,
		local:    local,
		log:      log.Named("tenant-keys"),
		llm:      map[string]*openai.Client{},
		videos:   map[string]*video.YouTube{},
	}
}

func (t *tenantClients) client(key string) *openai.Client {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.llm[key]; ok {
		return c
	}
	c := openai.NewClient(openai.Options{
		APIKey:      key,
		BaseURL:     t.cfg.AI.BaseURL,
		Model:       t.cfg.AI.Model,
		MaxTokens:   t.cfg.AI.MaxTokens,
		Temperature: t.cfg.AI.Temperature,
		Timeout:     t.cfg.AI.Timeout,
	}, t.log)
	t.llm[key] = c
	return c
}

func (t *tenantClients) Enhancer(key string) questions.Enhancer {
	return appai.NewEnhancer(t.client(key).WithModel(t.cfg.AI.EnhanceModel))
}

// Classifier keeps the local heuristic behind the tenant's model.
func (t *tenantClients) Classifier(key string) questions.Classifier {
	return appai.NewFallbackClassifier(appai.NewLLMClassifier(t.client(key), t.subjects), t.local, t.log)
}

func (t *tenantClients) Videos(key string) questions.VideoSearcher {
	t.mu.Lock()
	defer t.mu.Unlock()
	if yt, ok := t.videos[key]; ok {
		return yt
	}
	yt, err := video.NewYouTube(context.Background(), video.Options{APIKey: key, Endpoint: t.cfg.Video.Endpoint}, t.log)
	if err != nil {
		t.log.Warn("tenant youtube key unusable", zap.Error(err))
		return nil
	}
	t.videos[key] = yt
	return yt
}
