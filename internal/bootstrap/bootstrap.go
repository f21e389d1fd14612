// Package bootstrap builds the service graph from a Config. Both the API
// server and the CLI start from here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	appai "github.com/bryanwahyu/pyq-analyzer/internal/application/ai"
	appanalysis "github.com/bryanwahyu/pyq-analyzer/internal/application/analysis"
	applib "github.com/bryanwahyu/pyq-analyzer/internal/application/library"
	"github.com/bryanwahyu/pyq-analyzer/internal/config"
	"github.com/bryanwahyu/pyq-analyzer/internal/domain/kv"
	lib "github.com/bryanwahyu/pyq-analyzer/internal/domain/library"
	"github.com/bryanwahyu/pyq-analyzer/internal/infra/ai/heuristic"
	"github.com/bryanwahyu/pyq-analyzer/internal/infra/ai/openai"
	"github.com/bryanwahyu/pyq-analyzer/internal/infra/db/memory"
	mysqlp "github.com/bryanwahyu/pyq-analyzer/internal/infra/db/mysql"
	"github.com/bryanwahyu/pyq-analyzer/internal/infra/db/postgres"
	redisstore "github.com/bryanwahyu/pyq-analyzer/internal/infra/db/redis"
	"github.com/bryanwahyu/pyq-analyzer/internal/infra/db/sqlite"
	"github.com/bryanwahyu/pyq-analyzer/internal/infra/extract"
	"github.com/bryanwahyu/pyq-analyzer/internal/infra/extract/tesseract"
	"github.com/bryanwahyu/pyq-analyzer/internal/infra/proxy"
	"github.com/bryanwahyu/pyq-analyzer/internal/infra/storage"
	"github.com/bryanwahyu/pyq-analyzer/internal/infra/video"
	"github.com/bryanwahyu/pyq-analyzer/internal/logging"
	"github.com/bryanwahyu/pyq-analyzer/internal/middleware"
)

type App struct {
	Store    kv.Store
	Library  *applib.Service
	Analysis *appanalysis.Service
	Proxy    *proxy.Fetcher

	closers []io.Closer
}

// Close releases database connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	log = logging.OrNop(log)
	app := &App{}

	store, closer, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Store = store
	if closer != nil {
		app.closers = append(app.closers, closer)
	}
	log.Info("storage ready", zap.String("driver", cfg.Storage.Driver))

	app.Library = applib.NewService(store, nil, log)
	app.Library.RecentLimit = cfg.Pipeline.RecentLimit
	app.Library.ChatLimit = cfg.Pipeline.ChatLimit

	ocr, err := newOCR(ctx, cfg, log)
	if err != nil {
		app.Close()
		return nil, err
	}

	subjects, err := config.LoadSubjects(cfg.SubjectsFile)
	if err != nil {
		app.Close()
		return nil, err
	}
	local := heuristic.New(subjects)

	classifier := appai.NewFallbackClassifier(nil, local, log)
	var enhancer *appai.Enhancer
	if cfg.AIEnabled() {
		client := openai.NewClient(openai.Options{
			APIKey:      cfg.AI.APIKey,
			BaseURL:     cfg.AI.BaseURL,
			Model:       cfg.AI.Model,
			MaxTokens:   cfg.AI.MaxTokens,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
		}, log)
		classifier.Primary = appai.NewLLMClassifier(client, subjectNames(subjects))
		enhancer = appai.NewEnhancer(client.WithModel(cfg.AI.EnhanceModel))
		log.Info("llm enabled", zap.String("model", cfg.AI.Model), zap.String("enhance_model", cfg.AI.EnhanceModel))
	} else {
		log.Warn("no AI key configured, using the local classifier only")
	}

	svc := appanalysis.NewService(extract.NewRouter(ocr), classifier, log)
	if enhancer != nil {
		svc.Enhancer = enhancer
	}
	svc.Store = app.Library
	tenants := newTenantClients(cfg, subjectNames(subjects), local, log)
	svc.Tenants = &appanalysis.TenantProviders{
		Keys:       app.Library,
		LLMKey:     lib.ProviderOpenAI,
		VideoKey:   lib.ProviderYouTube,
		Enhancer:   tenants.Enhancer,
		Classifier: tenants.Classifier,
		Videos:     tenants.Videos,
	}
	svc.VideosPerQuestion = cfg.Video.MaxResults
	svc.TopicLimit = cfg.Pipeline.TopicLimit

	if cfg.VideoEnabled() {
		yt, err := video.NewYouTube(ctx, video.Options{APIKey: cfg.Video.APIKey, Endpoint: cfg.Video.Endpoint}, log)
		if err != nil {
			app.Close()
			return nil, err
		}
		svc.Videos = yt
	}

	if cfg.Minio.Enabled {
		archive, err := storage.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("minio init: %w", err)
		}
		svc.Archive = archive
	}
	app.Analysis = svc

	app.Proxy = proxy.NewFetcher(middleware.ValidateURL, log)
	app.Proxy.CheckIP = middleware.CheckIP
	app.Proxy.MaxBytes = cfg.MaxUploadBytes()

	return app, nil
}

// OpenStore picks the kv backend named by storage.driver.
func OpenStore(ctx context.Context, cfg *config.Config) (kv.Store, io.Closer, error) {
	table := cfg.Storage.Table
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return memory.New(), nil, nil
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.Storage.SQLitePath, table)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		return s, s, nil
	case config.DriverMySQL:
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("mysql connect: %w", err)
		}
		s, err := mysqlp.NewKVRepository(ctx, db, table)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return s, s, nil
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		s, err := postgres.NewKVRepository(ctx, db, table)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return s, s, nil
	case config.DriverRedis:
		s, err := redisstore.Connect(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("redis connect: %w", err)
		}
		return s, s, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver: %q", cfg.Storage.Driver)
}

func newOCR(ctx context.Context, cfg *config.Config, log *zap.Logger) (extract.Recognizer, error) {
	switch cfg.OCR.Engine {
	case config.OCRTesseract:
		return tesseract.New(strings.Split(cfg.OCR.Language, "+")...), nil
	case config.OCRVision:
		v, err := extract.NewVision(ctx, cfg.OCR.VisionAPIKey, cfg.OCR.VisionEndpoint, nil, log)
		if err != nil {
			return nil, fmt.Errorf("vision ocr: %w", err)
		}
		return v, nil
	}
	// OCRNone: images are rejected as unsupported
	return nil, nil
}

func subjectNames(subjects []config.Subject) []string {
	out := make([]string, 0, len(subjects))
	for _, s := range subjects {
		out = append(out, s.Name)
	}
	return out
}
