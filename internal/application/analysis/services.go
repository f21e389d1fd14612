// Package analysis drives a batch of uploads through extraction,
// enhancement, classification and video enrichment.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/pyq-analyzer/internal/application/topics"
	domain "github.com/bryanwahyu/pyq-analyzer/internal/domain/questions"
	"github.com/bryanwahyu/pyq-analyzer/internal/logging"
	"github.com/bryanwahyu/pyq-analyzer/internal/metrics"
)

const (
	defaultSubject    = "General"
	defaultVideos     = 2
	maxVideos         = 2
	enrichConcurrency = 4
)

// Service wires the pipeline ports. Enhancer, Videos, Store, Archive and
// Tenants are optional.
type Service struct {
	Extractor  domain.Extractor
	Enhancer   domain.Enhancer
	Classifier domain.Classifier
	Videos     domain.VideoSearcher
	Store      domain.ResultStore
	Archive    domain.SourceArchive
	// Tenants swaps in clients built from keys the tenant stored itself.
	Tenants *TenantProviders

	VideosPerQuestion int
	TopicLimit        int

	log *zap.Logger
}

// TenantProviders builds ports from tenant keys. A nil builder or an empty
// key keeps the configured port for that concern.
type TenantProviders struct {
	Keys       domain.KeySource
	LLMKey     string // provider name of the language model key
	VideoKey   string // provider name of the video search key
	Enhancer   func(key string) domain.Enhancer
	Classifier func(key string) domain.Classifier
	Videos     func(key string) domain.VideoSearcher
}

// ports are the clients one run uses.
type ports struct {
	enhancer   domain.Enhancer
	classifier domain.Classifier
	videos     domain.VideoSearcher
}

// portsFor resolves the tenant's keys once, at run start.
func (s *Service) portsFor(ctx context.Context, tenant string) ports {
	p := ports{enhancer: s.Enhancer, classifier: s.Classifier, videos: s.Videos}
	t := s.Tenants
	if t == nil || t.Keys == nil {
		return p
	}
	if key := strings.TrimSpace(t.Keys.APIKey(ctx, tenant, t.LLMKey)); key != "" {
		if t.Enhancer != nil {
			if e := t.Enhancer(key); e != nil {
				p.enhancer = e
			}
		}
		if t.Classifier != nil {
			if c := t.Classifier(key); c != nil {
				p.classifier = c
			}
		}
		s.log.Debug("using tenant llm key", zap.String("tenant", tenant))
	}
	if key := strings.TrimSpace(t.Keys.APIKey(ctx, tenant, t.VideoKey)); key != "" && t.Videos != nil {
		if v := t.Videos(key); v != nil {
			p.videos = v
			s.log.Debug("using tenant video key", zap.String("tenant", tenant))
		}
	}
	return p
}

func NewService(extractor domain.Extractor, classifier domain.Classifier, log *zap.Logger) *Service {
	return &Service{
		Extractor:         extractor,
		Classifier:        classifier,
		VideosPerQuestion: defaultVideos,
		TopicLimit:        topics.DefaultLimit,
		log:               logging.OrNop(log).Named("analysis"),
	}
}

// Start launches a run in the background. Files are processed strictly in
// order; see Run for the progress stream and pause control.
func (s *Service) Start(ctx context.Context, tenant, name string, files []domain.File) *Run {
	run := newRun(len(files))
	go func() {
		res, err := s.execute(ctx, run, tenant, name, files)
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.PipelineRuns.WithLabelValues(outcome).Inc()
		run.finish(res, err)
	}()
	return run
}

// Analyze runs synchronously, ignoring progress.
func (s *Service) Analyze(ctx context.Context, tenant, name string, files []domain.File) (*domain.AnalysisResult, error) {
	return s.Start(ctx, tenant, name, files).Wait()
}

type fileJob struct {
	index int
	total int
	file  domain.File
}

func (j fileJob) span() float64 { return 100 / float64(j.total) }

func (j fileJob) percent(stage domain.Stage) int {
	p := int(math.Round(float64(j.index)*j.span() + stage.Fraction()*j.span()))
	if p > 100 {
		p = 100
	}
	return p
}

func (j fileJob) label(text string) string {
	if j.total == 1 {
		return text
	}
	return fmt.Sprintf("%s (file %d of %d)", text, j.index+1, j.total)
}

func (s *Service) execute(ctx context.Context, run *Run, tenant, name string, files []domain.File) (*domain.AnalysisResult, error) {
	if len(files) == 0 {
		run.emit(domain.Progress{Stage: domain.StageError, Label: "No files selected"})
		return nil, domain.ErrNoQuestions
	}

	var (
		all   []domain.Question
		lists [][]domain.QuestionTopic
		use   = s.portsFor(ctx, tenant)
	)
	for i, f := range files {
		job := fileJob{index: i, total: len(files), file: f}
		qs, err := s.processFile(ctx, run, tenant, job, use)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				run.emit(domain.Progress{Percent: run.Last().Percent, Stage: domain.StageError, Label: "Cancelled",
					CurrentFileIndex: i, TotalFiles: job.total})
				return nil, ctxErr
			}
			if job.total == 1 {
				metrics.PipelineFiles.WithLabelValues("error").Inc()
				run.emit(domain.Progress{Percent: job.percent(domain.StageError), Stage: domain.StageError,
					Label: "Analysis failed: " + err.Error(), CurrentFileIndex: i, TotalFiles: 1})
				return nil, err
			}
			metrics.PipelineFiles.WithLabelValues("skipped").Inc()
			s.log.Warn("skipping file", zap.String("tenant", tenant), zap.String("file", f.Name), zap.Error(err))
			run.emit(domain.Progress{Percent: job.percent(domain.StageSkipped), Stage: domain.StageSkipped,
				Label: job.label("Skipped " + f.Name + ": " + err.Error()), CurrentFileIndex: i, TotalFiles: job.total})
			continue
		}
		metrics.PipelineFiles.WithLabelValues("ok").Inc()
		all = append(all, qs...)
		lists = append(lists, topics.Aggregate(qs, s.TopicLimit))
	}

	if len(all) == 0 {
		run.emit(domain.Progress{Percent: 100, Stage: domain.StageError, Label: "No questions could be extracted",
			CurrentFileIndex: len(files) - 1, TotalFiles: len(files)})
		return nil, domain.ErrNoQuestions
	}

	res := &domain.AnalysisResult{Questions: all, Topics: topics.Merge(s.TopicLimit, lists...)}
	if res.Topics == nil {
		res.Topics = []domain.QuestionTopic{}
	}

	if s.Store != nil {
		if err := s.Store.SaveResult(ctx, tenant, resultName(name, files), *res); err != nil {
			s.log.Error("saving result", zap.String("tenant", tenant), zap.Error(err))
		}
	}

	run.emit(domain.Progress{Percent: 100, Stage: domain.StageDone,
		Label: fmt.Sprintf("Found %d questions", len(all)), CurrentFileIndex: len(files) - 1, TotalFiles: len(files)})
	return res, nil
}

func (s *Service) step(ctx context.Context, run *Run, job fileJob, stage domain.Stage, label string) error {
	if err := run.gate(ctx); err != nil {
		return err
	}
	run.emit(domain.Progress{
		Percent:          job.percent(stage),
		Label:            job.label(label),
		Stage:            stage,
		CurrentFileIndex: job.index,
		TotalFiles:       job.total,
	})
	return nil
}

func observe(stage domain.Stage, start time.Time) {
	metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
}

func (s *Service) processFile(ctx context.Context, run *Run, tenant string, job fileJob, use ports) ([]domain.Question, error) {
	f := job.file
	log := s.log.With(zap.String("tenant", tenant), zap.String("file", f.Name))

	if err := s.step(ctx, run, job, domain.StageUploading, "Uploading "+f.Name); err != nil {
		return nil, err
	}
	if s.Archive != nil {
		if key, err := s.Archive.Archive(ctx, tenant, f); err != nil {
			log.Warn("archiving upload failed", zap.Error(err))
		} else {
			log.Debug("upload archived", zap.String("object", key))
		}
	}

	if err := s.step(ctx, run, job, domain.StageExtracting, "Extracting text"); err != nil {
		return nil, err
	}
	start := time.Now()
	pages, err := s.Extractor.Extract(ctx, f)
	observe(domain.StageExtracting, start)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", f.Name, err)
	}
	raw := joinPages(pages)
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("extract %s: %w", f.Name, domain.ErrNoText)
	}

	text := raw
	if use.enhancer != nil {
		if err := s.step(ctx, run, job, domain.StageEnhancing, "Enhancing text with AI"); err != nil {
			return nil, err
		}
		start = time.Now()
		text, err = use.enhancer.Enhance(ctx, raw)
		observe(domain.StageEnhancing, start)
		if err != nil {
			return nil, fmt.Errorf("enhance %s: %w", f.Name, err)
		}
	}

	if err := s.step(ctx, run, job, domain.StageAnalyzing, "Analyzing questions"); err != nil {
		return nil, err
	}
	start = time.Now()
	cands, err := use.classifier.Classify(ctx, text)
	observe(domain.StageAnalyzing, start)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", f.Name, err)
	}
	qs := s.buildQuestions(cands, raw, f.Name)
	if len(qs) == 0 {
		return nil, fmt.Errorf("analyze %s: %w", f.Name, domain.ErrNoQuestions)
	}

	if use.videos != nil {
		if err := s.step(ctx, run, job, domain.StageEnriching, "Finding related videos"); err != nil {
			return nil, err
		}
		start = time.Now()
		s.enrich(ctx, use.videos, qs, log)
		observe(domain.StageEnriching, start)
	}

	log.Info("file analyzed", zap.Int("questions", len(qs)))
	return qs, nil
}

func (s *Service) buildQuestions(cands []domain.Candidate, raw, source string) []domain.Question {
	out := make([]domain.Question, 0, len(cands))
	for i, c := range cands {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		subject := strings.TrimSpace(c.Subject)
		if subject == "" {
			subject = defaultSubject
		}
		out = append(out, domain.Question{
			ID:       domain.QuestionID(uuid.NewString()),
			Text:     text,
			Year:     ResolveYear(cands, i, raw),
			Subject:  subject,
			Topics:   nonNil(c.Topics),
			Keywords: nonNil(c.Keywords),
			Source:   source,
		})
	}
	return out
}

// enrich attaches videos in place. Search failures only cost the videos.
func (s *Service) enrich(ctx context.Context, videos domain.VideoSearcher, qs []domain.Question, log *zap.Logger) {
	limit := s.VideosPerQuestion
	if limit <= 0 || limit > maxVideos {
		limit = defaultVideos
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i := range qs {
		i := i
		query := VideoQuery(qs[i])
		if query == "" {
			continue
		}
		g.Go(func() error {
			found, err := videos.Search(gctx, query, limit)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Debug("video search failed", zap.String("query", query), zap.Error(err))
				}
				return nil
			}
			if len(found) > limit {
				found = found[:limit]
			}
			qs[i].Videos = found
			return nil
		})
	}
	_ = g.Wait()
}

// VideoQuery builds the search text: subject plus the primary keyword,
// falling back to the first topic.
func VideoQuery(q domain.Question) string {
	term := ""
	if len(q.Keywords) > 0 {
		term = q.Keywords[0]
	} else if len(q.Topics) > 0 {
		term = q.Topics[0]
	}
	subject := q.Subject
	if subject == defaultSubject {
		subject = ""
	}
	return strings.TrimSpace(subject + " " + term)
}

func joinPages(pages []domain.Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if t := strings.TrimSpace(p.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

func resultName(name string, files []domain.File) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if len(files) == 1 {
		return files[0].Name
	}
	return fmt.Sprintf("%s + %d more", files[0].Name, len(files)-1)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
