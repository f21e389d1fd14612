package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/pyq-analyzer/internal/domain/questions"
)

type fakeExtractor struct {
	pages map[string][]domain.Page
	errs  map[string]error
}

func (f *fakeExtractor) Extract(_ context.Context, file domain.File) ([]domain.Page, error) {
	if err := f.errs[file.Name]; err != nil {
		return nil, err
	}
	return f.pages[file.Name], nil
}

type fakeClassifier struct {
	out []domain.Candidate
	err error
}

func (f *fakeClassifier) Classify(context.Context, string) ([]domain.Candidate, error) {
	return f.out, f.err
}

type fakeEnhancer struct{ err error }

func (f fakeEnhancer) Enhance(_ context.Context, raw string) (string, error) {
	return raw, f.err
}

type fakeVideos struct {
	mu      sync.Mutex
	queries []string
	err     error
}

func (f *fakeVideos) Search(_ context.Context, query string, limit int) ([]domain.Video, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Video{{ID: "a", Title: query}, {ID: "b"}, {ID: "c"}}, nil
}

type fakeStore struct {
	name  string
	saved *domain.AnalysisResult
	err   error
}

func (f *fakeStore) SaveResult(_ context.Context, _, name string, res domain.AnalysisResult) error {
	f.name = name
	f.saved = &res
	return f.err
}

func graphCandidates() []domain.Candidate {
	return []domain.Candidate{
		{Text: "Explain BFS on graphs", Year: "2022", Subject: "Algorithms", Topics: []string{"graphs", "bfs"}},
		{Text: "Explain DFS on graphs", Subject: "Algorithms", Topics: []string{"graphs"}},
		{Text: "Define a heap", Subject: "Data Structures", Topics: []string{"heap"}},
	}
}

func collect(run *Run) []domain.Progress {
	var out []domain.Progress
	for p := range run.Events() {
		out = append(out, p)
	}
	return out
}

func TestBatchSkipsFailedFile(t *testing.T) {
	ext := &fakeExtractor{
		pages: map[string][]domain.Page{"a.pdf": {{Number: 1, Text: "paper 2022"}}},
		errs:  map[string]error{"b.pdf": domain.ErrUnreadable},
	}
	store := &fakeStore{}
	svc := NewService(ext, &fakeClassifier{out: graphCandidates()}, nil)
	svc.Store = store

	run := svc.Start(context.Background(), "t1", "", []domain.File{{Name: "a.pdf"}, {Name: "b.pdf"}})
	events := collect(run)
	res, err := run.Wait()
	require.NoError(t, err)

	require.Len(t, res.Questions, 3)
	for _, q := range res.Questions {
		assert.Equal(t, "a.pdf", q.Source)
		assert.Equal(t, "2022", q.Year)
	}
	require.Len(t, res.Topics, 1)
	assert.Equal(t, "graphs", res.Topics[0].Name)
	assert.Equal(t, 2, res.Topics[0].Count)

	last := events[len(events)-1]
	assert.Equal(t, 100, last.Percent)
	assert.Equal(t, domain.StageDone, last.Stage)

	var skipped int
	prev := 0
	for _, e := range events {
		assert.GreaterOrEqual(t, e.Percent, prev)
		prev = e.Percent
		if e.Stage == domain.StageSkipped {
			skipped++
			assert.Equal(t, 1, e.CurrentFileIndex)
		}
	}
	assert.Equal(t, 1, skipped)

	require.NotNil(t, store.saved)
	assert.Equal(t, "a.pdf + 1 more", store.name)
	assert.Len(t, store.saved.Questions, 3)
}

func TestUniqueQuestionIDs(t *testing.T) {
	ext := &fakeExtractor{pages: map[string][]domain.Page{
		"a.pdf": {{Number: 1, Text: "x"}},
		"b.pdf": {{Number: 1, Text: "y"}},
	}}
	svc := NewService(ext, &fakeClassifier{out: graphCandidates()}, nil)

	res, err := svc.Analyze(context.Background(), "t1", "both", []domain.File{{Name: "a.pdf"}, {Name: "b.pdf"}})
	require.NoError(t, err)
	require.Len(t, res.Questions, 6)

	seen := map[domain.QuestionID]bool{}
	for _, q := range res.Questions {
		assert.False(t, seen[q.ID])
		seen[q.ID] = true
	}
	// graphs: 2 per file, ids unioned
	require.NotEmpty(t, res.Topics)
	assert.Equal(t, "graphs", res.Topics[0].Name)
	assert.Equal(t, 4, res.Topics[0].Count)
	assert.Len(t, res.Topics[0].QuestionIDs, 4)
}

func TestSingleFileErrorEndsRun(t *testing.T) {
	ext := &fakeExtractor{pages: map[string][]domain.Page{"a.pdf": {{Number: 1, Text: "x"}}}}
	svc := NewService(ext, &fakeClassifier{out: graphCandidates()}, nil)
	svc.Enhancer = fakeEnhancer{err: errors.New("quota")}

	run := svc.Start(context.Background(), "t1", "", []domain.File{{Name: "a.pdf"}})
	events := collect(run)
	_, err := run.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enhance a.pdf")
	assert.Equal(t, domain.StageError, events[len(events)-1].Stage)
}

func TestBatchWithNoSuccess(t *testing.T) {
	ext := &fakeExtractor{errs: map[string]error{"a.pdf": domain.ErrUnsupported, "b.png": domain.ErrUnsupported}}
	svc := NewService(ext, &fakeClassifier{}, nil)

	_, err := svc.Analyze(context.Background(), "t1", "", []domain.File{{Name: "a.pdf"}, {Name: "b.png"}})
	assert.ErrorIs(t, err, domain.ErrNoQuestions)
}

func TestEmptyTextFails(t *testing.T) {
	ext := &fakeExtractor{pages: map[string][]domain.Page{"a.pdf": {{Number: 1, Text: "  "}}}}
	svc := NewService(ext, &fakeClassifier{out: graphCandidates()}, nil)

	_, err := svc.Analyze(context.Background(), "t1", "", []domain.File{{Name: "a.pdf"}})
	assert.ErrorIs(t, err, domain.ErrNoText)
}

func TestNoFiles(t *testing.T) {
	svc := NewService(&fakeExtractor{}, &fakeClassifier{}, nil)
	_, err := svc.Analyze(context.Background(), "t1", "", nil)
	assert.ErrorIs(t, err, domain.ErrNoQuestions)
}

func TestEnrichAttachesVideos(t *testing.T) {
	ext := &fakeExtractor{pages: map[string][]domain.Page{"a.pdf": {{Number: 1, Text: "x"}}}}
	vids := &fakeVideos{}
	cands := []domain.Candidate{{Text: "Explain BFS", Subject: "Algorithms", Keywords: []string{"traversal"}, Topics: []string{"graphs"}}}
	svc := NewService(ext, &fakeClassifier{out: cands}, nil)
	svc.Videos = vids

	res, err := svc.Analyze(context.Background(), "t1", "", []domain.File{{Name: "a.pdf"}})
	require.NoError(t, err)
	require.Len(t, res.Questions[0].Videos, 2)
	assert.Equal(t, []string{"Algorithms traversal"}, vids.queries)
	assert.Equal(t, domain.UnknownYear, res.Questions[0].Year)
}

func TestEnrichKeepsVideosOnTheirQuestion(t *testing.T) {
	ext := &fakeExtractor{pages: map[string][]domain.Page{"a.pdf": {{Number: 1, Text: "x"}}}}
	svc := NewService(ext, &fakeClassifier{out: graphCandidates()}, nil)
	svc.Videos = &fakeVideos{}

	res, err := svc.Analyze(context.Background(), "t1", "", []domain.File{{Name: "a.pdf"}})
	require.NoError(t, err)
	require.Len(t, res.Questions, 3)
	for _, q := range res.Questions {
		require.NotEmpty(t, q.Videos, q.Text)
		assert.Equal(t, VideoQuery(q), q.Videos[0].Title, q.Text)
	}
	assert.Equal(t, "Data Structures heap", res.Questions[2].Videos[0].Title)
}

func TestEnrichFailureKeepsQuestion(t *testing.T) {
	ext := &fakeExtractor{pages: map[string][]domain.Page{"a.pdf": {{Number: 1, Text: "x"}}}}
	svc := NewService(ext, &fakeClassifier{out: graphCandidates()}, nil)
	svc.Videos = &fakeVideos{err: errors.New("quota")}

	res, err := svc.Analyze(context.Background(), "t1", "", []domain.File{{Name: "a.pdf"}})
	require.NoError(t, err)
	assert.Len(t, res.Questions, 3)
	assert.Empty(t, res.Questions[0].Videos)
}

type fakeKeys map[string]string

func (k fakeKeys) APIKey(_ context.Context, tenant, provider string) string {
	return k[tenant+"/"+provider]
}

type keyedEnhancer struct {
	key  string
	used *[]string
}

func (e keyedEnhancer) Enhance(_ context.Context, raw string) (string, error) {
	*e.used = append(*e.used, e.key)
	return raw, nil
}

func TestTenantKeysEnableEnhancementAndVideos(t *testing.T) {
	ext := &fakeExtractor{pages: map[string][]domain.Page{"a.pdf": {{Number: 1, Text: "x"}}}}
	svc := NewService(ext, &fakeClassifier{out: graphCandidates()}, nil)

	var (
		enhancedWith []string
		videoKeys    []string
		vids         = &fakeVideos{}
	)
	svc.Tenants = &TenantProviders{
		Keys:     fakeKeys{"acme/openai": "sk-acme", "acme/youtube": "yt-acme"},
		LLMKey:   "openai",
		VideoKey: "youtube",
		Enhancer: func(key string) domain.Enhancer { return keyedEnhancer{key: key, used: &enhancedWith} },
		Videos: func(key string) domain.VideoSearcher {
			videoKeys = append(videoKeys, key)
			return vids
		},
	}

	run := svc.Start(context.Background(), "acme", "", []domain.File{{Name: "a.pdf"}})
	events := collect(run)
	res, err := run.Wait()
	require.NoError(t, err)

	assert.Equal(t, []string{"sk-acme"}, enhancedWith)
	assert.Equal(t, []string{"yt-acme"}, videoKeys)
	assert.Len(t, vids.queries, 3)
	require.Len(t, res.Questions[0].Videos, 2)
	stages := map[domain.Stage]bool{}
	for _, e := range events {
		stages[e.Stage] = true
	}
	assert.True(t, stages[domain.StageEnhancing])
	assert.True(t, stages[domain.StageEnriching])

	// a tenant without keys keeps the configured ports: none here
	res, err = svc.Analyze(context.Background(), "other", "", []domain.File{{Name: "a.pdf"}})
	require.NoError(t, err)
	assert.Len(t, enhancedWith, 1)
	assert.Len(t, videoKeys, 1)
	assert.Empty(t, res.Questions[0].Videos)
}

func TestPauseHoldsNextStep(t *testing.T) {
	ext := &fakeExtractor{pages: map[string][]domain.Page{"a.pdf": {{Number: 1, Text: "x"}}}}
	svc := NewService(ext, &fakeClassifier{out: graphCandidates()}, nil)

	run := newRun(1)
	run.Pause()
	go func() {
		res, err := svc.execute(context.Background(), run, "t1", "", []domain.File{{Name: "a.pdf"}})
		run.finish(res, err)
	}()

	select {
	case <-run.Done():
		t.Fatal("run finished while paused")
	case <-time.After(50 * time.Millisecond):
	}
	assert.True(t, run.Paused())

	run.Resume()
	res, err := run.Wait()
	require.NoError(t, err)
	assert.Len(t, res.Questions, 3)
}

func TestCancelWhilePaused(t *testing.T) {
	ext := &fakeExtractor{pages: map[string][]domain.Page{"a.pdf": {{Number: 1, Text: "x"}}}}
	svc := NewService(ext, &fakeClassifier{out: graphCandidates()}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	run := newRun(2)
	run.Pause()
	go func() {
		res, err := svc.execute(ctx, run, "t1", "", []domain.File{{Name: "a.pdf"}, {Name: "a.pdf"}})
		run.finish(res, err)
	}()
	cancel()

	_, err := run.Wait()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVideoQuery(t *testing.T) {
	assert.Equal(t, "Physics optics", VideoQuery(domain.Question{Subject: "Physics", Keywords: []string{"optics"}}))
	assert.Equal(t, "Physics lens", VideoQuery(domain.Question{Subject: "Physics", Topics: []string{"lens"}}))
	assert.Equal(t, "entropy", VideoQuery(domain.Question{Subject: "General", Keywords: []string{"entropy"}}))
}
