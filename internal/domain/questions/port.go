package questions

import (
	"context"
)

// Extractor port: file → halaman teks
type Extractor interface {
	Extract(ctx context.Context, f File) ([]Page, error)
}

// Enhancer membersihkan teks mentah lewat LLM
type Enhancer interface {
	Enhance(ctx context.Context, raw string) (string, error)
}

// Classifier turns text into question candidates. Implementations are
// interchangeable strategies (remote LLM, local heuristic).
type Classifier interface {
	Classify(ctx context.Context, text string) ([]Candidate, error)
}

// VideoSearcher port untuk pencarian video terkait
type VideoSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]Video, error)
}

// KeySource returns a tenant's own credential for provider, or "".
type KeySource interface {
	APIKey(ctx context.Context, tenant, provider string) string
}

// ResultStore persists finished results.
type ResultStore interface {
	SaveResult(ctx context.Context, tenant, name string, res AnalysisResult) error
}

// SourceArchive port untuk menyimpan file upload asli
type SourceArchive interface {
	Archive(ctx context.Context, tenant string, f File) (string, error)
}
