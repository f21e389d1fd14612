// Package video searches YouTube for lecture videos matching a question.
package video

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	domain "github.com/bryanwahyu/pyq-analyzer/internal/domain/questions"
	"github.com/bryanwahyu/pyq-analyzer/internal/logging"
)

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("video search temporarily unavailable")

type Options struct {
	APIKey   string
	Endpoint string // optional, tests
	Client   *http.Client

	// breaker
	MaxFailures uint32
	OpenTimeout time.Duration
}

type YouTube struct {
	svc     *youtube.Service
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

func NewYouTube(ctx context.Context, opts Options, log *zap.Logger) (*YouTube, error) {
	if opts.APIKey == "" {
		return nil, errors.New("youtube: api key is required")
	}
	clientOpts := []option.ClientOption{option.WithAPIKey(opts.APIKey)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}
	if opts.Client != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(opts.Client))
	}
	svc, err := youtube.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("youtube client: %w", err)
	}

	log = logging.OrNop(log).Named("youtube")
	maxFailures := opts.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	timeout := opts.OpenTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "youtube-search",
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// cancelled requests say nothing about the API
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return &YouTube{svc: svc, breaker: breaker, log: log}, nil
}

// Search returns up to limit embeddable videos for query.
func (y *YouTube) Search(ctx context.Context, query string, limit int) ([]domain.Video, error) {
	if limit <= 0 {
		limit = 2
	}
	out, err := y.breaker.Execute(func() (interface{}, error) {
		return y.svc.Search.List([]string{"snippet"}).
			Q(query).
			Type("video").
			VideoEmbeddable("true").
			SafeSearch("strict").
			MaxResults(int64(limit)).
			Context(ctx).
			Do()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("youtube search %q: %w", query, err)
	}

	resp := out.(*youtube.SearchListResponse)
	videos := make([]domain.Video, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		videos = append(videos, domain.Video{
			ID:           item.Id.VideoId,
			Title:        html.UnescapeString(item.Snippet.Title),
			ThumbnailURL: thumbnail(item.Snippet.Thumbnails),
		})
		if len(videos) == limit {
			break
		}
	}
	return videos, nil
}

func thumbnail(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*youtube.Thumbnail{t.Medium, t.High, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}
