package extract

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"github.com/bryanwahyu/pyq-analyzer/internal/logging"
)

// ErrNoTextFound is returned when Vision finds no text in the image.
var ErrNoTextFound = errors.New("vision: no text found")

// Vision is Google Cloud Vision DOCUMENT_TEXT_DETECTION with an API key.
type Vision struct {
	svc *vision.Service
	log *zap.Logger
}

// NewVision builds the client. endpoint and hc are optional (tests).
func NewVision(ctx context.Context, apiKey, endpoint string, hc *http.Client, log *zap.Logger) (*Vision, error) {
	if apiKey == "" {
		return nil, errors.New("vision: api key is required")
	}
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	if hc != nil {
		opts = append(opts, option.WithHTTPClient(hc))
	}
	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &Vision{svc: svc, log: logging.OrNop(log).Named("vision")}, nil
}

func (v *Vision) Recognize(ctx context.Context, image []byte) (string, error) {
	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(image)},
			Features: []*vision.Feature{{Type: "DOCUMENT_TEXT_DETECTION"}},
		}},
	}
	resp, err := v.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("vision annotate: %w", err)
	}
	if len(resp.Responses) == 0 {
		return "", ErrNoTextFound
	}
	item := resp.Responses[0]
	if item.Error != nil && item.Error.Message != "" {
		return "", fmt.Errorf("vision: %s (code: %d)", item.Error.Message, item.Error.Code)
	}
	if item.FullTextAnnotation == nil || item.FullTextAnnotation.Text == "" {
		return "", ErrNoTextFound
	}
	v.log.Debug("image recognized", zap.Int("chars", len(item.FullTextAnnotation.Text)))
	return item.FullTextAnnotation.Text, nil
}
