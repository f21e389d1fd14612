package httpserver

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/bryanwahyu/pyq-analyzer/internal/infra/proxy"
	"github.com/bryanwahyu/pyq-analyzer/internal/metrics"
)

// GET /api/proxy?url=<u>&intent=preview|download
func (r *Router) handleProxy(w http.ResponseWriter, req *http.Request) error {
	if r.proxy == nil {
		return fmt.Errorf("proxy disabled: %w", proxy.ErrInvalidURL)
	}
	intent := req.URL.Query().Get("intent")
	switch intent {
	case "":
		intent = "preview"
	case "preview", "download":
	default:
		metrics.ProxyRequests.WithLabelValues("unknown", "rejected").Inc()
		return invalid("intent must be preview or download")
	}
	raw := req.URL.Query().Get("url")
	if raw == "" {
		metrics.ProxyRequests.WithLabelValues(intent, "rejected").Inc()
		return invalid("url query parameter is required")
	}

	res, err := r.proxy.Fetch(req.Context(), raw)
	if err != nil {
		metrics.ProxyRequests.WithLabelValues(intent, proxyOutcome(err)).Inc()
		return err
	}
	defer res.Body.Close()

	disposition := "inline"
	if intent == "download" {
		disposition = "attachment"
	}
	if res.Filename != "" {
		disposition = mime.FormatMediaType(disposition, map[string]string{"filename": res.Filename})
	}

	h := w.Header()
	h.Set("Content-Type", res.ContentType)
	h.Set("Content-Disposition", disposition)
	h.Set("Cache-Control", "private, max-age=300")
	if res.ContentLength >= 0 {
		h.Set("Content-Length", strconv.FormatInt(res.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, res.Body)
	if err != nil {
		metrics.ProxyRequests.WithLabelValues(intent, proxyOutcome(err)).Inc()
		// header sudah terkirim, cukup log
		r.log.Warn("proxy relay interrupted", zap.String("url", res.FinalURL), zap.Int64("bytes", n), zap.Error(err))
		return nil
	}
	metrics.ProxyRequests.WithLabelValues(intent, "ok").Inc()
	return nil
}

func proxyOutcome(err error) string {
	switch {
	case errors.Is(err, proxy.ErrInvalidURL):
		return "rejected"
	case errors.Is(err, proxy.ErrTooLarge):
		return "too_large"
	case errors.Is(err, proxy.ErrUpstream):
		return "upstream_error"
	}
	return "error"
}
