package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"go.uber.org/zap"

	lib "github.com/bryanwahyu/pyq-analyzer/internal/domain/library"
	"github.com/bryanwahyu/pyq-analyzer/internal/domain/questions"
	"github.com/bryanwahyu/pyq-analyzer/internal/middleware"
)

const maxFormMemory = 32 << 20

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), lib.ErrInvalid)
}

// readUploads collects multipart "files" parts plus any "url" fields, the
// latter fetched through the proxy (Drive links included).
func (r *Router) readUploads(w http.ResponseWriter, req *http.Request) (string, []questions.File, error) {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload)
	if err := req.ParseMultipartForm(maxFormMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return "", nil, err
		}
		return "", nil, invalid("expected multipart form: %v", err)
	}

	var files []questions.File
	for _, field := range []string{"files", "file"} {
		for _, h := range req.MultipartForm.File[field] {
			f, err := readPart(h, r.maxUpload)
			if err != nil {
				return "", nil, err
			}
			files = append(files, f)
		}
	}

	for _, raw := range req.MultipartForm.Value["url"] {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		f, err := r.fetchUpload(req, raw)
		if err != nil {
			return "", nil, err
		}
		files = append(files, f)
	}

	if len(files) == 0 {
		return "", nil, invalid("at least one file or url is required")
	}
	name := middleware.SanitizeString(req.FormValue("name"))
	return name, files, nil
}

func readPart(h *multipart.FileHeader, max int64) (questions.File, error) {
	if err := middleware.ValidateUpload(h.Filename, h.Size, max); err != nil {
		return questions.File{}, fmt.Errorf("%v: %w", err, lib.ErrInvalid)
	}
	src, err := h.Open()
	if err != nil {
		return questions.File{}, fmt.Errorf("open %s: %w", h.Filename, err)
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return questions.File{}, fmt.Errorf("read %s: %w", h.Filename, err)
	}
	return questions.File{Name: h.Filename, ContentType: h.Header.Get("Content-Type"), Data: data}, nil
}

func (r *Router) fetchUpload(req *http.Request, raw string) (questions.File, error) {
	if r.proxy == nil {
		return questions.File{}, invalid("remote urls are not enabled")
	}
	res, err := r.proxy.Fetch(req.Context(), raw)
	if err != nil {
		return questions.File{}, err
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return questions.File{}, err
	}
	name := res.Filename
	if name == "" {
		name = "remote"
	}
	return questions.File{Name: name, ContentType: res.ContentType, Data: data}, nil
}

// POST /v1/{tenant}/analyze
// multipart: files=<pdf|image>..., url=<link>..., name=<label>
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	name, files, err := r.readUploads(w, req)
	if err != nil {
		return err
	}
	res, err := r.analysis.Analyze(req.Context(), tenantOf(req), name, files)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

type streamEnd struct {
	Result *questions.AnalysisResult `json:"result,omitempty"`
	Error  string                    `json:"error,omitempty"`
}

// POST /v1/{tenant}/analyze/stream
// Same form as /analyze. Replies with NDJSON progress events and a final
// {"result":...} or {"error":...} line. X-Run-Id names the run for pause/resume.
func (r *Router) handleAnalyzeStream(w http.ResponseWriter, req *http.Request) error {
	name, files, err := r.readUploads(w, req)
	if err != nil {
		return err
	}
	tenant := tenantOf(req)

	run := r.analysis.Start(req.Context(), tenant, name, files)
	id := r.runs.add(tenant, run)
	defer r.runs.remove(id)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Run-Id", id)
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	for p := range run.Events() {
		if err := enc.Encode(p); err != nil {
			// client hilang; run berhenti lewat ctx request
			r.log.Debug("stream write failed", zap.String("run", id), zap.Error(err))
			break
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	res, err := run.Wait()
	end := streamEnd{Result: res}
	if err != nil {
		end = streamEnd{Error: err.Error()}
	}
	_ = enc.Encode(end)
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}
