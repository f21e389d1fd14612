// Package proxy fetches remote documents server-side so browsers can load
// them without CORS support on the origin.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/pyq-analyzer/internal/logging"
)

var (
	ErrInvalidURL = errors.New("invalid url")
	ErrUpstream   = errors.New("upstream fetch failed")
	ErrTooLarge   = errors.New("upstream body too large")
)

const (
	defaultMaxBytes  = 50 << 20
	maxInterstitial  = 2 << 20
	defaultTimeout   = 60 * time.Second
	maxRedirects     = 5
	defaultUserAgent = "Mozilla/5.0 (compatible; pyq-analyzer proxy)"
)

// Result is a fetched upstream body. The caller closes Body.
type Result struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	Filename      string
	FinalURL      string
}

type Fetcher struct {
	Client    *http.Client
	MaxBytes  int64
	DriveBase string
	// Validate rejects urls that must not be fetched (scheme, private hosts).
	Validate func(raw string) error
	// CheckIP, when set, runs on every resolved address right before the
	// connection is made. Nil leaves dialing unguarded.
	CheckIP func(ip net.IP) error

	log *zap.Logger
}

func NewFetcher(validate func(string) error, log *zap.Logger) *Fetcher {
	f := &Fetcher{
		MaxBytes: defaultMaxBytes,
		Validate: validate,
		log:      logging.OrNop(log).Named("proxy"),
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   f.dialControl,
	}).DialContext
	f.Client = &http.Client{
		Timeout:   defaultTimeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("%w: too many redirects", ErrUpstream)
			}
			if f.Validate != nil {
				if err := f.Validate(req.URL.String()); err != nil {
					return fmt.Errorf("%w: redirect to %s: %v", ErrInvalidURL, req.URL.Host, err)
				}
			}
			return nil
		},
	}
	return f
}

// dialControl sees the address after DNS resolution, so a public name that
// resolves to 127.0.0.1 or 169.254.169.254 is refused here.
func (f *Fetcher) dialControl(network, address string, _ syscall.RawConn) error {
	if f.CheckIP == nil {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("%w: unresolved address %s", ErrInvalidURL, host)
	}
	if err := f.CheckIP(ip); err != nil {
		f.log.Warn("blocked dial", zap.String("network", network), zap.String("addr", address), zap.Error(err))
		return fmt.Errorf("%w: %s: %v", ErrInvalidURL, ip, err)
	}
	return nil
}

// Fetch GETs raw, following the Drive download interstitial once.
func (f *Fetcher) Fetch(ctx context.Context, raw string) (*Result, error) {
	raw = strings.TrimSpace(raw)
	if f.Validate != nil {
		if err := f.Validate(raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
		}
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}

	drive := false
	if id := DriveFileID(u); id != "" {
		drive = true
		raw = DriveDownloadURL(f.DriveBase, id)
		f.log.Debug("rewrote drive link", zap.String("id", id))
	}

	resp, err := f.get(ctx, raw)
	if err != nil {
		return nil, err
	}

	if drive && isHTML(resp.Header.Get("Content-Type")) {
		page, err := io.ReadAll(io.LimitReader(resp.Body, maxInterstitial))
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: reading drive page: %v", ErrUpstream, err)
		}
		next, ok := ConfirmURL(bytes.NewReader(page), resp.Request.URL)
		if !ok {
			return nil, fmt.Errorf("%w: drive returned a page without a download link (file private or removed?)", ErrUpstream)
		}
		f.log.Debug("following drive confirmation", zap.String("url", next))
		if resp, err = f.get(ctx, next); err != nil {
			return nil, err
		}
	}

	if resp.ContentLength > f.maxBytes() {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &Result{
		Body:          &limitedBody{rc: resp.Body, left: f.maxBytes()},
		ContentType:   ct,
		ContentLength: resp.ContentLength,
		Filename:      filename(resp),
		FinalURL:      resp.Request.URL.String(),
	}, nil
}

func (f *Fetcher) get(ctx context.Context, raw string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.Client.Do(req)
	if err != nil {
		if errors.Is(err, ErrInvalidURL) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s answered %d %s", ErrUpstream, req.URL.Host, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return resp, nil
}

func (f *Fetcher) maxBytes() int64 {
	if f.MaxBytes <= 0 {
		return defaultMaxBytes
	}
	return f.MaxBytes
}

func isHTML(ct string) bool {
	mt, _, _ := mime.ParseMediaType(ct)
	return mt == "text/html"
}

func filename(resp *http.Response) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			return path.Base(params["filename"])
		}
	}
	base := path.Base(resp.Request.URL.Path)
	if base == "/" || base == "." || base == "uc" {
		return ""
	}
	return base
}

// limitedBody fails the read once more than left bytes were streamed.
type limitedBody struct {
	rc   io.ReadCloser
	left int64
}

func (l *limitedBody) Read(p []byte) (int, error) {
	if l.left <= 0 {
		var one [1]byte
		if n, err := l.rc.Read(one[:]); n == 0 && errors.Is(err, io.EOF) {
			return 0, io.EOF
		}
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.left {
		p = p[:l.left]
	}
	n, err := l.rc.Read(p)
	l.left -= int64(n)
	return n, err
}

func (l *limitedBody) Close() error { return l.rc.Close() }
