package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/veranemoloko/bulk-downloader/internal/clock"
	"github.com/veranemoloko/bulk-downloader/internal/domain"
	errpkg "github.com/veranemoloko/bulk-downloader/internal/errors"
	"github.com/veranemoloko/bulk-downloader/internal/metrics"
	"github.com/veranemoloko/bulk-downloader/internal/storage"
)

var errTooManyRedirects = errors.New("too many redirects")

// Config configures the HTTP fetcher.
type Config struct {
	Timeout      time.Duration
	UserAgent    string
	MaxRedirects int
}

// DefaultConfig is used for zero fields.
var DefaultConfig = Config{
	Timeout:      30 * time.Minute,
	UserAgent:    "bulk-downloader/1.0",
	MaxRedirects: 10,
}

// HTTPFetcher performs a single GET per Fetch call and streams the body into
// artifact storage. It makes no retry decisions.
type HTTPFetcher struct {
	fileStorage *storage.FileStorage
	httpClient  *http.Client
	userAgent   string
	clock       clock.Clock
	logger      *slog.Logger
}

// NewHTTPFetcher creates a fetcher writing into fileStorage.
func NewHTTPFetcher(fileStorage *storage.FileStorage, cfg Config, c clock.Clock, logger *slog.Logger) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig.UserAgent
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultConfig.MaxRedirects
	}
	if c == nil {
		c = clock.Real{}
	}
	maxRedirects := cfg.MaxRedirects

	return &HTTPFetcher{
		fileStorage: fileStorage,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("%w: stopped after %d", errTooManyRedirects, maxRedirects)
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		clock:     c,
		logger:    logger,
	}
}

// Fetch downloads task.URL to task.Destination. A partial file left by an
// interrupted attempt is resumed with a Range request; a server that ignores
// the range restarts the file. BytesWritten is the final artifact size.
func (w *HTTPFetcher) Fetch(ctx context.Context, task domain.DownloadTask) domain.FetchResult {
	start := time.Now()
	result := w.fetch(ctx, task, true)
	result.Duration = time.Since(start)

	metrics.FetchDuration.Observe(result.Duration.Seconds())
	if result.Err != nil && result.Class != domain.FailureCanceled {
		w.logger.Warn("fetch failed",
			"key", task.Key(),
			"url", task.URL,
			"status", result.StatusCode,
			"class", result.Class,
			"error", result.Err,
		)
	}
	return result
}

func (w *HTTPFetcher) fetch(ctx context.Context, task domain.DownloadTask, resume bool) domain.FetchResult {
	var result domain.FetchResult

	var existingSize int64
	if resume {
		existingSize = w.fileStorage.PartSize(task.Destination)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.URL, nil)
	if err != nil {
		result.Class = domain.FailureRequest
		result.Err = fmt.Errorf("create request: %w", err)
		return result
	}
	req.Header.Set("User-Agent", w.userAgent)
	if existingSize > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", existingSize))
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		result.Class, result.Err = w.classifyTransportError(ctx, err)
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.RetryAfter, result.HasRetryAfter = w.parseRetryAfter(resp.Header.Get("Retry-After"))

	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && existingSize > 0 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		if total, ok := contentRangeTotal(resp.Header.Get("Content-Range")); ok && total == existingSize {
			// The part file already holds the whole body.
			result.StatusCode = http.StatusOK
			return w.commit(task, result)
		}
		w.logger.Warn("partial file rejected by server, restarting",
			"key", task.Key(),
			"part_size", existingSize,
			"content_range", resp.Header.Get("Content-Range"),
		)
		return w.fetch(ctx, task, false)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		result.Class = domain.FailureHTTP
		result.Err = fmt.Errorf("bad status: %s", resp.Status)
		return result
	}

	if existingSize > 0 && resp.StatusCode != http.StatusPartialContent {
		existingSize = 0
	}

	var file *os.File
	if existingSize > 0 {
		file, err = w.fileStorage.AppendPart(task.Destination)
	} else {
		file, err = w.fileStorage.CreatePart(task.Destination)
	}
	if err != nil {
		result.Class = domain.FailureFilesystem
		result.Err = err
		return result
	}

	bytesRead, err := w.copyWithContext(ctx, file, resp.Body)
	closeErr := file.Close()
	result.BytesWritten = existingSize + bytesRead
	if err != nil {
		switch {
		case errors.Is(err, errpkg.ErrFilesystem):
			result.Class = domain.FailureFilesystem
			result.Err = err
		default:
			// Read failures keep the partial file for the next Range request.
			result.Class, result.Err = w.classifyTransportError(ctx, err)
		}
		return result
	}
	if closeErr != nil {
		result.Class = domain.FailureFilesystem
		result.Err = fmt.Errorf("%w: close file: %v", errpkg.ErrFilesystem, closeErr)
		return result
	}

	return w.commit(task, result)
}

// commit moves the part file into place and reports the committed size.
func (w *HTTPFetcher) commit(task domain.DownloadTask, result domain.FetchResult) domain.FetchResult {
	if err := w.fileStorage.Commit(task.Destination); err != nil {
		result.Class = domain.FailureFilesystem
		result.Err = err
		return result
	}
	size, err := w.fileStorage.Size(task.Destination)
	if err != nil {
		result.Class = domain.FailureFilesystem
		result.Err = fmt.Errorf("%w: stat committed file: %v", errpkg.ErrFilesystem, err)
		return result
	}
	result.BytesWritten = size
	return result
}

// contentRangeTotal extracts the complete length from a Content-Range header
// such as "bytes */5000" or "bytes 0-99/5000".
func contentRangeTotal(v string) (int64, bool) {
	_, total, found := strings.Cut(strings.TrimSpace(v), "/")
	if !found || total == "*" {
		return 0, false
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (w *HTTPFetcher) classifyTransportError(ctx context.Context, err error) (domain.FailureClass, error) {
	switch {
	case ctx.Err() != nil:
		return domain.FailureCanceled, ctx.Err()
	case errors.Is(err, errTooManyRedirects):
		return domain.FailureRequest, err
	default:
		return domain.FailureNetwork, fmt.Errorf("%w: %v", errpkg.ErrTransientNetwork, err)
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func (w *HTTPFetcher) parseRetryAfter(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			secs = 0
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		return max(at.Sub(w.clock.Now()), 0), true
	}
	return 0, false
}

func (w *HTTPFetcher) copyWithContext(ctx context.Context, dst *os.File, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
			nr, err := src.Read(buf)
			if nr > 0 {
				nw, werr := dst.Write(buf[0:nr])
				if nw > 0 {
					total += int64(nw)
				}
				if werr != nil {
					return total, fmt.Errorf("%w: write: %v", errpkg.ErrFilesystem, werr)
				}
				if nr != nw {
					return total, fmt.Errorf("%w: %v", errpkg.ErrFilesystem, io.ErrShortWrite)
				}
			}
			if err != nil {
				if err == io.EOF {
					return total, nil
				}
				return total, err
			}
		}
	}
}
