// Package classifier detects artifacts that are really error or quota pages
// served with a success status. The heuristics look only at the written size,
// so they are no substitute for checksum verification when one is available.
package classifier

import (
	"path/filepath"
	"strings"

	"github.com/veranemoloko/bulk-downloader/internal/domain"
)

const (
	ReasonErrorPageSize = "error-page-size-match"
	ReasonBelowMinimum  = "below-minimum-size"
)

// Config holds the size thresholds.
type Config struct {
	// ErrorPageSize is the byte size of the upstream's quota/error page.
	ErrorPageSize int64
	// Tolerance widens ErrorPageSize into the band [size-tol, size+tol].
	Tolerance int64
	// MinBinarySize is the smallest plausible size of a non-text artifact.
	MinBinarySize int64
}

// DefaultConfig matches the Google Drive quota page (1960 bytes, 1951..1969).
var DefaultConfig = Config{
	ErrorPageSize: 1960,
	Tolerance:     9,
	MinBinarySize: 1024,
}

// Verdict is the classification result.
type Verdict int

const (
	VerdictSuccess Verdict = iota
	VerdictCorrupted
	VerdictSuspicious
)

func (v Verdict) String() string {
	switch v {
	case VerdictCorrupted:
		return "corrupted"
	case VerdictSuspicious:
		return "suspicious"
	default:
		return "success"
	}
}

// Result carries the verdict and, when it is not a success, the reason.
type Result struct {
	Verdict Verdict
	Reason  string
}

// Classifier applies Config to completed artifacts.
type Classifier struct {
	cfg Config
}

func New(cfg Config) *Classifier {
	if cfg.Tolerance < 0 {
		cfg.Tolerance = 0
	}
	return &Classifier{cfg: cfg}
}

// Classify decides whether an artifact of the given size is usable.
func (c *Classifier) Classify(size int64, class domain.ContentClass) Result {
	if c.cfg.ErrorPageSize > 0 && abs(size-c.cfg.ErrorPageSize) <= c.cfg.Tolerance {
		return Result{Verdict: VerdictCorrupted, Reason: ReasonErrorPageSize}
	}
	if class != domain.ContentText && size < c.cfg.MinBinarySize {
		return Result{Verdict: VerdictSuspicious, Reason: ReasonBelowMinimum}
	}
	return Result{Verdict: VerdictSuccess}
}

// Outcome converts a classification into the task outcome for size bytes.
func (r Result) Outcome(size int64) domain.TaskOutcome {
	switch r.Verdict {
	case VerdictCorrupted:
		return domain.Corrupted(size, r.Reason)
	case VerdictSuspicious:
		return domain.Suspicious(size, r.Reason)
	default:
		return domain.Success(size)
	}
}

var textExtensions = map[string]struct{}{
	".txt": {}, ".json": {}, ".xml": {}, ".css": {}, ".js": {},
	".csv": {}, ".md": {}, ".html": {}, ".htm": {}, ".yaml": {}, ".yml": {},
}

// ClassFor infers the content class of a file from its extension.
func ClassFor(name string) domain.ContentClass {
	if _, ok := textExtensions[strings.ToLower(filepath.Ext(name))]; ok {
		return domain.ContentText
	}
	return domain.ContentBinary
}

// ResolveClass returns hint when set, otherwise the class inferred from name.
func ResolveClass(hint domain.ContentClass, name string) domain.ContentClass {
	if hint != domain.ContentUnknown {
		return hint
	}
	return ClassFor(name)
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
