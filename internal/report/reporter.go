// Package report renders run statistics for humans.
package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/veranemoloko/bulk-downloader/internal/clock"
	"github.com/veranemoloko/bulk-downloader/internal/domain"
)

// maxListedErrors is how many errors the final report prints.
const maxListedErrors = 10

// Reporter formats statistics. It never mutates them.
type Reporter struct {
	clock clock.Clock
}

func New(c clock.Clock) *Reporter {
	if c == nil {
		c = clock.Real{}
	}
	return &Reporter{clock: c}
}

// Format returns the one-line progress summary.
func (r *Reporter) Format(s domain.Statistics) string {
	processed := s.Processed()
	percent := 0.0
	if s.Total > 0 {
		percent = float64(processed) / float64(s.Total) * 100
	}
	return fmt.Sprintf("Progress: %d/%d (%.1f%%) | downloaded %d skipped %d errored %d | %s | %d pauses",
		processed, s.Total, percent, s.Downloaded, s.Skipped, s.Errored, FormatSize(s.Bytes), s.PauseEvents)
}

// FormatFinal returns the multi-line end-of-run report.
func (r *Reporter) FormatFinal(s domain.Statistics) string {
	end := s.FinishedAt
	if end.IsZero() {
		end = r.clock.Now()
	}
	var elapsed time.Duration
	if !s.StartedAt.IsZero() {
		elapsed = end.Sub(s.StartedAt)
	}

	var b strings.Builder
	b.WriteString("Download run finished\n")
	fmt.Fprintf(&b, "Total time: %s\n", FormatDuration(elapsed))
	fmt.Fprintf(&b, "Total files: %d\n", s.Total)
	fmt.Fprintf(&b, "Downloaded: %d\n", s.Downloaded)
	fmt.Fprintf(&b, "Skipped: %d\n", s.Skipped)
	fmt.Fprintf(&b, "Corrupted (discarded): %d\n", s.Corrupted)
	fmt.Fprintf(&b, "Errored: %d\n", s.Errored)
	fmt.Fprintf(&b, "Total size: %s\n", FormatSize(s.Bytes))
	fmt.Fprintf(&b, "Pauses: %d\n", s.PauseEvents)

	if len(s.Errors) > 0 {
		b.WriteString("\nErrors encountered:\n")
		for i, e := range s.Errors {
			if i == maxListedErrors {
				break
			}
			fmt.Fprintf(&b, "  %d. %s\n", i+1, e)
		}
		if more := max(len(s.Errors)-maxListedErrors, 0) + s.ErrorsDropped; more > 0 {
			fmt.Fprintf(&b, "  ... and %d more errors\n", more)
		}
	}
	return b.String()
}

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatSize renders bytes with base-1024 units and at most two decimals.
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	i = min(i, len(sizeUnits)-1)
	v := float64(bytes) / math.Pow(1024, float64(i))
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64) + " " + sizeUnits[i]
}

// FormatDuration renders d as "Ns", "Nm Ns" or "Nh Nm".
func FormatDuration(d time.Duration) string {
	secs := int64(d.Round(time.Second) / time.Second)
	if secs < 0 {
		secs = 0
	}
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	default:
		return fmt.Sprintf("%dh %dm", secs/3600, (secs%3600)/60)
	}
}
