package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fallwatch/internal/model"
)

// ReportWriter appends one human readable entry per single-shot run to a text file.
// A ReportWriter with an empty path records nothing.
type ReportWriter struct {
	path string
	mu   sync.Mutex
}

// NewReportWriter prepares the report file location.
func NewReportWriter(path string) (*ReportWriter, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	return &ReportWriter{path: path}, nil
}

// Record appends the outcome of one run.
func (r *ReportWriter) Record(result model.DetectionResult) error {
	if r.path == "" {
		return nil
	}

	capturedAt := result.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	entry := fmt.Sprintf("[%s] Image: %s -> %s\n%s\n\n",
		capturedAt.Format("2006-01-02 15:04:05"),
		result.SourceImage,
		result.ProcessedImage,
		Describe(result),
	)

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open report %s: %w", r.path, err)
	}
	defer file.Close()

	if _, err := file.WriteString(entry); err != nil {
		return fmt.Errorf("failed to append report: %w", err)
	}
	return nil
}

// Describe renders the verdict line used in the report and the logs.
func Describe(result model.DetectionResult) string {
	if result.FallDetected {
		return fmt.Sprintf("⚠️ Fall detected! Confidence: %.2f%%", result.Confidence)
	}
	return "✅ No fall detected"
}
