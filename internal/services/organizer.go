package services

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var baseTagPattern = regexp.MustCompile(`^([A-Za-z]{2,5})-(\d+)`)

// OrganizeSummary reports what GroupByTag did.
type OrganizeSummary struct {
	Moved   int
	Skipped int
	Errors  []error
}

// OutputOrganizer groups named certificates into per-tag folders.
type OutputOrganizer struct {
	logger *slog.Logger
}

func NewOutputOrganizer(logger *slog.Logger) *OutputOrganizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutputOrganizer{logger: logger}
}

// BaseTag returns the letters-digits tag from the second underscore-delimited
// part of a filename, e.g. "KT-001" for "20250305_KT-001_TestCertificate.pdf".
func BaseTag(filename string) (string, bool) {
	parts := strings.SplitN(filename, "_", 3)
	if len(parts) < 2 {
		return "", false
	}
	m := baseTagPattern.FindStringSubmatch(parts[1])
	if m == nil {
		return "", false
	}
	return m[1] + "-" + m[2], true
}

// GroupByTag moves every top-level .pdf in dir whose name carries a base tag
// into dir/<tag>/. A failed move is logged and recorded; the rest carry on.
func (o *OutputOrganizer) GroupByTag(dir string) (OrganizeSummary, error) {
	var summary OrganizeSummary
	entries, err := os.ReadDir(dir)
	if err != nil {
		return summary, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".pdf") {
			continue
		}
		tag, ok := BaseTag(name)
		if !ok {
			summary.Skipped++
			continue
		}
		if err := o.moveInto(dir, tag, name); err != nil {
			o.logger.Warn("Failed to organize file.", "file", name, "tag", tag, "error", err)
			summary.Errors = append(summary.Errors, fmt.Errorf("%s: %w", name, err))
			continue
		}
		summary.Moved++
	}
	o.logger.Info("Output organized.", "dir", dir, "moved", summary.Moved, "skipped", summary.Skipped, "errors", len(summary.Errors))
	return summary, nil
}

func (o *OutputOrganizer) moveInto(dir, tag, name string) error {
	dest := filepath.Join(dir, tag)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return moveFile(filepath.Join(dir, name), filepath.Join(dest, name))
}
