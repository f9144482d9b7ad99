package services

import (
	"fmt"
	"regexp"
)

// CertificateMarker is the phrase printed on the first page of every certificate.
const CertificateMarker = "Recommended Due Date"

// BoundaryDetector finds the pages on which certificates start.
type BoundaryDetector struct {
	marker *regexp.Regexp
}

// NewBoundaryDetector matches the given marker case-insensitively anywhere on
// a page. An empty marker selects CertificateMarker.
func NewBoundaryDetector(marker string) *BoundaryDetector {
	if marker == "" {
		marker = CertificateMarker
	}
	return &BoundaryDetector{marker: regexp.MustCompile("(?i)" + regexp.QuoteMeta(marker))}
}

// FindStartPages returns the strictly increasing 0-based start pages. Page 0
// is always a start: with no markers the document is one certificate, and
// pages before the first marker belong to the first certificate.
func (d *BoundaryDetector) FindStartPages(pageTexts []string) []int {
	starts := []int{0}
	for i, text := range pageTexts {
		if i > 0 && d.marker.MatchString(text) {
			starts = append(starts, i)
		}
	}
	return starts
}

// StartPages reads the per-page text of a document and locates its certificates.
// It also returns the page count.
func (d *BoundaryDetector) StartPages(doc PDFDocument, path string) ([]int, int, error) {
	total, err := doc.PageCount(path)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, fmt.Errorf("document %s has no pages", path)
	}
	texts, err := doc.PageTexts(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read page text: %w", err)
	}
	if len(texts) != total {
		return nil, 0, fmt.Errorf("text layer has %d pages but document has %d", len(texts), total)
	}
	return d.FindStartPages(texts), total, nil
}
