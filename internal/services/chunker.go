package services

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Lllllllleong/certsplit/internal/models"
)

// PageRange is a half-open 0-based page interval.
type PageRange struct {
	Start int
	End   int
}

// ChunkRanges turns start pages into contiguous ranges covering [0, totalPages).
// The end of each range is the next start page, or totalPages for the last one.
func ChunkRanges(starts []int, totalPages int) ([]PageRange, error) {
	if totalPages <= 0 {
		return nil, fmt.Errorf("document has no pages")
	}
	if len(starts) == 0 || starts[0] != 0 {
		return nil, fmt.Errorf("start pages must begin at page 0, got %v", starts)
	}
	ranges := make([]PageRange, 0, len(starts))
	for i, start := range starts {
		end := totalPages
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		if start >= end || end > totalPages {
			return nil, fmt.Errorf("invalid start pages %v for %d pages", starts, totalPages)
		}
		ranges = append(ranges, PageRange{Start: start, End: end})
	}
	return ranges, nil
}

// ChunkExtractor writes each certificate's pages into its own PDF.
type ChunkExtractor struct {
	doc    PDFDocument
	logger *slog.Logger
}

func NewChunkExtractor(doc PDFDocument, logger *slog.Logger) *ChunkExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChunkExtractor{doc: doc, logger: logger}
}

// Extract copies every range of src into outDir as {stem}_cert_{n}.pdf,
// numbered from 1. Any copy error aborts extraction.
func (x *ChunkExtractor) Extract(src string, starts []int, totalPages int, outDir string) ([]models.Chunk, error) {
	ranges, err := ChunkRanges(starts, totalPages)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create chunk dir: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	chunks := make([]models.Chunk, 0, len(ranges))
	for i, r := range ranges {
		chunk := models.Chunk{
			Index:     i + 1,
			Path:      filepath.Join(outDir, fmt.Sprintf("%s_cert_%d.pdf", stem, i+1)),
			StartPage: r.Start,
			EndPage:   r.End,
		}
		if err := x.doc.CopyPages(src, r.Start, r.End, chunk.Path); err != nil {
			return nil, fmt.Errorf("chunk %d (pages %s): %w", chunk.Index, chunk.PageLabel(), err)
		}
		x.logger.Debug("Chunk written.", "chunk", chunk.Index, "pages", chunk.PageLabel(), "path", chunk.Path)
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}
