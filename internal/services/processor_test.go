package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/certsplit/internal/models"
)

// batchPages is a 12-page batch with certificates starting at pages 0, 5 and 9.
// The first two share a standard filename; the third has no identifier.
func batchPages() []string {
	pages := make([]string, 12)
	for i := range pages {
		pages[i] = "continuation\n"
	}
	pages[0] = "TEST CERTIFICATE\nTag No: KT-001\nSerial No: 111\nRecommended Due Date: 05/03/2025\n"
	pages[5] = "TEST CERTIFICATE\nTag No: KT-001\nSerial No: 222\nRecommended Due Date: 05/03/2025\n"
	pages[9] = "TEST CERTIFICATE\nRecommended Due Date: 01/01/2026\n"
	return pages
}

func newTestProcessor(cfg ProcessorConfig, ocr OCREngine, doc PDFDocument) *Processor {
	if ocr == nil {
		ocr = PassthroughOCR{}
	}
	if doc == nil {
		doc = &fakeDoc{}
	}
	return NewProcessor(cfg, ocr, doc, nil, nil)
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary files must be removed")
}

func TestProcessor_Process(t *testing.T) {
	dir := t.TempDir()
	work := t.TempDir()
	input := filepath.Join(dir, "batch.pdf")
	writePages(t, input, batchPages()...)

	// Stale output from an earlier run is cleared.
	outDir := filepath.Join(dir, "batch_processed")
	require.NoError(t, os.MkdirAll(outDir, 0o755))
	touch(t, filepath.Join(outDir, "stale.pdf"))

	var (
		progress []Progress
		placed   []int // files in outDir at each chunk update
	)
	p := newTestProcessor(ProcessorConfig{AutoOrganize: true, WorkDir: work}, nil, nil)
	p.OnProgress(func(pr Progress) {
		progress = append(progress, pr)
		if pr.Stage == ProgressChunk {
			entries, err := os.ReadDir(outDir)
			require.NoError(t, err)
			placed = append(placed, len(entries))
		}
	})

	result, err := p.Process(context.Background(), input)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, outDir, result.OutputDirectory)
	assert.Equal(t, []string{
		"20250305_KT-001_TestCertificate.pdf",
		"20250305_KT-001_222_TestCertificate.pdf",
	}, result.Placed)
	assert.Equal(t, []models.ChunkFailure{{
		Chunk:       "batch_OCR_cert_3.pdf",
		StartPage:   9,
		EndPage:     12,
		Message:     ErrNoIdentifier.Error(),
		PreservedAs: "batch_OCR_cert_3_pages_10-12.pdf",
	}}, result.Failures)

	first, err := os.ReadFile(filepath.Join(outDir, "KT-001", "20250305_KT-001_TestCertificate.pdf"))
	require.NoError(t, err)
	assert.Contains(t, string(first), "Serial No: 111")
	assert.Equal(t, 5, strings.Count(string(first), pageBreak)+1)

	second, err := os.ReadFile(filepath.Join(outDir, "KT-001", "20250305_KT-001_222_TestCertificate.pdf"))
	require.NoError(t, err)
	assert.Contains(t, string(second), "Serial No: 222")

	assert.FileExists(t, filepath.Join(outDir, "batch_OCR_cert_3_pages_10-12.pdf"))
	assert.NoFileExists(t, filepath.Join(outDir, "stale.pdf"))
	assertDirEmpty(t, work)

	var stages []string
	var chunkUpdates []Progress
	for _, pr := range progress {
		stages = append(stages, pr.Stage)
		if pr.Stage == ProgressChunk {
			chunkUpdates = append(chunkUpdates, pr)
		}
	}
	assert.Equal(t, ProgressOCR, stages[0])
	assert.Equal(t, ProgressDone, stages[len(stages)-1])
	assert.Contains(t, stages, ProgressOrganize)
	require.Len(t, chunkUpdates, 3)
	assert.Equal(t, 3, chunkUpdates[2].Current)
	assert.Equal(t, 3, chunkUpdates[2].Total)
	assert.Equal(t, []int{1, 2, 3}, placed, "chunk updates follow each placed or preserved chunk")
}

func TestProcessor_NoOrganizeKeepsFlatOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "batch.pdf")
	writePages(t, input, batchPages()...)
	outDir := filepath.Join(dir, "out")

	result, err := newTestProcessor(ProcessorConfig{OutputDir: outDir}, nil, nil).Process(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, outDir, result.OutputDirectory)
	assert.FileExists(t, filepath.Join(outDir, "20250305_KT-001_TestCertificate.pdf"))
	assert.FileExists(t, filepath.Join(outDir, "20250305_KT-001_222_TestCertificate.pdf"))
}

func TestProcessor_OutputDirSafety(t *testing.T) {
	tests := []struct {
		name    string
		output  func(inputDir string) string
		clean   bool
		wantErr error
	}{
		{"input dir", func(in string) string { return in }, false, ErrOutputContainsInput},
		{"input dir with clean", func(in string) string { return in }, true, ErrOutputContainsInput},
		{"parent of input dir", func(in string) string { return filepath.Dir(in) }, true, ErrOutputContainsInput},
		{"non-empty dir", func(in string) string { return filepath.Join(filepath.Dir(in), "reports") }, false, ErrOutputDirNotEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			inputDir := filepath.Join(root, "scans")
			require.NoError(t, os.MkdirAll(filepath.Join(root, "reports"), 0o755))
			require.NoError(t, os.MkdirAll(inputDir, 0o755))
			input := filepath.Join(inputDir, "batch.pdf")
			writePages(t, input, batchPages()...)
			sibling := filepath.Join(inputDir, "unrelated-report.docx")
			touch(t, sibling)
			report := filepath.Join(root, "reports", "q1.xlsx")
			touch(t, report)

			work := t.TempDir()
			p := newTestProcessor(ProcessorConfig{OutputDir: tt.output(inputDir), Clean: tt.clean, WorkDir: work}, nil, nil)
			result, err := p.Process(context.Background(), input)
			assert.Nil(t, result)

			var stageErr *StageError
			require.True(t, errors.As(err, &stageErr), "got %v", err)
			assert.Equal(t, StagePrepare, stageErr.Stage)
			assert.ErrorIs(t, err, tt.wantErr)

			assert.FileExists(t, input)
			assert.FileExists(t, sibling)
			assert.FileExists(t, report)
			assertDirEmpty(t, work)
		})
	}
}

func TestProcessor_ExplicitOutputDir(t *testing.T) {
	tests := []struct {
		name      string
		existing  []string
		clean     bool
		wantStale bool
	}{
		{"missing dir is created", nil, false, false},
		{"empty dir is used", []string{}, false, false},
		{"clean empties a non-empty dir", []string{"stale.pdf"}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			input := filepath.Join(dir, "batch.pdf")
			writePages(t, input, batchPages()...)
			outDir := filepath.Join(t.TempDir(), "out")
			if tt.existing != nil {
				require.NoError(t, os.MkdirAll(outDir, 0o755))
				for _, name := range tt.existing {
					touch(t, filepath.Join(outDir, name))
				}
			}

			p := newTestProcessor(ProcessorConfig{OutputDir: outDir, Clean: tt.clean}, nil, nil)
			result, err := p.Process(context.Background(), input)
			require.NoError(t, err)
			assert.Equal(t, 2, result.Successful)
			assert.NoFileExists(t, filepath.Join(outDir, "stale.pdf"))
			assert.FileExists(t, input)
		})
	}
}

func TestProcessor_SerialCollisionOverwrites(t *testing.T) {
	cert := func(ident, sheet string) string {
		return "TEST CERTIFICATE\n" + ident + "Recommended Due Date: 05/03/2025\nSheet " + sheet + "\n"
	}
	tests := []struct {
		name       string
		pages      []string
		wantPlaced []string
		wantFiles  map[string]string // filename -> sheet it must hold
	}{
		{
			name: "serial only",
			pages: []string{
				cert("Serial No: 111\n", "A"),
				cert("Serial No: 111\n", "B"),
			},
			wantPlaced: []string{
				"20250305_111_TestCertificate.pdf",
				"20250305_111_TestCertificate.pdf",
			},
			wantFiles: map[string]string{"20250305_111_TestCertificate.pdf": "Sheet B"},
		},
		{
			name: "tag and serial",
			pages: []string{
				cert("Tag No: KT-001\nSerial No: 111\n", "A"),
				cert("Tag No: KT-001\nSerial No: 111\n", "B"),
				cert("Tag No: KT-001\nSerial No: 111\n", "C"),
			},
			wantPlaced: []string{
				"20250305_KT-001_TestCertificate.pdf",
				"20250305_KT-001_111_TestCertificate.pdf",
				"20250305_KT-001_111_TestCertificate.pdf",
			},
			wantFiles: map[string]string{
				"20250305_KT-001_TestCertificate.pdf":     "Sheet A",
				"20250305_KT-001_111_TestCertificate.pdf": "Sheet C",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			input := filepath.Join(dir, "batch.pdf")
			writePages(t, input, tt.pages...)

			result, err := newTestProcessor(ProcessorConfig{}, nil, nil).Process(context.Background(), input)
			require.NoError(t, err)
			assert.Equal(t, len(tt.pages), result.Successful)
			assert.Zero(t, result.Failed)
			assert.Equal(t, tt.wantPlaced, result.Placed)

			entries, err := os.ReadDir(result.OutputDirectory)
			require.NoError(t, err)
			assert.Len(t, entries, len(tt.wantFiles))
			for name, sheet := range tt.wantFiles {
				data, err := os.ReadFile(filepath.Join(result.OutputDirectory, name))
				require.NoError(t, err)
				assert.Contains(t, string(data), sheet)
			}
		})
	}
}

func TestProcessor_ChunkFailures(t *testing.T) {
	tests := []struct {
		name    string
		pages   []string
		wantErr error
	}{
		{"whitespace only", []string{"  \n\t "}, ErrNoText},
		{"missing due date", []string{"TEST CERTIFICATE\nTag No: KT-1"}, ErrDueDateNotFound},
		{"missing certificate type", []string{"Tag No: KT-1\nRecommended Due Date: 05/03/2025"}, ErrCertificateTypeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			input := filepath.Join(dir, "scan.pdf")
			writePages(t, input, tt.pages...)

			result, err := newTestProcessor(ProcessorConfig{}, nil, nil).Process(context.Background(), input)
			require.NoError(t, err, "chunk failures never abort the run")
			assert.Equal(t, 1, result.Total)
			assert.Equal(t, 0, result.Successful)
			assert.Equal(t, 1, result.Failed)
			require.Len(t, result.Failures, 1)
			assert.Equal(t, tt.wantErr.Error(), result.Failures[0].Message)
			assert.FileExists(t, filepath.Join(result.OutputDirectory, "scan_OCR_cert_1_pages_1-1.pdf"))
		})
	}
}

func TestProcessor_FatalStages(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "batch.pdf")
	writePages(t, input, batchPages()...)
	notPDF := filepath.Join(dir, "batch.txt")
	touch(t, notPDF)

	tests := []struct {
		name      string
		input     string
		ocr       OCREngine
		doc       PDFDocument
		wantStage string
		wantErr   error
	}{
		{"missing input", filepath.Join(dir, "missing.pdf"), nil, nil, StageValidate, nil},
		{"not a pdf", notPDF, nil, nil, StageValidate, nil},
		{"directory", dir, nil, nil, StageValidate, nil},
		{"ocr fails", input, failingOCR{err: errBoom}, nil, StageOCR, errBoom},
		{"page count fails", input, nil, &fakeDoc{pageCountErr: errBoom}, StageSegment, errBoom},
		{"page copy fails", input, nil, &fakeDoc{copyErr: errBoom}, StageSegment, errBoom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			work := t.TempDir()
			p := newTestProcessor(ProcessorConfig{WorkDir: work, OutputDir: filepath.Join(t.TempDir(), "out")}, tt.ocr, tt.doc)

			result, err := p.Process(context.Background(), tt.input)
			assert.Nil(t, result)

			var stageErr *StageError
			require.True(t, errors.As(err, &stageErr), "got %v", err)
			assert.Equal(t, tt.wantStage, stageErr.Stage)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assertDirEmpty(t, work)
		})
	}
}

func TestProcessor_OutputDirFor(t *testing.T) {
	p := newTestProcessor(ProcessorConfig{}, nil, nil)
	assert.Equal(t, filepath.Join("scans", "March batch_processed"), p.OutputDirFor(filepath.Join("scans", "March batch.pdf")))

	p = newTestProcessor(ProcessorConfig{OutputDir: "elsewhere"}, nil, nil)
	assert.Equal(t, "elsewhere", p.OutputDirFor(filepath.Join("scans", "March batch.pdf")))
}
