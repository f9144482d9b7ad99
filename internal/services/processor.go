package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/Lllllllleong/certsplit/internal/models"
)

// Progress stages reported through ProgressFunc.
const (
	ProgressOCR      = "ocr"
	ProgressSegment  = "segment"
	ProgressChunk    = "chunk"
	ProgressOrganize = "organize"
	ProgressDone     = "done"
)

// Progress is one progress notification. Current and Total are set for chunk
// updates, which are sent after each chunk has been placed or preserved.
type Progress struct {
	Stage   string
	Message string
	Current int
	Total   int
}

// ProgressFunc receives progress on the goroutine running Process. Callers
// driving a UI must hand the update over to their own thread.
type ProgressFunc func(Progress)

// ProcessorConfig controls one Processor.
type ProcessorConfig struct {
	// OutputDir overrides the default {input dir}/{input stem}_processed.
	// Unlike the default it is only emptied when Clean is set.
	OutputDir    string
	Clean        bool
	AutoOrganize bool
	// Optimize rewrites the OCR output with pdfcpu before splitting.
	Optimize bool
	// WorkDir is the parent of the per-run temp dir; empty uses os.TempDir.
	WorkDir string
	// Marker overrides the certificate start phrase.
	Marker string
}

type optimizer interface {
	Optimize(src, dst string) error
}

// Processor drives one scanned PDF through OCR, segmentation and per-certificate naming.
type Processor struct {
	cfg       ProcessorConfig
	logger    *slog.Logger
	ocr       OCREngine
	doc       PDFDocument
	detector  *BoundaryDetector
	chunker   *ChunkExtractor
	corrector *TextCorrector
	extractor *MetadataExtractor
	namer     *FilenameGenerator
	organizer *OutputOrganizer
	progress  ProgressFunc
}

// NewProcessor wires the pipeline components around the OCR and PDF collaborators.
// A nil pattern config selects the built-in patterns.
func NewProcessor(cfg ProcessorConfig, ocr OCREngine, doc PDFDocument, patterns *PatternConfig, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	corrector := NewTextCorrector()
	return &Processor{
		cfg:       cfg,
		logger:    logger,
		ocr:       ocr,
		doc:       doc,
		detector:  NewBoundaryDetector(cfg.Marker),
		chunker:   NewChunkExtractor(doc, logger),
		corrector: corrector,
		extractor: NewMetadataExtractor(patterns, corrector),
		namer:     NewFilenameGenerator(),
		organizer: NewOutputOrganizer(logger),
	}
}

// OnProgress registers a progress callback.
func (p *Processor) OnProgress(fn ProgressFunc) *Processor {
	p.progress = fn
	return p
}

// OutputDirFor returns where results for inputPath are written.
func (p *Processor) OutputDirFor(inputPath string) string {
	if p.cfg.OutputDir != "" {
		return p.cfg.OutputDir
	}
	return filepath.Join(filepath.Dir(inputPath), fileStem(inputPath)+"_processed")
}

// Process runs the whole pipeline. OCR and segmentation failures abort the
// run with a *StageError; per-certificate failures are recorded in the result
// and the failing chunk is kept in the output directory. Temporary files are
// removed on every path. ctx bounds the external OCR process only.
func (p *Processor) Process(ctx context.Context, inputPath string) (*models.ProcessingResult, error) {
	return p.ProcessTo(ctx, inputPath, p.OutputDirFor(inputPath))
}

// ProcessTo is Process with an explicit output directory.
func (p *Processor) ProcessTo(ctx context.Context, inputPath, outputDir string) (*models.ProcessingResult, error) {
	runID := uuid.NewString()
	logCtx := p.logger.With("runId", runID, "input", inputPath)

	if err := validateInput(inputPath); err != nil {
		logCtx.Error("Invalid input.", "error", err)
		return nil, &StageError{Stage: StageValidate, Err: err}
	}

	workDir, err := os.MkdirTemp(p.cfg.WorkDir, "certsplit-*")
	if err != nil {
		return nil, &StageError{Stage: StagePrepare, Err: fmt.Errorf("failed to create temp dir: %w", err)}
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logCtx.Warn("Failed to remove temp directory.", "path", workDir, "error", err)
		}
	}()
	logCtx.Debug("Created temp directory.", "path", workDir)

	if err := p.prepareOutputDir(inputPath, outputDir); err != nil {
		return nil, p.fail(logCtx, StagePrepare, err)
	}

	ocrOutput := filepath.Join(workDir, fileStem(inputPath)+"_OCR.pdf")
	p.report(Progress{Stage: ProgressOCR, Message: "Starting OCR processing..."})
	if err := p.ocr.Run(ctx, inputPath, ocrOutput); err != nil {
		return nil, p.fail(logCtx, StageOCR, err)
	}
	p.report(Progress{Stage: ProgressOCR, Message: "OCR processing complete"})

	p.report(Progress{Stage: ProgressSegment, Message: "Splitting PDF into certificates..."})
	chunks, err := p.segment(logCtx, ocrOutput, workDir)
	if err != nil {
		return nil, p.fail(logCtx, StageSegment, err)
	}

	result := p.processChunks(logCtx, chunks, outputDir)
	result.RunID = runID

	if p.cfg.AutoOrganize {
		p.report(Progress{Stage: ProgressOrganize, Message: "Organizing files..."})
		if _, err := p.organizer.GroupByTag(outputDir); err != nil {
			logCtx.Warn("Organizing output failed.", "error", err)
		}
	}

	result.OutputDirectory = outputDir
	logCtx.Info("Processing complete.", "total", result.Total, "successful", result.Successful, "failed", result.Failed, "outputDir", outputDir)
	p.report(Progress{Stage: ProgressDone, Message: "Processing complete!"})
	return result, nil
}

func (p *Processor) segment(logCtx *slog.Logger, source, workDir string) ([]models.Chunk, error) {
	if p.cfg.Optimize {
		if opt, ok := p.doc.(optimizer); ok {
			optimized := filepath.Join(workDir, "optimized", filepath.Base(source))
			if err := os.MkdirAll(filepath.Dir(optimized), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create optimize dir: %w", err)
			}
			if err := opt.Optimize(source, optimized); err != nil {
				return nil, err
			}
			source = optimized
		}
	}

	starts, total, err := p.detector.StartPages(p.doc, source)
	if err != nil {
		return nil, err
	}
	logCtx.Info("Certificate boundaries found.", "pageCount", total, "certificates", len(starts), "startPages", starts)
	p.report(Progress{Stage: ProgressSegment, Message: fmt.Sprintf("Found %d certificates in %d pages, splitting...", len(starts), total)})

	return p.chunker.Extract(source, starts, total, filepath.Join(workDir, "split"))
}

// filenameSet holds the names assigned so far in one run.
type filenameSet map[string]struct{}

func (s filenameSet) has(name string) bool {
	_, ok := s[name]
	return ok
}

func (p *Processor) processChunks(logCtx *slog.Logger, chunks []models.Chunk, outputDir string) *models.ProcessingResult {
	result := &models.ProcessingResult{Total: len(chunks)}
	assigned := make(filenameSet, len(chunks))

	for i, chunk := range chunks {
		name, err := p.placeChunk(logCtx, chunk, outputDir, assigned)
		if err != nil {
			result.Failed++
			failure := models.ChunkFailure{
				Chunk:     filepath.Base(chunk.Path),
				StartPage: chunk.StartPage,
				EndPage:   chunk.EndPage,
				Message:   err.Error(),
			}
			logCtx.Error("Failed on chunk.", "chunk", failure.Chunk, "pages", chunk.PageLabel(), "error", err)
			if preserved, perr := preserveFailedChunk(chunk, outputDir); perr != nil {
				logCtx.Error("Could not preserve failed chunk.", "chunk", failure.Chunk, "error", perr)
			} else {
				failure.PreservedAs = preserved
			}
			result.Failures = append(result.Failures, failure)
		} else {
			result.Successful++
			result.Placed = append(result.Placed, name)
		}

		// Current counts finished chunks.
		p.report(Progress{
			Stage:   ProgressChunk,
			Message: fmt.Sprintf("Processed certificate %d/%d", i+1, len(chunks)),
			Current: i + 1,
			Total:   len(chunks),
		})
	}
	return result
}

// placeChunk extracts, corrects, parses and names one chunk, then moves it
// into outputDir. It returns the assigned filename.
func (p *Processor) placeChunk(logCtx *slog.Logger, chunk models.Chunk, outputDir string, assigned filenameSet) (string, error) {
	text, err := DocumentText(p.doc, chunk.Path)
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}

	meta, err := p.extractor.Extract(p.corrector.Correct(text))
	if err != nil {
		return "", err
	}

	name, err := p.namer.Generate(meta, false)
	if err != nil {
		return "", err
	}
	if assigned.has(name) {
		first := name
		if name, err = p.namer.Generate(meta, true); err != nil {
			return "", err
		}
		logCtx.Info("Filename collision resolved with serial.", "chunk", chunk.Index, "standard", first, "resolved", name)
		if assigned.has(name) {
			// A second collision overwrites the earlier file.
			logCtx.Warn("Serial filename also collides; earlier file will be replaced.", "chunk", chunk.Index, "filename", name)
		}
	}
	assigned[name] = struct{}{}

	if err := moveFile(chunk.Path, filepath.Join(outputDir, name)); err != nil {
		return "", fmt.Errorf("failed to place %s: %w", name, err)
	}
	logCtx.Debug("Certificate placed.", "chunk", chunk.Index, "pages", chunk.PageLabel(), "filename", name)
	return name, nil
}

// preserveFailedChunk moves a chunk that could not be named into outputDir as
// {chunk stem}_pages_{start+1}-{end}.pdf for manual triage.
func preserveFailedChunk(chunk models.Chunk, outputDir string) (string, error) {
	name := fmt.Sprintf("%s_pages_%s.pdf", fileStem(chunk.Path), chunk.PageLabel())
	if err := moveFile(chunk.Path, filepath.Join(outputDir, name)); err != nil {
		return "", err
	}
	return name, nil
}

func (p *Processor) fail(logCtx *slog.Logger, stage string, err error) error {
	logCtx.Error("Pipeline failed.", "stage", stage, "error", err)
	p.report(Progress{Stage: stage, Message: fmt.Sprintf("Error: %v", err)})
	return &StageError{Stage: stage, Err: err}
}

func (p *Processor) report(pr Progress) {
	p.logger.Debug(pr.Message, "stage", pr.Stage)
	if p.progress != nil {
		p.progress(pr)
	}
}

func validateInput(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("input path is empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access input: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input is a directory: %s", path)
	}
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return fmt.Errorf("input is not a PDF: %s", path)
	}
	return nil
}

// prepareOutputDir makes outputDir ready for a run. The default
// {stem}_processed dir belongs to certsplit and is always reset. Any other
// dir must be missing or empty unless Clean is set, and never holds the input.
func (p *Processor) prepareOutputDir(inputPath, outputDir string) error {
	out, err := filepath.Abs(outputDir)
	if err != nil {
		return fmt.Errorf("failed to resolve output dir %s: %w", outputDir, err)
	}
	in, err := filepath.Abs(inputPath)
	if err != nil {
		return fmt.Errorf("failed to resolve input %s: %w", inputPath, err)
	}
	if within(out, in) {
		return fmt.Errorf("%w: %s", ErrOutputContainsInput, outputDir)
	}

	def, err := filepath.Abs(filepath.Join(filepath.Dir(inputPath), fileStem(inputPath)+"_processed"))
	if err != nil {
		return fmt.Errorf("failed to resolve default output dir: %w", err)
	}
	if out == def || p.cfg.Clean {
		return resetDir(outputDir)
	}

	entries, err := os.ReadDir(outputDir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir %s: %w", outputDir, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to read output dir %s: %w", outputDir, err)
	case len(entries) > 0:
		return fmt.Errorf("%w: %s (use --clean to empty it)", ErrOutputDirNotEmpty, outputDir)
	}
	return nil
}

// within reports whether path is dir or lies below it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// resetDir removes any previous output so a run never mixes old and new files.
func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear output dir %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir %s: %w", dir, err)
	}
	return nil
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
