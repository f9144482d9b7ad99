package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// OCREngine turns a scanned PDF into a searchable PDF with the same page count.
type OCREngine interface {
	Run(ctx context.Context, inputPath, outputPath string) error
}

// OCRConfig configures the ocrmypdf invocation.
type OCRConfig struct {
	Binary   string // default "ocrmypdf"
	Language string // default "eng"
	Force    bool   // re-recognise pages that already carry text
	Deskew   bool
	Jobs     int // 0 lets ocrmypdf decide
}

// OCRmyPDF runs the ocrmypdf command line tool.
type OCRmyPDF struct {
	cfg    OCRConfig
	runner Runner
	logger *slog.Logger
}

func NewOCRmyPDF(cfg OCRConfig, runner Runner, logger *slog.Logger) *OCRmyPDF {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Binary == "" {
		cfg.Binary = "ocrmypdf"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	return &OCRmyPDF{cfg: cfg, runner: runner, logger: logger}
}

// Args returns the ocrmypdf arguments for one conversion.
func (o *OCRmyPDF) Args(inputPath, outputPath string) []string {
	args := []string{"-l", o.cfg.Language}
	if o.cfg.Force {
		args = append(args, "--force-ocr")
	} else {
		args = append(args, "--skip-text")
	}
	if o.cfg.Deskew {
		args = append(args, "--deskew")
	}
	if o.cfg.Jobs > 0 {
		args = append(args, "--jobs", strconv.Itoa(o.cfg.Jobs))
	}
	return append(args, inputPath, outputPath)
}

func (o *OCRmyPDF) Run(ctx context.Context, inputPath, outputPath string) error {
	o.logger.Info("Running OCR.", "input", inputPath, "force", o.cfg.Force, "deskew", o.cfg.Deskew)
	_, errb, err := o.runner.Run(ctx, o.cfg.Binary, o.Args(inputPath, outputPath)...)
	if err != nil {
		msg := strings.TrimSpace(string(errb))
		if msg == "" {
			return fmt.Errorf("ocrmypdf: %w", err)
		}
		return fmt.Errorf("ocrmypdf: %w: %s", err, truncate(msg, 2<<10))
	}
	if _, err := os.Stat(outputPath); err != nil {
		return fmt.Errorf("ocrmypdf produced no output: %w", err)
	}
	return nil
}

// PassthroughOCR copies the input unchanged, for documents that already carry a text layer.
type PassthroughOCR struct{}

func (PassthroughOCR) Run(_ context.Context, inputPath, outputPath string) error {
	return copyFile(inputPath, outputPath)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return out.Close()
}
