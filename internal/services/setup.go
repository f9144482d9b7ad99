package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/certsplit/internal/config"
	"github.com/Lllllllleong/certsplit/internal/gcp"
)

// NewProcessorFromConfig builds a Processor backed by ocrmypdf (unless OCR
// is disabled) and the pdfcpu/ledongthuc PDF tools.
func NewProcessorFromConfig(cfg *config.Config, logger *slog.Logger) (*Processor, error) {
	patterns, err := LoadPatternConfig(cfg.Pipeline.PatternsFile)
	if err != nil {
		return nil, err
	}

	var ocr OCREngine = PassthroughOCR{}
	if !cfg.OCR.Disabled {
		ocr = NewOCRmyPDF(OCRConfig{
			Binary:   cfg.OCR.Binary,
			Language: cfg.OCR.Language,
			Force:    cfg.OCR.Force,
			Deskew:   cfg.OCR.Deskew,
			Jobs:     cfg.OCR.Jobs,
		}, ExecRunner{Logger: logger}, logger)
	}

	return NewProcessor(ProcessorConfig{
		OutputDir:    cfg.Pipeline.OutputDir,
		Clean:        cfg.Pipeline.Clean,
		AutoOrganize: cfg.Pipeline.AutoOrganize,
		Optimize:     cfg.Pipeline.Optimize,
		WorkDir:      cfg.Pipeline.WorkDir,
		Marker:       cfg.Pipeline.Marker,
	}, ocr, NewPDFTools(), patterns, logger), nil
}

// NewCertificateFunctionFromConfig creates the GCP clients and wires the cloud function.
func NewCertificateFunctionFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*CertificateFunction, error) {
	if err := cfg.ValidateCloud(); err != nil {
		return nil, err
	}

	processor, err := NewProcessorFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	objects, err := gcp.NewObjectStore(ctx)
	if err != nil {
		return nil, err
	}
	runs, err := gcp.NewRunStore(ctx, cfg.Cloud.ProjectID, cfg.Cloud.FirestoreCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	var workflow WorkflowStarter
	if cfg.Cloud.WorkflowID != "" {
		trigger, err := gcp.NewWorkflowTrigger(ctx, cfg.Cloud.ProjectID, cfg.Cloud.WorkflowLocation, cfg.Cloud.WorkflowID)
		if err != nil {
			return nil, err
		}
		workflow = trigger
	}

	publisher := NewResultPublisher(objects, PublisherConfig{Concurrency: cfg.Cloud.UploadConcurrency}, logger)
	f := NewCertificateFunction(CertificateFunctionConfig{
		ResultsBucket: cfg.Cloud.ResultsBucket,
		WorkDir:       cfg.Pipeline.WorkDir,
	}, objects, runs, workflow, processor, publisher)

	logger.Info("Certificate function initialized.", "resultsBucket", cfg.Cloud.ResultsBucket, "workflowId", cfg.Cloud.WorkflowID)
	return f, nil
}
