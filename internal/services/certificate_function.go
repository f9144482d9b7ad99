package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Lllllllleong/certsplit/internal/models"
)

// SourceStore fetches the uploaded batch PDF.
type SourceStore interface {
	Download(ctx context.Context, bucket, object, destPath string) error
}

// RunRecorder persists the status of each batch run.
type RunRecorder interface {
	FindByHash(ctx context.Context, fileHash string) (id, status string, found bool, err error)
	Create(ctx context.Context, run models.RunDocument) (string, error)
	UpdateStatus(ctx context.Context, id, status, errDetails string) error
	Complete(ctx context.Context, id string, result *models.ProcessingResult, resultsPrefix, executionID string) error
}

// WorkflowStarter hands a finished batch to a downstream workflow.
type WorkflowStarter interface {
	Trigger(ctx context.Context, payload any) (string, error)
}

type CertificateFunctionConfig struct {
	ResultsBucket string
	WorkDir       string
}

// CertificateFunction processes batch PDFs uploaded to a GCS bucket and
// publishes the named certificates to the results bucket under the run's id.
type CertificateFunction struct {
	source    SourceStore
	runs      RunRecorder
	workflow  WorkflowStarter
	processor *Processor
	publisher *ResultPublisher
	config    CertificateFunctionConfig
}

// NewCertificateFunction wires the function. workflow may be nil.
func NewCertificateFunction(cfg CertificateFunctionConfig, source SourceStore, runs RunRecorder, workflow WorkflowStarter, processor *Processor, publisher *ResultPublisher) *CertificateFunction {
	return &CertificateFunction{
		source:    source,
		runs:      runs,
		workflow:  workflow,
		processor: processor,
		publisher: publisher,
		config:    cfg,
	}
}

func (f *CertificateFunction) Process(ctx context.Context, e models.GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	logCtx.Info("Processing new GCS object.")

	if !strings.EqualFold(path.Ext(e.Name), ".pdf") {
		logCtx.Info("Object is not a PDF. Skipping.")
		return nil
	}

	tempDir, err := os.MkdirTemp(f.config.WorkDir, "certsplit-function-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)
	logCtx.Info("Created temp directory.", "path", tempDir)

	sourcePdfPath := filepath.Join(tempDir, path.Base(e.Name))
	if err := f.source.Download(ctx, e.Bucket, e.Name, sourcePdfPath); err != nil {
		logCtx.Error("Failed to download source PDF", "error", err)
		return err
	}

	fileHash, err := calculateFileHash(sourcePdfPath)
	if err != nil {
		logCtx.Error("Failed to calculate file hash", "error", err)
		return fmt.Errorf("failed to calculate file hash: %w", err)
	}
	logCtx = logCtx.With("fileHash", fileHash)

	docID, skip, err := f.claimRun(ctx, logCtx, fileHash, e.Name)
	if err != nil {
		logCtx.Error("Failed to record run", "error", err)
		return err
	}
	if skip {
		return nil
	}
	logCtx = logCtx.With("documentId", docID)

	if err := f.runs.UpdateStatus(ctx, docID, models.StatusProcessing, ""); err != nil {
		return f.handleError(ctx, logCtx, docID, "failed to update status to PROCESSING", err)
	}
	result, err := f.processor.ProcessTo(ctx, sourcePdfPath, filepath.Join(tempDir, "results"))
	if err != nil {
		return f.handleError(ctx, logCtx, docID, "certificate processing failed", err)
	}
	logCtx.Info("Certificates processed.", "total", result.Total, "successful", result.Successful, "failed", result.Failed)

	if err := f.runs.UpdateStatus(ctx, docID, models.StatusPublishing, ""); err != nil {
		return f.handleError(ctx, logCtx, docID, "failed to update status to PUBLISHING", err)
	}
	if _, err := f.publisher.Publish(ctx, result.OutputDirectory, f.config.ResultsBucket, docID); err != nil {
		return f.handleError(ctx, logCtx, docID, "failed to publish results", err)
	}

	executionID, err := f.triggerWorkflow(ctx, logCtx, docID, result)
	if err != nil {
		return f.handleError(ctx, logCtx, docID, "failed to trigger workflow execution", err)
	}

	if err := f.runs.Complete(ctx, docID, result, docID, executionID); err != nil {
		return f.handleError(ctx, logCtx, docID, "failed to record results", err)
	}
	logCtx.Info("Batch complete.", "resultsPrefix", docID)
	return nil
}

// claimRun returns the document to record this run on. Files already seen
// are skipped unless their earlier run failed, in which case it is retried
// on the same document.
func (f *CertificateFunction) claimRun(ctx context.Context, logCtx *slog.Logger, fileHash, filename string) (string, bool, error) {
	docID, status, found, err := f.runs.FindByHash(ctx, fileHash)
	if err != nil {
		return "", false, err
	}
	if found && status != models.StatusFailed {
		logCtx.Info("Duplicate file detected. Skipping.", "existingDocId", docID, "status", status)
		return docID, true, nil
	}
	if found {
		logCtx.Info("Retrying previously failed run.", "existingDocId", docID)
		if err := f.runs.UpdateStatus(ctx, docID, models.StatusValidating, ""); err != nil {
			return "", false, err
		}
		return docID, false, nil
	}

	docID, err = f.runs.Create(ctx, models.RunDocument{
		FileHash:         fileHash,
		OriginalFilename: filename,
		Status:           models.StatusValidating,
	})
	if err != nil {
		return "", false, err
	}
	logCtx.Info("Created run document in Firestore.", "documentId", docID)
	return docID, false, nil
}

func (f *CertificateFunction) triggerWorkflow(ctx context.Context, logCtx *slog.Logger, docID string, result *models.ProcessingResult) (string, error) {
	if f.workflow == nil {
		return "", nil
	}
	logCtx.Info("Triggering workflow.")
	return f.workflow.Trigger(ctx, models.WorkflowPayload{
		DocumentID:    docID,
		RunID:         result.RunID,
		ResultsBucket: f.config.ResultsBucket,
		ResultsPrefix: docID,
		Total:         result.Total,
		Successful:    result.Successful,
		Failed:        result.Failed,
	})
}

func (f *CertificateFunction) handleError(ctx context.Context, logCtx *slog.Logger, docID, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	if err := f.runs.UpdateStatus(ctx, docID, models.StatusFailed, fullError); err != nil {
		logCtx.Error("CRITICAL: Failed to update Firestore status to FAILED after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s: %w", message, originalErr)
}

func calculateFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
