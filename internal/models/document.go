package models

import "time"

// Run statuses stored on RunDocument.Status.
const (
	StatusValidating = "VALIDATING"
	StatusProcessing = "PROCESSING"
	StatusPublishing = "PUBLISHING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// RunDocument represents the record for one certificate batch in Firestore.
// It tracks the overall status, the source file and the outcome counts.
type RunDocument struct {
	FileHash            string         `firestore:"fileHash,omitempty"`
	OriginalFilename    string         `firestore:"originalFilename,omitempty"`
	Status              string         `firestore:"status,omitempty"`
	ErrorDetails        string         `firestore:"errorDetails,omitempty"`
	RunID               string         `firestore:"runId,omitempty"`
	Total               int            `firestore:"total"`
	Successful          int            `firestore:"successful"`
	Failed              int            `firestore:"failed"`
	Failures            []ChunkFailure `firestore:"failures,omitempty"`
	ResultsPrefix       string         `firestore:"resultsPrefix,omitempty"`
	WorkflowExecutionID string         `firestore:"workflowExecutionId,omitempty"`
	CreatedAt           time.Time      `firestore:"createdAt,omitempty"`
	CompletedAt         time.Time      `firestore:"completedAt,omitempty"`
}
