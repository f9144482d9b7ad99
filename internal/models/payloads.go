package models

// These structs define the JSON payloads exchanged with GCS events and the
// downstream Cloud Workflow.

// GCSEvent is the payload of a GCS object-finalized event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// WorkflowPayload is the argument handed to the downstream workflow once a batch is published.
type WorkflowPayload struct {
	DocumentID    string `json:"documentId"`
	RunID         string `json:"runId"`
	ResultsBucket string `json:"resultsBucket"`
	ResultsPrefix string `json:"resultsPrefix"`
	Total         int    `json:"total"`
	Successful    int    `json:"successful"`
	Failed        int    `json:"failed"`
}
