package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/Lllllllleong/certsplit/internal/models"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// RunStore keeps one RunDocument per uploaded batch.
type RunStore struct {
	client     *firestore.Client
	collection string
}

func NewRunStore(ctx context.Context, projectID, collection string) (*RunStore, error) {
	client, err := NewFirestoreClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &RunStore{client: client, collection: collection}, nil
}

func (s *RunStore) Close() error {
	return s.client.Close()
}

// FindByHash returns the id and status of a run recorded for the same file contents.
func (s *RunStore) FindByHash(ctx context.Context, fileHash string) (string, string, bool, error) {
	docs, err := s.client.Collection(s.collection).Where("fileHash", "==", fileHash).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return "", "", false, fmt.Errorf("failed to query for duplicates: %w", err)
	}
	if len(docs) == 0 {
		return "", "", false, nil
	}
	var run models.RunDocument
	if err := docs[0].DataTo(&run); err != nil {
		return "", "", false, fmt.Errorf("failed to decode run %s: %w", docs[0].Ref.ID, err)
	}
	return docs[0].Ref.ID, run.Status, true, nil
}

func (s *RunStore) Create(ctx context.Context, run models.RunDocument) (string, error) {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	docRef, _, err := s.client.Collection(s.collection).Add(ctx, run)
	if err != nil {
		return "", fmt.Errorf("failed to create run document: %w", err)
	}
	return docRef.ID, nil
}

// UpdateStatus sets the status and replaces errorDetails, clearing it when empty.
func (s *RunStore) UpdateStatus(ctx context.Context, id, status, errDetails string) error {
	updates := []firestore.Update{
		{Path: "status", Value: status},
		{Path: "errorDetails", Value: errDetails},
	}
	if _, err := s.client.Collection(s.collection).Doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update status to %s: %w", status, err)
	}
	return nil
}

// Complete stores the outcome of a run and marks it COMPLETED.
func (s *RunStore) Complete(ctx context.Context, id string, result *models.ProcessingResult, resultsPrefix, executionID string) error {
	updates := []firestore.Update{
		{Path: "status", Value: models.StatusCompleted},
		{Path: "runId", Value: result.RunID},
		{Path: "total", Value: result.Total},
		{Path: "successful", Value: result.Successful},
		{Path: "failed", Value: result.Failed},
		{Path: "failures", Value: result.Failures},
		{Path: "resultsPrefix", Value: resultsPrefix},
		{Path: "completedAt", Value: time.Now()},
	}
	if executionID != "" {
		updates = append(updates, firestore.Update{Path: "workflowExecutionId", Value: executionID})
	}
	if _, err := s.client.Collection(s.collection).Doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to record results: %w", err)
	}
	return nil
}
