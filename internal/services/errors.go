package services

import (
	"errors"
	"fmt"
)

// Chunk-level failures. The coordinator records these and carries on.
var (
	ErrNoText                  = errors.New("no text extracted from PDF")
	ErrDueDateNotFound         = errors.New("due date not found")
	ErrCertificateTypeNotFound = errors.New("certificate type not found")
	ErrNoIdentifier            = errors.New("no ID (tag/unit/serial) found")
)

// Output directory refusals, reported under StagePrepare.
var (
	ErrOutputContainsInput = errors.New("output directory contains the input file")
	ErrOutputDirNotEmpty   = errors.New("output directory is not empty")
)

// Stages of a run that can fail fatally.
const (
	StageValidate = "validate"
	StagePrepare  = "prepare"
	StageOCR      = "ocr"
	StageSegment  = "segment"
)

// StageError is returned when a run aborts. Temporary files have already
// been removed by the time a caller sees it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
