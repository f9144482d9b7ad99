package models

import "fmt"

// CertificateMetadata holds the fields parsed from one certificate's text.
// Optional identifiers are empty when absent.
type CertificateMetadata struct {
	DueDate         string `json:"dueDate" firestore:"dueDate"` // YYYYMMDD
	Tag             string `json:"tag,omitempty" firestore:"tag,omitempty"`
	Serial          string `json:"serial,omitempty" firestore:"serial,omitempty"`
	UnitID          string `json:"unitId,omitempty" firestore:"unitId,omitempty"`
	CertificateType string `json:"certificateType" firestore:"certificateType"`
}

// HasIdentifier reports whether any of tag, serial or unit id is present.
func (m CertificateMetadata) HasIdentifier() bool {
	return m.Tag != "" || m.Serial != "" || m.UnitID != ""
}

// Chunk is one contiguous page range of the source document written to its own file.
// StartPage is inclusive and EndPage exclusive, both 0-based.
type Chunk struct {
	Index     int
	Path      string
	StartPage int
	EndPage   int
}

// PageLabel renders the range the way people read it: 1-based and inclusive.
func (c Chunk) PageLabel() string {
	return fmt.Sprintf("%d-%d", c.StartPage+1, c.EndPage)
}

// ChunkFailure records a chunk that could not be named.
type ChunkFailure struct {
	Chunk       string `json:"chunk" firestore:"chunk"`
	StartPage   int    `json:"startPage" firestore:"startPage"`
	EndPage     int    `json:"endPage" firestore:"endPage"`
	Message     string `json:"message" firestore:"message"`
	PreservedAs string `json:"preservedAs,omitempty" firestore:"preservedAs,omitempty"`
}

// ProcessingResult summarises one pipeline run.
type ProcessingResult struct {
	RunID           string         `json:"runId"`
	Total           int            `json:"total"`
	Successful      int            `json:"successful"`
	Failed          int            `json:"failed"`
	Failures        []ChunkFailure `json:"failures,omitempty"`
	Placed          []string       `json:"placed,omitempty"`
	OutputDirectory string         `json:"outputDirectory"`
}
