package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseTag(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"20250305_KT-001_TestCertificate.pdf", "KT-001", true},
		{"20250305_KT-001_555_TestCertificate.pdf", "KT-001", true},
		{"20250305_PSV-12A_TestCertificate.pdf", "PSV-12", true},
		{"20250305_U1_KT-001_TestCertificate.pdf", "", false},
		{"20250305_SN12345_TestCertificate.pdf", "", false},
		{"batch_OCR_cert_3_pages_10-12.pdf", "", false},
		{"README.pdf", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BaseTag(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestOutputOrganizer_GroupByTag(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"20250305_KT-001_TestCertificate.pdf",
		"20250306_KT-001_555_TestCertificate.PDF",
		"20250305_PSV-12A_TestCertificate.pdf",
		"20250305_U1_KT-002_TestCertificate.pdf",
		"notes.txt",
	} {
		touch(t, filepath.Join(dir, name))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	summary, err := NewOutputOrganizer(nil).GroupByTag(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Moved)
	assert.Equal(t, 1, summary.Skipped)
	assert.Empty(t, summary.Errors)

	assert.FileExists(t, filepath.Join(dir, "KT-001", "20250305_KT-001_TestCertificate.pdf"))
	assert.FileExists(t, filepath.Join(dir, "KT-001", "20250306_KT-001_555_TestCertificate.PDF"))
	assert.FileExists(t, filepath.Join(dir, "PSV-12", "20250305_PSV-12A_TestCertificate.pdf"))
	assert.FileExists(t, filepath.Join(dir, "20250305_U1_KT-002_TestCertificate.pdf"))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
}

func TestOutputOrganizer_MoveFailureIsIsolated(t *testing.T) {
	dir := t.TempDir()
	// A plain file where the KT-001 folder should go makes that move fail.
	touch(t, filepath.Join(dir, "KT-001"))
	touch(t, filepath.Join(dir, "20250305_KT-001_TestCertificate.pdf"))
	touch(t, filepath.Join(dir, "20250305_PT-9_TestCertificate.pdf"))

	summary, err := NewOutputOrganizer(nil).GroupByTag(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Moved)
	require.Len(t, summary.Errors, 1)
	assert.ErrorContains(t, summary.Errors[0], "20250305_KT-001_TestCertificate.pdf")

	assert.FileExists(t, filepath.Join(dir, "20250305_KT-001_TestCertificate.pdf"))
	assert.FileExists(t, filepath.Join(dir, "PT-9", "20250305_PT-9_TestCertificate.pdf"))
}

func TestOutputOrganizer_MissingDir(t *testing.T) {
	_, err := NewOutputOrganizer(nil).GroupByTag(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
