package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// pageBreak separates pages in the plain-text documents used by fakeDoc.
const pageBreak = "\f"

// fakeDoc treats a file as plain text with one page per pageBreak-separated section.
type fakeDoc struct {
	pageCountErr error
	copyErr      error
	// countOffset skews PageCount to simulate a text layer mismatch.
	countOffset int
}

func (d *fakeDoc) pages(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return strings.Split(string(data), pageBreak), nil
}

func (d *fakeDoc) PageCount(path string) (int, error) {
	if d.pageCountErr != nil {
		return 0, d.pageCountErr
	}
	pages, err := d.pages(path)
	if err != nil {
		return 0, err
	}
	return len(pages) + d.countOffset, nil
}

func (d *fakeDoc) PageTexts(path string) ([]string, error) {
	return d.pages(path)
}

func (d *fakeDoc) CopyPages(src string, start, end int, dst string) error {
	if d.copyErr != nil {
		return d.copyErr
	}
	pages, err := d.pages(src)
	if err != nil {
		return err
	}
	if start < 0 || end > len(pages) || start >= end {
		return fmt.Errorf("bad range [%d, %d) for %d pages", start, end, len(pages))
	}
	return os.WriteFile(dst, []byte(strings.Join(pages[start:end], pageBreak)), 0o644)
}

func writePages(t *testing.T, path string, pages ...string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(pages, pageBreak)), 0o644))
}

type failingOCR struct{ err error }

func (f failingOCR) Run(context.Context, string, string) error { return f.err }

// fakeRunner records invocations and optionally writes the last argument as output.
type fakeRunner struct {
	mu          sync.Mutex
	name        string
	args        []string
	stderr      string
	err         error
	writeOutput bool
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.name = name
	r.args = args
	if r.err == nil && r.writeOutput {
		if err := os.WriteFile(args[len(args)-1], []byte("ocr output"), 0o644); err != nil {
			return nil, nil, err
		}
	}
	return nil, []byte(r.stderr), r.err
}

var errBoom = errors.New("boom")
