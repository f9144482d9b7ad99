package services

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFDocument is the PDF container collaborator: page count, per-page text,
// and copying a page range into a new file. Pages are 0-based.
type PDFDocument interface {
	PageCount(path string) (int, error)
	PageTexts(path string) ([]string, error)
	CopyPages(src string, start, end int, dst string) error
}

// PDFTools implements PDFDocument with pdfcpu for structure and page copies
// and ledongthuc/pdf for the text layer.
type PDFTools struct {
	conf *model.Configuration
}

// NewPDFTools uses relaxed validation; OCR output and scanner PDFs are rarely strictly conformant.
func NewPDFTools() *PDFTools {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return &PDFTools{conf: cfg}
}

func (t *PDFTools) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count of %s: %w", path, err)
	}
	return n, nil
}

// PageTexts returns one entry per page; pages without a text layer yield "".
func (t *PDFTools) PageTexts(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	numPages := r.NumPage()
	fonts := make(map[string]*pdf.Font)
	texts := make([]string, numPages)
	for i := 1; i <= numPages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := p.Font(name)
				fonts[name] = &font
			}
		}
		text, err := p.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("read pdf page %d: %w", i, err)
		}
		texts[i-1] = text
	}
	return texts, nil
}

// CopyPages writes pages [start, end) of src to dst.
func (t *PDFTools) CopyPages(src string, start, end int, dst string) error {
	if start < 0 || end <= start {
		return fmt.Errorf("invalid page range [%d, %d)", start, end)
	}
	selection := fmt.Sprintf("%d-%d", start+1, end)
	if end == start+1 {
		selection = fmt.Sprintf("%d", end)
	}
	if err := api.TrimFile(src, dst, []string{selection}, t.conf); err != nil {
		return fmt.Errorf("failed to copy pages %s of %s: %w", selection, src, err)
	}
	return nil
}

// Optimize rewrites src into dst, repairing what relaxed validation tolerates.
func (t *PDFTools) Optimize(src, dst string) error {
	if err := api.OptimizeFile(src, dst, t.conf); err != nil {
		return fmt.Errorf("failed to validate/optimize PDF: %w", err)
	}
	return nil
}

// DocumentText concatenates the text of every page in path.
func DocumentText(doc PDFDocument, path string) (string, error) {
	texts, err := doc.PageTexts(path)
	if err != nil {
		return "", err
	}
	return strings.Join(texts, ""), nil
}
