package services

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Lllllllleong/certsplit/internal/models"
)

// Lookup is the outcome of extracting one field: either a value or nothing.
type Lookup struct {
	Value string
	Found bool
}

func found(v string) Lookup { return Lookup{Value: v, Found: true} }

var notFound = Lookup{}

var (
	anyDayFirstDate = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)
	tagLettersO     = regexp.MustCompile(`^([A-Za-z]{2,5})O(\d+)$`)
	tagJoined       = regexp.MustCompile(`^([A-Za-z]{2,5})(\d+)$`)
)

// positionalDueDate is the 1-based occurrence used when no due-date label
// matches: on these certificates the due date is the fifth date printed.
const positionalDueDate = 5

// MetadataExtractor parses certificate fields out of corrected text.
type MetadataExtractor struct {
	patterns  *PatternConfig
	corrector *TextCorrector
	// per-field value normalisation applied to a raw match
	normalize map[Field]func(string) string
}

// NewMetadataExtractor builds an extractor over a shared pattern table.
// A nil config selects the built-in patterns.
func NewMetadataExtractor(patterns *PatternConfig, corrector *TextCorrector) *MetadataExtractor {
	if patterns == nil {
		patterns = DefaultPatternConfig()
	}
	if corrector == nil {
		corrector = NewTextCorrector()
	}
	e := &MetadataExtractor{
		patterns:  patterns,
		corrector: corrector,
	}
	e.normalize = map[Field]func(string) string{
		FieldTag: e.normalizeTag,
	}
	return e
}

// ExtractField returns the first capture of the first matching pattern for f.
// A value of N/A or NA counts as absent; later patterns are not tried.
func (e *MetadataExtractor) ExtractField(f Field, text string) Lookup {
	for _, re := range e.patterns.Patterns(f) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		value := strings.TrimSpace(m[1])
		if norm, ok := e.normalize[f]; ok {
			value = norm(value)
		}
		switch strings.ToUpper(value) {
		case "N/A", "NA":
			return notFound
		}
		return found(value)
	}
	return notFound
}

func (e *MetadataExtractor) normalizeTag(value string) string {
	value = e.corrector.Correct(value)
	if m := tagLettersO.FindStringSubmatch(value); m != nil {
		return m[1] + "-0" + m[2]
	}
	if !strings.Contains(value, "-") {
		if m := tagJoined.FindStringSubmatch(value); m != nil {
			return m[1] + "-" + m[2]
		}
	}
	return value
}

// ExtractDueDate finds the due date as yyyymmdd. Labelled dates win; failing
// that, the fifth dd/mm/yyyy date anywhere in the text is used.
func (e *MetadataExtractor) ExtractDueDate(text string) (string, error) {
	if raw := e.ExtractField(FieldDueDate, text); raw.Found {
		if d, ok := NormalizeDate(raw.Value); ok {
			return d, nil
		}
	}
	all := anyDayFirstDate.FindAllString(text, -1)
	if len(all) >= positionalDueDate {
		if d, ok := NormalizeDate(all[positionalDueDate-1]); ok {
			return d, nil
		}
	}
	return "", ErrDueDateNotFound
}

// ExtractCertificateType maps the certificate heading to its canonical label.
func (e *MetadataExtractor) ExtractCertificateType(text string) (string, error) {
	raw := e.ExtractField(FieldCertificateType, text)
	if !raw.Found {
		return "", ErrCertificateTypeNotFound
	}
	if label, ok := e.patterns.CertificateLabel(raw.Value); ok {
		return label, nil
	}
	return strings.ReplaceAll(cases.Title(language.English).String(raw.Value), " ", ""), nil
}

// Extract parses every field. Missing due date or certificate type is an error;
// missing identifiers are left empty for the filename generator to judge.
func (e *MetadataExtractor) Extract(text string) (models.CertificateMetadata, error) {
	due, err := e.ExtractDueDate(text)
	if err != nil {
		return models.CertificateMetadata{}, err
	}
	meta := models.CertificateMetadata{
		DueDate: due,
		Tag:     e.ExtractField(FieldTag, text).Value,
		Serial:  e.ExtractField(FieldSerial, text).Value,
		UnitID:  e.ExtractField(FieldUnitID, text).Value,
	}
	if meta.CertificateType, err = e.ExtractCertificateType(text); err != nil {
		return models.CertificateMetadata{}, err
	}
	return meta, nil
}
