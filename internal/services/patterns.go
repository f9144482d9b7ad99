package services

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field identifies one extractable metadata field.
type Field int

const (
	FieldTag Field = iota
	FieldSerial
	FieldUnitID
	FieldDueDate
	FieldCertificateType
)

var fieldNames = []string{
	FieldTag:             "tag",
	FieldSerial:          "serial",
	FieldUnitID:          "unit_id",
	FieldDueDate:         "due_date",
	FieldCertificateType: "certificate_type",
}

// AllFields lists every field in extraction order.
var AllFields = []Field{FieldDueDate, FieldTag, FieldSerial, FieldUnitID, FieldCertificateType}

func (f Field) String() string {
	if int(f) < 0 || int(f) >= len(fieldNames) {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fieldNames[f]
}

// ParseField maps a configuration key such as "unit_id" to its Field.
func ParseField(name string) (Field, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, n := range fieldNames {
		if n == key {
			return Field(i), nil
		}
	}
	return 0, fmt.Errorf("unknown field %q", name)
}

var defaultPatternSources = map[Field][]string{
	FieldTag: {
		`Tag No\.?[:+\s]*([A-Za-z0-9\-\/]+)`,
		`Tag Number[:+\s]*([A-Za-z0-9\-\/]+)`,
	},
	FieldSerial: {
		`Serial No\.?[:|+\s]*([A-Za-z0-9\-]+)`,
		`Serial number[:|+\s]*([A-Za-z0-9\-]+)`,
	},
	FieldUnitID: {
		`Unit ID[:\s]*([A-Za-z0-9\-]+)`,
	},
	FieldDueDate: {
		`Recommended Due Date[^\d]*(\d{2}/\d{2}/\d{4})`,
		`Calibration Due Date[^\d]*(\d{2}/\d{2}/\d{4})`,
		`Expiry Date[^\d]*(\d{2}/\d{2}/\d{4})`,
	},
	FieldCertificateType: {
		`(TEST CERTIFICATE|TEST CERTIFICATH|TEST CERTIFICA'|CERTIFICATE OF CALIBRATION)`,
	},
}

// Keys are upper case; lookups upper-case the matched heading first.
var defaultCertificateTypes = map[string]string{
	"TEST CERTIFICATE":           "TestCertificate",
	"TEST CERTIFICATH":           "TestCertificate",
	"TEST CERTIFICA'":            "TestCertificate",
	"CERTIFICATE OF CALIBRATION": "CalibrationCertificate",
}

// PatternConfig holds the compiled, ordered extraction patterns per field and
// the certificate heading lookup. It is built once and never modified, so one
// value can be shared by every extractor.
type PatternConfig struct {
	patterns         map[Field][]*regexp.Regexp
	certificateTypes map[string]string
}

// DefaultPatternConfig returns the built-in tables.
func DefaultPatternConfig() *PatternConfig {
	cfg, err := NewPatternConfig(defaultPatternSources, defaultCertificateTypes)
	if err != nil {
		panic(fmt.Sprintf("built-in patterns: %v", err))
	}
	return cfg
}

// NewPatternConfig compiles pattern sources case-insensitively. Every pattern
// must have a capture group; the first group is the extracted value.
func NewPatternConfig(sources map[Field][]string, certificateTypes map[string]string) (*PatternConfig, error) {
	cfg := &PatternConfig{
		patterns:         make(map[Field][]*regexp.Regexp, len(sources)),
		certificateTypes: make(map[string]string, len(certificateTypes)),
	}
	for field, srcs := range sources {
		compiled := make([]*regexp.Regexp, 0, len(srcs))
		for _, src := range srcs {
			re, err := regexp.Compile("(?i)" + src)
			if err != nil {
				return nil, fmt.Errorf("%s pattern %q: %w", field, src, err)
			}
			if re.NumSubexp() < 1 {
				return nil, fmt.Errorf("%s pattern %q has no capture group", field, src)
			}
			compiled = append(compiled, re)
		}
		cfg.patterns[field] = compiled
	}
	for heading, label := range certificateTypes {
		cfg.certificateTypes[strings.ToUpper(strings.TrimSpace(heading))] = label
	}
	return cfg, nil
}

// Patterns returns the ordered patterns for a field. The first match wins.
func (c *PatternConfig) Patterns(f Field) []*regexp.Regexp {
	return append([]*regexp.Regexp(nil), c.patterns[f]...)
}

// CertificateLabel maps a recognised heading to its canonical label.
func (c *PatternConfig) CertificateLabel(heading string) (string, bool) {
	label, ok := c.certificateTypes[strings.ToUpper(heading)]
	return label, ok
}

type patternFile struct {
	Fields           map[string][]string `yaml:"fields"`
	CertificateTypes map[string]string   `yaml:"certificate_types"`
}

// LoadPatternConfig builds a PatternConfig from the defaults overlaid with a
// YAML file. A field listed in the file replaces its default pattern list;
// certificate_types entries are added to the lookup. An empty path returns the defaults.
func LoadPatternConfig(path string) (*PatternConfig, error) {
	if path == "" {
		return DefaultPatternConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern file: %w", err)
	}
	var pf patternFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse pattern file %s: %w", path, err)
	}

	sources := make(map[Field][]string, len(defaultPatternSources))
	for f, srcs := range defaultPatternSources {
		sources[f] = srcs
	}
	for name, srcs := range pf.Fields {
		field, err := ParseField(name)
		if err != nil {
			return nil, fmt.Errorf("pattern file %s: %w", path, err)
		}
		if len(srcs) == 0 {
			return nil, fmt.Errorf("pattern file %s: field %s has no patterns", path, field)
		}
		sources[field] = srcs
	}

	types := make(map[string]string, len(defaultCertificateTypes)+len(pf.CertificateTypes))
	for k, v := range defaultCertificateTypes {
		types[k] = v
	}
	for k, v := range pf.CertificateTypes {
		types[k] = v
	}
	return NewPatternConfig(sources, types)
}
