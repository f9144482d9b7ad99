package services

import (
	"regexp"
	"strings"
)

type substitution struct {
	pattern     *regexp.Regexp
	replacement string
}

// Known OCR misreads, applied in order.
var misreadFixes = []substitution{
	{regexp.MustCompile(`(?i)KTOO(\d+)`), "KT00${1}"},
	{regexp.MustCompile(`(?i)(\b[A-Za-z0-9]+)-([A-Za-z0-9]+)-5-([A-Za-z0-9]+)-([A-Za-z0-9]+\b)`), "${1}-${2}-S-${3}-${4}"},
	{regexp.MustCompile(`(?i)TEST\s*CERTTFICATE`), "TEST CERTIFICATE"},
}

// Headings that OCR tends to break across lines.
var headingFixes = []substitution{
	{regexp.MustCompile(`(?i)CERTIFICATE\s+OF\s+CALIBRATION`), "CERTIFICATE OF CALIBRATION"},
	{regexp.MustCompile(`(?i)CERTIFICATE\s+OF\s+TEST`), "CERTIFICATE OF TEST"},
	{regexp.MustCompile(`(?i)CERTIFICATE\s+OF\s+INSPECTION`), "CERTIFICATE OF INSPECTION"},
}

var (
	identifierToken = regexp.MustCompile(`\b[A-Z]{2,5}(?:[-/][A-Za-z0-9]{1,10})+\b`)
	identifierSep   = regexp.MustCompile(`[-/]`)
)

// maxCorrectionPasses bounds the fixpoint loop. Every rule strictly reduces
// the number of places it can fire, so real text settles in one or two passes.
const maxCorrectionPasses = 8

// TextCorrector repairs common recognition errors in extracted text.
// It is stateless and safe for concurrent use.
type TextCorrector struct{}

// NewTextCorrector returns a TextCorrector.
func NewTextCorrector() *TextCorrector {
	return &TextCorrector{}
}

// Correct applies the substitution rules until the text stops changing,
// which makes Correct idempotent.
func (c *TextCorrector) Correct(text string) string {
	for i := 0; i < maxCorrectionPasses; i++ {
		next := correctOnce(text)
		if next == text {
			return next
		}
		text = next
	}
	return text
}

func correctOnce(text string) string {
	for _, s := range misreadFixes {
		text = s.pattern.ReplaceAllString(text, s.replacement)
	}
	for _, s := range headingFixes {
		text = s.pattern.ReplaceAllString(text, s.replacement)
	}
	return identifierToken.ReplaceAllStringFunc(text, repairIdentifier)
}

// repairIdentifier turns capital O into zero inside every segment of an
// identifier that also contains a digit. Purely alphabetic segments are kept.
func repairIdentifier(token string) string {
	seps := identifierSep.FindAllStringIndex(token, -1)
	var b strings.Builder
	b.Grow(len(token))
	prev := 0
	for _, sep := range seps {
		b.WriteString(repairSegment(token[prev:sep[0]]))
		b.WriteString(token[sep[0]:sep[1]])
		prev = sep[1]
	}
	b.WriteString(repairSegment(token[prev:]))
	return b.String()
}

func repairSegment(seg string) string {
	if !strings.ContainsRune(seg, 'O') || !strings.ContainsAny(seg, "0123456789") {
		return seg
	}
	return strings.ReplaceAll(seg, "O", "0")
}
