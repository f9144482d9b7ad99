package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/certsplit/internal/models"
)

const sampleCertificate = `TEST CERTIFICATE
Tag No: KT-001
Serial No: SN12345
Date of Test: 05/03/2024
Recommended Due Date: 05/03/2025
`

func TestMetadataExtractor_Extract(t *testing.T) {
	x := NewMetadataExtractor(nil, nil)
	meta, err := x.Extract(sampleCertificate)
	require.NoError(t, err)
	assert.Equal(t, models.CertificateMetadata{
		DueDate:         "20250305",
		Tag:             "KT-001",
		Serial:          "SN12345",
		CertificateType: "TestCertificate",
	}, meta)
}

func TestMetadataExtractor_ExtractField(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		text  string
		want  Lookup
	}{
		{"tag", FieldTag, "Tag No: KT-001", Lookup{"KT-001", true}},
		{"tag second pattern", FieldTag, "Tag Number: PT-77", Lookup{"PT-77", true}},
		{"tag letters O digits", FieldTag, "Tag No: KTO12", Lookup{"KT-012", true}},
		{"tag joined", FieldTag, "Tag No. PSV123", Lookup{"PSV-123", true}},
		{"tag corrected before normalising", FieldTag, "Tag No: KTOO5", Lookup{"KT-005", true}},
		{"tag N/A is absent", FieldTag, "Tag No: N/A\nTag Number: KT-1", Lookup{}},
		{"serial NA is absent", FieldSerial, "Serial No: na", Lookup{}},
		{"serial pipe separator", FieldSerial, "Serial No.| 8841-A", Lookup{"8841-A", true}},
		{"unit id", FieldUnitID, "Unit ID: U-17", Lookup{"U-17", true}},
		{"missing", FieldUnitID, "nothing here", Lookup{}},
	}
	x := NewMetadataExtractor(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, x.ExtractField(tt.field, tt.text))
		})
	}
}

func TestMetadataExtractor_ExtractDueDate(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr error
	}{
		{"recommended label", "Recommended Due Date: 05/03/2025", "20250305", nil},
		{"calibration label", "Calibration Due Date - 01/02/2026", "20260201", nil},
		{"expiry label", "Expiry Date 30/11/2027", "20271130", nil},
		{
			name: "fifth date fallback",
			text: "Issued 01/01/2024 tested 02/01/2024 checked 03/01/2024 signed 04/01/2024 next 15/06/2026 later 16/06/2026",
			want: "20260615",
		},
		{"four dates is not enough", "01/01/2024 02/01/2024 03/01/2024 04/01/2024", "", ErrDueDateNotFound},
		{"unparseable label without fallback", "Recommended Due Date: 31/02/2025", "", ErrDueDateNotFound},
		{"no dates", "TEST CERTIFICATE", "", ErrDueDateNotFound},
	}
	x := NewMetadataExtractor(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := x.ExtractDueDate(tt.text)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMetadataExtractor_ExtractCertificateType(t *testing.T) {
	x := NewMetadataExtractor(nil, nil)

	got, err := x.ExtractCertificateType("Test Certificate")
	require.NoError(t, err)
	assert.Equal(t, "TestCertificate", got)

	got, err = x.ExtractCertificateType("TEST CERTIFICATH")
	require.NoError(t, err)
	assert.Equal(t, "TestCertificate", got)

	got, err = x.ExtractCertificateType(NewTextCorrector().Correct("CERTIFICATE\nOF\nCALIBRATION"))
	require.NoError(t, err)
	assert.Equal(t, "CalibrationCertificate", got)

	_, err = x.ExtractCertificateType("DELIVERY NOTE")
	assert.ErrorIs(t, err, ErrCertificateTypeNotFound)
}

func TestMetadataExtractor_CertificateTypeTitleCaseFallback(t *testing.T) {
	patterns, err := NewPatternConfig(map[Field][]string{
		FieldCertificateType: {`(CERTIFICATE OF INSPECTION)`},
	}, nil)
	require.NoError(t, err)

	got, err := NewMetadataExtractor(patterns, nil).ExtractCertificateType("certificate of inspection")
	require.NoError(t, err)
	assert.Equal(t, "CertificateOfInspection", got)
}

func TestMetadataExtractor_ExtractRequiredFields(t *testing.T) {
	x := NewMetadataExtractor(nil, nil)

	_, err := x.Extract("TEST CERTIFICATE\nTag No: KT-1")
	assert.ErrorIs(t, err, ErrDueDateNotFound)

	_, err = x.Extract("Tag No: KT-1\nRecommended Due Date: 05/03/2025")
	assert.ErrorIs(t, err, ErrCertificateTypeNotFound)

	meta, err := x.Extract("TEST CERTIFICATE\nRecommended Due Date: 05/03/2025")
	require.NoError(t, err, "identifiers are judged by the filename generator")
	assert.False(t, meta.HasIdentifier())
}
