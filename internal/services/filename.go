package services

import (
	"fmt"
	"strings"

	"github.com/Lllllllleong/certsplit/internal/models"
)

// FilenameGenerator derives output filenames from certificate metadata.
type FilenameGenerator struct{}

// NewFilenameGenerator returns a FilenameGenerator.
func NewFilenameGenerator() *FilenameGenerator {
	return &FilenameGenerator{}
}

// Generate returns {due}_{core}_{type}.pdf. With forceSerial the core id is
// built from the serial number, which is how a name collision is resolved.
func (g *FilenameGenerator) Generate(meta models.CertificateMetadata, forceSerial bool) (string, error) {
	var (
		core string
		err  error
	)
	if forceSerial {
		core, err = serialCoreID(meta)
	} else {
		core, err = standardCoreID(meta)
	}
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s_%s.pdf", meta.DueDate, strings.ReplaceAll(core, " ", "-"), meta.CertificateType)
	return strings.ReplaceAll(name, "/", "-"), nil
}

// standardCoreID prefers unit+tag, then unit, then tag, then serial.
func standardCoreID(meta models.CertificateMetadata) (string, error) {
	switch {
	case meta.UnitID != "" && meta.Tag != "":
		return meta.UnitID + "_" + meta.Tag, nil
	case meta.UnitID != "":
		return meta.UnitID, nil
	case meta.Tag != "":
		return meta.Tag, nil
	case meta.Serial != "":
		return meta.Serial, nil
	}
	return "", ErrNoIdentifier
}

func serialCoreID(meta models.CertificateMetadata) (string, error) {
	var core string
	switch {
	case meta.Serial != "" && meta.Tag != "":
		if strings.HasPrefix(meta.Serial, meta.Tag+"-") {
			core = meta.Serial
		} else {
			core = meta.Tag + "_" + meta.Serial
		}
	case meta.Serial != "":
		core = meta.Serial
	case meta.Tag != "":
		core = meta.Tag
	case meta.UnitID != "":
		core = meta.UnitID
	default:
		return "", ErrNoIdentifier
	}
	if meta.UnitID != "" {
		core = meta.UnitID + "_" + core
	}
	return core, nil
}
