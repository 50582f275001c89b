package domain

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// UnitArtifact is the current generated document of one type for a unit.
type UnitArtifact struct {
	ID           string
	UnitID       string
	DocumentType DocumentType
	StoragePath  string
	FileName     string
	SizeBytes    int64
	GeneratedBy  string
	GeneratedAt  time.Time
}

// ArtifactPath builds the storage key {documentType}/{propertyName}/{unitNumber}/{filename}.
func ArtifactPath(docType DocumentType, propertyName string, unitNumber string, fileName string) string {
	return path.Join(
		docType.Slug(),
		pathSegment(propertyName),
		pathSegment(unitNumber),
		pathSegment(fileName),
	)
}

// ArtifactFileName is deterministic per unit and type so regeneration reuses the same key.
func ArtifactFileName(docType DocumentType, unitNumber string) string {
	return fmt.Sprintf("%s-%s.pdf", docType.Slug(), pathSegment(unitNumber))
}

func pathSegment(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "_"
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", "..", "-", " ", "_")
	return replacer.Replace(trimmed)
}
