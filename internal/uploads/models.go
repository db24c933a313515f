package uploads

import (
	"github.com/google/uuid"
)

// Kind is what an uploaded file is used for. It decides which content types are accepted.
type Kind string

const (
	KindSignature Kind = "signature"
	KindDocument  Kind = "document"
)

var allowedTypes = map[Kind]map[string]bool{
	KindSignature: {
		"image/png":  true,
		"image/jpeg": true,
	},
	KindDocument: {
		"application/pdf": true,
		"image/png":       true,
		"image/jpeg":      true,
	},
}

// ParseKind converts a raw form value into a Kind.
func ParseKind(raw string) (Kind, bool) {
	k := Kind(raw)
	_, ok := allowedTypes[k]
	return k, ok
}

// FileMetadata represents the metadata of an uploaded file
type FileMetadata struct {
	ID       uuid.UUID `json:"id"`
	Kind     Kind      `json:"kind"`
	Name     string    `json:"name"`
	Key      string    `json:"key"`
	URL      string    `json:"url"`
	Size     int64     `json:"size"`
	MimeType string    `json:"mimeType"`
}
