package entity

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// ReceiptFile represents an ingested source file.
type ReceiptFile struct {
	ID          uuid.UUID `json:"id"`
	SourcePath  string    `json:"source_path"`
	ContentHash []byte    `json:"content_hash"`
	MimeType    string    `json:"mime_type"`
	FileSize    int64     `json:"file_size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// HashHex is the content hash as lowercase hex.
func (f *ReceiptFile) HashHex() string {
	return hex.EncodeToString(f.ContentHash)
}
