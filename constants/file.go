package constants

import "strings"

// Format is the extraction strategy family for a file.
type Format string

const (
	PDF   Format = "PDF"
	IMAGE Format = "IMAGE"
	TEXT  Format = "TEXT"
	HTML  Format = "HTML"
)

// AllowedExtensions holds the default allowed file extensions for receipts ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"heic": {},
	"heif": {},
	"txt":  {},
	"eml":  {},
	"html": {},
	"htm":  {},
}

var extMIME = map[string]string{
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"heic": "image/heic",
	"heif": "image/heif",
	"txt":  "text/plain",
	"eml":  "message/rfc822",
	"html": "text/html",
	"htm":  "text/html",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether ingestion accepts the extension.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// IsHEICExt reports whether ext needs converting before OCR.
func IsHEICExt(ext string) bool {
	switch NormalizeExt(ext) {
	case "heic", "heif":
		return true
	}
	return false
}

// MIMEForExt maps an extension to its MIME type, or "" when unknown.
func MIMEForExt(ext string) string {
	return extMIME[NormalizeExt(ext)]
}

// FormatForMIME maps a MIME type (parameters allowed) to an extraction
// format, or "" when unsupported.
func FormatForMIME(mime string) Format {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch {
	case mime == "application/pdf":
		return PDF
	case strings.HasPrefix(mime, "image/"):
		return IMAGE
	case mime == "text/html", mime == "application/xhtml+xml":
		return HTML
	case mime == "text/plain", mime == "message/rfc822":
		return TEXT
	}
	return ""
}
