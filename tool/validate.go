package tool

import (
	"fmt"

	"github.com/nimbusdrive/nimbus-go/types"
)

// AllowedTypes maps accepted MIME types to their library category.
var AllowedTypes = map[string]string{
	"image/jpeg": "image",
	"image/png":  "image",
	"image/gif":  "image",
	"image/webp": "image",
	"image/heic": "image",

	"video/mp4":        "video",
	"video/quicktime":  "video",
	"video/x-msvideo":  "video",
	"video/x-matroska": "video",
	"video/webm":       "video",

	"application/pdf":    "document",
	"application/msword": "document",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "document",
	"text/plain": "document",
}

// IsRasterImage reports whether the declared media type is one the image probe
// can decode for pixel dimensions.
func IsRasterImage(mime string) bool {
	switch mime {
	case "image/jpeg", "image/png", "image/gif":
		return true
	}
	return false
}

// ValidateFile applies the client-side acceptance gate. maxBytes <= 0 means no cap.
func ValidateFile(src types.FileSource, maxBytes int64) error {
	if src.Name == "" {
		return fmt.Errorf("file has no name")
	}
	if _, ok := AllowedTypes[src.MIME]; !ok {
		return fmt.Errorf("%s: unsupported file type %q", src.Name, src.MIME)
	}
	if src.Size <= 0 {
		return fmt.Errorf("%s: empty file", src.Name)
	}
	if maxBytes > 0 && src.Size > maxBytes {
		return fmt.Errorf("%s: file too large (%d bytes, limit %d)", src.Name, src.Size, maxBytes)
	}
	return nil
}

// FileCategory returns the library category for an accepted MIME type.
func FileCategory(mime string) string {
	return AllowedTypes[mime]
}
