package storage

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

var imageExtensions = map[string]string{
	"image/jpeg":   ".jpg",
	"image/png":    ".png",
	"image/gif":    ".gif",
	"image/webp":   ".webp",
	"image/bmp":    ".bmp",
	"image/x-icon": ".ico",
	"image/avif":   ".avif",
}

// NewObjectKey creates a unique object key under folder.
// Format: <folder>/<yyyy>/<mm>/<uuid><ext>
// Example: job-ads/2025/03/3f0c9e4e-6a1b-4b8e-9f43-0c7d2f1e9a10.png
// The extension follows the sniffed content type only; unknown types get
// none, so the client file name never decides how the object is served.
func NewObjectKey(folder, contentType string, now time.Time) string {
	name := uuid.NewString() + imageExtensions[contentType]
	return path.Join(strings.Trim(folder, "/"), now.UTC().Format("2006/01"), name)
}
