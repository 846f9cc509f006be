// Package storage persists uploaded photos and returns the URL they are served from.
package storage

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"campusfix/internal/config"
	"campusfix/internal/observability"
	contextutils "campusfix/internal/utils"

	"github.com/google/uuid"
)

// SafetyPrefix marks objects that belong to safety reports
const SafetyPrefix = "safety_"

// MediaSink stores an object and returns its public URL
type MediaSink interface {
	Save(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error)
	// Backend names the implementation for logs and metrics
	Backend() string
}

var contentTypeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ObjectName builds a collision-free name that keeps the uploaded file's extension.
// The extension is lowercased and stripped of anything but letters and digits.
func ObjectName(filename, contentType string, safety bool) string {
	ext := sanitizeExtension(filepath.Ext(filename))
	if ext == "" {
		ext = contentTypeExtensions[strings.ToLower(contentType)]
	}
	name := uuid.New().String() + ext
	if safety {
		return SafetyPrefix + name
	}
	return name
}

func sanitizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	var b strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if clean == "" || len(clean) > 5 {
		return ""
	}
	return "." + clean
}

// NewMediaSink selects the backend named by features.media_backend
func NewMediaSink(cfg *config.Config, logger *observability.Logger) (MediaSink, error) {
	switch cfg.Features.MediaBackend {
	case config.MediaBackendExternal:
		return NewMinioSink(cfg.Media.External, logger)
	case config.MediaBackendLocal, "":
		return NewLocalSink(cfg.Media.LocalDir, cfg.Media.LocalURLPrefix, logger), nil
	default:
		return nil, contextutils.ErrorWithContextf("unknown media backend %q", cfg.Features.MediaBackend)
	}
}
