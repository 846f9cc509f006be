package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"campusfix/internal/config"
	"campusfix/internal/observability"
	contextutils "campusfix/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// LocalSink writes objects to a directory that the router serves statically
type LocalSink struct {
	dir       string
	urlPrefix string
	logger    *observability.Logger
}

// NewLocalSink creates a sink rooted at dir whose URLs start with urlPrefix
func NewLocalSink(dir, urlPrefix string, logger *observability.Logger) *LocalSink {
	return &LocalSink{
		dir:       dir,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		logger:    logger,
	}
}

// Backend names the implementation
func (s *LocalSink) Backend() string { return config.MediaBackendLocal }

// Dir returns the directory holding the stored objects
func (s *LocalSink) Dir() string { return s.dir }

// Startup creates the media directory
func (s *LocalSink) Startup(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrStorageUnavailable, "failed to create media dir %s: %v", s.dir, err)
	}
	s.logger.Info(ctx, "Local media sink ready", map[string]interface{}{"dir": s.dir})
	return nil
}

// Shutdown is a no-op
func (s *LocalSink) Shutdown(context.Context) error { return nil }

// IsReady reports whether the media directory exists
func (s *LocalSink) IsReady() bool {
	info, err := os.Stat(s.dir)
	return err == nil && info.IsDir()
}

// Save copies r into dir/objectName. A partially written file is removed on failure.
func (s *LocalSink) Save(ctx context.Context, objectName string, r io.Reader, _ int64, _ string) (result0 string, err error) {
	_, span := observability.TraceStorageFunction(ctx, "local_save", attribute.String("storage.object", objectName))
	defer observability.FinishSpan(span, &err)

	name := filepath.Base(objectName)
	if name == "." || name == string(filepath.Separator) || name != objectName {
		return "", contextutils.NewValidationError("object name", "object name must not contain a path")
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrStorageUnavailable, "failed to create media dir: %v", err)
	}

	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrStorageUnavailable, "failed to create %s: %v", name, err)
	}

	written, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(path)
		cause := copyErr
		if cause == nil {
			cause = closeErr
		}
		return "", contextutils.WrapErrorf(contextutils.ErrStorageUnavailable, "failed to write %s: %v", name, cause)
	}

	span.SetAttributes(attribute.Int64("storage.bytes", written))
	return s.urlPrefix + "/" + name, nil
}
