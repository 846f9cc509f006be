package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"campusfix/internal/observability"
	"campusfix/internal/storage"
	contextutils "campusfix/internal/utils"

	"github.com/gin-gonic/gin"
)

// upload is an optional image read from a multipart form
type upload struct {
	Data        []byte
	Filename    string
	ContentType string
}

// readUpload returns the named file field, nil when absent.
// Files over maxBytes are a validation error.
func readUpload(c *gin.Context, field string, maxBytes int64) (*upload, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, contextutils.NewValidationError(field, "failed to read uploaded file")
	}
	if header.Size == 0 {
		return nil, nil
	}
	if maxBytes > 0 && header.Size > maxBytes {
		return nil, contextutils.NewValidationError(field, fmt.Sprintf("file is larger than %d bytes", maxBytes))
	}

	file, err := header.Open()
	if err != nil {
		return nil, contextutils.NewValidationError(field, "failed to open uploaded file")
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	var r io.Reader = file
	if maxBytes > 0 {
		// Header sizes come from the client, so cap the read as well
		r = io.LimitReader(file, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, contextutils.NewValidationError(field, "failed to read uploaded file")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, contextutils.NewValidationError(field, fmt.Sprintf("file is larger than %d bytes", maxBytes))
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &upload{Data: data, Filename: header.Filename, ContentType: contentType}, nil
}

// saveMedia stores an upload and returns its URL. A failed upload never fails
// the request: it is logged, counted, and the record is created without media.
func saveMedia(ctx context.Context, sink storage.MediaSink, u *upload, safety bool, logger *observability.Logger) string {
	if u == nil || sink == nil {
		return ""
	}
	name := storage.ObjectName(u.Filename, u.ContentType, safety)
	url, err := sink.Save(ctx, name, bytes.NewReader(u.Data), int64(len(u.Data)), u.ContentType)
	if err != nil {
		observability.RecordMediaUploadFailure(ctx, sink.Backend())
		logger.Warn(ctx, "Media upload failed, continuing without media", map[string]interface{}{
			"backend":     sink.Backend(),
			"object_name": name,
			"error":       err.Error(),
		})
		return ""
	}
	return url
}
