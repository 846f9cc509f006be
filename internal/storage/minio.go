package storage

import (
	"context"
	"io"
	"strings"

	"campusfix/internal/config"
	"campusfix/internal/observability"
	contextutils "campusfix/internal/utils"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"
)

// MinioSink stores objects in an S3 compatible bucket
type MinioSink struct {
	client *minio.Client
	cfg    config.ExternalMediaConfig
	logger *observability.Logger
	ready  bool
}

// NewMinioSink creates a client for the configured endpoint. No request is made until Startup or Save.
func NewMinioSink(cfg config.ExternalMediaConfig, logger *observability.Logger) (*MinioSink, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrStorageUnavailable, "failed to create minio client: %v", err)
	}
	return &MinioSink{client: client, cfg: cfg, logger: logger}, nil
}

// Backend names the implementation
func (s *MinioSink) Backend() string { return config.MediaBackendExternal }

func (s *MinioSink) buckets() []string {
	buckets := []string{s.cfg.Bucket}
	if s.cfg.SafetyBucket != "" && s.cfg.SafetyBucket != s.cfg.Bucket {
		buckets = append(buckets, s.cfg.SafetyBucket)
	}
	return buckets
}

// Startup creates any missing bucket
func (s *MinioSink) Startup(ctx context.Context) (err error) {
	ctx, span := observability.TraceStorageFunction(ctx, "minio_startup")
	defer observability.FinishSpan(span, &err)

	for _, bucket := range s.buckets() {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return contextutils.WrapErrorf(contextutils.ErrStorageUnavailable, "failed to check bucket %s: %v", bucket, err)
		}
		if exists {
			continue
		}
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return contextutils.WrapErrorf(contextutils.ErrStorageUnavailable, "failed to create bucket %s: %v", bucket, err)
		}
		s.logger.Info(ctx, "Created media bucket", map[string]interface{}{"bucket": bucket})
	}
	s.ready = true
	return nil
}

// Shutdown is a no-op
func (s *MinioSink) Shutdown(context.Context) error { return nil }

// IsReady reports whether Startup verified the buckets
func (s *MinioSink) IsReady() bool { return s.ready }

// BucketFor returns the bucket an object is written to
func (s *MinioSink) BucketFor(objectName string) string {
	if strings.HasPrefix(objectName, SafetyPrefix) && s.cfg.SafetyBucket != "" {
		return s.cfg.SafetyBucket
	}
	return s.cfg.Bucket
}

// URLFor returns the public URL of an object
func (s *MinioSink) URLFor(objectName string) string {
	base := strings.TrimRight(s.cfg.PublicURL, "/")
	if base == "" {
		scheme := "http://"
		if s.cfg.UseSSL {
			scheme = "https://"
		}
		base = scheme + s.cfg.Endpoint
	}
	return base + "/" + s.BucketFor(objectName) + "/" + objectName
}

// Save uploads the object with PutObject
func (s *MinioSink) Save(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (result0 string, err error) {
	bucket := s.BucketFor(objectName)
	ctx, span := observability.TraceStorageFunction(ctx, "minio_save",
		attribute.String("storage.bucket", bucket),
		attribute.String("storage.object", objectName),
	)
	defer observability.FinishSpan(span, &err)

	info, err := s.client.PutObject(ctx, bucket, objectName, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrStorageUnavailable, "failed to upload %s: %v", objectName, err)
	}

	span.SetAttributes(attribute.Int64("storage.bytes", info.Size))
	return s.URLFor(objectName), nil
}
