//go:build integration

package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"campusfix/internal/config"
	"campusfix/internal/observability"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinioSink_Integration(t *testing.T) {
	endpoint := os.Getenv("TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("TEST_MINIO_ENDPOINT not set")
	}

	cfg := config.ExternalMediaConfig{
		Endpoint:        endpoint,
		AccessKeyID:     envOr("TEST_MINIO_ACCESS_KEY", "minioadmin"),
		SecretAccessKey: envOr("TEST_MINIO_SECRET_KEY", "minioadmin"),
		Bucket:          "campusfix-test-issues",
		SafetyBucket:    "campusfix-test-safety",
		Region:          "us-east-1",
	}
	sink, err := NewMinioSink(cfg, observability.NewNopLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Startup(ctx))
	require.NoError(t, sink.Startup(ctx), "startup must be idempotent")
	assert.True(t, sink.IsReady())

	payload := []byte("not really a png")
	name := ObjectName("evidence.png", "image/png", true)
	url, err := sink.Save(ctx, name, bytes.NewReader(payload), int64(len(payload)), "image/png")
	require.NoError(t, err)
	assert.Contains(t, url, "/campusfix-test-safety/"+name)

	obj, err := sink.client.GetObject(ctx, cfg.SafetyBucket, name, minio.GetObjectOptions{})
	require.NoError(t, err)
	defer obj.Close()
	got, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NoError(t, sink.client.RemoveObject(ctx, cfg.SafetyBucket, name, minio.RemoveObjectOptions{}))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
