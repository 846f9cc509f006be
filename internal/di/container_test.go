package di

import (
	"context"
	"path/filepath"
	"testing"

	"campusfix/internal/config"
	"campusfix/internal/inspection"
	"campusfix/internal/observability"
	"campusfix/internal/services"
	"campusfix/internal/storage"
	"campusfix/internal/tokencache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContainer(t *testing.T, mutate ...func(*config.Config)) *ServiceContainer {
	t.Helper()
	cfg := config.Default()
	cfg.IsTest = true
	cfg.Media.LocalDir = filepath.Join(t.TempDir(), "images")
	for _, m := range mutate {
		m(cfg)
	}
	return NewServiceContainer(cfg, observability.NewNopLogger())
}

func TestServiceContainer_InitializeWithDB(t *testing.T) {
	sc := testContainer(t)
	ctx := context.Background()

	require.NoError(t, sc.InitializeWithDB(ctx, nil))
	t.Cleanup(func() { _ = sc.Shutdown(ctx) })

	issues, err := sc.GetIssueService()
	require.NoError(t, err)
	assert.IsType(t, &services.IssueService{}, issues)

	_, err = sc.GetSafetyService()
	require.NoError(t, err)

	oauth, err := sc.GetOAuthService()
	require.NoError(t, err)
	assert.Empty(t, oauth.EnabledProviders())

	tokens, err := sc.GetTokenStore()
	require.NoError(t, err)
	assert.IsType(t, &tokencache.MemoryStore{}, tokens)

	sink, err := sc.GetMediaSink()
	require.NoError(t, err)
	local, ok := sink.(*storage.LocalSink)
	require.True(t, ok)
	assert.True(t, local.IsReady(), "startup should create the media directory")

	inspector, err := sc.GetMediaInspector()
	require.NoError(t, err)
	assert.InDelta(t, config.DefaultSkinRatioThreshold, inspector.(*inspection.SkinInspector).Threshold(), 1e-9)

	notifier, err := sc.GetNotifier()
	require.NoError(t, err)
	assert.False(t, notifier.IsEnabled())

	assert.NotNil(t, sc.GetRateLimiter())
	assert.Same(t, sc.GetConfig(), sc.cfg)
}

func TestServiceContainer_RateLimiterDisabled(t *testing.T) {
	sc := testContainer(t, func(c *config.Config) { c.RateLimit.RequestsPerMinute = 0 })
	ctx := context.Background()

	require.NoError(t, sc.InitializeWithDB(ctx, nil))
	defer func() { _ = sc.Shutdown(ctx) }()

	assert.Nil(t, sc.GetRateLimiter())
}

func TestServiceContainer_UnknownBackends(t *testing.T) {
	t.Run("token cache", func(t *testing.T) {
		sc := testContainer(t, func(c *config.Config) { c.TokenCache.Backend = "memcached" })
		err := sc.InitializeWithDB(context.Background(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "token cache")
	})

	t.Run("media", func(t *testing.T) {
		sc := testContainer(t, func(c *config.Config) { c.Features.MediaBackend = "ftp" })
		err := sc.InitializeWithDB(context.Background(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "media sink")
	})
}

func TestServiceContainer_GetServiceAs(t *testing.T) {
	sc := testContainer(t)
	sc.services["answer"] = 42

	v, err := GetServiceAs[int](sc, "answer")
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = GetServiceAs[string](sc, "answer")
	assert.Error(t, err)

	_, err = sc.GetService("missing")
	assert.Error(t, err)
}

type recordingService struct {
	name string
	log  *[]string
}

func (r *recordingService) Startup(context.Context) error {
	*r.log = append(*r.log, "start "+r.name)
	return nil
}

func (r *recordingService) Shutdown(context.Context) error {
	*r.log = append(*r.log, "stop "+r.name)
	return nil
}

func (r *recordingService) IsReady() bool { return true }

func TestServiceContainer_LifecycleOrder(t *testing.T) {
	sc := testContainer(t)
	var log []string
	sc.register("a", &recordingService{name: "a", log: &log})
	sc.register("plain", struct{}{})
	sc.register("b", &recordingService{name: "b", log: &log})
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(context.Context) error {
		log = append(log, "close db")
		return nil
	})

	ctx := context.Background()
	require.NoError(t, sc.startupServices(ctx))
	require.NoError(t, sc.Shutdown(ctx))

	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a", "close db"}, log)

	// A second shutdown is a no-op
	require.NoError(t, sc.Shutdown(ctx))
	assert.Len(t, log, 5)
}
