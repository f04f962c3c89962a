package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/ricemarket-console/internal/domain"
	"github.com/xela07ax/ricemarket-console/internal/infra"
	"github.com/xela07ax/ricemarket-console/internal/infra/auth"
)

const testSecret = "test-secret"

func demoConfig() *infra.Config {
	services := map[string]infra.ServiceConfig{}
	for _, name := range []string{domain.ServiceNLSQL, domain.ServiceAgent, domain.ServiceRAG, domain.ServiceForecast} {
		services[name] = infra.ServiceConfig{URL: "http://unused", HealthAuth: name == domain.ServiceAgent}
	}
	return &infra.Config{
		Server:   infra.ServerConfig{Demo: true},
		Services: services,
		Auth: infra.AuthConfig{
			JWTSecret: testSecret,
			Subject:   "frontend-user",
			TokenTTL:  time.Hour,
		},
		Cache:     infra.CacheConfig{Backend: "memory", DashboardTTL: 5 * time.Minute},
		Health:    infra.HealthConfig{Timeout: time.Second},
		Backends:  infra.BackendsConfig{RateLimit: 100, RateBurst: 10, CBMaxRequests: 1, CBInterval: time.Minute, CBTimeout: time.Second, CBFailures: 5},
		Dashboard: infra.DashboardConfig{PriceChange: 2.3},
	}
}

func newApp(t *testing.T, cfg *infra.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNew_DemoWiring(t *testing.T) {
	a := newApp(t, demoConfig())
	ctx := context.Background()

	for _, s := range a.Gate.CheckAll(ctx) {
		assert.Equal(t, domain.HealthOnline, s.State, s.Name)
	}
	require.NoError(t, a.Warm(ctx))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/stats", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 48.5, body["currentPrice"])
	// прогрев уже положил агрегат в кэш
	assert.Equal(t, "hit", body["source"])
}

func TestNew_RedisCacheWarmsOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := demoConfig()
	cfg.Cache.Backend = "redis"
	cfg.Redis.Addr = mr.Addr()

	a := newApp(t, cfg)
	ctx := context.Background()

	require.NoError(t, a.Warm(ctx))
	assert.True(t, mr.Exists(infra.CacheKey(infra.DashboardStatsKey)))
	assert.True(t, mr.Exists(infra.LockKey(infra.DashboardStatsKey)))

	// второй инстанс видит блокировку и не считает агрегат
	mr.Del(infra.CacheKey(infra.DashboardStatsKey))
	other := newApp(t, cfg)
	require.NoError(t, other.Warm(ctx))
	assert.False(t, mr.Exists(infra.CacheKey(infra.DashboardStatsKey)))
}

func TestWarm_BoundedByTimeout(t *testing.T) {
	// NL-SQL принимает соединение и молчит, пока клиент не отвалится
	stuck := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(stuck.Close)

	cfg := demoConfig()
	cfg.Server.Demo = false
	for name, svc := range cfg.Services {
		svc.URL = stuck.URL
		cfg.Services[name] = svc
	}
	cfg.Cache.WarmTimeout = 200 * time.Millisecond
	a := newApp(t, cfg)

	done := make(chan error, 1)
	go func() { done <- a.Warm(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("warm-up ignored cache.warm_timeout")
	}

	// агрегата нет, но первый запрос страницы его посчитает
	_, found := a.Dashboard.Cached(context.Background())
	assert.False(t, found)
}

func TestNew_RedisUnreachable(t *testing.T) {
	cfg := demoConfig()
	cfg.Cache.Backend = "redis"
	cfg.Redis.Addr = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := New(ctx, cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis unreachable")
}

func TestNew_ProtectedAPI(t *testing.T) {
	cfg := demoConfig()
	cfg.Auth.ProtectAPI = true
	a := newApp(t, cfg)
	require.NotNil(t, a.Validator)
	h := a.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/services", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	signer, err := auth.NewHMACSigner(testSecret, "operator", time.Minute)
	require.NoError(t, err)
	token, err := signer.Token()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// /health открыт всегда
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClose_StopsDemoBackends(t *testing.T) {
	a, err := New(context.Background(), demoConfig(), zap.NewNop())
	require.NoError(t, err)
	url := a.serviceURL(domain.ServiceRAG)

	require.NoError(t, a.Close())
	_, err = http.Get(url + "/health")
	assert.Error(t, err)
	// повторный Close безопасен
	assert.NoError(t, a.Close())
}
