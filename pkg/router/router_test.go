package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat-relay/backend/internal/models"
	"chat-relay/backend/internal/pubsub"
	"chat-relay/backend/internal/service"
	"chat-relay/backend/internal/ws"
	"chat-relay/backend/pkg/config"
	"chat-relay/backend/pkg/health"
	"chat-relay/backend/pkg/logger"
	"chat-relay/backend/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopIngester struct{}

func (noopIngester) Execute(_ context.Context, content, author string) (*models.Message, error) {
	return models.NewMessage(content, author, time.Now()), nil
}

type emptyReader struct{}

func (emptyReader) FindByID(context.Context, uuid.UUID) (*models.Message, error) {
	return nil, service.ErrMessageNotFound
}

func (emptyReader) FindRecent(context.Context, int) ([]models.Message, error) {
	return []models.Message{}, nil
}

func newTestRouter(t *testing.T, mutate func(*config.Config)) (*Router, *pubsub.MemoryBroadcaster) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Load()
	cfg.Security.RateLimit = 1000
	cfg.Security.RateLimitBurst = 1000
	if mutate != nil {
		mutate(cfg)
	}
	log := logger.Discard()

	b := pubsub.NewMemoryBroadcaster(8, nil)
	relay := ws.NewRelay(noopIngester{}, b, ws.RelayOptions{Logger: log, Metrics: metrics.Noop()})

	checker := health.NewChecker(time.Second, log, metrics.Noop())
	checker.Register(health.ComponentStore, func(context.Context) error { return nil })
	checker.Register(health.ComponentChannel, b.HealthCheck)

	r := New(Dependencies{
		Config:    cfg,
		Logger:    log,
		WSHandler: ws.NewHandler(relay, ws.DefaultSettings(), nil),
		Health:    checker,
		Messages:  emptyReader{},
		Metrics:   promhttp.Handler(),
	})
	r.SetupRoutes()
	t.Cleanup(func() {
		r.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = relay.Shutdown(ctx)
	})
	return r, b
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRoutes_Health(t *testing.T) {
	r, b := newTestRouter(t, nil)

	for _, path := range []string{"/health", "/api/health"} {
		w := get(r.Engine, path)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"healthy","services":{"store":"up","channel":"up"}}`, w.Body.String())
	}

	require.NoError(t, b.Close())
	w := get(r.Engine, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","services":{"store":"up","channel":"down"}}`, w.Body.String())
}

func TestRoutes_Messages(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	assert.Equal(t, http.StatusOK, get(r.Engine, "/api/v1/messages").Code)
	assert.Equal(t, http.StatusNotFound, get(r.Engine, "/api/v1/messages/"+uuid.NewString()).Code)
	assert.Equal(t, http.StatusBadRequest, get(r.Engine, "/api/v1/messages?limit=abc").Code)
}

func TestRoutes_MetricsAndDocs(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	assert.Equal(t, http.StatusOK, get(r.Engine, "/metrics").Code)

	w := get(r.Engine, "/api/docs/openapi.yaml")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi:")
}

func TestRoutes_ValidationCanBeDisabled(t *testing.T) {
	r, _ := newTestRouter(t, func(cfg *config.Config) { cfg.Observability.OpenAPIValidate = false })

	assert.Equal(t, http.StatusNotFound, get(r.Engine, "/api/docs/openapi.yaml").Code)
}

func TestRoutes_RequestIDEchoed(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := get(r.Engine, "/health")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRoutes_HealthIsNotRateLimited(t *testing.T) {
	r, _ := newTestRouter(t, func(cfg *config.Config) {
		cfg.Security.RateLimit = 0.001
		cfg.Security.RateLimitBurst = 1
	})

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, get(r.Engine, "/health").Code)
	}
	assert.Equal(t, http.StatusOK, get(r.Engine, "/api/v1/messages").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r.Engine, "/api/v1/messages").Code)
}

func TestWebSocketRoute(t *testing.T) {
	r, b := newTestRouter(t, nil)
	srv := httptest.NewServer(r.Engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return b.Subscribers("messages") == 1 }, 2*time.Second, 10*time.Millisecond)
}
