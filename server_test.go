package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func serve(r http.Handler, method, path, body string, header map[string]string) int {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestHealthzBeforeDatabase(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	r := newRouter(logger)

	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/healthz", "", nil))
	assert.Equal(t, http.StatusServiceUnavailable, serve(r, http.MethodGet, "/internal/ops/outbox/dead", "", nil))
}

func TestInternalTokenRequired(t *testing.T) {
	r := testEngine()
	r.GET("/ops", internalTokenRequired(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	// closed without a configured token
	t.Setenv("INTERNAL_API_TOKEN", "")
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/ops", "", nil))

	t.Setenv("INTERNAL_API_TOKEN", "s3cret")
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/ops", "", nil))
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/ops", "", map[string]string{"Authorization": "Bearer nope"}))
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/ops", "", map[string]string{"Authorization": "Bearer s3cret"}))
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/ops", "", map[string]string{"token": "s3cret"}))
}

func TestPubSubHandlerAcksMalformedMessages(t *testing.T) {
	r := testEngine()
	r.POST("/pubsub", jobPubSubHandler())

	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/pubsub", "not json", nil))
	// data decodes to {} and carries no reference
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/pubsub", `{"message":{"data":"e30=","id":"1"}}`, nil))
}

func TestOutboxProcessBackoff(t *testing.T) {
	cfg := outboxProcessRetryConfig{maxAttempts: 5, baseBackoff: 5 * time.Second, maxBackoff: time.Minute}
	assert.Equal(t, 5*time.Second, outboxProcessBackoff(0, cfg))
	assert.Equal(t, 5*time.Second, outboxProcessBackoff(1, cfg))
	assert.Equal(t, 20*time.Second, outboxProcessBackoff(3, cfg))
	assert.Equal(t, time.Minute, outboxProcessBackoff(10, cfg))
}

func TestOutboxProcessRetryConfigFromEnv(t *testing.T) {
	t.Setenv("OUTBOX_PROCESS_MAX_ATTEMPTS", "3")
	t.Setenv("OUTBOX_PROCESS_BASE_BACKOFF_SECONDS", "2")
	t.Setenv("OUTBOX_PROCESS_MAX_BACKOFF_SECONDS", "soon")

	cfg := getOutboxProcessRetryConfig()
	require.Equal(t, 3, cfg.maxAttempts)
	assert.Equal(t, 2*time.Second, cfg.baseBackoff)
	assert.Equal(t, 10*time.Minute, cfg.maxBackoff)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim("  "))
	assert.Equal(t, []string{"https://ops.example.com", "http://localhost:3000"}, splitAndTrim(" https://ops.example.com, ,http://localhost:3000 "))
}
