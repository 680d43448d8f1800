package obs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestNewLogger_JSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "prod", slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("shown", slog.String("reservation_id", "r1"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "r1", line["reservation_id"])
}

func newEngine(mw Middleware, health HealthHandlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw.RequestID(), mw.LoggerMiddleware())
	r.GET("/livez", health.Livez)
	r.GET("/readyz", health.Readyz)
	r.GET("/echo", func(c *gin.Context) {
		c.String(http.StatusOK, RequestIDFromContext(c.Request.Context()))
	})
	return r
}

func TestRequestID_PropagatesOrGenerates(t *testing.T) {
	r := newEngine(Middleware{}, HealthHandlers{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/echo", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Body.String())
	assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/echo", nil))
	assert.NotEmpty(t, rec.Body.String())
	assert.Equal(t, rec.Body.String(), rec.Header().Get(HeaderRequestID))
}

func TestReadyz_ReportsFailingChecks(t *testing.T) {
	r := newEngine(Middleware{Logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))}, HealthHandlers{Checks: map[string]Check{
		"mongo": func(context.Context) error { return nil },
		"kafka": func(context.Context) error { return errors.New("no brokers") },
	}})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "no brokers")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
