package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"streamctl/internal/core/domain"
	apperrors "streamctl/pkg/errors"
	"streamctl/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.uber.org/zap/zaptest"
)

type staticTokens map[domain.Token]bool

func (s staticTokens) Issue(context.Context, bool) (domain.Token, error) { return "", nil }
func (s staticTokens) Validate(t domain.Token) bool                      { return s[t] }
func (s staticTokens) Revoke(context.Context, domain.Token) error        { return nil }

func TestTokenAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(TokenAuthMiddleware(staticTokens{"good": true}))
	router.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := map[string]int{
		"":            http.StatusUnauthorized,
		"good":        http.StatusUnauthorized,
		"Bearer bad":  http.StatusUnauthorized,
		"Bearer good": http.StatusOK,
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, "header %q", header)
	}
}

func TestErrorHandlerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandlerMiddleware(zaptest.NewLogger(t).Sugar()))
	router.GET("/app", func(c *gin.Context) {
		_ = c.Error(apperrors.NewPersistenceError("config", errors.New("disk full")))
	})
	router.GET("/plain", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/app", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "PERSISTENCE_ERROR")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plain", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RecoveryMiddleware(zaptest.NewLogger(t).Sugar()))
	router.GET("/panic", func(*gin.Context) { panic("unexpected") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(apperrors.ErrCodeResolution))
	assert.Equal(t, http.StatusConflict, HTTPStatus(apperrors.ErrCodeConflict))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(apperrors.ErrCodeInternal))
}

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return sr
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingMiddleware(t *testing.T) {
	sr := recordSpans(t)
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(TracingMiddleware("/ws"))

	handled := map[string]int{}
	count := func(c *gin.Context) {
		handled[c.Request.URL.Path]++
		c.Status(http.StatusOK)
	}
	router.GET("/health", count)
	router.GET("/metrics", count)
	router.GET("/ws", count)
	router.GET("/api/v1/status", count)
	router.GET("/api/v1/config", func(c *gin.Context) {
		_ = c.Error(apperrors.NewPersistenceError("config", errors.New("disk full")))
		c.Status(http.StatusServiceUnavailable)
	})

	for _, path := range []string{"/health", "/metrics", "/ws", "/api/v1/status", "/api/v1/config"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer abc")
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, map[string]int{"/health": 1, "/metrics": 1, "/ws": 1, "/api/v1/status": 1}, handled)

	spans := sr.Ended()
	require.Len(t, spans, 3, "health and metrics paths are not traced")

	surfaces := map[string]string{}
	for _, span := range spans {
		route, ok := spanAttr(span, semconv.HTTPRouteKey)
		require.True(t, ok)
		surface, _ := spanAttr(span, "http.surface")
		surfaces[route.AsString()] = surface.AsString()

		bearer, _ := spanAttr(span, "auth.bearer")
		assert.True(t, bearer.AsBool())
		_, ok = spanAttr(span, tracing.DurationKey)
		assert.True(t, ok, "duration recorded on %s", route.AsString())
	}
	assert.Equal(t, map[string]string{"/ws": "ws", "/api/v1/status": "api", "/api/v1/config": "api"}, surfaces)

	for _, span := range spans {
		route, _ := spanAttr(span, semconv.HTTPRouteKey)
		if route.AsString() == "/api/v1/config" {
			assert.Equal(t, codes.Error, span.Status().Code)
		} else {
			assert.Equal(t, codes.Ok, span.Status().Code)
		}
	}
}

func TestSurfaceOf(t *testing.T) {
	assert.Equal(t, "ws", surfaceOf("/control", "/control"))
	assert.Equal(t, "api", surfaceOf("/api/v1/netif", "/control"))
	assert.Equal(t, "static", surfaceOf("/index.html", "/control"))
}
