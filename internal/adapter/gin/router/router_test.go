package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"clean-user-service/internal/adapter/gin/handler"
	usecase "clean-user-service/internal/usecase/user"
	"clean-user-service/pkg/logger"
	"clean-user-service/pkg/metrics"
)

type fakeUsecase struct {
	usecase.Usecase
	created []usecase.CreateUserRequest
}

func (f *fakeUsecase) GetUser(context.Context, usecase.GetUserRequest) (*usecase.GetUserResponse, error) {
	panic("boom")
}

func (f *fakeUsecase) CreateUser(_ context.Context, in usecase.CreateUserRequest) (*usecase.CreateUserResponse, error) {
	f.created = append(f.created, in)
	return &usecase.CreateUserResponse{ID: int64(len(f.created)), Name: in.Name, Email: in.Email}, nil
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string) (bool, error) { return false, nil }

type recordingLimiter struct {
	keys []string
}

func (l *recordingLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.keys = append(l.keys, key)
	return true, nil
}

func newRouter(t *testing.T, opts Options) (*gin.Engine, *fakeUsecase) {
	gin.SetMode(gin.TestMode)
	uc := &fakeUsecase{}
	opts.Users = handler.NewUserHandler(uc, zaptest.NewLogger(t))
	opts.Log = zaptest.NewLogger(t)
	return SetupRouter(opts), uc
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestSetupRouter_CreateUser(t *testing.T) {
	r, uc := newRouter(t, Options{})

	w := do(r, http.MethodPost, "/users", `{"name":"Ada","email":"ada@example.com"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":1,"name":"Ada","email":"ada@example.com"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(logger.RequestIDHeader))
	assert.Len(t, uc.created, 1)
}

func TestSetupRouter_Health(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		r, _ := newRouter(t, Options{
			ServiceName: "clean-user-service",
			Checks: map[string]HealthCheck{
				"database": func(context.Context) error { return nil },
			},
		})

		w := do(r, http.MethodGet, "/health", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"healthy","service":"clean-user-service","dependencies":{"database":"ok"}}`, w.Body.String())
	})

	t.Run("dependency down", func(t *testing.T) {
		r, _ := newRouter(t, Options{
			Checks: map[string]HealthCheck{
				"database": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return errors.New("connection refused") },
			},
		})

		w := do(r, http.MethodGet, "/health", "")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "unhealthy", body["status"])
		assert.Equal(t, "connection refused", body["dependencies"].(map[string]any)["redis"])
	})
}

func TestSetupRouter_Metrics(t *testing.T) {
	r, _ := newRouter(t, Options{Metrics: metrics.New()})

	do(r, http.MethodPost, "/users", `{"name":"Ada","email":"ada@example.com"}`)
	w := do(r, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `user_service_http_requests_total{method="POST",route="/users",status="201"} 1`)
}

func TestSetupRouter_RecoveredPanicIsCounted(t *testing.T) {
	r, _ := newRouter(t, Options{Metrics: metrics.New()})

	w := do(r, http.MethodGet, "/users/1", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, w.Header().Get(logger.RequestIDHeader))

	w = do(r, http.MethodGet, "/metrics", "")
	assert.Contains(t, w.Body.String(), `user_service_http_requests_total{method="GET",route="/users/:id",status="500"} 1`)
}

func TestSetupRouter_MetricsDisabled(t *testing.T) {
	r, _ := newRouter(t, Options{})

	w := do(r, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetupRouter_RateLimitOnlyGuardsUsers(t *testing.T) {
	r, uc := newRouter(t, Options{Limiter: denyAll{}})

	w := do(r, http.MethodPost, "/users", `{"name":"Ada","email":"ada@example.com"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Empty(t, uc.created)

	w = do(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSetupRouter_ForwardedForIgnoredFromUntrustedPeer(t *testing.T) {
	limiter := &recordingLimiter{}
	r, _ := newRouter(t, Options{Limiter: limiter})

	for _, xff := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"name":"Ada","email":"ada@example.com"}`))
		req.Header.Set("X-Forwarded-For", xff)
		req.Header.Set("X-Real-IP", xff)
		r.ServeHTTP(w, req)
	}

	assert.Equal(t, []string{"POST:/users:192.0.2.1", "POST:/users:192.0.2.1", "POST:/users:192.0.2.1"}, limiter.keys)
}

func TestSetupRouter_ForwardedForFromTrustedProxy(t *testing.T) {
	limiter := &recordingLimiter{}
	r, _ := newRouter(t, Options{Limiter: limiter, TrustedProxies: []string{"192.0.2.0/24"}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"name":"Ada","email":"ada@example.com"}`))
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	r.ServeHTTP(w, req)

	assert.Equal(t, []string{"POST:/users:203.0.113.9"}, limiter.keys)
}

func TestSetupRouter_Swagger(t *testing.T) {
	r, _ := newRouter(t, Options{SwaggerEnabled: true})

	w := do(r, http.MethodGet, "/swagger/doc.json", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Contains(t, doc["paths"], "/users")
}
