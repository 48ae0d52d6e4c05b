package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestHealthz_ReportsFailingChecks(t *testing.T) {
	h := NewHealthChecker(zap.NewNop())
	h.AddCheck("storage", func(context.Context) error { return nil })

	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	h.AddCheck("kafka", func(context.Context) error { return errors.New("no brokers") })
	rec = httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NOT_READY", body.Status)
	assert.Equal(t, []string{"kafka", "storage"}, body.Checks)
	assert.Equal(t, "no brokers", body.Failures["kafka"])
}

func TestHealthz_NotReadyAfterShutdown(t *testing.T) {
	h := NewHealthChecker(zap.NewNop())
	require.NoError(t, h.Shutdown(context.Background()))

	ok, _ := h.Check(context.Background())
	assert.False(t, ok)
}

func TestUnaryLoggingInterceptor(t *testing.T) {
	icpt := UnaryLoggingInterceptor(zap.NewNop())
	resp, err := icpt(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: "/svc/Method"},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			return nil, status.Error(codes.Unavailable, "down")
		})
	assert.Nil(t, resp)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}
