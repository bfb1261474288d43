package external

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meterjob/internal/types"
)

func noopSleep(context.Context, time.Duration) error { return nil }

func newTestBase(policy RetryPolicy, opts ...BaseClientOption) *BaseClient {
	opts = append([]BaseClientOption{WithSleepFunc(noopSleep)}, opts...)
	return NewBaseClient(&http.Client{Timeout: 5 * time.Second}, "test-breaker", policy, "meter-trigger/test", opts...)
}

func TestDo_SuccessAndHeaders(t *testing.T) {
	var gotUA, gotRunID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotRunID = r.Header.Get("X-Request-ID")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	ctx := types.WithRunID(context.Background(), "run-123")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := newTestBase(DefaultRetryPolicy()).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, "meter-trigger/test", gotUA)
	assert.Equal(t, "run-123", gotRunID)
}

func TestDo_RetriesOn5xxAndReplaysBody(t *testing.T) {
	var calls atomic.Int32
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodPost, server.URL, strings.NewReader(`{"quantity":3}`))
	resp, err := newTestBase(DefaultRetryPolicy()).Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []string{`{"quantity":3}`, `{"quantity":3}`, `{"quantity":3}`}, bodies)
}

func TestDo_4xxNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := newTestBase(DefaultRetryPolicy()).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_ExhaustedRetriesMapsUpstreamCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := newTestBase(RetryPolicy{MaxRetries: 2}, WithUpstreamCode(types.ErrCodeUpstreamDirectory)).Do(req)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamDirectory, appErr.Code)
}

func TestDo_ExhaustedRetriesOn429(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := newTestBase(RetryPolicy{MaxRetries: 1}).Do(req)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamRateLimited, appErr.Code)
}

func TestDo_NoRetryPolicySendsOnce(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodPost, server.URL, strings.NewReader("{}"))
	_, err := newTestBase(NoRetryPolicy()).Do(req)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_FinalResponseReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"code":"InternalServerError"}`))
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodPost, server.URL, strings.NewReader("{}"))
	resp, err := newTestBase(NoRetryPolicy(), WithFinalResponse()).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"code":"InternalServerError"}`, string(body))
}

func TestDo_CircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestBase(NoRetryPolicy())
	for i := 0; i < 6; i++ {
		req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
		_, err := client.Do(req)
		require.Error(t, err)
	}
	require.Equal(t, int32(6), calls.Load())

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := client.Do(req)
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Message, "circuit breaker")
	assert.Equal(t, int32(6), calls.Load(), "open breaker must not reach the server")
}

func TestDo_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	req, _ := http.NewRequest(http.MethodGet, url, nil)
	_, err := newTestBase(NoRetryPolicy(), WithUpstreamCode(types.ErrCodeUpstreamBilling)).Do(req)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamBilling, appErr.Code)
}

func TestDo_SleepErrorStopsRetrying(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cancelled := func(context.Context, time.Duration) error { return context.Canceled }
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := newTestBase(DefaultRetryPolicy(), WithSleepFunc(cancelled)).Do(req)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load())
}

func TestComputeBackoff(t *testing.T) {
	c := newTestBase(RetryPolicy{MaxRetries: 3, MinWait: 100 * time.Millisecond, MaxWait: 2 * time.Second})

	for attempt := 0; attempt < 6; attempt++ {
		wait := c.computeBackoff(attempt, nil)
		assert.GreaterOrEqual(t, wait, 100*time.Millisecond)
		assert.LessOrEqual(t, wait, 2*time.Second)
	}

	resp := &http.Response{Header: http.Header{"Retry-After": []string{"1"}}}
	assert.Equal(t, time.Second, c.computeBackoff(0, resp))

	resp.Header.Set("Retry-After", "120")
	assert.Equal(t, 2*time.Second, c.computeBackoff(0, resp), "capped at MaxWait")
}
