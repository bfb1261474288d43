package external

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meterjob/internal/types"
)

func newTestGraph(t *testing.T, handler http.HandlerFunc) (*GraphDirectoryClient, *staticTokens) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tokens := &staticTokens{token: "graph-token"}
	client := NewGraphDirectoryClient(server.Client(), tokens, GraphClientConfig{
		BaseURL:    server.URL,
		APIVersion: "v1.0",
		UserAgent:  "meter-trigger/test",
	}, WithSleepFunc(noopSleep))
	return client, tokens
}

func TestGraph_CountActivePrincipals(t *testing.T) {
	client, tokens := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1.0/users/$count", r.URL.Path)
		assert.Equal(t, "accountEnabled eq true", r.URL.Query().Get("$filter"))
		assert.Equal(t, "eventual", r.Header.Get("ConsistencyLevel"))
		assert.Equal(t, "Bearer graph-token", r.Header.Get("Authorization"))
		w.Write([]byte("\ufeff42"))
	})

	count, err := client.CountActivePrincipals(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
	assert.Equal(t, []string{"tenant-1"}, tokens.tenants)
}

func TestGraph_ZeroCount(t *testing.T) {
	client, _ := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0"))
	})

	count, err := client.CountActivePrincipals(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGraph_ErrorBodyPreserved(t *testing.T) {
	const body = `{"error":{"code":"Authorization_RequestDenied","message":"Insufficient privileges"}}`
	client, _ := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(body))
	})

	_, err := client.CountActivePrincipals(context.Background(), "tenant-1")

	var dirErr *types.DirectoryError
	require.True(t, errors.As(err, &dirErr))
	assert.Equal(t, "tenant-1", dirErr.TenantID)
	assert.Equal(t, http.StatusForbidden, dirErr.HTTPStatus)
	assert.Equal(t, "Authorization_RequestDenied: Insufficient privileges", dirErr.Message)
	assert.Equal(t, body, dirErr.RawBody)
}

func TestGraph_NonNumericBody(t *testing.T) {
	client, _ := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>oops</html>"))
	})

	_, err := client.CountActivePrincipals(context.Background(), "tenant-1")

	var dirErr *types.DirectoryError
	require.True(t, errors.As(err, &dirErr))
	assert.Equal(t, "<html>oops</html>", dirErr.RawBody)
}

func TestGraph_UnavailableAfterRetries(t *testing.T) {
	calls := 0
	client, _ := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.CountActivePrincipals(context.Background(), "tenant-1")

	var dirErr *types.DirectoryError
	require.True(t, errors.As(err, &dirErr))
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamDirectory, appErr.Code)
	assert.Equal(t, 1+DefaultRetryPolicy().MaxRetries, calls)
}

func TestGraph_EmptyTenant(t *testing.T) {
	client, tokens := newTestGraph(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.CountActivePrincipals(context.Background(), "  ")

	var dirErr *types.DirectoryError
	require.True(t, errors.As(err, &dirErr))
	assert.Empty(t, tokens.tenants)
}
