// internal/fetch/fetcher_test.go
package fetch

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steltix/newsgrab/internal/deadcache"
	"github.com/steltix/newsgrab/internal/detect"
	"github.com/steltix/newsgrab/internal/domain"
	"github.com/steltix/newsgrab/internal/identity"
	"github.com/steltix/newsgrab/internal/utils"
)

func newTestFetcher(t *testing.T) (*Fetcher, *deadcache.Cache, *domain.Registry) {
	t.Helper()
	registry := domain.NewRegistry(domain.Config{
		MinDelay: time.Millisecond,
		MaxDelay: 2 * time.Millisecond,
	}, utils.NewSeededRand(1))
	rotator := identity.NewRotator(identity.Config{
		RequestTimeout: 5 * time.Second,
	}, utils.NewSeededRand(1), nil)
	dead := deadcache.New(time.Hour)
	f := New(Config{}, registry, rotator, dead, utils.NopLogger{}, nil)
	return f, dead, registry
}

func hostOf(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u.Hostname()
}

func TestFetchSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>hello article</body></html>"))
	}))
	defer srv.Close()

	f, _, registry := newTestFetcher(t)
	resp, err := f.Fetch(context.Background(), srv.URL+"/story")
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, resp.Body, "hello article")
	assert.False(t, resp.ProxyUsed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 0, registry.ConsecutiveErrors(hostOf(t, srv.URL)))
}

func TestFetchNotFoundMarksDeadAndAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f, dead, _ := newTestFetcher(t)
	target := srv.URL + "/gone"

	_, err := f.Fetch(context.Background(), target)
	var blockErr *detect.BlockError
	require.ErrorAs(t, err, &blockErr)
	assert.Equal(t, detect.PermanentNotFound, blockErr.Class)
	assert.Equal(t, 404, blockErr.StatusCode)
	assert.True(t, dead.IsDead(target))
}

func TestFetchRetryAfterHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "300")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f, _, registry := newTestFetcher(t)
	_, err := f.Fetch(context.Background(), srv.URL+"/limited")

	var blockErr *detect.BlockError
	require.ErrorAs(t, err, &blockErr)
	assert.Equal(t, detect.RateLimited, blockErr.Class)
	assert.Equal(t, 300*time.Second, blockErr.RetryAfter)

	// The server hint (300s) exceeds the first-error formula value, so the
	// suppression window must honor it.
	remaining := registry.BackoffRemaining(hostOf(t, srv.URL))
	assert.Greater(t, remaining, 295*time.Second)
}

func TestFetchGarbageRetryAfterFallsBackToFormula(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "whenever")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f, _, registry := newTestFetcher(t)
	_, err := f.Fetch(context.Background(), srv.URL+"/limited")

	var blockErr *detect.BlockError
	require.ErrorAs(t, err, &blockErr)
	assert.Equal(t, time.Duration(0), blockErr.RetryAfter)

	remaining := registry.BackoffRemaining(hostOf(t, srv.URL))
	assert.Greater(t, remaining, time.Duration(0))
	assert.Less(t, remaining, 2*domain.DefaultBackoffBase)
}

func TestFetchBotBlockUsesBlockTier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("<title>Just a moment...</title> checking your browser"))
	}))
	defer srv.Close()

	f, _, registry := newTestFetcher(t)
	_, err := f.Fetch(context.Background(), srv.URL+"/blocked")

	var blockErr *detect.BlockError
	require.ErrorAs(t, err, &blockErr)
	assert.Equal(t, detect.BotBlocked, blockErr.Class)
	assert.Equal(t, detect.VariantCloudflare, blockErr.Variant)

	// Block-tier base is 600s; even at minimum jitter (0.8) the window is
	// far past the ordinary tier's 60s.
	remaining := registry.BackoffRemaining(hostOf(t, srv.URL))
	assert.Greater(t, remaining, 400*time.Second)
}

func TestFetchDuringBackoffMakesNoNetworkCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f, _, _ := newTestFetcher(t)

	_, err := f.Fetch(context.Background(), srv.URL+"/down")
	var blockErr *detect.BlockError
	require.ErrorAs(t, err, &blockErr)
	assert.Equal(t, detect.ServerError, blockErr.Class)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// Second attempt: immediate RateLimited refusal, zero requests.
	_, err = f.Fetch(context.Background(), srv.URL+"/down")
	require.ErrorAs(t, err, &blockErr)
	assert.Equal(t, detect.RateLimited, blockErr.Class)
	assert.Greater(t, blockErr.RetryAfter, time.Duration(0))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchTransportErrorIsNotFatal(t *testing.T) {
	f, _, registry := newTestFetcher(t)

	// Unroutable port: connection refused.
	_, err := f.Fetch(context.Background(), "http://127.0.0.1:1/nothing")
	require.Error(t, err)

	var blockErr *detect.BlockError
	assert.False(t, errors.As(err, &blockErr), "transport errors must stay untyped")
	assert.Equal(t, time.Duration(0), registry.BackoffRemaining("127.0.0.1"))
}

func TestFetchDecodesGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		gz := gzip.NewWriter(w)
		gz.Write([]byte("<html>compressed article body</html>"))
		gz.Close()
	}))
	defer srv.Close()

	f, _, _ := newTestFetcher(t)
	resp, err := f.Fetch(context.Background(), srv.URL+"/gz")
	require.NoError(t, err)
	assert.Contains(t, resp.Body, "compressed article body")
}

func TestFetchDecodesLegacyCharset(t *testing.T) {
	// "café" in ISO-8859-1: é is 0xE9.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write([]byte("<html>caf\xe9</html>"))
	}))
	defer srv.Close()

	f, _, _ := newTestFetcher(t)
	resp, err := f.Fetch(context.Background(), srv.URL+"/latin1")
	require.NoError(t, err)
	assert.Contains(t, resp.Body, "café")
}

func TestFetchInvalidURL(t *testing.T) {
	f, _, _ := newTestFetcher(t)
	_, err := f.Fetch(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestFetchPacesBackToBackRequests(t *testing.T) {
	registry := domain.NewRegistry(domain.Config{
		MinDelay: 50 * time.Millisecond,
		MaxDelay: 70 * time.Millisecond,
	}, utils.NewSeededRand(1))
	rotator := identity.NewRotator(identity.Config{}, utils.NewSeededRand(1), nil)
	f := New(Config{}, registry, rotator, deadcache.New(time.Hour), utils.NopLogger{}, nil)

	var stamps []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stamps = append(stamps, time.Now())
		w.Write([]byte(strings.Repeat("x", 10)))
	}))
	defer srv.Close()

	ctx := context.Background()
	_, err := f.Fetch(ctx, srv.URL+"/a")
	require.NoError(t, err)
	_, err = f.Fetch(ctx, srv.URL+"/b")
	require.NoError(t, err)

	require.Len(t, stamps, 2)
	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 50*time.Millisecond)
}
