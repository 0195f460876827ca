package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testPage = `<!doctype html>
<html>
  <head><title>Status</title><style>body { color: red }</style></head>
  <body>
    <nav>Menu</nav>
    <div id="main"><p>Hello</p></div>
    <script>var tracking = true;</script>
  </body>
</html>`

func TestFetchSendsUserAgentAndReturnsBody(t *testing.T) {
	t.Parallel()

	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(testPage))
	}))
	defer server.Close()

	f := New(Config{UserAgent: "pagewatch-test/1.0", Timeout: 5 * time.Second}, zaptest.NewLogger(t))
	body, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, testPage, body)
	assert.Equal(t, "pagewatch-test/1.0", gotUA)

	// The same URL can be fetched again by the same Fetcher.
	_, err = f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
}

func TestFetchNonSuccessStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	f := New(Config{Timeout: 5 * time.Second}, zaptest.NewLogger(t))
	_, err := f.Fetch(context.Background(), server.URL)
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Contains(t, err.Error(), "HTTP 404 Not Found")
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	f := New(Config{Timeout: 50 * time.Millisecond}, zaptest.NewLogger(t))
	_, err := f.Fetch(context.Background(), server.URL)
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Zero(t, fetchErr.StatusCode)
	assert.NotNil(t, errors.Unwrap(fetchErr))
}

func TestFetchCanceledContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(Config{Timeout: 5 * time.Second}, zaptest.NewLogger(t))
	_, err := f.Fetch(ctx, server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchUnreachableHost(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	f := New(Config{Timeout: time.Second}, zaptest.NewLogger(t))
	_, err := f.Fetch(context.Background(), url)
	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, url, fetchErr.URL)
}

func TestGetTextWithSelectorAndFallback(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(testPage))
	}))
	defer server.Close()

	f := New(Config{Timeout: 5 * time.Second}, zaptest.NewLogger(t))

	text, err := f.GetText(context.Background(), server.URL, "#main")
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)

	text, err = f.GetText(context.Background(), server.URL, "#missing")
	require.NoError(t, err)
	assert.Equal(t, "Status\nMenu\nHello", text)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil)
	hooks := &stubHooks{}
	var result page
	f.configureCollectorHooks(hooks, &result)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{StatusCode: http.StatusAccepted, Body: []byte("body")})
	assert.Equal(t, http.StatusAccepted, result.status)
	assert.Equal(t, "body", string(result.body))

	hooks.onError(nil, errors.New("boom"))
	assert.EqualError(t, result.err, "boom")
}

func TestBuildCollectorAppliesConfig(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: "coverage-agent"}, nil)
	assert.Equal(t, DefaultTimeout, f.cfg.Timeout)
	collector := f.buildCollector(&page{})
	assert.Equal(t, "coverage-agent", collector.UserAgent)
	assert.True(t, collector.ParseHTTPErrorResponse)
	assert.True(t, collector.AllowURLRevisit)
	assert.Zero(t, collector.MaxBodySize)
}

func TestFetchReturnsBodyLargerThanCollyDefault(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("a", 11<<20)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	f := New(Config{Timeout: 10 * time.Second}, zaptest.NewLogger(t))
	got, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, got, len(body))
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
