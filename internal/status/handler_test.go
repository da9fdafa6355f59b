package status

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-opencv-motion-log/internal/eventlog"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake")

func newTestHandler(events Snapshotter) *Handler {
	assets := fstest.MapFS{
		"favicon-32x32.png": &fstest.MapFile{Data: pngBytes},
	}
	return NewHandler(events, assets, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestIndexListsEventsNewestFirst(t *testing.T) {
	l := eventlog.New(eventlog.DefaultCapacity)
	l.Record(ten, 50)
	l.Record(ten.Add(time.Second), 5001)

	rec := do(t, newTestHandler(l), http.MethodGet, "/")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))

	body := rec.Body.String()
	assert.Contains(t, body, "Motion Detection Records")
	assert.Contains(t, body, "window.location.reload()")
	assert.Contains(t, body, "5000")
	assert.Contains(t, body, `href="./favicon-32x32.png"`)

	newest := strings.Index(body, "10-16 10:00:01")
	oldest := strings.Index(body, "10-16 10:00:00")
	require.NotEqual(t, -1, newest)
	require.NotEqual(t, -1, oldest)
	assert.Less(t, newest, oldest)
	assert.Less(t, strings.Index(body, "Medium"), strings.Index(body, "Very Low"))
}

func TestIndexEmptyLog(t *testing.T) {
	rec := do(t, newTestHandler(eventlog.New(0)), http.MethodGet, "/")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<table>")
	assert.NotContains(t, rec.Body.String(), "<td>")
}

func TestFaviconServed(t *testing.T) {
	rec := do(t, newTestHandler(eventlog.New(0)), http.MethodGet, "/favicon-32x32.png")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes, rec.Body.Bytes())
}

func TestFaviconMissingIsServerError(t *testing.T) {
	h := newTestHandler(eventlog.New(0))

	rec := do(t, h, http.MethodGet, "/favicon-64x64.png")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	_, err := h.readAsset("favicon-64x64.png")
	assert.ErrorIs(t, err, ErrAssetMissing)

	_, err = h.readAsset("favicon-../../etc/passwd")
	assert.ErrorIs(t, err, ErrAssetMissing)
}

func TestFaviconWithoutAssetFS(t *testing.T) {
	h := NewHandler(eventlog.New(0), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := do(t, h, http.MethodGet, "/favicon-32x32.png")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestUnknownPathNotFound(t *testing.T) {
	for _, path := range []string{"/events", "/index.html", "/favicon.ico"} {
		rec := do(t, newTestHandler(eventlog.New(0)), http.MethodGet, path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Empty(t, rec.Body.Bytes(), path)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := do(t, newTestHandler(eventlog.New(0)), http.MethodPost, "/")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))
}

func TestLogRequests(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := LogRequests(logger, newTestHandler(eventlog.New(0)))

	rec := do(t, h, http.MethodGet, "/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	line := buf.String()
	assert.Contains(t, line, "status: request")
	assert.Contains(t, line, "path=/missing")
	assert.Contains(t, line, "status=404")
	assert.Contains(t, line, "bytes=0")

	buf.Reset()
	rec = do(t, h, http.MethodGet, "/favicon-32x32.png")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, buf.String(), "status=200")
	assert.Contains(t, buf.String(), fmt.Sprintf("bytes=%d", len(pngBytes)))
}

func TestLogRequestsKeepsFlusher(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var flushable bool
	h := LogRequests(logger, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, flushable = w.(http.Flusher)
	}))

	rec := do(t, h, http.MethodGet, "/")
	assert.True(t, flushable)
	assert.Equal(t, http.StatusOK, rec.Code)
}
