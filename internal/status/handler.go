package status

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go-opencv-motion-log/internal/eventlog"
)

// RefreshInterval is how often the page reloads itself.
const RefreshInterval = 5 * time.Second

const faviconPrefix = "/favicon-"

// ErrAssetMissing is returned when a requested icon is not in the asset FS.
var ErrAssetMissing = errors.New("status: asset missing")

//go:embed templates/index.html.tmpl
var templateFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templateFS, "templates/index.html.tmpl"))

var iconSizes = []string{"32x32", "64x64", "128x128", "416x416"}

// Snapshotter yields a consistent copy of the event log. *eventlog.Log implements it.
type Snapshotter interface {
	Snapshot() []eventlog.Event
}

type page struct {
	Icons          []string
	Rows           []Row
	RefreshMillis  int64
	RefreshSeconds int64
}

// Handler serves the status page and its icons.
type Handler struct {
	events Snapshotter
	assets fs.FS
	logger *slog.Logger
}

// NewHandler returns a Handler reading events from events and icons from assets.
func NewHandler(events Snapshotter, assets fs.FS, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		events: events,
		assets: assets,
		logger: logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	switch {
	case r.URL.Path == "/":
		h.serveIndex(w)
	case strings.HasPrefix(r.URL.Path, faviconPrefix):
		h.serveIcon(w, strings.TrimPrefix(r.URL.Path, "/"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) serveIndex(w http.ResponseWriter) {
	p := page{
		Icons:          iconSizes,
		Rows:           BuildRows(h.events.Snapshot()),
		RefreshMillis:  RefreshInterval.Milliseconds(),
		RefreshSeconds: int64(RefreshInterval / time.Second),
	}

	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, p); err != nil {
		h.logger.Error("status: render failed", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Handler) serveIcon(w http.ResponseWriter, name string) {
	data, err := h.readAsset(name)
	if err != nil {
		h.logger.Error("status: icon request failed", "name", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) readAsset(name string) ([]byte, error) {
	if h.assets == nil || !fs.ValidPath(name) {
		return nil, fmt.Errorf("%w: %s", ErrAssetMissing, name)
	}
	data, err := fs.ReadFile(h.assets, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAssetMissing, err)
	}
	return data, nil
}
