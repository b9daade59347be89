package analytichttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/odyssey-erp/execdash/internal/analytics"
	"github.com/odyssey-erp/execdash/internal/analytics/export"
	"github.com/odyssey-erp/execdash/internal/platform/httpx"
)

const requestTimeout = 5 * time.Second

var errNoSnapshot = errors.New("analytics: no snapshot available")

// SnapshotReader returns the most recently published snapshot and its
// version.
type SnapshotReader interface {
	Latest(ctx context.Context, dest interface{}) error
	Version(ctx context.Context) (int64, error)
}

// PDFService renders a snapshot to PDF bytes.
type PDFService interface {
	RenderSnapshot(ctx context.Context, snap analytics.Snapshot) ([]byte, error)
}

// Config wires where snapshots are read from. Cache is consulted first; the
// JSON file written by the last run is the fallback.
type Config struct {
	Cache    SnapshotReader
	JSONPath string
	Template []byte
	PDF      PDFService
}

// Handler serves the last published dashboard snapshot.
type Handler struct {
	logger  *slog.Logger
	cfg     Config
	csvPool sync.Pool
}

// NewHandler constructs the dashboard HTTP handler.
func NewHandler(logger *slog.Logger, cfg Config) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{logger: logger, cfg: cfg}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.load(w, r)
	if !ok {
		return
	}
	doc, err := export.RenderDocument(h.cfg.Template, snap)
	if err != nil {
		h.handleServerError(w, "render dashboard", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write(doc); err != nil {
		h.logError("stream dashboard", err)
	}
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.load(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		h.logError("stream snapshot", err)
	}
}

func (h *Handler) handlePDF(w http.ResponseWriter, r *http.Request) {
	if h.cfg.PDF == nil {
		httpx.Problem(w, http.StatusNotFound, "pdf exporter not configured")
		return
	}
	snap, ok := h.load(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()
	pdf, err := h.cfg.PDF.RenderSnapshot(ctx, snap)
	if err != nil {
		h.handleServerError(w, "render pdf", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"dashboard-%s.pdf\"", snap.LatestDataDate))
	if _, err := w.Write(pdf); err != nil {
		h.logError("stream pdf", err)
	}
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	kind := strings.TrimSpace(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = "trend"
	}
	write, ok := csvWriters[kind]
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "kind must be one of trend, ar, forecast")
		return
	}
	snap, loaded := h.load(w, r)
	if !loaded {
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()
	if err := write(buf, snap); err != nil {
		h.handleServerError(w, "write "+kind+" csv", err)
		return
	}

	filename := fmt.Sprintf("dashboard-%s-%s.csv", kind, snap.LatestDataDate)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream csv", err)
	}
}

var csvWriters = map[string]func(io.Writer, analytics.Snapshot) error{
	"trend": func(w io.Writer, s analytics.Snapshot) error { return export.WriteTrendCSV(w, s.DailyTrend) },
	"ar":    func(w io.Writer, s analytics.Snapshot) error { return export.WriteARInvoicesCSV(w, s.ARInvoices) },
	"forecast": func(w io.Writer, s analytics.Snapshot) error {
		return export.WriteForecastCSV(w, s.CashFlowPrediction)
	},
}

// load writes the error response itself and reports whether to continue.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (analytics.Snapshot, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	snap, err := h.latest(ctx, w.Header())
	if errors.Is(err, errNoSnapshot) {
		httpx.Problem(w, http.StatusNotFound, "no dashboard published yet")
		return snap, false
	}
	if err != nil {
		h.handleServerError(w, "load snapshot", err)
		return snap, false
	}
	if snap.RunID != "" {
		w.Header().Set("X-Snapshot-Run", snap.RunID)
	}
	return snap, true
}

// latest tags the response with where the snapshot came from. Cached
// snapshots also carry their publication version.
func (h *Handler) latest(ctx context.Context, header http.Header) (analytics.Snapshot, error) {
	var snap analytics.Snapshot
	if h.cfg.Cache != nil {
		err := h.cfg.Cache.Latest(ctx, &snap)
		if err == nil {
			header.Set("X-Snapshot-Source", "cache")
			if ver, verr := h.cfg.Cache.Version(ctx); verr != nil {
				h.logError("read snapshot version", verr)
			} else if ver > 0 {
				header.Set("X-Snapshot-Version", strconv.FormatInt(ver, 10))
			}
			return snap, nil
		}
		if !errors.Is(err, analytics.ErrNoSnapshot) {
			h.logError("read cached snapshot", err)
		}
	}
	if h.cfg.JSONPath == "" {
		return snap, errNoSnapshot
	}
	data, err := os.ReadFile(h.cfg.JSONPath)
	if errors.Is(err, os.ErrNotExist) {
		return snap, errNoSnapshot
	}
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("analytics: decode %s: %w", h.cfg.JSONPath, err)
	}
	header.Set("X-Snapshot-Source", "file")
	return snap, nil
}

func (h *Handler) handleServerError(w http.ResponseWriter, op string, err error) {
	h.logError(op, err)
	httpx.Problem(w, http.StatusInternalServerError, "")
}

func (h *Handler) logError(op string, err error) {
	h.logger.Error("dashboard handler", slog.String("op", op), slog.Any("error", err))
}
