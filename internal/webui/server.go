// Package webui serves the embedded trace viewer and its JSON API. Every
// geometry number the browser renders (depths, bar offsets, tick labels)
// comes from the timeline package; the page itself only applies CSS.
package webui

import (
	"context"
	"embed"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"

	"github.com/brokle-ai/spanline/internal/storage"
	"github.com/brokle-ai/spanline/internal/timeline"
)

//go:embed static/index.html
var staticFiles embed.FS

// Server serves the embedded web UI, the timeline API, and WebSocket updates.
type Server struct {
	store *storage.Store
}

// New creates a new web UI server.
func New(store *storage.Store) *Server {
	return &Server{store: store}
}

// RegisterRoutes attaches web UI routes to an existing ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ui/", s.handleUI)
	mux.HandleFunc("GET /ui", s.handleUIRedirect)
	mux.HandleFunc("GET /api/traces", s.handleTraces)
	mux.HandleFunc("GET /api/trace/{id}", s.handleTrace)
	mux.HandleFunc("GET /api/services", s.handleServices)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/query", s.handleQuery)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
}

// ListenAndServe starts a standalone HTTP server for the web UI.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// handleUIRedirect redirects /ui to /ui/ for consistent routing.
func (s *Server) handleUIRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/ui/", http.StatusMovedPermanently)
}

// handleUI serves the embedded index.html.
func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	data, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "UI not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// traceSummary is the JSON shape for one entry in /api/traces.
type traceSummary struct {
	TraceID    string  `json:"trace_id"`
	Service    string  `json:"service"`
	RootSpan   string  `json:"root_span"`
	Status     string  `json:"status"`
	DurationMs float64 `json:"duration_ms"`
	SpanCount  int     `json:"span_count"`
	ErrorMsg   string  `json:"error_msg,omitempty"`
	Time       string  `json:"time"`
}

// handleTraces returns recent traces, newest first.
func (s *Server) handleTraces(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	entries := s.store.Activity().RecentTraces(limit)
	summaries := make([]traceSummary, 0, len(entries))
	for _, e := range entries {
		summaries = append(summaries, traceSummary{
			TraceID:    e.TraceID,
			Service:    e.Service,
			RootSpan:   e.RootSpan,
			Status:     e.Status,
			DurationMs: e.DurationMs,
			SpanCount:  e.SpanCount,
			ErrorMsg:   e.ErrorMsg,
			Time:       formatNanoTime(e.Timestamp),
		})
	}
	writeJSON(w, summaries)
}

// timelineResponse is the JSON shape for /api/trace/{id}: the full layout
// plus the tick marks the page draws on the time axis.
type timelineResponse struct {
	TraceID string         `json:"trace_id"`
	Window  timelineWindow `json:"window"`
	Ticks   []timelineTick `json:"ticks"`
	Spans   []timelineRow  `json:"spans"`
}

type timelineWindow struct {
	MinTimeMs       float64 `json:"min_time_ms"`
	MaxTimeMs       float64 `json:"max_time_ms"`
	TotalDurationMs float64 `json:"total_duration_ms"`
}

type timelineTick struct {
	Position float64 `json:"position_pct"`
	Label    string  `json:"label"`
}

type timelineRow struct {
	SpanID         string  `json:"span_id"`
	ParentSpanID   string  `json:"parent_span_id,omitempty"`
	Service        string  `json:"service"`
	SpanName       string  `json:"span_name"`
	Depth          int     `json:"depth"`
	StartOffsetPct float64 `json:"start_offset_pct"`
	WidthPct       float64 `json:"width_pct"`
	DurationMs     float64 `json:"duration_ms"`
	Status         string  `json:"status"`
	HasError       bool    `json:"has_error"`
	Color          string  `json:"color"`
}

// handleTrace computes and returns the timeline layout for one trace.
func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	traceID := r.PathValue("id")

	layout, err := s.store.TraceTimeline(traceID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	resp := timelineResponse{
		TraceID: traceID,
		Window: timelineWindow{
			MinTimeMs:       layout.Window.MinTimeMs,
			MaxTimeMs:       layout.Window.MaxTimeMs,
			TotalDurationMs: layout.Window.TotalDurationMs,
		},
	}

	for _, tick := range timeline.Ticks(layout.Window.TotalDurationMs, timeline.DefaultTickIntervals) {
		resp.Ticks = append(resp.Ticks, timelineTick{
			Position: tick.PercentPosition,
			Label:    tick.Label,
		})
	}

	for _, span := range layout.Spans {
		resp.Spans = append(resp.Spans, timelineRow{
			SpanID:         span.SpanID,
			ParentSpanID:   span.ParentSpanID,
			Service:        span.ServiceName,
			SpanName:       span.SpanName,
			Depth:          span.Depth,
			StartOffsetPct: span.StartOffsetPct,
			WidthPct:       span.WidthPct,
			DurationMs:     span.DurationMillis(),
			Status:         span.StatusCode,
			HasError:       span.HasError(),
			Color:          timeline.ColorClass(span.Depth, span.HasError()),
		})
	}

	writeJSON(w, resp)
}

// handleServices returns the list of known service names.
func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.store.Services())
}

// statusResponse is the JSON shape for /api/status.
type statusResponse struct {
	Generation uint64        `json:"generation"`
	Spans      uint64        `json:"spans"`
	Uptime     float64       `json:"uptime_seconds"`
	Storage    storage.Stats `json:"storage"`
}

// handleStatus returns generation counter, span counts, and uptime.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ac := s.store.Activity()
	writeJSON(w, statusResponse{
		Generation: ac.Generation(),
		Spans:      ac.SpansReceived(),
		Uptime:     ac.UptimeSeconds(),
		Storage:    s.store.Stats(),
	})
}

// handleQuery performs a filtered span query against the store.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := storage.QueryFilter{
		ServiceName:   q.Get("service"),
		SpanName:      q.Get("span_name"),
		TraceID:       q.Get("trace_id"),
		SpanStatus:    q.Get("span_status"),
		SinceBookmark: q.Get("since_bookmark"),
	}

	if q.Get("errors_only") == "true" {
		filter.ErrorsOnly = true
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	result, err := s.store.Query(filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, result)
}

// wsFilter is the client-sent filter message on the WebSocket.
type wsFilter struct {
	Service string `json:"service"`
	Paused  bool   `json:"paused"`
}

// wsUpdate is the server-sent update message on the WebSocket.
type wsUpdate struct {
	Generation uint64          `json:"generation"`
	Spans      uint64          `json:"spans"`
	Traces     []wsSpanSummary `json:"traces,omitempty"`
}

type wsSpanSummary struct {
	Time       string  `json:"time"`
	TraceID    string  `json:"trace_id"`
	Service    string  `json:"service"`
	SpanName   string  `json:"span_name"`
	DurationMs float64 `json:"duration_ms"`
	Status     string  `json:"status"`
}

// handleWebSocket upgrades to WebSocket and streams span arrivals.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow any origin for localhost dev
	})
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	// Subscribe to storage notifications
	notifyCh, unsubscribe := s.store.Activity().Subscribe()
	defer unsubscribe()

	// Track position for delta reads — back up to include recent history on connect
	const backfillSpans = 50
	lastPos := s.store.Spans().Position() - backfillSpans
	if lastPos < 0 {
		lastPos = 0
	}

	// Current filter (initially empty = show all)
	var filter wsFilter

	// Read filter messages from client in a goroutine
	filterCh := make(chan wsFilter, 4)
	go func() {
		defer close(filterCh)
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var f wsFilter
			if json.Unmarshal(data, &f) == nil {
				select {
				case filterCh <- f:
				default:
				}
			}
		}
	}()

	// Send initial update immediately
	s.sendWSUpdate(ctx, conn, &lastPos, filter)

	// Keepalive ticker (send status even with no data changes, so client knows we're alive)
	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "server shutting down")
			return

		case f, ok := <-filterCh:
			if !ok {
				// Client disconnected
				return
			}
			filter = f

		case <-notifyCh:
			if filter.Paused {
				continue
			}
			s.sendWSUpdate(ctx, conn, &lastPos, filter)

		case <-keepalive.C:
			if filter.Paused {
				continue
			}
			s.sendWSUpdate(ctx, conn, &lastPos, filter)
		}
	}
}

// sendWSUpdate reads the span delta from the ring buffer and sends a JSON
// update over the WebSocket.
func (s *Server) sendWSUpdate(ctx context.Context, conn *websocket.Conn, lastPos *int, filter wsFilter) {
	ac := s.store.Activity()

	update := wsUpdate{
		Generation: ac.Generation(),
		Spans:      ac.SpansReceived(),
	}

	curPos := s.store.Spans().Position()
	if curPos > *lastPos {
		for _, span := range s.store.Spans().SpansRange(*lastPos, curPos) {
			if filter.Service != "" && span.ServiceName != filter.Service {
				continue
			}
			update.Traces = append(update.Traces, wsSpanSummary{
				Time:       formatNanoTime(span.Span.StartTimeUnixNano),
				TraceID:    span.TraceID,
				Service:    span.ServiceName,
				SpanName:   span.SpanName,
				DurationMs: span.TimelineSpan().DurationMillis(),
				Status:     span.StatusCode,
			})
		}
		*lastPos = curPos
	}

	data, err := json.Marshal(update)
	if err != nil {
		log.Printf("webui: failed to marshal update: %v", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		// Connection closed; the main loop will handle cleanup.
		return
	}
}

// formatNanoTime converts unix nanoseconds to a human-readable time string.
func formatNanoTime(nanos uint64) string {
	if nanos == 0 {
		return ""
	}
	t := time.Unix(0, int64(nanos))
	return t.Format("15:04:05.000")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "")
	if err := enc.Encode(v); err != nil {
		log.Printf("webui: failed to write JSON: %v", err)
	}
}
