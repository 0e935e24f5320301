// Package api exposes the driving monitor over HTTP: session lifecycle,
// stored session history, stream control, trajectory snapshots and a live
// reading feed.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/drivesense/internal/db"
	"github.com/banshee-data/drivesense/internal/httputil"
	"github.com/banshee-data/drivesense/internal/monitoring"
	"github.com/banshee-data/drivesense/internal/reading"
	"github.com/banshee-data/drivesense/internal/report"
	"github.com/banshee-data/drivesense/internal/session"
	"github.com/banshee-data/drivesense/internal/stream"
	"github.com/banshee-data/drivesense/internal/timeutil"
	"github.com/banshee-data/drivesense/internal/trajectory"
	"github.com/banshee-data/drivesense/internal/version"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	db       *db.DB
	stream   *stream.SensorStream
	detector *session.Detector
	buffer   *trajectory.Buffer
	clock    timeutil.Clock
}

func NewServer(database *db.DB, s *stream.SensorStream, d *session.Detector, b *trajectory.Buffer, clock timeutil.Clock) *Server {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Server{
		db:       database,
		stream:   s,
		detector: d,
		buffer:   b,
		clock:    clock,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/sessions/", s.sessionByID)
	mux.HandleFunc("/api/sessions/start", s.startSession)
	mux.HandleFunc("/api/sessions/end", s.endSession)
	mux.HandleFunc("/api/stream/pause", s.pauseStream)
	mux.HandleFunc("/api/stream/resume", s.resumeStream)
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/trajectory", s.handleTrajectory)
	mux.HandleFunc("/api/live", s.liveReadings)
	mux.HandleFunc("/api/report", s.scoreReport)
	return mux
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	sessions, err := s.db.ListSessions(r.Context())
	if err != nil {
		httputil.InternalServerError(w, "Failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []db.SessionRecord{}
	}
	httputil.WriteJSON(w, http.StatusOK, sessions)
}

// sessionByID serves GET and DELETE for /api/sessions/{id}.
func (s *Server) sessionByID(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id < 1 {
		httputil.BadRequest(w, "Invalid session id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rec, err := s.db.GetSession(r.Context(), id)
		if errors.Is(err, db.ErrNotFound) {
			httputil.NotFound(w, "Session not found")
			return
		}
		if err != nil {
			httputil.InternalServerError(w, "Failed to load session")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, rec)

	case http.MethodDelete:
		err := s.db.DeleteSession(r.Context(), id)
		if errors.Is(err, db.ErrNotFound) {
			httputil.NotFound(w, "Session not found")
			return
		}
		if err != nil {
			httputil.InternalServerError(w, "Failed to delete session")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	sess, err := s.detector.StartSession()
	if errors.Is(err, session.ErrSessionActive) {
		httputil.Conflict(w, "A session is already active")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, "Failed to start session")
		return
	}
	rec, err := db.NewSessionRecord(sess)
	if err != nil {
		httputil.InternalServerError(w, "Failed to encode session")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rec)
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	sess, err := s.detector.EndSession(r.Context())
	if errors.Is(err, session.ErrNoSession) {
		httputil.Conflict(w, "No active session")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, "Failed to end session")
		return
	}
	rec, err := db.NewSessionRecord(sess)
	if err != nil {
		httputil.InternalServerError(w, "Failed to encode session")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (s *Server) pauseStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if err := s.stream.Pause(); err != nil {
		httputil.Conflict(w, fmt.Sprintf("Cannot pause: %v", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"state": s.stream.State().String()})
}

func (s *Server) resumeStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if err := s.stream.Resume(); err != nil {
		httputil.Conflict(w, fmt.Sprintf("Cannot resume: %v", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"state": s.stream.State().String()})
}

type statusResponse struct {
	Version        string             `json:"version"`
	StreamState    string             `json:"streamState"`
	BufferLength   int                `json:"bufferLength"`
	BufferCapacity int                `json:"bufferCapacity"`
	ActiveSession  *activeSessionInfo `json:"activeSession"`
}

type activeSessionInfo struct {
	StartTime        int64   `json:"startTime"`
	DurationSeconds  float64 `json:"durationSeconds"`
	TotalReadings    int     `json:"totalReadings"`
	AverageMagnitude float64 `json:"averageMagnitude"`
	Events           int     `json:"events"`
	Score            int     `json:"score"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	resp := statusResponse{
		Version:        version.String(),
		StreamState:    s.stream.State().String(),
		BufferLength:   s.buffer.Len(),
		BufferCapacity: s.buffer.Capacity(),
	}
	if sess := s.detector.Current(); sess != nil {
		resp.ActiveSession = &activeSessionInfo{
			StartTime:        sess.StartTime.UnixMilli(),
			DurationSeconds:  sess.Duration(s.clock.Now()).Seconds(),
			TotalReadings:    sess.TotalReadings,
			AverageMagnitude: sess.AverageMagnitude(),
			Events:           len(sess.Events),
			Score:            sess.Score(),
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleTrajectory serves a point snapshot on GET and clears the buffer on
// DELETE. An optional from/to pair (epoch millis, inclusive) narrows the
// snapshot.
func (s *Server) handleTrajectory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		fromStr := r.URL.Query().Get("from")
		toStr := r.URL.Query().Get("to")

		var points []trajectory.Point
		if fromStr != "" || toStr != "" {
			from := time.UnixMilli(0)
			to := s.clock.Now().Add(24 * time.Hour)
			if fromStr != "" {
				ms, err := strconv.ParseInt(fromStr, 10, 64)
				if err != nil {
					httputil.BadRequest(w, "Invalid 'from' parameter")
					return
				}
				from = time.UnixMilli(ms)
			}
			if toStr != "" {
				ms, err := strconv.ParseInt(toStr, 10, 64)
				if err != nil {
					httputil.BadRequest(w, "Invalid 'to' parameter")
					return
				}
				to = time.UnixMilli(ms)
			}
			points = s.buffer.Range(from, to)
		} else {
			points = s.buffer.Points()
		}
		if points == nil {
			points = []trajectory.Point{}
		}
		httputil.WriteJSON(w, http.StatusOK, points)

	case http.MethodDelete:
		s.buffer.Clear()
		w.WriteHeader(http.StatusNoContent)

	default:
		httputil.MethodNotAllowed(w)
	}
}

type liveReading struct {
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Z             float64 `json:"z"`
	Magnitude     float64 `json:"magnitude"`
	LateralG      float64 `json:"lateralG"`
	LongitudinalG float64 `json:"longitudinalG"`
	Timestamp     int64   `json:"timestamp"`
}

func toLiveReading(r reading.Reading) liveReading {
	return liveReading{
		X:             r.X,
		Y:             r.Y,
		Z:             r.Z,
		Magnitude:     r.Magnitude(),
		LateralG:      r.LateralG(),
		LongitudinalG: r.LongitudinalG(),
		Timestamp:     r.Timestamp.UnixMilli(),
	}
}

// liveReadings streams smoothed readings as server-sent events until the
// client disconnects. Stream errors arrive as "error" events.
func (s *Server) liveReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.InternalServerError(w, "Streaming not supported")
		return
	}

	id, ch := s.stream.Subscribe()
	defer s.stream.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if e.Err != nil {
				fmt.Fprintf(w, "event: error\ndata: %q\n\n", e.Err.Error())
			} else {
				payload, err := json.Marshal(toLiveReading(e.Reading))
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", payload)
			}
			flusher.Flush()
		}
	}
}

// scoreReport renders an HTML chart of stored session scores over time.
func (s *Server) scoreReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	sessions, err := s.db.ListSessions(r.Context())
	if err != nil {
		httputil.InternalServerError(w, "Failed to list sessions")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderScoreChart(w, sessions); err != nil {
		monitoring.Logf("api: render report: %v", err)
	}
}
