package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/blescan/internal/discovery"
	"github.com/muurk/blescan/internal/logging"
	"github.com/muurk/blescan/internal/radio"
	"github.com/muurk/blescan/internal/version"
)

// maxDuration caps client-requested scan durations
const maxDuration = 5 * time.Minute

// errorResponse is the body of every failed request
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// handleScan runs one session and returns [{name,address}] or an error body
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts, err := s.sessionOptions(q.Get("duration"), q.Get("mode"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	devices, err := s.runSession(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	busy := !s.scanMu.TryLock()
	if !busy {
		s.scanMu.Unlock()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Version,
		"busy":    busy,
		"streams": s.GetActiveConnections(),
	})
}

// sessionOptions applies request overrides to the server defaults.
// Empty values keep the defaults.
func (s *Server) sessionOptions(duration, mode string) (discovery.SessionOptions, error) {
	opts := s.config.Scan

	if duration != "" {
		secs, err := strconv.Atoi(duration)
		if err != nil || secs <= 0 {
			return opts, fmt.Errorf("invalid duration %q: expected a positive number of seconds", duration)
		}
		d := time.Duration(secs) * time.Second
		if d > maxDuration {
			return opts, fmt.Errorf("duration %ds exceeds the %s maximum", secs, maxDuration)
		}
		opts.Duration = d
	}

	if mode != "" {
		m, err := discovery.ParseMode(mode)
		if err != nil {
			return opts, err
		}
		opts.Mode = m
	}
	return opts, nil
}

// statusFor maps a session error to an HTTP status
func statusFor(err error) int {
	if errors.Is(err, ErrBusy) {
		return http.StatusConflict
	}
	kind, ok := radio.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case radio.ErrKindNoAdapterFound, radio.ErrKindAdapterEnumerationFailed, radio.ErrKindCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, err error) {
	body := errorResponse{Error: err.Error()}
	if kind, ok := radio.KindOf(err); ok {
		body.Kind = kind.String()
	}
	writeJSON(w, statusFor(err), body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write response", zap.Error(err))
	}
}

// statusRecorder captures the response status for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, rec.status)
	})
}
