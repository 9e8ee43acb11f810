package server

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/blescan/internal/discovery"
	"github.com/muurk/blescan/internal/logging"
	"github.com/muurk/blescan/internal/radio"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed for the client to send its scan request
	requestWait = 30 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

// Stream message types
const (
	MessageDevice = "device"
	MessageResult = "result"
	MessageError  = "error"
)

// ScanRequest is the first and only message a client sends on /ws.
// Duration is in seconds; zero values keep the server defaults.
type ScanRequest struct {
	Duration int    `json:"duration,omitempty"`
	Mode     string `json:"mode,omitempty"`
}

// DeviceMessage reports one observation. It is progress only: the result
// message carries the authoritative device list.
type DeviceMessage struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// ResultMessage ends a successful stream
type ResultMessage struct {
	Type    string             `json:"type"`
	Devices []discovery.Device `json:"devices"`
}

// ErrorMessage ends a failed stream
type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func newErrorMessage(err error) ErrorMessage {
	msg := ErrorMessage{Type: MessageError, Error: err.Error()}
	if kind, ok := radio.KindOf(err); ok {
		msg.Kind = kind.String()
	}
	return msg
}

// streamWriter serializes writes; gorilla connections allow one writer at a time
type streamWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *streamWriter) send(msg any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return w.conn.WriteJSON(msg)
}

func (w *streamWriter) close(code int, text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, text)
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// handleWebSocket streams one scan session to the client
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	remoteAddr := r.RemoteAddr

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		return
	}

	s.wg.Add(1)
	s.track(remoteAddr, conn)
	logging.LogConnection(remoteAddr, "websocket_upgraded")
	defer func() {
		s.untrack(remoteAddr)
		_ = conn.Close()
		logging.LogConnection(remoteAddr, "websocket_closed")
		s.wg.Done()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(requestWait))

	var req ScanRequest
	if err := conn.ReadJSON(&req); err != nil {
		logging.Warn("Failed to read scan request",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	out := &streamWriter{conn: conn}

	opts, err := s.sessionOptions(itoaOrEmpty(req.Duration), req.Mode)
	if err != nil {
		_ = out.send(newErrorMessage(err))
		out.close(websocket.CloseNormalClosure, "")
		return
	}

	// r.Context derives from the server's BaseContext, so shutdown cancels it too
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Any further read means the client went away or misbehaved. Either
	// way the session is cancelled and still stops its scan.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	opts.OnObservation = func(d discovery.Device) {
		if err := out.send(DeviceMessage{Type: MessageDevice, Name: d.Name, Address: d.Address}); err != nil {
			logging.Debug("Dropping observation for closed stream",
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
		}
	}

	devices, err := s.runSession(ctx, opts)
	if err != nil {
		_ = out.send(newErrorMessage(err))
		out.close(websocket.CloseNormalClosure, "")
		return
	}

	if devices == nil {
		devices = []discovery.Device{}
	}
	if err := out.send(ResultMessage{Type: MessageResult, Devices: devices}); err != nil {
		logging.Warn("Failed to send scan result",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		return
	}
	out.close(websocket.CloseNormalClosure, "")
}

func itoaOrEmpty(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}
