package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muurk/blescan/internal/discovery"
	"github.com/muurk/blescan/internal/radio"
	"github.com/muurk/blescan/internal/radio/sim"
)

func newTestServer(t *testing.T, host radio.Host) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(&Config{
		Scan: discovery.SessionOptions{Duration: 2 * time.Second},
	}, host)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func phoneAndWatch() *sim.Adapter {
	return sim.NewAdapter("hci0", sim.Script{
		Steps: []sim.Step{
			sim.Discover(0, "AA:BB:CC:DD:EE:01", "Phone"),
			sim.Discover(0, "AA:BB:CC:DD:EE:02", ""),
		},
		CloseAfter: true,
	})
}

func TestHandleScan(t *testing.T) {
	adapter := phoneAndWatch()
	_, ts := newTestServer(t, sim.NewHost(adapter))

	resp, err := http.Get(ts.URL + "/scan?duration=1")
	if err != nil {
		t.Fatalf("GET /scan error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /scan status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %v, want application/json", ct)
	}

	var devices []discovery.Device
	if err := json.NewDecoder(resp.Body).Decode(&devices); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	expected := []discovery.Device{
		{Name: "Phone", Address: "AA:BB:CC:DD:EE:01"},
		{Name: discovery.UnknownName, Address: "AA:BB:CC:DD:EE:02"},
	}
	if len(devices) != len(expected) {
		t.Fatalf("devices = %v, want %v", devices, expected)
	}
	for i := range expected {
		if devices[i] != expected[i] {
			t.Errorf("devices[%d] = %v, want %v", i, devices[i], expected[i])
		}
	}
	if adapter.Stops() != 1 {
		t.Errorf("adapter.Stops() = %d, want 1", adapter.Stops())
	}
}

func TestHandleScan_EmptyResultIsArray(t *testing.T) {
	_, ts := newTestServer(t, sim.NewHost(sim.NewAdapter("hci0", sim.Script{CloseAfter: true})))

	resp, err := http.Get(ts.URL + "/scan")
	if err != nil {
		t.Fatalf("GET /scan error = %v", err)
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if string(raw) != "[]" {
		t.Errorf("body = %s, want []", raw)
	}
}

func TestHandleScan_Errors(t *testing.T) {
	startFails := sim.NewAdapter("hci0", sim.Script{})
	startFails.StartErr = errors.New("not ready")

	tests := []struct {
		name       string
		host       radio.Host
		query      string
		wantStatus int
		wantKind   string
	}{
		{"no adapters", sim.NewHost(), "", http.StatusServiceUnavailable, "No Adapter Found"},
		{"start fails", sim.NewHost(startFails), "", http.StatusBadGateway, "Scan Start Failed"},
		{"bad duration", sim.NewHost(phoneAndWatch()), "?duration=abc", http.StatusBadRequest, ""},
		{"negative duration", sim.NewHost(phoneAndWatch()), "?duration=-1", http.StatusBadRequest, ""},
		{"too long", sim.NewHost(phoneAndWatch()), "?duration=100000", http.StatusBadRequest, ""},
		{"bad mode", sim.NewHost(phoneAndWatch()), "?mode=burst", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ts := newTestServer(t, tt.host)

			resp, err := http.Get(ts.URL + "/scan" + tt.query)
			if err != nil {
				t.Fatalf("GET /scan error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			var body errorResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode error = %v", err)
			}
			if body.Error == "" {
				t.Error("error body missing error message")
			}
			if body.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", body.Kind, tt.wantKind)
			}
		})
	}
}

func TestHandleScan_Busy(t *testing.T) {
	adapter := phoneAndWatch()
	srv, ts := newTestServer(t, sim.NewHost(adapter))

	srv.scanMu.Lock()
	defer srv.scanMu.Unlock()

	resp, err := http.Get(ts.URL + "/scan")
	if err != nil {
		t.Fatalf("GET /scan error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
	if adapter.Starts() != 0 {
		t.Errorf("adapter.Starts() = %d, want 0 while busy", adapter.Starts())
	}
}

func TestHandleHealth(t *testing.T) {
	srv, ts := newTestServer(t, sim.NewHost())

	get := func() map[string]any {
		resp, err := http.Get(ts.URL + "/healthz")
		if err != nil {
			t.Fatalf("GET /healthz error = %v", err)
		}
		defer resp.Body.Close()
		var body map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode error = %v", err)
		}
		return body
	}

	if body := get(); body["status"] != "ok" || body["busy"] != false {
		t.Errorf("idle health = %v", body)
	}

	srv.scanMu.Lock()
	body := get()
	srv.scanMu.Unlock()
	if body["busy"] != true {
		t.Errorf("busy health = %v, want busy true", body)
	}
	if body["streams"] != float64(0) {
		t.Errorf("streams = %v, want 0", body["streams"])
	}

	// An open stream waiting for its request is counted
	dialStream(t, ts)
	deadline := time.Now().Add(2 * time.Second)
	for get()["streams"] != float64(1) {
		if time.Now().After(deadline) {
			t.Fatalf("streams never reached 1, health = %v", get())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHandleScan_MethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t, sim.NewHost())

	resp, err := http.Post(ts.URL+"/scan", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /scan error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func dialStream(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial(%s) error = %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntilFinal collects device messages and returns them with the final message
func readUntilFinal(t *testing.T, conn *websocket.Conn) ([]DeviceMessage, map[string]json.RawMessage) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var progress []DeviceMessage
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error = %v before final message", err)
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			t.Fatalf("invalid message %s: %v", data, err)
		}
		var typ string
		_ = json.Unmarshal(fields["type"], &typ)

		if typ == MessageDevice {
			var msg DeviceMessage
			_ = json.Unmarshal(data, &msg)
			progress = append(progress, msg)
			continue
		}
		return progress, fields
	}
}

func TestWebSocket_StreamsObservationsThenResult(t *testing.T) {
	adapter := phoneAndWatch()
	_, ts := newTestServer(t, sim.NewHost(adapter))
	conn := dialStream(t, ts)

	if err := conn.WriteJSON(ScanRequest{Duration: 1, Mode: "event"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	progress, final := readUntilFinal(t, conn)

	if len(progress) != 2 {
		t.Errorf("device messages = %d, want 2", len(progress))
	}
	if string(final["type"]) != fmt.Sprintf("%q", MessageResult) {
		t.Fatalf("final type = %s, want result", final["type"])
	}
	var devices []discovery.Device
	if err := json.Unmarshal(final["devices"], &devices); err != nil {
		t.Fatalf("decode devices error = %v", err)
	}
	if len(devices) != 2 || devices[0].Name != "Phone" || devices[1].Name != discovery.UnknownName {
		t.Errorf("devices = %v", devices)
	}
	if adapter.Stops() != 1 {
		t.Errorf("adapter.Stops() = %d, want 1", adapter.Stops())
	}
}

func TestWebSocket_Errors(t *testing.T) {
	tests := []struct {
		name     string
		host     radio.Host
		request  ScanRequest
		wantKind string
	}{
		{"no adapters", sim.NewHost(), ScanRequest{}, "No Adapter Found"},
		{"bad mode", sim.NewHost(phoneAndWatch()), ScanRequest{Mode: "burst"}, ""},
		{"negative duration", sim.NewHost(phoneAndWatch()), ScanRequest{Duration: -5}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ts := newTestServer(t, tt.host)
			conn := dialStream(t, ts)

			if err := conn.WriteJSON(tt.request); err != nil {
				t.Fatalf("WriteJSON() error = %v", err)
			}
			_, final := readUntilFinal(t, conn)

			var msg ErrorMessage
			raw, _ := json.Marshal(final)
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Fatalf("decode error = %v", err)
			}
			if msg.Type != MessageError || msg.Error == "" {
				t.Errorf("final message = %+v, want error", msg)
			}
			if msg.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", msg.Kind, tt.wantKind)
			}
		})
	}
}

func TestWebSocket_ClientDisconnectStopsScan(t *testing.T) {
	// Never closes on its own; only cancellation ends the session early
	adapter := sim.NewAdapter("hci0", sim.Script{
		Steps: []sim.Step{sim.Discover(0, "A", "Phone")},
	})
	srv := New(&Config{Scan: discovery.SessionOptions{Duration: time.Minute}}, sim.NewHost(adapter))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialStream(t, ts)
	if err := conn.WriteJSON(ScanRequest{}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for adapter.Stops() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if adapter.Stops() != 1 {
		t.Errorf("adapter.Stops() = %d, want 1 after client disconnect", adapter.Stops())
	}
}

func TestSessionOptions(t *testing.T) {
	srv := New(&Config{Scan: discovery.SessionOptions{
		Duration:         10 * time.Second,
		StrictProperties: true,
	}}, sim.NewHost())

	opts, err := srv.sessionOptions("", "")
	if err != nil {
		t.Fatalf("sessionOptions() error = %v", err)
	}
	if opts.Duration != 10*time.Second || opts.Mode != discovery.ModeEvent || !opts.StrictProperties {
		t.Errorf("defaults not kept: %+v", opts)
	}

	opts, err = srv.sessionOptions("3", "poll")
	if err != nil {
		t.Fatalf("sessionOptions(3, poll) error = %v", err)
	}
	if opts.Duration != 3*time.Second || opts.Mode != discovery.ModePoll {
		t.Errorf("overrides not applied: %+v", opts)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrBusy, http.StatusConflict},
		{radio.NewNoAdapterError(), http.StatusServiceUnavailable},
		{radio.NewEnumerationError(errors.New("dbus")), http.StatusServiceUnavailable},
		{radio.NewStopError("hci0", errors.New("x")), http.StatusBadGateway},
		{radio.NewCancelledError("hci0", errors.New("x")), http.StatusServiceUnavailable},
		{errors.New("other"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestTXTRecords(t *testing.T) {
	txt := TXTRecords()
	if len(txt) == 0 || !strings.HasPrefix(txt[0], "version=") {
		t.Errorf("TXTRecords() = %v, want version first", txt)
	}
}
