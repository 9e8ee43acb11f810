// Package server exposes BLE scan sessions over HTTP and WebSocket.
//
// The server owns one radio host and runs at most one scan session at a
// time. A request that arrives while a session is running is rejected with
// 409 Conflict rather than queued.
//
// # Endpoints
//
//	GET /scan?duration=N&mode=event|poll
//	    Runs a session and returns [{"name":...,"address":...}].
//	    On failure returns {"error":"...","kind":"..."}.
//
//	GET /ws
//	    Upgrades to WebSocket. The client sends one request:
//	        {"duration":N,"mode":"event"}
//	    The server pushes {"type":"device",...} per observation, then
//	    exactly one {"type":"result","devices":[...]} or
//	    {"type":"error","error":"..."} and closes the stream.
//	    Closing the stream early cancels the session.
//
//	GET /healthz
//	    Reports version and whether a session is running.
//
// # Discovery
//
// When Config.Advertise is set the server registers itself over mDNS as
// _blescan._tcp so clients on the LAN can find it without configuration.
//
// # Graceful Shutdown
//
// SIGINT, SIGTERM or cancelling the Serve context:
//  1. Withdraws the mDNS registration
//  2. Closes open WebSocket streams, cancelling their sessions
//  3. Waits for in-flight sessions to stop their scans
//
// # Usage Example
//
//	srv := server.New(&server.Config{
//	    Port:      8765,
//	    Advertise: true,
//	    Scan:      discovery.SessionOptions{Duration: 10 * time.Second},
//	}, native.NewHost(native.Options{}))
//
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
