package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/blescan/internal/discovery"
	"github.com/muurk/blescan/internal/logging"
	"github.com/muurk/blescan/internal/radio"
)

// shutdownGrace bounds how long Shutdown waits for in-flight sessions
const shutdownGrace = 10 * time.Second

// ErrBusy is reported when a scan is requested while another session runs
var ErrBusy = errors.New("a scan session is already running")

// Config holds the server configuration
type Config struct {
	Host string
	Port int

	// Advertise announces the server over mDNS as _blescan._tcp
	Advertise bool

	// Scan holds the defaults applied to every session. Requests may
	// override Duration and Mode.
	Scan discovery.SessionOptions
}

// Server exposes scan sessions over HTTP and WebSocket
type Server struct {
	config   *Config
	host     radio.Host
	upgrader websocket.Upgrader

	// scanMu serializes sessions on the single adapter
	scanMu sync.Mutex

	httpServer *http.Server
	listener   net.Listener
	advertiser *Advertiser

	// baseCtx parents every request; cancelling it aborts in-flight sessions
	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu          sync.Mutex
	activeConns map[string]*websocket.Conn
	wg          sync.WaitGroup
}

// New creates a new Server instance
func New(config *Config, host radio.Host) *Server {
	s := &Server{
		config:      config,
		host:        host,
		activeConns: make(map[string]*websocket.Conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API is read-only and meant for local tooling
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
	}
	return s
}

// Handler returns the HTTP routes with request logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /scan", s.handleScan)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return logRequests(mux)
}

// Start listens on the configured address and blocks until ctx is
// cancelled, a shutdown signal arrives, or serving fails
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve runs the server on an existing listener
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.listener = listener
	port := listener.Addr().(*net.TCPAddr).Port

	logging.Info("Starting blescan server",
		zap.String("addr", listener.Addr().String()),
		zap.Duration("default_duration", s.config.Scan.Duration),
		zap.String("default_mode", s.config.Scan.Mode.String()),
	)

	if s.config.Advertise {
		adv, err := Advertise(port)
		if err != nil {
			// Discovery is a convenience, the API still works without it
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			s.advertiser = adv
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.Serve(listener)
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
	case <-ctx.Done():
		logging.Info("Context cancelled, stopping server...")
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	if s.advertiser != nil {
		s.advertiser.Shutdown()
	}
	s.cancelBase()

	// http.Server.Shutdown does not track hijacked connections
	s.mu.Lock()
	for addr, conn := range s.activeConns {
		logging.Info("Closing active connection", zap.String("remote_addr", addr))
		_ = conn.Close()
	}
	s.mu.Unlock()

	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	logging.Sync()
	return err
}

// GetActiveConnections returns the number of open WebSocket streams
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

// runSession runs one session while holding the scan slot. It returns
// ErrBusy without touching the radio when the slot is taken.
func (s *Server) runSession(ctx context.Context, opts discovery.SessionOptions) ([]discovery.Device, error) {
	if !s.scanMu.TryLock() {
		return nil, ErrBusy
	}
	defer s.scanMu.Unlock()

	adapter, err := discovery.SelectAdapter(ctx, s.host)
	if err != nil {
		return nil, err
	}
	return discovery.NewSession(adapter, opts).Run(ctx)
}

func (s *Server) track(addr string, conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeConns[addr] = conn
}

func (s *Server) untrack(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.activeConns, addr)
}
