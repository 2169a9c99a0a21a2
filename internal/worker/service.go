package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	"poolmon/internal/logger"
)

var (
	welcomePayload = []byte("Welcome!")
	pingPayload    = []byte("ping")
)

// Service keeps every client connection open and pings it periodically
type Service struct {
	pingInterval time.Duration
	noDelay      bool
	clock        clock.WithTicker
	log          *logger.Logger

	conns   atomic.Int64
	packets atomic.Int64
	server  *http.Server
}

// NewService creates the keepalive service
func NewService(pingInterval time.Duration, noDelay bool, log *logger.Logger, clk clock.WithTicker) *Service {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if log == nil {
		log = logger.Default()
	}
	s := &Service{pingInterval: pingInterval, noDelay: noDelay, clock: clk, log: log}
	s.server = &http.Server{
		Handler: s,
		ConnContext: func(ctx context.Context, c net.Conn) context.Context {
			if tc, ok := c.(*net.TCPConn); ok {
				tc.SetNoDelay(s.noDelay)
			}
			return ctx
		},
	}
	return s
}

// Conns returns the number of open client connections
func (s *Service) Conns() int64 { return s.conns.Load() }

// Packets returns the number of keepalive payloads written
func (s *Service) Packets() int64 { return s.packets.Load() }

// ServeHTTP holds the request open until the client goes away
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.conns.Add(1)
	defer s.conns.Add(-1)

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(welcomePayload); err != nil {
		return
	}
	flush()

	ticker := s.clock.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C():
			if _, err := w.Write(pingPayload); err != nil {
				return
			}
			flush()
			s.packets.Add(1)
		}
	}
}

// Listen binds the service port. Workers share the port.
func Listen(ctx context.Context, port int) (net.Listener, error) {
	lc := net.ListenConfig{Control: reusePort}
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %d: %w", port, err)
	}
	return ln, nil
}

// Serve accepts clients on ln until Shutdown
func (s *Service) Serve(ln net.Listener) error {
	err := s.server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown closes the listener and every open connection
func (s *Service) Shutdown() error {
	return s.server.Close()
}
