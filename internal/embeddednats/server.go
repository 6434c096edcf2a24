// Package embeddednats runs an in-process NATS server for the event exporter
// tests and the stress CLI's --embedded-nats mode.
package embeddednats

import (
	"context"
	"fmt"
	"net"
	"time"

	nserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// DefaultReadyTimeout bounds how long StartLocal waits for the server.
const DefaultReadyTimeout = 10 * time.Second

// Server wraps a nats-server instance.
type Server struct {
	s *nserver.Server
}

// LocalOptions returns options for a quiet loopback server on a free port.
func LocalOptions() *nserver.Options {
	return &nserver.Options{
		Host:   "127.0.0.1",
		Port:   nserver.RANDOM_PORT,
		NoSigs: true,
		NoLog:  true,
	}
}

// New creates a server without starting it.
func New(opts *nserver.Options) (*Server, error) {
	if opts == nil {
		opts = LocalOptions()
	}
	ns, err := nserver.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("nats server create: %w", err)
	}
	return &Server{s: ns}, nil
}

// StartLocal creates a loopback server, starts it and waits until a client
// can connect.
func StartLocal(ctx context.Context) (*Server, error) {
	srv, err := New(LocalOptions())
	if err != nil {
		return nil, err
	}
	srv.Start()

	rctx, cancel := context.WithTimeout(ctx, DefaultReadyTimeout)
	defer cancel()
	if err := srv.Ready(rctx); err != nil {
		srv.s.Shutdown()
		return nil, fmt.Errorf("nats server not ready: %w", err)
	}
	return srv, nil
}

// Start launches the server in its own goroutine.
func (e *Server) Start() { go e.s.Start() }

// ClientURL returns the nats:// URL clients should connect to.
func (e *Server) ClientURL() string { return e.s.ClientURL() }

// Ready blocks until a client can connect or ctx is done.
func (e *Server) Ready(ctx context.Context) error {
	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if e.canConnect() {
				return nil
			}
		}
	}
}

func (e *Server) canConnect() bool {
	nc, err := nats.Connect(e.s.ClientURL(), nats.Timeout(100*time.Millisecond))
	if err != nil {
		return false
	}
	nc.Close()
	return true
}

// ShutdownAndWait stops the server and waits up to maxWait for it to exit.
func (e *Server) ShutdownAndWait(ctx context.Context, maxWait time.Duration) error {
	e.s.Shutdown()
	wait := make(chan struct{}, 1)
	go func() { e.s.WaitForShutdown(); wait <- struct{}{} }()
	select {
	case <-wait:
		return nil
	case <-time.After(maxWait):
		return fmt.Errorf("server wait timeout after %s", maxWait)
	case <-ctx.Done():
		return fmt.Errorf("server wait canceled: %w", ctx.Err())
	}
}

// Port returns the bound TCP port or 0 if unknown.
func (e *Server) Port() int {
	if a := e.s.Addr(); a != nil {
		if ta, ok := a.(*net.TCPAddr); ok {
			return ta.Port
		}
	}
	return 0
}
