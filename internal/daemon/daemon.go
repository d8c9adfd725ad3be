// Package daemon runs the inout RPC server on a unix socket. Clients speak
// plain JSON-RPC 2.0, one object per message; the CLI in cmd/inout is the
// reference client.
package daemon

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/alverad/inout/internal/logger"
)

var log = logger.ForComponent("daemon")

type Daemon struct {
	socket       *SocketListener
	handler      *Handler
	conns        map[*jsonrpc2.Conn]struct{}
	connMu       sync.Mutex
	shutdown     chan struct{}
	shutdownOnce sync.Once
	startTime    time.Time
}

func New(socketPath string, handler *Handler) *Daemon {
	d := &Daemon{
		socket:    NewSocketListener(socketPath),
		handler:   handler,
		conns:     make(map[*jsonrpc2.Conn]struct{}),
		shutdown:  make(chan struct{}),
		startTime: time.Now(),
	}
	handler.OnShutdown = d.Shutdown
	return d
}

// Start binds the socket and begins serving. It returns immediately; use
// Wait to block until shutdown.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.socket.Start(); err != nil {
		return err
	}

	go d.acceptConnections(ctx)

	log.Info("daemon listening", "socket", d.socket.Path())
	return nil
}

// Wait blocks until Shutdown is called.
func (d *Daemon) Wait() {
	<-d.shutdown
}

func (d *Daemon) acceptConnections(ctx context.Context) {
	for {
		conn, err := d.socket.Accept()
		if err != nil {
			select {
			case <-d.shutdown:
				return
			default:
				continue
			}
		}

		d.serveConn(ctx, conn)
	}
}

func (d *Daemon) serveConn(ctx context.Context, conn net.Conn) {
	stream := jsonrpc2.NewBufferedStream(conn, jsonrpc2.PlainObjectCodec{})
	rpcConn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(d.handler.handle))

	d.connMu.Lock()
	d.conns[rpcConn] = struct{}{}
	d.connMu.Unlock()

	go func() {
		<-rpcConn.DisconnectNotify()
		d.connMu.Lock()
		delete(d.conns, rpcConn)
		d.connMu.Unlock()
	}()
}

func (d *Daemon) Shutdown() {
	d.shutdownOnce.Do(func() {
		log.Info("daemon shutting down")
		close(d.shutdown)

		d.socket.Close()

		d.connMu.Lock()
		conns := make([]*jsonrpc2.Conn, 0, len(d.conns))
		for c := range d.conns {
			conns = append(conns, c)
		}
		d.connMu.Unlock()

		for _, c := range conns {
			c.Close()
		}

		d.handler.DisposeAll()
	})
}

func (d *Daemon) SocketPath() string {
	return d.socket.Path()
}

func (d *Daemon) Uptime() time.Duration {
	return time.Since(d.startTime)
}
