package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/jsonrpc2"
)

const dialTimeout = 2 * time.Second

// Client is a JSON-RPC connection to a running daemon.
type Client struct {
	conn *jsonrpc2.Conn
}

// Dial connects to the daemon socket. A connection failure almost always
// means the daemon is not running.
func Dial(ctx context.Context, socketPath string) (*Client, error) {
	netConn, err := DialSocket(socketPath, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("daemon not reachable at %s: %w", socketPath, err)
	}

	stream := jsonrpc2.NewBufferedStream(netConn, jsonrpc2.PlainObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, noopHandler{})

	return &Client{conn: conn}, nil
}

// Call issues one request and decodes its result into result, which may be
// nil for methods whose result the caller discards.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	return c.conn.Call(ctx, method, params, result)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// noopHandler rejects server-initiated requests; the daemon never sends
// any.
type noopHandler struct{}

func (noopHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if req.Notif {
		return
	}
	conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{
		Code:    jsonrpc2.CodeMethodNotFound,
		Message: "client does not accept requests",
	})
}
