package transport

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/valyala/fasthttp"
)

// RequestLimit is the number of requests a single Connection may serve
// before it is force-reset, defending against servers that silently
// cap keep-alive reuse. Zero means unlimited. It mirrors
// HTTPConnectionQueue.REQUEST_LIMIT from the original design: a single,
// process-wide knob rather than a per-pool one, since every pool in a
// given Controller run should behave the same way.
var RequestLimit = 0

// Connection is a transport annotated with a use-count: one TCP or TLS
// socket reused across requests until it is closed, replaced, or has
// served RequestLimit requests.
//
// A Connection synthesized by a pool miss does not dial immediately -
// construction only records the key and a reference to the Dialer.
// The actual TCP/TLS connect happens lazily on the first RoundTrip,
// which runs outside any pool or LRU lock. This mirrors the original
// design, where HTTPConnectionQueue.get() only ever builds an unconnected
// httplib.HTTPConnection object; the real connect happens later inside
// connection.request(), never while the CQueueLRU lock is held.
type Connection struct {
	key      EndpointKey
	dialer   *Dialer
	conn     net.Conn
	br       *bufio.Reader
	bw       *bufio.Writer
	useCount int
	closed   bool
}

func newConnection(key EndpointKey, dialer *Dialer) *Connection {
	return &Connection{key: key, dialer: dialer}
}

// UseCount reports how many requests this connection has already
// served.
func (c *Connection) UseCount() int { return c.useCount }

// ExceedsRequestLimit reports whether this connection has already been
// used RequestLimit times or more and should be force-reset rather than
// handed out again.
func (c *Connection) ExceedsRequestLimit() bool {
	return RequestLimit > 0 && c.useCount >= RequestLimit
}

// Close tears down the underlying socket, if one was ever dialed. Safe
// to call more than once and on a never-dialed Connection.
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// ensureDialed opens the underlying socket on first use. sniHost is the
// original request hostname, used as the TLS ServerName even though the
// pool and dialer key off the already-resolved IP.
func (c *Connection) ensureDialed(ctx context.Context, sniHost string) error {
	if c.conn != nil {
		return nil
	}
	conn, err := c.dialer.Dial(ctx, c.key, sniHost)
	if err != nil {
		return err
	}
	c.conn = conn
	c.br = bufio.NewReader(conn)
	c.bw = bufio.NewWriter(conn)
	return nil
}

// SetDeadline applies a single read/write deadline to the underlying
// socket for the duration of one request.
func (c *Connection) SetDeadline(t time.Time) error {
	if t.IsZero() || c.conn == nil {
		return nil
	}
	return c.conn.SetDeadline(t)
}

// RoundTrip dials (if this Connection has never been used) then writes
// req and reads resp over the socket - the same wire encode/decode
// fasthttp's own HostClient uses internally, only here the connection
// comes from our own pool rather than fasthttp's.
func (c *Connection) RoundTrip(ctx context.Context, sniHost string, req *fasthttp.Request, resp *fasthttp.Response) error {
	if err := c.ensureDialed(ctx, sniHost); err != nil {
		return err
	}
	if err := req.Write(c.bw); err != nil {
		return err
	}
	if err := c.bw.Flush(); err != nil {
		return err
	}
	c.useCount++
	return resp.Read(c.br)
}
