package transport

import "sync"

// EndpointPool is a bounded FIFO of idle connections for a single
// EndpointKey. acquire and release never touch the network: acquire
// either pops an idle connection or synthesizes a brand new,
// not-yet-dialed one, and release either pushes a connection back onto
// the FIFO or, if the pool is already at capacity, closes it. This
// keeps both operations cheap enough to run inside the LRU's single
// lock, mirroring CQueueLRU.__getitem__/__setitem__ delegating to a
// per-key queue that never blocks on I/O itself.
type EndpointPool struct {
	mu      sync.Mutex
	key     EndpointKey
	dialer  *Dialer
	maxConn int
	idle    []*Connection
	dead    bool
}

func newEndpointPool(key EndpointKey, dialer *Dialer, maxConn int) *EndpointPool {
	return &EndpointPool{key: key, dialer: dialer, maxConn: maxConn}
}

// acquire pops the least recently released idle connection, if any,
// otherwise synthesizes a new unconnected one. A connection that has
// already served RequestLimit requests is closed and replaced rather
// than handed out again.
func (p *EndpointPool) acquire() *Connection {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.idle) > 0 {
		conn := p.idle[0]
		p.idle[0] = nil
		p.idle = p.idle[1:]
		if conn.ExceedsRequestLimit() {
			conn.Close()
			continue
		}
		return conn
	}
	return newConnection(p.key, p.dialer)
}

// release returns a connection to the idle FIFO, unless the pool is
// already at capacity or has been destroyed, in which case the
// connection is closed instead. The capacity check is a projected size
// check: it looks at what the idle slice's length would become, so a
// connection is never counted twice.
func (p *EndpointPool) release(conn *Connection) {
	p.mu.Lock()
	over := p.dead || len(p.idle)+1 > p.maxConn || conn.ExceedsRequestLimit()
	if !over {
		p.idle = append(p.idle, conn)
	}
	p.mu.Unlock()

	if over {
		conn.Close()
	}
}

// size reports the number of idle connections currently held, used by
// the LRU only for diagnostics.
func (p *EndpointPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// destroy drains and closes every idle connection and marks the pool
// dead so any in-flight release() sees it and closes instead of
// re-queuing. Called synchronously by the LRU while evicting, before
// the pool's node is unlinked.
func (p *EndpointPool) destroy() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.dead = true
	p.mu.Unlock()

	for _, conn := range idle {
		conn.Close()
	}
}
