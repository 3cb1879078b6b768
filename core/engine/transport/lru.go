package transport

import "sync"

// lruNode is one entry of the LRU's doubly-linked list: an endpoint key
// and the pool of idle connections behind it.
type lruNode struct {
	key  EndpointKey
	pool *EndpointPool
	prev *lruNode
	next *lruNode
}

// LRU bounds the number of distinct endpoints that may have an
// EndpointPool alive at once. A single mutex guards both the hash map
// and the linked list so acquire and release can each run as one
// critical section, mirroring CQueueLRU's single lock covering its
// dict and its manual doubly-linked list surgery.
//
// Pools are "born on release": acquire() never inserts a new pool for
// an unknown key, it only ever synthesizes a standalone connection.
// A pool for that key only comes into existence the first time a
// connection for it is released, at which point it is linked in as the
// most-recently-used entry and, if that pushes the map over
// maxEndpoints, the least-recently-used entries are evicted first.
type LRU struct {
	mu          sync.Mutex
	dialer      *Dialer
	maxEndpoints int
	maxConn     int
	nodes       map[EndpointKey]*lruNode
	head        *lruNode // most recently used
	tail        *lruNode // least recently used
}

// NewLRU builds an LRU that keys pools by EndpointKey, evicts down to
// maxEndpoints distinct endpoints and caps each endpoint's idle
// connections at maxConn.
func NewLRU(dialer *Dialer, maxEndpoints, maxConn int) *LRU {
	return &LRU{
		dialer:       dialer,
		maxEndpoints: maxEndpoints,
		maxConn:      maxConn,
		nodes:        make(map[EndpointKey]*lruNode),
	}
}

// Acquire returns a connection for key without ever blocking on the
// network: if a pool already exists for key it delegates to
// pool.acquire(), otherwise it synthesizes a standalone, not-yet-dialed
// connection and does not create a pool entry. This is the one
// operation the fetch pipeline calls before every dispatch.
func (l *LRU) Acquire(key EndpointKey) *Connection {
	l.mu.Lock()
	defer l.mu.Unlock()

	if node, ok := l.nodes[key]; ok {
		return node.pool.acquire()
	}
	return newConnection(key, l.dialer)
}

// Release returns conn to its endpoint's pool, creating that pool (and
// evicting older ones if necessary) if this is the first connection
// ever released for key. An existing endpoint is moved to
// most-recently-used before the connection is handed back to its pool.
func (l *LRU) Release(key EndpointKey, conn *Connection) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if node, ok := l.nodes[key]; ok {
		l.moveToHead(node)
		node.pool.release(conn)
		return
	}

	l.evictDownTo(l.maxEndpoints - 1)

	pool := newEndpointPool(key, l.dialer, l.maxConn)
	node := &lruNode{key: key, pool: pool}
	l.linkAtHead(node)
	l.nodes[key] = node
	pool.release(conn)
}

// Len reports the number of distinct endpoints currently tracked.
func (l *LRU) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.nodes)
}

// Destroy drains and closes every pool's idle connections. Called once,
// at controller shutdown.
func (l *LRU) Destroy() {
	l.mu.Lock()
	nodes := l.nodes
	l.nodes = make(map[EndpointKey]*lruNode)
	l.head, l.tail = nil, nil
	l.mu.Unlock()

	for _, node := range nodes {
		node.pool.destroy()
	}
}

// evictDownTo evicts least-recently-used endpoints, destroying each
// pool synchronously, until at most n endpoints remain. It must be
// called with l.mu held.
func (l *LRU) evictDownTo(n int) {
	if n < 0 {
		n = 0
	}
	for len(l.nodes) > n {
		victim := l.tail
		if victim == nil {
			return
		}
		l.unlink(victim)
		delete(l.nodes, victim.key)
		victim.pool.destroy()
	}
}

// linkAtHead inserts node as the new most-recently-used entry. Must be
// called with l.mu held.
func (l *LRU) linkAtHead(node *lruNode) {
	node.prev = nil
	node.next = l.head
	if l.head != nil {
		l.head.prev = node
	}
	l.head = node
	if l.tail == nil {
		l.tail = node
	}
}

// unlink removes node from the list without touching the map. Must be
// called with l.mu held.
func (l *LRU) unlink(node *lruNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev, node.next = nil, nil
}

// moveToHead relinks an existing node to the front of the list. Must be
// called with l.mu held.
func (l *LRU) moveToHead(node *lruNode) {
	if l.head == node {
		return
	}
	l.unlink(node)
	l.linkAtHead(node)
}
