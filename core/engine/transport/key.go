// Package transport implements the per-endpoint connection pool: a
// bounded, LRU-evicted map of endpoint -> FIFO of idle connections,
// each connection annotated with a use-count so it can be force-reset
// once it has served too many requests.
package transport

// EndpointKey identifies one pooled endpoint: a resolved IP, a port and
// whether the connection is encrypted (TLS). DNS resolution happens at
// request time in the pipeline and the resolved IP - not the hostname -
// keys the pool, so distinct hostnames sharing an IP share connections.
type EndpointKey struct {
	IP        string
	Port      string
	Encrypted bool
}
