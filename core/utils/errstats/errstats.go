// Package errstats tracks per-host fetch error counts for observability
// only: nothing in the pipeline or worker consults it to make control
// flow decisions, it exists purely so a long crawl can report which
// endpoints are failing and why.
package errstats

import (
	"encoding/binary"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/fastcache"
)

// HostStats is the error history recorded for a single host.
type HostStats struct {
	FirstError time.Time
	LastError  time.Time
	ErrorCount uint32
	ErrorTypes map[string]uint32
}

// Stats is a fastcache-backed per-host error counter plus a detailed
// per-host breakdown. The fastcache half answers "how many errors has
// this host had" cheaply and is what a very large crawl (millions of
// distinct hosts) actually needs to stay bounded in memory; the map
// half only ever holds entries for hosts that have actually errored,
// which in practice is a small fraction of a crawl's hosts.
type Stats struct {
	cache *fastcache.Cache

	mu        sync.RWMutex
	hostStats map[string]*HostStats

	totalErrors      atomic.Uint64
	transportErrors  atomic.Uint64
	timeoutErrors    atomic.Uint64
	redirectErrors   atomic.Uint64
	abortedErrors    atomic.Uint64
}

// New builds an empty Stats with a 32MB error-count cache, matching
// the size the original fetch engine's error cache shipped with.
func New() *Stats {
	return &Stats{
		cache:     fastcache.New(32 * 1024 * 1024),
		hostStats: make(map[string]*HostStats),
	}
}

// Record increments host's error count and classifies err into one of
// the coarse buckets this crawl engine can actually distinguish:
// transport failures, timeouts, exhausted redirects, and pre-process
// aborts. Unrecognized errors still count toward TotalErrors and the
// per-host count, just not toward any specific bucket.
func (s *Stats) Record(host string, err error) {
	s.incrementCacheCount([]byte(host))
	s.totalErrors.Add(1)

	kind := classify(err)
	switch kind {
	case "transport":
		s.transportErrors.Add(1)
	case "timeout":
		s.timeoutErrors.Add(1)
	case "redirect":
		s.redirectErrors.Add(1)
	case "aborted":
		s.abortedErrors.Add(1)
	}

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	hs := s.hostStats[host]
	if hs == nil {
		hs = &HostStats{FirstError: now, ErrorTypes: make(map[string]uint32)}
		s.hostStats[host] = hs
	}
	hs.LastError = now
	hs.ErrorCount++
	if kind != "" {
		hs.ErrorTypes[kind]++
	}
}

func classify(err error) string {
	switch {
	case err == nil:
		return ""
	case isTimeout(err):
		return "timeout"
	default:
		return errorKindByMessage(err)
	}
}

type timeouter interface{ Timeout() bool }

func isTimeout(err error) bool {
	var t timeouter
	return errors.As(err, &t) && t.Timeout()
}

// errorKindByMessage distinguishes the pipeline's own sentinel-style
// errors, which don't implement a richer interface worth matching on,
// by their message text.
func errorKindByMessage(err error) string {
	switch err.Error() {
	case "pipeline: aborted by pre-process":
		return "aborted"
	case "pipeline: redirects exceeded":
		return "redirect"
	}
	if strings.HasPrefix(err.Error(), "pipeline: transport error") {
		return "transport"
	}
	return ""
}

func (s *Stats) incrementCacheCount(hostKey []byte) uint32 {
	buf := make([]byte, 4)
	if v := s.cache.Get(buf[:0], hostKey); len(v) == 4 {
		count := binary.LittleEndian.Uint32(v) + 1
		binary.LittleEndian.PutUint32(buf, count)
		s.cache.Set(hostKey, buf)
		return count
	}
	binary.LittleEndian.PutUint32(buf, 1)
	s.cache.Set(hostKey, buf)
	return 1
}

// ErrorCount returns how many errors host has recorded.
func (s *Stats) ErrorCount(host string) uint32 {
	buf := make([]byte, 4)
	if v := s.cache.Get(buf[:0], []byte(host)); len(v) == 4 {
		return binary.LittleEndian.Uint32(v)
	}
	return 0
}

// HostStats returns the detailed breakdown for host, or nil if it has
// never errored.
func (s *Stats) HostStats(host string) *HostStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hostStats[host]
}

// Totals reports the coarse error-kind counters accumulated so far.
func (s *Stats) Totals() (total, transport, timeout, redirect, aborted uint64) {
	return s.totalErrors.Load(), s.transportErrors.Load(), s.timeoutErrors.Load(), s.redirectErrors.Load(), s.abortedErrors.Load()
}

// Close releases the underlying cache.
func (s *Stats) Close() {
	s.cache.Reset()
}
