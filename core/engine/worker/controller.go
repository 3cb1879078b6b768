package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"golang.org/x/sys/unix"

	"github.com/slicingmelon/crawl-e-go/core/engine/pipeline"
	"github.com/slicingmelon/crawl-e-go/core/engine/queue"
	"github.com/slicingmelon/crawl-e-go/core/engine/transport"
	"github.com/slicingmelon/crawl-e-go/core/utils/logger"
)

// EmptyQueueRetries is how many consecutive empty-queue idle waits a
// worker tolerates before it gives up on its own, rather than waiting
// forever for a Queue that will never produce more work.
const EmptyQueueRetries = 1

// Controller owns a pool of workers that share one Pipeline (and so
// one LRU connection cache), starting, stopping and joining them as a
// unit. Deriving pool sizing from the process's file descriptor limit,
// rather than hardcoding it, keeps a large thread count from exhausting
// file descriptors on a constrained host.
type Controller struct {
	numThreads   int
	maxEndpoints int
	maxConn      int

	dialer   *transport.Dialer
	lru      *transport.LRU
	pipeline *pipeline.Pipeline
	queue    queue.Queue
	handler  queue.Handler

	stopped atomic.Bool
	wake    *wakeEvent
	pool    pond.Pool
	join    func()
	cancel  context.CancelFunc
}

// New builds a Controller with numThreads workers, all sharing q and h,
// with pool sizing derived from the process's RLIMIT_NOFILE soft limit:
// maxEndpoints = floor(softLimit*2/(numThreads*3)), maxConn =
// numThreads. If the limit cannot be read, a conservative fallback is
// used instead of failing the whole crawl.
func New(numThreads int, q queue.Queue, h queue.Handler, requestTimeout time.Duration) (*Controller, error) {
	if numThreads < 1 {
		numThreads = 1
	}

	maxEndpoints, maxConn := deriveLimits(numThreads)

	dialer, err := transport.NewDialer(true)
	if err != nil {
		return nil, fmt.Errorf("worker: building dialer: %w", err)
	}

	lru := transport.NewLRU(dialer, maxEndpoints, maxConn)

	c := &Controller{
		numThreads:   numThreads,
		maxEndpoints: maxEndpoints,
		maxConn:      maxConn,
		dialer:       dialer,
		lru:          lru,
		queue:        q,
		handler:      h,
		wake:         newWakeEvent(),
	}
	c.pipeline = pipeline.New(lru, dialer, &c.stopped, requestTimeout)
	return c, nil
}

// deriveLimits reads RLIMIT_NOFILE and scales the endpoint cache and
// per-endpoint connection cap off of it, the same ratio the original
// fetch engine used: maxEndpoints*maxConn, the most idle connections
// the LRU can hold, comes to roughly two thirds of the soft limit.
func deriveLimits(numThreads int) (maxEndpoints, maxConn int) {
	maxConn = numThreads

	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		logger.Warning().Msgf("worker: reading RLIMIT_NOFILE failed, using fallback: %v", err)
		return numThreads * 4, maxConn
	}

	maxEndpoints = int(rlimit.Cur*2) / (numThreads * 3)
	if maxEndpoints < 1 {
		maxEndpoints = 1
	}
	return maxEndpoints, maxConn
}

// Start launches numThreads workers in their own pond pool task group.
// Calling Start twice without an intervening Stop is a programmer
// error.
func (c *Controller) Start(ctx context.Context) {
	c.stopped.Store(false)

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.pool = pond.NewPool(c.numThreads)

	group := c.pool.NewGroupContext(runCtx)
	for i := 0; i < c.numThreads; i++ {
		w := newWorker(i, c.pipeline, c.queue, c.handler, &c.stopped, c.wake, EmptyQueueRetries)
		group.SubmitErr(func() error {
			w.run(runCtx)
			return nil
		})
	}
	c.join = func() {
		if err := group.Wait(); err != nil {
			logger.Debug().Msgf("worker: task group wait returned: %v", err)
		}
	}
}

// Join blocks until every worker has returned, either because the
// queue ran dry or Stop was called.
func (c *Controller) Join() {
	if c.join != nil {
		c.join()
	}
}

// Stop latches the shared stop flag, wakes every idle-waiting worker so
// they observe it promptly, and waits for the pool to drain. Calling
// Stop more than once is safe.
func (c *Controller) Stop() {
	if c.stopped.Swap(true) {
		c.Join()
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.wake.Broadcast()
	c.Join()
	if c.pool != nil {
		c.pool.StopAndWait()
	}
	c.lru.Destroy()
	c.dialer.Close()
}

// Endpoints reports how many distinct endpoints the LRU currently
// tracks, for progress reporting.
func (c *Controller) Endpoints() int {
	return c.lru.Len()
}
