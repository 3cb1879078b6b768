// Package worker runs a Pipeline against a Queue's items on a pool of
// goroutines, each cycling through Running, Fetching and IdleWait until
// told to stop or the queue goes empty for too long.
package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/slicingmelon/crawl-e-go/core/engine/pipeline"
	"github.com/slicingmelon/crawl-e-go/core/engine/queue"
	"github.com/slicingmelon/crawl-e-go/core/utils/logger"
)

// State is a worker's current phase.
type State int32

const (
	StateRunning State = iota
	StateFetching
	StateIdleWait
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateIdleWait:
		return "idle-wait"
	default:
		return "running"
	}
}

// EmptyQueueWait is how long a worker blocks on the idle-wake event
// after finding the queue empty before retrying Get.
const EmptyQueueWait = 5 * time.Second

// Worker pulls descriptors from a shared Queue and drives each through
// a shared Pipeline, invoking a Handler's hooks around every fetch.
type Worker struct {
	id                int
	pipeline          *pipeline.Pipeline
	queue             queue.Queue
	handler           queue.Handler
	preProcess        pipeline.PreProcessFunc
	stopped           *atomic.Bool
	wake              *wakeEvent
	emptyQueueWait    time.Duration
	emptyQueueRetries int
	state             atomic.Int32
}

func newWorker(id int, p *pipeline.Pipeline, q queue.Queue, h queue.Handler, stopped *atomic.Bool, wake *wakeEvent, emptyQueueRetries int) *Worker {
	w := &Worker{
		id:                id,
		pipeline:          p,
		queue:             q,
		handler:           h,
		stopped:           stopped,
		wake:              wake,
		emptyQueueWait:    EmptyQueueWait,
		emptyQueueRetries: emptyQueueRetries,
	}
	if pp, ok := h.(queue.PreProcessor); ok {
		w.preProcess = pp.PreProcess
	}
	return w
}

// State reports this worker's current phase.
func (w *Worker) State() State {
	return State(w.state.Load())
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
}

// run is the worker's main loop. It returns when the shared stop flag
// is set, the queue raises a fatal error (which also latches the stop
// flag), or the queue has stayed empty through emptyQueueRetries
// consecutive idle waits.
func (w *Worker) run(ctx context.Context) {
	retries := 0
	for {
		if w.stopped.Load() || ctx.Err() != nil {
			return
		}

		// Take the wake channel before Get, so a Broadcast that lands
		// between an empty Get and the idle wait below is not lost.
		w.wake.mu.Lock()
		wakeCh := w.wake.ch
		w.wake.mu.Unlock()

		desc, ok, err := w.queue.Get()
		if err != nil {
			logger.Error().Msgf("worker %d: queue error, stopping crawl: %v", w.id, err)
			w.stopped.Store(true)
			return
		}
		if !ok {
			if retries >= w.emptyQueueRetries {
				return
			}
			w.setState(StateIdleWait)
			select {
			case <-wakeCh:
			case <-time.After(w.emptyQueueWait):
			}
			retries++
			w.setState(StateRunning)
			continue
		}

		retries = 0
		w.setState(StateFetching)
		_ = w.pipeline.Run(ctx, desc, w.preProcess)
		w.handler.Process(desc, w.queue)
		w.wake.Broadcast()
		w.setState(StateRunning)
	}
}
