package worker

import (
	"context"
	"testing"
	"time"

	"github.com/slicingmelon/crawl-e-go/core/engine/pipeline"
	"github.com/slicingmelon/crawl-e-go/core/engine/queue"
)

func TestDeriveLimitsScalesWithThreadCount(t *testing.T) {
	fewEndpoints, fewConn := deriveLimits(4)
	manyEndpoints, manyConn := deriveLimits(40)

	if fewEndpoints < 1 || manyEndpoints < 1 {
		t.Fatalf("maxEndpoints must never be less than 1, got %d and %d", fewEndpoints, manyEndpoints)
	}
	if fewConn != 4 {
		t.Fatalf("maxConn must equal numThreads, got %d", fewConn)
	}
	if manyConn != 40 {
		t.Fatalf("maxConn must equal numThreads, got %d", manyConn)
	}
	if manyEndpoints > fewEndpoints {
		t.Fatalf("a larger thread count should divide the same descriptor budget into a smaller per-worker share, got few=%d many=%d", fewEndpoints, manyEndpoints)
	}
}

func TestDeriveLimitsClampsToAtLeastOne(t *testing.T) {
	endpoints, _ := deriveLimits(1 << 20)
	if endpoints < 1 {
		t.Fatalf("maxEndpoints must clamp to at least 1, got %d", endpoints)
	}
}

type emptyQueue struct{}

func (emptyQueue) Get() (*pipeline.Descriptor, bool, error) { return nil, false, nil }
func (emptyQueue) Put(desc *pipeline.Descriptor) error      { return nil }

func TestControllerStartJoinStop(t *testing.T) {
	c, err := New(2, emptyQueue{}, queue.DefaultHandler{}, time.Second)
	if err != nil {
		t.Fatalf("building controller: %v", err)
	}

	c.Start(context.Background())
	c.Join() // workers give up after one idle wait of EmptyQueueWait: the queue is always empty and EmptyQueueRetries is 1
	c.Stop() // must be safe to call after the workers have already exited on their own

	if got := c.Endpoints(); got != 0 {
		t.Fatalf("expected no endpoints to have been touched, got %d", got)
	}
}

func TestControllerStopIsIdempotent(t *testing.T) {
	c, err := New(1, emptyQueue{}, queue.DefaultHandler{}, time.Second)
	if err != nil {
		t.Fatalf("building controller: %v", err)
	}

	c.Start(context.Background())
	c.Stop()
	c.Stop() // must not panic or double-close resources
}
