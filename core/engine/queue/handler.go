// Package queue defines the external interfaces a caller implements to
// drive a Controller: a Handler that inspects and reacts to each fetch,
// and a Queue that feeds work to it. It also ships a reference Queue
// implementation, URLQueue, for callers that just want to crawl a list
// of seed URLs.
package queue

import "github.com/slicingmelon/crawl-e-go/core/engine/pipeline"

// Handler reacts to every fetched Descriptor. Process is called exactly
// once per descriptor, including on a failed fetch - callers that only
// care about successes must check desc.Error themselves. q is the same
// Queue the Controller is draining, so a Handler can feed follow-up
// work back in via q.Put, mirroring the original fetch engine's
// VisitURLHandler.process(info, queue) signature. A Handler's methods
// are called from every worker goroutine concurrently and must be safe
// for concurrent use.
type Handler interface {
	Process(desc *pipeline.Descriptor, q Queue)
}

// PreProcessor is an optional capability a Handler may additionally
// implement to inspect or rewrite a descriptor before every hop
// (including each redirect) is dispatched. Setting desc.ResponseURL to
// pipeline.SkipURL vetoes that hop.
type PreProcessor interface {
	PreProcess(desc *pipeline.Descriptor)
}

// Queue supplies work to a Controller's workers and accepts
// handler-chosen follow-up items (typically newly discovered URLs)
// back via Put. Get must not block: ok is false when no item is
// currently available, which sends the calling worker into its idle
// wait rather than stopping the crawl. An error from Get is fatal and
// latches the Controller's shared stop flag, mirroring the original
// fetch engine's queue.Empty-vs-fatal-exception distinction.
type Queue interface {
	Get() (desc *pipeline.Descriptor, ok bool, err error)
	Put(desc *pipeline.Descriptor) error
}
