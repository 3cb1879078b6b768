package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/slicingmelon/crawl-e-go/core/engine/pipeline"
	"github.com/slicingmelon/crawl-e-go/core/engine/queue"
	"github.com/slicingmelon/crawl-e-go/core/engine/worker"
	"github.com/slicingmelon/crawl-e-go/core/utils/errstats"
	"github.com/slicingmelon/crawl-e-go/core/utils/logger"
	"github.com/slicingmelon/crawl-e-go/core/utils/profiler"
)

// loggingHandler wraps a Handler to additionally record every failed
// fetch's host into a Stats, independent of what the wrapped handler
// itself chooses to do with the descriptor.
type loggingHandler struct {
	next  queue.Handler
	stats *errstats.Stats
}

func (h loggingHandler) Process(desc *pipeline.Descriptor, q queue.Queue) {
	if desc.Error != nil {
		if parsed, err := url.Parse(desc.RequestURL); err == nil {
			h.stats.Record(parsed.Hostname(), desc.Error)
		}
	}
	h.next.Process(desc, q)
}

func (h loggingHandler) PreProcess(desc *pipeline.Descriptor) {
	if pp, ok := h.next.(queue.PreProcessor); ok {
		pp.PreProcess(desc)
	}
}

// Runner wires parsed Options into a Controller and drives it to
// completion, mirroring the original fetch engine's run_crawle entry
// point: parse flags, build a queue, build a handler, start and join a
// Controller, with Ctrl-C triggering a graceful Controller.Stop.
type Runner struct {
	opts       *Options
	urlQueue   *queue.URLQueue
	controller *worker.Controller
}

// NewRunner parses CLI flags into a Runner, ready for Initialize.
func NewRunner() (*Runner, error) {
	opts, err := parseFlags()
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		logger.EnableVerbose()
	}
	if opts.Debug {
		logger.EnableDebug()
	}
	return &Runner{opts: opts}, nil
}

// Initialize loads seed URLs, wires the save file and builds the
// Controller. It does not start the crawl.
func (r *Runner) Initialize() error {
	for _, u := range r.opts.URLs {
		if err := validateSeedURL(u); err != nil {
			return err
		}
	}

	r.urlQueue = queue.NewURLQueue()
	r.urlQueue.LoadSeeds(r.opts.URLs)
	if r.opts.SeedFile != "" {
		if err := r.urlQueue.LoadSeedFile(r.opts.SeedFile); err != nil {
			return err
		}
	}
	if r.opts.SaveFile != "" {
		if err := r.urlQueue.EnableSave(r.opts.SaveFile); err != nil {
			return err
		}
	}

	errStats := errstats.New()
	handler := queue.DefaultHandler{}

	controller, err := worker.New(r.opts.Threads, r.urlQueue, loggingHandler{next: handler, stats: errStats}, r.opts.RequestTimeout)
	if err != nil {
		return fmt.Errorf("cli: building controller: %w", err)
	}
	r.controller = controller
	return nil
}

// Run starts the crawl, blocks until the queue drains or Ctrl-C is
// received, and tears everything down before returning.
func (r *Runner) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if r.opts.Profile {
		p := profiler.NewProfiler()
		if err := p.Start(); err != nil {
			logger.Warning().Msgf("profiler did not start: %v", err)
		} else {
			defer p.Stop()
		}
	}

	logger.Info().Msgf("starting crawl with %d worker threads", r.opts.Threads)
	r.controller.Start(ctx)

	done := make(chan struct{})
	go func() {
		r.controller.Join()
		close(done)
	}()

	select {
	case <-ctx.Done():
		logger.Warning().Msgf("interrupted, stopping workers")
	case <-done:
	}

	endpoints := r.controller.Endpoints()
	r.controller.Stop()
	if err := r.urlQueue.Close(); err != nil {
		logger.Warning().Msgf("closing save file: %v", err)
	}
	logger.Success().Msgf("crawl finished, %d endpoints touched", endpoints)
	return nil
}
