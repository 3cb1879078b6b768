package queue

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/slicingmelon/crawl-e-go/core/engine/pipeline"
	"github.com/slicingmelon/crawl-e-go/core/utils/logger"
)

// LogAfter is how many processed descriptors pass between throughput
// log lines, mirroring the original fetch engine's LOG_AFTER/LOG_STRING
// crawl-rate reporting.
const LogAfter = 100

// URLQueue is a reference, in-memory Queue: a FIFO of pending URLs fed
// by seed URLs and/or a seed file, with every URL passed to Put also
// appended to an optional save file. It is safe for concurrent use by
// every worker in a Controller.
type URLQueue struct {
	mu        sync.Mutex
	pending   []*pipeline.Descriptor
	processed int
	saveFile  *os.File
}

// NewURLQueue builds an empty URLQueue.
func NewURLQueue() *URLQueue {
	return &URLQueue{}
}

// LoadSeeds appends one Descriptor per entry of urls to the pending
// FIFO. Entries are not filtered.
func (q *URLQueue) LoadSeeds(urls []string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, u := range urls {
		q.pending = append(q.pending, pipeline.NewDescriptor(u))
	}
}

// LoadSeedFile reads one URL per line from path, skipping blank lines
// and lines starting with '#'.
func (q *URLQueue) LoadSeedFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("queue: opening seed file: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("queue: reading seed file: %w", err)
	}
	q.LoadSeeds(urls)
	return nil
}

// EnableSave opens path for append and writes the resolved URL of every
// descriptor that later passes through Put.
func (q *URLQueue) EnableSave(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("queue: opening save file: %w", err)
	}
	q.mu.Lock()
	q.saveFile = f
	q.mu.Unlock()
	return nil
}

// Close releases the save file, if one was opened.
func (q *URLQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.saveFile == nil {
		return nil
	}
	return q.saveFile.Close()
}

// Get implements Queue. It never blocks: with nothing pending it
// returns ok=false so the caller falls back to its idle wait.
func (q *URLQueue) Get() (*pipeline.Descriptor, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		logger.Debug().Msgf("url queue is empty")
		return nil, false, nil
	}
	desc := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return desc, true, nil
}

// Put implements Queue, treating every incoming descriptor as a
// discovered URL to append to the FIFO, and logging throughput every
// LogAfter descriptors.
func (q *URLQueue) Put(desc *pipeline.Descriptor) error {
	q.mu.Lock()
	q.pending = append(q.pending, desc)
	q.processed++
	n := q.processed
	saveFile := q.saveFile
	q.mu.Unlock()

	if saveFile != nil {
		fmt.Fprintln(saveFile, desc.ResponseURL)
	}
	if n%LogAfter == 0 {
		logger.Info().Msgf("processed %d URLs, %d pending", n, q.Len())
	}
	return nil
}

// Len reports the number of URLs currently pending.
func (q *URLQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// DefaultHandler is a minimal Handler that logs every fetch outcome and
// requeues any non-200 response for a retry, mirroring the original
// fetch engine's VisitURLHandler.process, which does
// "if info['status'] != 200: queue.put(info['url'])".
type DefaultHandler struct{}

func (DefaultHandler) Process(desc *pipeline.Descriptor, q Queue) {
	if desc.Error != nil {
		logger.Warning().Msgf("fetch failed for %s: %v", desc.RequestURL, desc.Error)
		q.Put(pipeline.NewDescriptor(desc.RequestURL))
		return
	}
	logger.Info().Msgf("fetched %s -> %d (%d bytes)", desc.ResponseURL, desc.ResponseStatus, len(desc.ResponseBody))
	if desc.ResponseStatus != 200 {
		q.Put(pipeline.NewDescriptor(desc.RequestURL))
	}
}
