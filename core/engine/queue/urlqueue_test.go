package queue

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/slicingmelon/crawl-e-go/core/engine/pipeline"
)

func TestLoadSeedsAndGetFIFOOrder(t *testing.T) {
	q := NewURLQueue()
	q.LoadSeeds([]string{"http://a.example", "http://b.example"})

	if got := q.Len(); got != 2 {
		t.Fatalf("expected 2 pending after LoadSeeds, got %d", got)
	}

	first, ok, err := q.Get()
	if err != nil || !ok {
		t.Fatalf("expected a descriptor, got ok=%v err=%v", ok, err)
	}
	if first.RequestURL != "http://a.example" {
		t.Fatalf("expected FIFO order, got %s first", first.RequestURL)
	}

	second, ok, err := q.Get()
	if err != nil || !ok || second.RequestURL != "http://b.example" {
		t.Fatalf("unexpected second descriptor: %v ok=%v err=%v", second, ok, err)
	}

	if _, ok, err := q.Get(); ok || err != nil {
		t.Fatalf("expected an empty queue to report ok=false err=nil, got ok=%v err=%v", ok, err)
	}
}

func TestLoadSeedFileSkipsBlankAndCommentLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seeds.txt")
	content := "http://a.example\n\n# a comment\nhttp://b.example\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing seed file: %v", err)
	}

	q := NewURLQueue()
	if err := q.LoadSeedFile(path); err != nil {
		t.Fatalf("LoadSeedFile: %v", err)
	}
	if got := q.Len(); got != 2 {
		t.Fatalf("expected 2 seeds loaded, skipping blank/comment lines, got %d", got)
	}
}

func TestLoadSeedFileMissingFile(t *testing.T) {
	q := NewURLQueue()
	if err := q.LoadSeedFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatal("expected an error for a missing seed file")
	}
}

func TestPutAppendsToSaveFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	q := NewURLQueue()
	if err := q.EnableSave(path); err != nil {
		t.Fatalf("EnableSave: %v", err)
	}
	defer q.Close()

	d1 := pipeline.NewDescriptor("http://a.example")
	d1.ResponseURL = "http://a.example/"
	d2 := pipeline.NewDescriptor("http://b.example")
	d2.ResponseURL = "http://b.example/"

	if err := q.Put(d1); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := q.Put(d2); err != nil {
		t.Fatalf("Put: %v", err)
	}
	q.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening save file: %v", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 saved lines, got %d: %v", len(lines), lines)
	}
	if lines[0] != "http://a.example/" || lines[1] != "http://b.example/" {
		t.Fatalf("unexpected save file contents: %v", lines)
	}
}

func TestPutWithoutSaveFileDoesNotFail(t *testing.T) {
	q := NewURLQueue()
	if err := q.Put(pipeline.NewDescriptor("http://a.example")); err != nil {
		t.Fatalf("Put without a save file must still succeed, got %v", err)
	}
}

func TestPutFeedsBackIntoPendingFIFO(t *testing.T) {
	q := NewURLQueue()
	discovered := pipeline.NewDescriptor("http://discovered.example")
	if err := q.Put(discovered); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := q.Get()
	if err != nil || !ok {
		t.Fatalf("expected the discovered URL to be gettable, ok=%v err=%v", ok, err)
	}
	if got.RequestURL != "http://discovered.example" {
		t.Fatalf("unexpected descriptor: %v", got)
	}
}

func TestDefaultHandlerDoesNotRequeueOnSuccess(t *testing.T) {
	h := DefaultHandler{}
	q := NewURLQueue()

	ok := pipeline.NewDescriptor("http://a.example")
	ok.ResponseStatus = 200
	ok.ResponseBody = []byte("body")
	h.Process(ok, q)

	if got := q.Len(); got != 0 {
		t.Fatalf("expected a 200 response not to be requeued, got %d pending", got)
	}
}

func TestDefaultHandlerRequeuesNon200Response(t *testing.T) {
	h := DefaultHandler{}
	q := NewURLQueue()

	notFound := pipeline.NewDescriptor("http://a.example/missing")
	notFound.ResponseStatus = 404
	h.Process(notFound, q)

	if got := q.Len(); got != 1 {
		t.Fatalf("expected a non-200 response to be requeued once, got %d pending", got)
	}
	requeued, ok, err := q.Get()
	if err != nil || !ok {
		t.Fatalf("expected the requeued descriptor to be gettable, ok=%v err=%v", ok, err)
	}
	if requeued.RequestURL != "http://a.example/missing" {
		t.Fatalf("expected the requeued descriptor to target the original request URL, got %s", requeued.RequestURL)
	}
}

func TestDefaultHandlerRequeuesOnFetchError(t *testing.T) {
	h := DefaultHandler{}
	q := NewURLQueue()

	failed := pipeline.NewDescriptor("http://b.example")
	failed.Error = errors.New("fetch failed")
	h.Process(failed, q)

	if got := q.Len(); got != 1 {
		t.Fatalf("expected a failed fetch to be requeued, got %d pending", got)
	}
}
