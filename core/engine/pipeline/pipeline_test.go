package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/slicingmelon/crawl-e-go/core/engine/transport"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	dialer, err := transport.NewDialer(true)
	if err != nil {
		t.Fatalf("building dialer: %v", err)
	}
	t.Cleanup(dialer.Close)

	lru := transport.NewLRU(dialer, 8, 4)
	t.Cleanup(lru.Destroy)

	var stopped atomic.Bool
	return New(lru, dialer, &stopped, 5*time.Second)
}

func TestRunBasicGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	p := newTestPipeline(t)
	desc := NewDescriptor(srv.URL)

	if err := p.Run(context.Background(), desc, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if desc.ResponseStatus != http.StatusOK {
		t.Fatalf("expected 200, got %d", desc.ResponseStatus)
	}
	if string(desc.ResponseBody) != "hello" {
		t.Fatalf("unexpected body: %q", desc.ResponseBody)
	}
}

func TestRunFollowsRedirectChain(t *testing.T) {
	var final string
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/middle", http.StatusFound)
	})
	mux.HandleFunc("/middle", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/end", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/end", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("done"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	final = srv.URL + "/end"
	_ = final

	p := newTestPipeline(t)
	desc := NewDescriptor(srv.URL + "/start")

	if err := p.Run(context.Background(), desc, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if desc.ResponseStatus != http.StatusOK {
		t.Fatalf("expected terminal 200, got %d", desc.ResponseStatus)
	}
	if desc.ResponseURL != srv.URL+"/end" {
		t.Fatalf("expected final URL to be /end, got %s", desc.ResponseURL)
	}
}

func TestRunRedirectsExceeded(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := newTestPipeline(t)
	desc := NewDescriptor(srv.URL + "/loop")
	desc.RedirectsRemaining = 2

	err := p.Run(context.Background(), desc, nil)
	if err != ErrRedirectsExceeded {
		t.Fatalf("expected ErrRedirectsExceeded, got %v", err)
	}
}

func TestRunNoRedirectsSentinelPassesThroughTerminal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := newTestPipeline(t)
	desc := NewDescriptor(srv.URL + "/loop")
	desc.RedirectsRemaining = NoRedirects

	if err := p.Run(context.Background(), desc, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if desc.ResponseStatus != http.StatusFound {
		t.Fatalf("expected the 302 itself as a terminal response, got %d", desc.ResponseStatus)
	}
}

func TestRunPreProcessAbort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := newTestPipeline(t)
	desc := NewDescriptor(srv.URL)

	err := p.Run(context.Background(), desc, func(d *Descriptor) {
		d.ResponseURL = SkipURL
	})
	if err != ErrAborted {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
}

func TestRunUnsupportedScheme(t *testing.T) {
	p := newTestPipeline(t)
	desc := NewDescriptor("ftp://example.com/file")

	err := p.Run(context.Background(), desc, nil)
	if err != ErrUnsupportedScheme {
		t.Fatalf("expected ErrUnsupportedScheme, got %v", err)
	}
}

func TestRunStoppedFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := newTestPipeline(t)
	p.stopped.Store(true)

	desc := NewDescriptor(srv.URL)
	err := p.Run(context.Background(), desc, nil)
	if err != ErrStopped {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestHeaderDefaultsRespectCallerValues(t *testing.T) {
	desc := NewDescriptor("http://example.com")
	desc.RequestHeaders.Set("User-Agent", "custom-agent")

	applyHeaderDefaults(desc, "example.com")

	if got := desc.RequestHeaders.Get("User-Agent"); got != "custom-agent" {
		t.Fatalf("caller-supplied User-Agent must not be overwritten, got %q", got)
	}
	if got := desc.RequestHeaders.Get("Accept-Language"); got == "" {
		t.Fatal("expected a default Accept-Language to be applied")
	}
}
