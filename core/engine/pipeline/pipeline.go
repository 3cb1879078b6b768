package pipeline

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/projectdiscovery/httpx/common/httpx"
	"github.com/valyala/fasthttp"

	"github.com/slicingmelon/crawl-e-go/core/engine/transport"
)

// PreProcessFunc is the pre-process hook a handler may supply. It runs
// once per hop (including every redirect) before URL validation. A
// handler vetoes the hop by setting Descriptor.ResponseURL to SkipURL.
type PreProcessFunc func(*Descriptor)

// Pipeline drives a single Descriptor through validation, dispatch,
// redirect following and response decoding. One Pipeline is shared by
// every worker in a Controller: all of its state is either immutable
// after construction or owned by the transport.LRU, which is already
// safe for concurrent use.
type Pipeline struct {
	lru     *transport.LRU
	dialer  *transport.Dialer
	stopped *atomic.Bool
	timeout time.Duration
}

// New builds a Pipeline backed by lru and dialer. stopped is the shared
// stop flag also latched by workers on a fatal queue error; timeout is
// applied as a per-request deadline on the underlying connection.
func New(lru *transport.LRU, dialer *transport.Dialer, stopped *atomic.Bool, timeout time.Duration) *Pipeline {
	return &Pipeline{lru: lru, dialer: dialer, stopped: stopped, timeout: timeout}
}

// Run executes desc's hop chain end to end: pre-process, validation,
// resolution, header defaults, dispatch, redirect recursion and
// terminal decoding. It returns the terminal error, if any; on success
// desc's Response* fields are populated and desc.Error is nil.
func (p *Pipeline) Run(ctx context.Context, desc *Descriptor, preProcess PreProcessFunc) error {
	err := p.runHop(ctx, desc, preProcess)
	desc.Error = err
	return err
}

func (p *Pipeline) runHop(ctx context.Context, desc *Descriptor, preProcess PreProcessFunc) error {
	if p.stopped.Load() {
		return ErrStopped
	}

	if preProcess != nil {
		preProcess(desc)
	}
	if desc.ResponseURL == SkipURL {
		return ErrAborted
	}

	parsed, err := url.Parse(desc.ResponseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ErrUnsupportedScheme
	}

	hostname := parsed.Hostname()
	port := parsed.Port()
	encrypted := parsed.Scheme == "https"
	if port == "" {
		if encrypted {
			port = "443"
		} else {
			port = "80"
		}
	}

	ip, err := p.dialer.Resolve(ctx, hostname)
	if err != nil {
		return &TransportError{Op: "resolve", Err: err}
	}
	key := transport.EndpointKey{IP: ip, Port: port, Encrypted: encrypted}

	applyHeaderDefaults(desc, hostname)

	var bodyReader []byte
	if len(desc.RequestParams) > 0 {
		encoded := desc.RequestParams.Encode()
		bodyReader = []byte(encoded)
		if desc.RequestHeaders.Get("Content-Type") == "" {
			desc.RequestHeaders.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}

	method := desc.RequestMethod
	if method == "" {
		method = http.MethodGet
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI(parsed.RequestURI())
	req.Header.SetHost(hostname)
	for name, values := range desc.RequestHeaders {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if bodyReader != nil {
		req.SetBody(bodyReader)
	}

	conn := p.lru.Acquire(key)
	if err := conn.SetDeadline(deadlineFrom(p.timeout)); err != nil {
		conn.Close()
		return &TransportError{Op: "set-deadline", Err: err}
	}

	start := time.Now()
	err = conn.RoundTrip(ctx, hostname, req, resp)
	elapsed := time.Since(start)
	if err != nil {
		conn.Close()
		return &TransportError{Op: "round-trip", Err: err}
	}
	p.lru.Release(key, conn)

	status := resp.StatusCode()
	if isRedirect(status) {
		return p.followRedirect(ctx, desc, preProcess, resp)
	}

	return p.finish(desc, resp, elapsed)
}

// applyHeaderDefaults sets User-Agent, Accept, Accept-Language and
// Accept-Encoding only when the caller has not already supplied them. The case-sensitive
// lookup on RequestHeaders (a net/http.Header, which canonicalizes on
// Set/Add but not on a raw map read) means a caller must use the
// canonical header names to suppress a default, matching how the
// original fetch engine checked header presence before filling it in.
// Note the header here is spelled correctly, Accept-Language, unlike
// the original's Accept-Languge.
func applyHeaderDefaults(desc *Descriptor, hostname string) {
	if desc.RequestHeaders == nil {
		desc.RequestHeaders = make(http.Header)
	}
	if desc.RequestHeaders.Get("User-Agent") == "" {
		desc.RequestHeaders.Set("User-Agent", "crawl-e-go/1.0")
	}
	if desc.RequestHeaders.Get("Accept") == "" {
		desc.RequestHeaders.Set("Accept", "*/*")
	}
	if desc.RequestHeaders.Get("Accept-Language") == "" {
		desc.RequestHeaders.Set("Accept-Language", "en-US,en;q=0.8")
	}
	if desc.RequestHeaders.Get("Accept-Encoding") == "" {
		desc.RequestHeaders.Set("Accept-Encoding", "gzip")
	}
}

func isRedirect(status int) bool {
	return status == http.StatusMovedPermanently ||
		status == http.StatusFound ||
		status == http.StatusSeeOther
}

// followRedirect resolves the Location header against the current
// ResponseURL, decrements the hop budget and recurses into runHop.
// Method, headers and params are carried unchanged onto the next hop
// for every one of the three redirect codes handled here, a deliberate
// departure from RFC 7231 (which asks clients to switch 302/303
// non-GETs to GET) kept to preserve the original fetch engine's
// behavior.
func (p *Pipeline) followRedirect(ctx context.Context, desc *Descriptor, preProcess PreProcessFunc, resp *fasthttp.Response) error {
	if desc.RedirectsRemaining == NoRedirects {
		return p.finish(desc, resp, 0)
	}
	if desc.RedirectsRemaining <= 0 {
		return ErrRedirectsExceeded
	}

	location := string(resp.Header.Peek("Location"))
	if location == "" {
		return p.finish(desc, resp, 0)
	}
	base, err := url.Parse(desc.ResponseURL)
	if err != nil {
		return ErrUnsupportedScheme
	}
	next, err := base.Parse(location)
	if err != nil {
		return ErrUnsupportedScheme
	}

	desc.ResponseURL = next.String()
	desc.RedirectsRemaining--
	return p.runHop(ctx, desc, preProcess)
}

// finish populates desc's output fields from resp, transparently
// decoding a gzip-encoded body the same way the teacher's own response
// reader does: httpx.DecodeData inspects Content-Encoding and picks the
// matching decompressor. If that fails - a real failure mode of
// servers that pad a gzip stream with trailing garbage - it shells out
// to gunzip and tags the descriptor rather than surfacing a decode
// error for otherwise valid content. If gunzip fails as well, the
// failure is returned as a TransportError and no response fields are
// populated.
func (p *Pipeline) finish(desc *Descriptor, resp *fasthttp.Response, elapsed time.Duration) error {
	body := append([]byte(nil), resp.Body()...)

	headers := make(http.Header)
	resp.Header.VisitAll(func(k, v []byte) {
		headers.Add(string(k), string(v))
	})

	if strings.Contains(strings.ToLower(headers.Get("Content-Encoding")), "gzip") {
		decoded, usedExternal, err := decodeGzip(body, headers)
		if err != nil {
			return &TransportError{Op: "gunzip", Err: err}
		}
		body = decoded
		if usedExternal {
			desc.Extra = append(desc.Extra, ExtraUsedExternalGunzip)
		}
	}

	desc.ResponseStatus = resp.StatusCode()
	desc.ResponseHeaders = headers
	desc.ResponseBody = body
	desc.ResponseTime = elapsed
	return nil
}

func decodeGzip(raw []byte, headers http.Header) (decoded []byte, usedExternal bool, err error) {
	out, decodeErr := httpx.DecodeData(raw, headers)
	if decodeErr == nil {
		return out, false, nil
	}
	return externalGunzip(raw)
}

func externalGunzip(raw []byte) ([]byte, bool, error) {
	cmd := exec.Command("gunzip", "-c")
	cmd.Stdin = bytes.NewReader(raw)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		// gunzip exits with status 2 for warnings such as "trailing
		// garbage ignored", after writing the decoded data.
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 2 || out.Len() == 0 {
			return nil, false, err
		}
	}
	return out.Bytes(), true, nil
}

func deadlineFrom(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

// QuickFetch runs a single GET against rawURL through a throwaway
// Pipeline, LRU and Dialer, for one-off fetches outside a Controller.
// It mirrors the original fetch engine's quick_request helper.
func QuickFetch(ctx context.Context, rawURL string, timeout time.Duration) (*Descriptor, error) {
	dialer, err := transport.NewDialer(true)
	if err != nil {
		return nil, err
	}
	defer dialer.Close()

	lru := transport.NewLRU(dialer, 8, 1)
	defer lru.Destroy()

	var stopped atomic.Bool
	p := New(lru, dialer, &stopped, timeout)

	desc := NewDescriptor(rawURL)
	err = p.Run(ctx, desc, nil)
	return desc, err
}
