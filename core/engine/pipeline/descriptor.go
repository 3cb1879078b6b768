package pipeline

import (
	"net/http"
	"net/url"
	"time"
)

// SkipURL is the sentinel a handler's pre-process hook assigns to
// Descriptor.ResponseURL to veto a request (including a redirect hop)
// without it being treated as an error.
const SkipURL = "skip"

// NoRedirects is the sentinel for Descriptor.RedirectsRemaining meaning
// "do not follow any redirect for this request". It is distinct from
// the integer zero, which means "follow no *further* redirects but the
// pipeline has not yet been told to never redirect at all" - zero still
// fails with ErrRedirectsExceeded on the first redirect response,
// whereas NoRedirects lets a 301/302/303 pass through untouched as a
// normal terminal response.
const NoRedirects = -1

// DefaultRedirects is the hop budget a new Descriptor gets unless the
// caller overrides it.
const DefaultRedirects = 10

// Descriptor is the unit of work flowing through the pipeline: a
// request's inputs, the pipeline's mutable working state, and the
// final outputs (or error) of the fetch.
//
// Exactly one of (ResponseStatus set, ResponseBody set) or Error being
// non-nil holds once the pipeline has returned.
type Descriptor struct {
	// Inputs, set by the producer or mutated by the handler's
	// pre-process hook.
	RequestURL     string
	RequestMethod  string
	RequestHeaders http.Header
	RequestParams  url.Values

	// RedirectsRemaining is the hop budget. DefaultRedirects unless the
	// caller set it; NoRedirects disables redirect following entirely.
	RedirectsRemaining int

	// ResponseURL starts out equal to RequestURL. The pre-process hook
	// may mutate it (including to SkipURL); each redirect hop
	// overwrites it with the resolved Location.
	ResponseURL string

	// Outputs, populated by the pipeline.
	ResponseStatus  int
	ResponseHeaders http.Header
	ResponseBody    []byte
	ResponseTime    time.Duration
	Error           error
	Extra           []string
}

// NewDescriptor builds a Descriptor for url with the default method,
// headers and redirect budget.
func NewDescriptor(rawURL string) *Descriptor {
	return &Descriptor{
		RequestURL:         rawURL,
		RequestMethod:      http.MethodGet,
		RequestHeaders:     make(http.Header),
		ResponseURL:        rawURL,
		RedirectsRemaining: DefaultRedirects,
	}
}

// Clone returns a shallow copy suitable for re-dispatching a redirect
// hop: headers are copied so a handler mutating the clone during
// pre-process cannot reach back into the original descriptor's map.
func (d *Descriptor) Clone() *Descriptor {
	clone := *d
	clone.RequestHeaders = d.RequestHeaders.Clone()
	if clone.RequestHeaders == nil {
		clone.RequestHeaders = make(http.Header)
	}
	clone.ResponseHeaders = nil
	clone.Extra = append([]string(nil), d.Extra...)
	return &clone
}
