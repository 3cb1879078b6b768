package cli

import (
	"fmt"

	"github.com/slicingmelon/go-rawurlparser"
)

// validateSeedURL checks that rawURL is a well-formed absolute http(s)
// URL before it ever reaches the queue, so a typo in a seed fails fast
// at startup instead of silently erroring out of a worker later.
func validateSeedURL(rawURL string) error {
	parsed, err := rawurlparser.RawURLParse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid seed URL %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid seed URL %q: scheme must be http or https", rawURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid seed URL %q: missing host", rawURL)
	}
	return nil
}
