package cli

import (
	"fmt"
	"time"
)

// Options holds the parsed command-line configuration for a crawl run.
type Options struct {
	URLs     []string
	SeedFile string
	SaveFile string

	Threads        int
	RequestTimeout time.Duration

	Verbose bool
	Debug   bool
	Profile bool
}

func (o *Options) setDefaults() {
	if o.Threads <= 0 {
		o.Threads = 1
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 20 * time.Second
	}
}

func (o *Options) validate() error {
	if len(o.URLs) == 0 && o.SeedFile == "" {
		return fmt.Errorf("either a seed URL (-u) or a seed file (-s) is required")
	}
	if o.Threads < 1 {
		return fmt.Errorf("threads (-t) must be at least 1")
	}
	return nil
}
