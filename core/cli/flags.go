package cli

import (
	"time"

	"github.com/projectdiscovery/goflags"
)

// parseFlags builds the grouped flag set for the crawl-e CLI and
// returns validated Options, following the same CreateGroup/VarP
// layout the rest of the projectdiscovery tool family uses.
func parseFlags() (*Options, error) {
	opts := &Options{}
	var timeoutSeconds int

	fs := goflags.NewFlagSet()
	fs.SetDescription("crawl-e-go is a distributed-ready, multi-threaded fetch engine for crawlers.")

	fs.CreateGroup("input", "Input",
		fs.StringSliceVarP(&opts.URLs, "url", "u", nil, "target URL to seed the crawl with (repeatable)", goflags.StringSliceOptions),
		fs.StringVarP(&opts.SeedFile, "seed", "s", "", "file containing seed URLs, one per line"),
	)

	fs.CreateGroup("output", "Output",
		fs.StringVarP(&opts.SaveFile, "save", "S", "", "file to append every URL put back on the queue to (URLs still pending at exit are not written)"),
	)

	fs.CreateGroup("engine", "Engine",
		fs.IntVarP(&opts.Threads, "threads", "t", 1, "number of concurrent worker threads"),
		fs.IntVar(&timeoutSeconds, "timeout", 20, "per-request timeout, in seconds"),
	)

	fs.CreateGroup("debug", "Debug",
		fs.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output"),
		fs.BoolVarP(&opts.Debug, "debug", "d", false, "debug output"),
		fs.BoolVar(&opts.Profile, "profile", false, "write CPU/heap/goroutine profiles for this run"),
	)

	if err := fs.Parse(); err != nil {
		return nil, err
	}

	opts.RequestTimeout = time.Duration(timeoutSeconds) * time.Second
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return opts, nil
}
