// Package logger wraps pterm's prefix printers behind a small event
// API so call sites read as logger.Info().Msgf("...") regardless of
// whether debug/verbose output is currently enabled.
package logger

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/pterm/pterm"
)

type Logger struct {
	mu      sync.Mutex
	verbose bool
	debug   bool
}

var DefaultLogger *Logger

func init() {
	DefaultLogger = &Logger{}

	pterm.EnableDebugMessages()

	safeWriter := NewSafeWriter(os.Stdout)

	pterm.Info = *pterm.Info.WithWriter(safeWriter)
	pterm.Debug = *pterm.Debug.WithWriter(safeWriter)
	pterm.Error = *pterm.Error.WithWriter(safeWriter)
	pterm.Warning = *pterm.Warning.WithWriter(safeWriter)
	pterm.Success = *pterm.Success.WithWriter(safeWriter)
}

// Event is a single log line in progress: a prefix printer plus
// optional structured fields, finished off by Msgf.
type Event struct {
	logger   *Logger
	printer  pterm.PrefixPrinter
	host     string
	metadata map[string]string
}

// SafeWriter serializes writes from pterm's printers, which are not
// otherwise safe for concurrent use from every worker goroutine at
// once, and normalizes line endings for a scrolling terminal.
type SafeWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewSafeWriter(w io.Writer) *SafeWriter {
	return &SafeWriter{w: w}
}

func (sw *SafeWriter) Write(p []byte) (n int, err error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	newP := make([]byte, 0, len(p)+2)
	newP = append(newP, '\r')
	newP = append(newP, p...)
	if !bytes.HasSuffix(newP, []byte("\n")) {
		newP = append(newP, '\n')
	}
	return sw.w.Write(newP)
}

func (l *Logger) newEvent(printer pterm.PrefixPrinter) *Event {
	return &Event{logger: l, printer: printer, metadata: make(map[string]string)}
}

func Info() *Event    { return DefaultLogger.newEvent(pterm.Info) }
func Success() *Event { return DefaultLogger.newEvent(pterm.Success) }
func Error() *Event   { return DefaultLogger.newEvent(pterm.Error) }
func Warning() *Event { return DefaultLogger.newEvent(pterm.Warning) }

// Debug returns nil when debug logging is off, so Msgf on the result
// is a safe no-op - every call site can write logger.Debug().Msgf(...)
// unconditionally.
func Debug() *Event {
	if !DefaultLogger.IsDebugEnabled() {
		return nil
	}
	return DefaultLogger.newEvent(pterm.Debug)
}

// Verbose behaves like Debug but gates on the separate verbose flag,
// for progress-style output that's noisier than Info but not a debug
// trace.
func Verbose() *Event {
	if !DefaultLogger.IsVerboseEnabled() {
		return nil
	}
	return DefaultLogger.newEvent(pterm.Info)
}

func (e *Event) Msgf(format string, args ...any) {
	if e == nil {
		return
	}
	e.logger.mu.Lock()
	defer e.logger.mu.Unlock()

	var meta string
	for k, v := range e.metadata {
		meta += " " + pterm.Bold.Sprint(k) + "=" + v
	}
	var hostStr string
	if e.host != "" {
		hostStr = pterm.FgCyan.Sprintf("[%s] ", e.host)
	}
	e.printer.Printfln(hostStr+format+meta, args...)
}

// Host tags the event with the endpoint hostname it concerns, printed
// as a colored prefix ahead of the message.
func (e *Event) Host(host string) *Event {
	if e == nil {
		return nil
	}
	e.host = host
	return e
}

func (e *Event) Metadata(key, value string) *Event {
	if e == nil {
		return nil
	}
	e.metadata[key] = value
	return e
}

func (l *Logger) EnableDebug() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debug = true
}

func (l *Logger) EnableVerbose() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.verbose = true
}

func (l *Logger) IsDebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func (l *Logger) IsVerboseEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.verbose
}

func EnableDebug()          { DefaultLogger.EnableDebug() }
func EnableVerbose()        { DefaultLogger.EnableVerbose() }
func IsDebugEnabled() bool  { return DefaultLogger.IsDebugEnabled() }
func IsVerboseEnabled() bool { return DefaultLogger.IsVerboseEnabled() }
