// Package reporter implements the diagnostic-reporting abstraction
// described in spec.md's ambient concerns, grounded on
// original_source/include/libtarmac/reporter.hh: a single interface
// for warnings, fatal errors and indexing progress, so command-line
// and (eventually) GUI front ends can swap in their own presentation
// without the indexing/navigation packages knowing which is in use.
package reporter

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// IndexUpdateCheck reports whether an on-disk index needs rebuilding.
type IndexUpdateCheck int

const (
	IndexOK IndexUpdateCheck = iota
	IndexMissing
	IndexTooOld
	IndexWrongFormat
	IndexIncomplete
	IndexForced
)

func (c IndexUpdateCheck) String() string {
	switch c {
	case IndexOK:
		return "up to date"
	case IndexMissing:
		return "missing"
	case IndexTooOld:
		return "older than trace file"
	case IndexWrongFormat:
		return "wrong format version"
	case IndexIncomplete:
		return "incomplete (previous run did not finish)"
	case IndexForced:
		return "rebuild forced"
	default:
		return "unknown"
	}
}

// Reporter is the sink for every diagnostic the indexer and navigator
// produce. Err/Errx are fatal: callers must not continue past them.
type Reporter interface {
	Err(exitStatus int, format string, args ...any)
	Errx(exitStatus int, format string, args ...any)
	Warn(format string, args ...any)
	Warnx(format string, args ...any)

	IndexingStatus(indexFilename, traceFilename string, status IndexUpdateCheck)
	IndexingWarning(traceFilename string, lineno uint32, msg string)
	IndexingError(traceFilename string, lineno uint32, msg string)

	IndexingStart(total int64)
	IndexingProgress(pos int64)
	IndexingDone()
}

// CLI is a Reporter backed by structured logrus output, the command
// line tools' default.
type CLI struct {
	Log     *logrus.Logger
	Verbose bool
	Progress bool
}

// NewCLI builds a CLI reporter writing to standard error.
func NewCLI() *CLI {
	log := logrus.New()
	log.Out = os.Stderr
	return &CLI{Log: log}
}

func (r *CLI) Err(exitStatus int, format string, args ...any) {
	r.Log.Errorf(format, args...)
	os.Exit(exitStatus)
}

func (r *CLI) Errx(exitStatus int, format string, args ...any) {
	r.Log.Errorf(format, args...)
	os.Exit(exitStatus)
}

func (r *CLI) Warn(format string, args ...any)  { r.Log.Warnf(format, args...) }
func (r *CLI) Warnx(format string, args ...any) { r.Log.Warnf(format, args...) }

func (r *CLI) IndexingStatus(indexFilename, traceFilename string, status IndexUpdateCheck) {
	r.Log.WithFields(logrus.Fields{
		"index": indexFilename,
		"trace": traceFilename,
	}).Infof("index status: %s", status)
}

func (r *CLI) IndexingWarning(traceFilename string, lineno uint32, msg string) {
	r.Log.WithFields(logrus.Fields{"trace": traceFilename, "line": lineno}).Warn(msg)
}

func (r *CLI) IndexingError(traceFilename string, lineno uint32, msg string) {
	r.Log.WithFields(logrus.Fields{"trace": traceFilename, "line": lineno}).Error(msg)
	os.Exit(1)
}

func (r *CLI) IndexingStart(total int64) {
	if r.Progress {
		fmt.Fprintf(os.Stderr, "indexing: 0/%d\n", total)
	}
}
func (r *CLI) IndexingProgress(pos int64) {
	if r.Progress {
		fmt.Fprintf(os.Stderr, "indexing: %d\n", pos)
	}
}
func (r *CLI) IndexingDone() {
	if r.Progress {
		fmt.Fprintln(os.Stderr, "indexing: done")
	}
}

// Nop is a Reporter that discards everything except fatal calls, which
// still panic so tests notice an unexpected fatal condition instead of
// silently exiting the test binary.
type Nop struct{}

func (Nop) Err(exitStatus int, format string, args ...any)  { panic(fmt.Sprintf(format, args...)) }
func (Nop) Errx(exitStatus int, format string, args ...any) { panic(fmt.Sprintf(format, args...)) }
func (Nop) Warn(format string, args ...any)                 {}
func (Nop) Warnx(format string, args ...any)                {}
func (Nop) IndexingStatus(string, string, IndexUpdateCheck)  {}
func (Nop) IndexingWarning(string, uint32, string)           {}
func (Nop) IndexingError(string, uint32, string)             {}
func (Nop) IndexingStart(int64)                              {}
func (Nop) IndexingProgress(int64)                           {}
func (Nop) IndexingDone()                                    {}
