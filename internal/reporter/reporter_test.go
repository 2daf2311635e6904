package reporter

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestIndexUpdateCheckStrings(t *testing.T) {
	cases := map[IndexUpdateCheck]string{
		IndexOK:          "up to date",
		IndexMissing:     "missing",
		IndexTooOld:      "older than trace file",
		IndexWrongFormat: "wrong format version",
		IndexIncomplete:  "incomplete (previous run did not finish)",
		IndexForced:      "rebuild forced",
		IndexUpdateCheck(99): "unknown",
	}
	for status, want := range cases {
		require.Equal(t, want, status.String())
	}
}

func newBufferedCLI() (*CLI, *bytes.Buffer) {
	var buf bytes.Buffer
	log := logrus.New()
	log.Out = &buf
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return &CLI{Log: log}, &buf
}

func TestCLIWarnWritesToLog(t *testing.T) {
	r, buf := newBufferedCLI()
	r.Warn("disk %s low", "space")
	require.Contains(t, buf.String(), "disk space low")
}

func TestCLIIndexingWarningIncludesLineAndFile(t *testing.T) {
	r, buf := newBufferedCLI()
	r.IndexingWarning("trace.tarmac", 42, "malformed register write")
	require.Contains(t, buf.String(), "trace.tarmac")
	require.Contains(t, buf.String(), "line=42")
	require.Contains(t, buf.String(), "malformed register write")
}

func TestCLIIndexingProgressIsSilentUnlessEnabled(t *testing.T) {
	r, buf := newBufferedCLI()
	r.IndexingStart(100)
	r.IndexingProgress(50)
	r.IndexingDone()
	require.Empty(t, buf.String())
}

func TestNopIndexingCallsAreSilent(t *testing.T) {
	var n Nop
	require.NotPanics(t, func() {
		n.Warn("ignored")
		n.Warnx("ignored")
		n.IndexingStatus("a", "b", IndexOK)
		n.IndexingWarning("a", 1, "ignored")
		n.IndexingError("a", 1, "ignored")
		n.IndexingStart(1)
		n.IndexingProgress(1)
		n.IndexingDone()
	})
}

func TestNopErrPanics(t *testing.T) {
	var n Nop
	require.PanicsWithValue(t, "disk full", func() {
		n.Err(1, "disk full")
	})
}

func TestNopErrxPanicsWithFormattedMessage(t *testing.T) {
	var n Nop
	require.PanicsWithValue(t, "line 7: bad token", func() {
		n.Errx(1, "line %d: %s", 7, "bad token")
	})
}
