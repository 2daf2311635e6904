package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/tarmac-trace/ttu/internal/arena"
	"github.com/tarmac-trace/ttu/internal/indexer"
)

func init() {
	// cli.Exit's default handler calls os.Exit, which would tear down
	// the test binary; tests only care about the returned error.
	cli.OsExiter = func(int) {}
}

func TestBuildingIndexProducesACompleteHeader(t *testing.T) {
	dir := t.TempDir()
	traceFile := filepath.Join(dir, "trace.tarmac")
	indexFile := filepath.Join(dir, "trace.tix")

	trace := "1 IT 00001000 e1a00000 A USR : NOP\n" +
		"2 IT 00001004 e1a00000 A USR : NOP\n"
	require.NoError(t, os.WriteFile(traceFile, []byte(trace), 0644))

	err := newApp().Run([]string{"ttuindex", "--quiet", traceFile, indexFile})
	require.NoError(t, err)

	ar, err := arena.NewDisk(indexFile, false)
	require.NoError(t, err)
	defer ar.Close()

	h, ok := indexer.ReadHeader(ar, indexer.HeaderOffset)
	require.True(t, ok)
	require.True(t, h.Complete)
	require.NotEqual(t, arena.Null, h.SeqRoot)
}

func TestRequiresExactlyTwoArgs(t *testing.T) {
	err := newApp().Run([]string{"ttuindex", "onlyonearg"})
	require.Error(t, err)
}
