package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/tarmac-trace/ttu/internal/arena"
	"github.com/tarmac-trace/ttu/internal/indexer"
	"github.com/tarmac-trace/ttu/internal/parser"
	"github.com/tarmac-trace/ttu/internal/reporter"
)

func init() {
	cli.OsExiter = func(int) {}
}

func buildIndexFile(t *testing.T, path string) {
	t.Helper()
	ar, err := arena.NewDisk(path, true)
	require.NoError(t, err)

	headerOff, err := indexer.ReserveHeader(ar)
	require.NoError(t, err)

	ix := indexer.New(ar, false, reporter.Nop{})
	p := parser.NewLineParser(false, ix)

	lines := []string{
		"1 IT 00001000 e1a00000 A USR : NOP",
		"1 R r0 000000ff",
		"2 IT 00001004 e1a00000 A USR : NOP",
	}
	for i, line := range lines {
		ix.BeginLine(uint32(i+1), uint64(i*40))
		require.NoError(t, p.Parse(line))
	}
	h := ix.Finalize("trace.tarmac")
	indexer.WriteHeader(ar, headerOff, h)
	require.NoError(t, ar.Close())
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	require.NoError(t, w.Close())
	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String()
}

func TestBufstartAndBufendQueries(t *testing.T) {
	dir := t.TempDir()
	indexFile := filepath.Join(dir, "trace.tix")
	buildIndexFile(t, indexFile)

	out := captureStdout(t, func() {
		err := newApp().Run([]string{"ttubrowse", indexFile, "bufstart"})
		require.NoError(t, err)
	})
	require.Contains(t, out, "lines 1-3")
}

func TestRegQueryReadsRegisterAtLine(t *testing.T) {
	dir := t.TempDir()
	indexFile := filepath.Join(dir, "trace.tix")
	buildIndexFile(t, indexFile)

	out := captureStdout(t, func() {
		err := newApp().Run([]string{"ttubrowse", "--at-line", "1", indexFile, "reg", "r0"})
		require.NoError(t, err)
	})
	require.Contains(t, out, "0xff")
}

func TestPcQueryFindsExecutedAddress(t *testing.T) {
	dir := t.TempDir()
	indexFile := filepath.Join(dir, "trace.tix")
	buildIndexFile(t, indexFile)

	out := captureStdout(t, func() {
		err := newApp().Run([]string{"ttubrowse", indexFile, "pc", "0x1000"})
		require.NoError(t, err)
	})
	require.Contains(t, out, "1\n")
}

func TestUnrecognisedCommandIsAnError(t *testing.T) {
	dir := t.TempDir()
	indexFile := filepath.Join(dir, "trace.tix")
	buildIndexFile(t, indexFile)

	err := newApp().Run([]string{"ttubrowse", indexFile, "bogus"})
	require.Error(t, err)
}
