// Command ttuindex builds a persistent trace index from a tarmac trace
// log, grounded on the teacher's main.go directory-driven test-case
// runner (here restructured as a single cli.Command, per
// other_examples/lotus-shed/dagspliter's cli.App shape) rather than
// the teacher's bespoke test-case harness.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/tarmac-trace/ttu/internal/arena"
	"github.com/tarmac-trace/ttu/internal/config"
	"github.com/tarmac-trace/ttu/internal/indexer"
	"github.com/tarmac-trace/ttu/internal/parser"
	"github.com/tarmac-trace/ttu/internal/reporter"
)

func newApp() *cli.App {
	return &cli.App{
		Name:      "ttuindex",
		Usage:     "build a navigable index from a tarmac trace log",
		ArgsUsage: "<trace-file> <index-file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "big-endian",
				Usage: "the traced program is big-endian",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a TOML IndexConfig file",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "suppress progress and warning output",
			},
		},
		Action: run,
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ttuindex:", err)
		os.Exit(1)
	}
}

func run(cctx *cli.Context) error {
	if cctx.Args().Len() != 2 {
		return cli.Exit("expected 2 args: trace-file and index-file", 1)
	}
	traceFilename := cctx.Args().Get(0)
	indexFilename := cctx.Args().Get(1)

	cfg := config.DefaultIndexConfig()
	if path := cctx.String("config"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("reading config: %v", err), 1)
		}
		cfg, err = config.LoadIndexConfig(data)
		if err != nil {
			return cli.Exit(fmt.Sprintf("parsing config: %v", err), 1)
		}
	}
	bigend := cfg.BigEndian || cctx.Bool("big-endian")

	var rep reporter.Reporter
	if cctx.Bool("quiet") {
		rep = reporter.Nop{}
	} else {
		cliRep := reporter.NewCLI()
		cliRep.Progress = cfg.ProgressBar
		cliRep.Verbose = cfg.Verbose
		rep = cliRep
	}

	trace, err := os.Open(traceFilename)
	if err != nil {
		return cli.Exit(fmt.Sprintf("opening trace: %v", err), 1)
	}
	defer trace.Close()

	fi, err := trace.Stat()
	if err != nil {
		return cli.Exit(fmt.Sprintf("statting trace: %v", err), 1)
	}

	ar, err := arena.NewDisk(indexFilename, true)
	if err != nil {
		rep.Err(1, "creating index file: %v", err)
	}

	headerOff, err := indexer.ReserveHeader(ar)
	if err != nil {
		rep.Err(1, "reserving index header: %v", err)
	}

	ix := indexer.New(ar, bigend, rep)
	lp := parser.NewLineParser(bigend, ix)

	rep.IndexingStart(fi.Size())

	scanner := bufio.NewScanner(trace)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	var byteOffset uint64
	var lineno uint32
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		ix.BeginLine(lineno, byteOffset)
		if err := lp.Parse(line); err != nil {
			rep.IndexingWarning(traceFilename, lineno, err.Error())
		}
		byteOffset += uint64(len(line)) + 1
		rep.IndexingProgress(int64(byteOffset))
	}
	if err := scanner.Err(); err != nil {
		rep.Err(1, "reading trace: %v", err)
	}

	h := ix.Finalize(traceFilename)
	indexer.WriteHeader(ar, headerOff, h)

	if err := ar.Close(); err != nil {
		rep.Err(1, "closing index file: %v", err)
	}

	rep.IndexingDone()
	return nil
}
