// Command ttubrowse runs headless queries against an index built by
// ttuindex: the interactive curses-style browser
// (original_source/browser/browse.cpp) is out of scope per spec.md's
// Non-goals, but the query surface underneath it — node/time/pc lookup,
// register and memory reads, expression evaluation — is exercised here
// one query per invocation, grounded on the same main.go directory-
// driven test-case runner cmd/ttuindex is, restructured as a cli.App
// with one subcommand per navigator/fold operation.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/tarmac-trace/ttu/internal/arena"
	"github.com/tarmac-trace/ttu/internal/expr"
	"github.com/tarmac-trace/ttu/internal/fold"
	"github.com/tarmac-trace/ttu/internal/indexer"
	"github.com/tarmac-trace/ttu/internal/navigator"
	"github.com/tarmac-trace/ttu/internal/registers"
	"github.com/tarmac-trace/ttu/internal/symbols"
)

func newApp() *cli.App {
	return &cli.App{
		Name:      "ttubrowse",
		Usage:     "run a single headless query against a trace index",
		ArgsUsage: "<index-file> <command> [args...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "symbols",
				Usage: "path to a \"name=hexaddr\" symbol table file",
			},
			&cli.Uint64Flag{
				Name:  "at-line",
				Usage: "trace line whose register/memory state a query should use",
				Value: 1,
			},
		},
		Action: run,
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ttubrowse:", err)
		os.Exit(1)
	}
}

// session wraps an open Navigator as an expr.ExecutionContext, so
// query arguments can be arithmetic expressions over registers and
// symbols instead of bare hex literals (e.g. "sym::main+0x10").
type session struct {
	nav    *navigator.Navigator
	node   indexer.SeqOrderPayload
	syms   symbols.ImageLookup
	arch64 bool
}

func (s *session) Lookup(name string, ctx expr.Context) (uint64, bool) {
	switch ctx {
	case expr.ContextRegister:
		width := 32
		if s.arch64 {
			width = 64
		}
		reg, err := registers.LookupName(name, width)
		if err != nil {
			return 0, false
		}
		iflags := s.nav.GetIFlags(s.node.MemoryRoot)
		return s.nav.GetRegValue(s.node.MemoryRoot, reg, iflags)
	case expr.ContextSymbol:
		return s.syms.LookupSymbol(name)
	}
	return 0, false
}

func (s *session) eval(input string) (uint64, error) {
	e, err := expr.Parse(input)
	if err != nil {
		return 0, err
	}
	return e.Evaluate(s)
}

func loadSymbols(path string) (symbols.ImageLookup, error) {
	if path == "" {
		return symbols.NewTable(nil), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tbl := make(map[string]uint64)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, hexaddr, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		addr, err := strconv.ParseUint(strings.TrimSpace(hexaddr), 0, 64)
		if err != nil {
			return nil, fmt.Errorf("symbol file %s: %q: %w", path, line, err)
		}
		tbl[strings.TrimSpace(name)] = addr
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return symbols.NewTable(tbl), nil
}

func run(cctx *cli.Context) error {
	if cctx.Args().Len() < 2 {
		return cli.Exit("expected at least 2 args: index-file and command", 1)
	}
	indexFilename := cctx.Args().Get(0)
	command := cctx.Args().Get(1)
	rest := cctx.Args().Slice()[2:]

	ar, err := arena.NewDisk(indexFilename, false)
	if err != nil {
		return cli.Exit(fmt.Sprintf("opening index: %v", err), 1)
	}
	defer ar.Close()

	h, ok := indexer.ReadHeader(ar, indexer.HeaderOffset)
	if !ok {
		return cli.Exit("index file has an unrecognised header", 1)
	}
	if !h.Complete {
		return cli.Exit("index file is incomplete (a previous indexing run did not finish)", 1)
	}

	nav := navigator.Open(ar, h)

	syms, err := loadSymbols(cctx.String("symbols"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("loading symbols: %v", err), 1)
	}

	sess := &session{nav: nav, syms: syms, arch64: h.AArch64Used}
	if n, ok := nav.NodeAtLine(uint32(cctx.Uint64("at-line"))); ok {
		sess.node = n
	}

	switch command {
	case "bufstart", "bufend":
		n, ok := nav.FindBufferLimit(command == "bufend")
		if !ok {
			return cli.Exit("empty index", 1)
		}
		printNode(n)

	case "line":
		if len(rest) != 1 {
			return cli.Exit("usage: line <expr>", 1)
		}
		line, err := sess.eval(rest[0])
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		n, ok := nav.NodeAtLine(uint32(line))
		if !ok {
			return cli.Exit("no node at that line", 1)
		}
		printNode(n)

	case "time":
		if len(rest) != 1 {
			return cli.Exit("usage: time <expr>", 1)
		}
		t, err := sess.eval(rest[0])
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		n, ok := nav.NodeAtTime(t)
		if !ok {
			return cli.Exit("no node at that time", 1)
		}
		printNode(n)

	case "pc":
		if len(rest) != 1 {
			return cli.Exit("usage: pc <expr>", 1)
		}
		pc, err := sess.eval(rest[0])
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		line, ok := nav.ByPC(pc)
		if !ok {
			return cli.Exit("pc never executed", 1)
		}
		fmt.Println(line)

	case "reg":
		if len(rest) != 1 {
			return cli.Exit("usage: reg <name>", 1)
		}
		v, err := sess.eval("reg::" + rest[0])
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		fmt.Printf("0x%x\n", v)

	case "mem":
		if len(rest) != 2 {
			return cli.Exit("usage: mem <addr-expr> <size-expr>", 1)
		}
		addr, err := sess.eval(rest[0])
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		size, err := sess.eval(rest[1])
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		bytes, ok := nav.GetMemBytes(sess.node.MemoryRoot, 'm', addr, int(size))
		if !ok {
			return cli.Exit("memory undefined at that address", 1)
		}
		for _, b := range bytes {
			fmt.Printf("%02x", b)
		}
		fmt.Println()

	case "fold":
		if len(rest) != 4 {
			return cli.Exit("usage: fold <first> <last> <mindepth> <maxdepth>", 1)
		}
		last, ok := nav.FindBufferLimit(true)
		if !ok {
			return cli.Exit("empty index", 1)
		}
		v := fold.NewView(nav, last.LastLine-1)
		first, err1 := sess.eval(rest[0])
		lastLine, err2 := sess.eval(rest[1])
		mindepth, err3 := sess.eval(rest[2])
		maxdepth, err4 := sess.eval(rest[3])
		for _, err := range []error{err1, err2, err3, err4} {
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
		}
		v.SetFoldState(uint32(first), uint32(lastLine), int32(mindepth), int32(maxdepth))
		fmt.Printf("visible(%d) = %d\n", first, v.PhysicalToVisibleLine(uint32(first)))

	default:
		return cli.Exit(fmt.Sprintf("unrecognised command %q", command), 1)
	}

	return nil
}

func printNode(n indexer.SeqOrderPayload) {
	fmt.Printf("lines %d-%d depth=%d time=%d\n",
		n.FirstLine, n.LastLine, n.CallDepth, n.ModTime)
}
