// Package symbols provides the image-symbol lookup capability that
// expression evaluation and PC-to-name rendering both depend on,
// grounded on original_source/browser/browse.cpp's lookup_symbol call
// sites (ImageExecutionContext.lookup, goto_pc's symbol resolution).
// Tarmac traces carry no debug info of their own, so the browser reads
// symbols separately from an ELF image; this package keeps that
// concern isolated behind an interface, with a trivial in-memory table
// for tests and anything that hasn't wired a real image reader yet.
package symbols

// ImageLookup resolves names and addresses against whatever debug
// information the caller has available. Nothing in internal/ assumes
// there's a real ELF file backing it — cmd/ drivers decide whether to
// wire a real loader or run symbol-free.
type ImageLookup interface {
	// LookupSymbol resolves a symbol name to its address.
	LookupSymbol(name string) (addr uint64, ok bool)

	// NameForAddress finds the nearest preceding symbol covering addr,
	// returning its name and the offset from its start, for rendering
	// addresses as "func+0x10".
	NameForAddress(addr uint64) (name string, offset uint64, ok bool)
}

// Table is a trivial in-memory ImageLookup: an unordered name->address
// map, adequate for tests and for small synthetic images. It does not
// attempt size tracking, so NameForAddress matches the closest symbol
// at or below addr with no upper bound.
type Table struct {
	byName map[string]uint64
}

// NewTable builds a Table from a name->address map.
func NewTable(symbols map[string]uint64) *Table {
	byName := make(map[string]uint64, len(symbols))
	for name, addr := range symbols {
		byName[name] = addr
	}
	return &Table{byName: byName}
}

func (t *Table) LookupSymbol(name string) (uint64, bool) {
	addr, ok := t.byName[name]
	return addr, ok
}

func (t *Table) NameForAddress(addr uint64) (string, uint64, bool) {
	var bestName string
	var bestAddr uint64
	found := false
	for name, symAddr := range t.byName {
		if symAddr > addr {
			continue
		}
		if !found || symAddr > bestAddr {
			bestName, bestAddr, found = name, symAddr, true
		}
	}
	if !found {
		return "", 0, false
	}
	return bestName, addr - bestAddr, true
}
