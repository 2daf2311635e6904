package arena

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// growthChunk is the minimum amount, in bytes, the backing file is grown by
// on any mapping miss; avoids a remap on every small allocation.
const growthChunk = 4 << 20 // 4 MiB

// DiskArena is an Arena backed by a memory-mapped file. Growth preserves
// the mapping's prior contents and every previously-handed-out Offset, by
// ftruncate-ing the file and re-mmap-ing it — the Go analogue of the
// original's MMapFile::resize (original_source/include/libtarmac/disktree.hh).
type DiskArena struct {
	file     *os.File
	mapping  []byte
	fileSize int64
	used     int64
	writable bool
}

// NewDisk opens (or creates, if writable) filename and memory-maps it.
// A fresh file starts with 8 bytes of used space, matching MemArena's
// reserved null-offset padding.
func NewDisk(filename string, writable bool) (*DiskArena, error) {
	flags := os.O_RDONLY
	if writable {
		flags = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(filename, flags, 0644)
	if err != nil {
		return nil, errors.Wrapf(ErrGrowthFailed, "open %s: %v", filename, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(ErrGrowthFailed, "stat %s: %v", filename, err)
	}

	d := &DiskArena{file: f, writable: writable}
	size := fi.Size()
	used := size
	if writable && size < 8 {
		size = growthChunk
		used = 8
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, errors.Wrapf(ErrGrowthFailed, "truncate %s: %v", filename, err)
		}
	}
	d.fileSize = size
	d.used = used
	if err := d.remap(); err != nil {
		f.Close()
		return nil, err
	}
	return d, nil
}

func (d *DiskArena) remap() error {
	if d.mapping != nil {
		if err := unix.Munmap(d.mapping); err != nil {
			return errors.Wrapf(ErrGrowthFailed, "munmap: %v", err)
		}
		d.mapping = nil
	}
	prot := unix.PROT_READ
	if d.writable {
		prot |= unix.PROT_WRITE
	}
	m, err := unix.Mmap(int(d.file.Fd()), 0, int(d.fileSize), prot, unix.MAP_SHARED)
	if err != nil {
		return errors.Wrapf(ErrGrowthFailed, "mmap: %v", err)
	}
	d.mapping = m
	return nil
}

func (d *DiskArena) Alloc(size int) (Offset, error) {
	if !d.writable {
		return Null, errors.New("arena: Alloc on read-only disk arena")
	}
	off := Offset(d.used)
	need := d.used + int64(size)
	if need > d.fileSize {
		newSize := d.fileSize
		for newSize < need {
			newSize += growthChunk
		}
		if err := d.file.Truncate(newSize); err != nil {
			return Null, errors.Wrapf(ErrGrowthFailed, "grow to %d: %v", newSize, err)
		}
		d.fileSize = newSize
		if err := d.remap(); err != nil {
			return Null, err
		}
	}
	d.used = need
	return off, nil
}

func (d *DiskArena) Bytes(off Offset, size int) []byte {
	return d.mapping[off : int64(off)+int64(size)]
}

func (d *DiskArena) CurrOffset() Offset {
	return Offset(d.used)
}

func (d *DiskArena) Close() error {
	var err error
	if d.mapping != nil {
		if e := unix.Munmap(d.mapping); e != nil {
			err = errors.Wrap(e, "munmap")
		}
		d.mapping = nil
	}
	if d.writable && err == nil {
		if e := d.file.Truncate(d.used); e != nil {
			err = errors.Wrap(e, "final truncate")
		}
	}
	if e := d.file.Close(); e != nil && err == nil {
		err = errors.Wrap(e, "close")
	}
	return err
}
