// Package pager maps fixed-size page IDs to byte ranges in a single backing
// file. It performs no caching of its own; every call is an OS read or write
// at offset pageID * PageSize.
package pager

import (
	"os"

	"github.com/pkg/errors"
)

const (
	PageSize = 4096 // 4 KB — matches OS page size

	// InvalidPage is the null page sentinel.
	InvalidPage = uint32(0xFFFFFFFF)
)

var (
	// ErrOpenFailed means the backing file could not be opened or created.
	ErrOpenFailed = errors.New("pager: open failed")

	// ErrIO covers short reads/writes and any other transfer failure.
	ErrIO = errors.New("pager: i/o error")
)

// Page is a raw 4 KB block read from or written to disk.
type Page [PageSize]byte

// Pager manages a file of fixed-size pages.
type Pager struct {
	file *os.File
}

// Open opens (or creates, mode 0644) a pager backed by the given file.
func Open(path string) (*Pager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrapf(ErrOpenFailed, "%s: %v", path, err)
	}
	return &Pager{file: f}, nil
}

// Size returns the current length of the backing file in bytes.
func (p *Pager) Size() (int64, error) {
	info, err := p.file.Stat()
	if err != nil {
		return 0, errors.Wrapf(ErrIO, "stat: %v", err)
	}
	return info.Size(), nil
}

// ReadPage fills pg with the page at the given ID.
func (p *Pager) ReadPage(id uint32, pg *Page) error {
	if _, err := p.file.ReadAt(pg[:], p.offset(id)); err != nil {
		return errors.Wrapf(ErrIO, "read page %d: %v", id, err)
	}
	return nil
}

// WritePage writes pg to the slot for the given ID.
func (p *Pager) WritePage(id uint32, pg *Page) error {
	if _, err := p.file.WriteAt(pg[:], p.offset(id)); err != nil {
		return errors.Wrapf(ErrIO, "write page %d: %v", id, err)
	}
	return nil
}

// Allocate appends one zero-filled page to the file and returns its ID.
// The file length must already be a positive multiple of PageSize.
func (p *Pager) Allocate() (uint32, error) {
	size, err := p.Size()
	if err != nil {
		return InvalidPage, err
	}
	if size <= 0 || size%PageSize != 0 {
		return InvalidPage, errors.Wrapf(ErrIO, "file length %d is not page-aligned", size)
	}
	id := uint32(size / PageSize)
	var blank Page
	if err := p.WritePage(id, &blank); err != nil {
		return InvalidPage, err
	}
	return id, nil
}

// Close closes the underlying file.
func (p *Pager) Close() error {
	if err := p.file.Close(); err != nil {
		return errors.Wrapf(ErrIO, "close: %v", err)
	}
	return nil
}

func (p *Pager) offset(id uint32) int64 {
	return int64(id) * PageSize
}
