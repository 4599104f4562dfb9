// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package datafile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/edsrzf/mmap-go"
)

// ErrClosed is returned when reading from a closed Reader.
var ErrClosed = errors.New("payload reader closed")

// Reader is the "backend" for a dataset -- it could be provided by an mmap
// backend, an in-memory copy of the file, or one that reads from disk using
// the pread(2) syscall.  All implementations are safe for concurrent use.
type Reader interface {
	// Slice returns the n bytes at off.  The result MUST NOT be written to.
	// Depending on the implementation it aliases shared memory or is a fresh
	// buffer owned by the caller.
	Slice(off, n int64) ([]byte, error)
	// Len is the length of the payload in bytes.
	Len() int64
	Close() error
}

func checkBounds(off, n, size int64) error {
	if off < 0 || n < 0 {
		return fmt.Errorf("invalid range off %d len %d", off, n)
	}
	if off+n > size {
		return fmt.Errorf("%w: off %d + len %d beyond bounds (%d)", ErrShortPayload, off, n, size)
	}
	return nil
}

// MmapReader serves slices directly out of a read-only shared mapping.
type MmapReader struct {
	m        mmap.MMap
	isClosed atomic.Bool
}

var _ Reader = &MmapReader{}

// NewMmapReader maps the file at path read-only.  advice is a
// madvise(2) hint; Random is appropriate for payloads, Sequential for
// files that are about to be scanned once.
func NewMmapReader(path string, advice Advice) (*MmapReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open(%s): %w", path, err)
	}
	// the mapping outlives the descriptor
	defer func() {
		_ = f.Close()
	}()

	stats, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("f.Stat: %w", err)
	}
	// mmap(2) rejects zero-length mappings, and an empty payload is valid
	if stats.Size() == 0 {
		return &MmapReader{}, nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap.Map(%s): %w", path, err)
	}
	if err := madvise(m, advice); err != nil {
		_ = m.Unmap()
		return nil, fmt.Errorf("madvise: %w", err)
	}

	return &MmapReader{m: m}, nil
}

// Data returns the whole mapping.
func (r *MmapReader) Data() []byte {
	return r.m
}

func (r *MmapReader) Len() int64 {
	return int64(len(r.m))
}

func (r *MmapReader) Slice(off, n int64) ([]byte, error) {
	if r.isClosed.Load() {
		return nil, ErrClosed
	}
	if err := checkBounds(off, n, int64(len(r.m))); err != nil {
		return nil, err
	}
	return r.m[off : off+n : off+n], nil
}

func (r *MmapReader) Close() error {
	if r.isClosed.Swap(true) {
		return nil
	}
	if r.m == nil {
		return nil
	}
	return r.m.Unmap()
}

// CachedReader holds the entire payload on the heap.
type CachedReader struct {
	buf      []byte
	isClosed atomic.Bool
}

var _ Reader = &CachedReader{}

// NewCachedReader reads the whole file at path into memory.
func NewCachedReader(path string) (*CachedReader, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile(%s): %w", path, err)
	}
	return &CachedReader{buf: buf}, nil
}

func (r *CachedReader) Len() int64 {
	return int64(len(r.buf))
}

func (r *CachedReader) Slice(off, n int64) ([]byte, error) {
	if r.isClosed.Load() {
		return nil, ErrClosed
	}
	if err := checkBounds(off, n, int64(len(r.buf))); err != nil {
		return nil, err
	}
	return r.buf[off : off+n : off+n], nil
}

func (r *CachedReader) Close() error {
	// buf stays readable by Slice calls already past the isClosed check
	r.isClosed.Store(true)
	return nil
}

// FileReader keeps only an open descriptor and preads exactly the
// requested range on every call.
type FileReader struct {
	f        *os.File
	size     int64
	isClosed atomic.Bool
}

var _ Reader = &FileReader{}

func NewFileReader(path string) (*FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open(%s): %w", path, err)
	}

	stats, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("f.Stat: %w", err)
	}
	if err := fadviseRandom(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("fadvise: %w", err)
	}

	return &FileReader{
		f:    f,
		size: stats.Size(),
	}, nil
}

// Len is the size of the file when it was opened.
func (r *FileReader) Len() int64 {
	return r.size
}

func (r *FileReader) Slice(off, n int64) ([]byte, error) {
	if r.isClosed.Load() {
		return nil, ErrClosed
	}
	if err := checkBounds(off, n, r.size); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}

	read, err := r.f.ReadAt(buf, off)
	if errors.Is(err, io.EOF) || (err == nil && int64(read) != n) {
		// the file shrank underneath us
		return nil, fmt.Errorf("%w: short read of %d ReadAt(%d, len: %d)", ErrShortPayload, read, off, n)
	} else if err != nil {
		return nil, fmt.Errorf("f.ReadAt(%d, len: %d): %w", off, n, err)
	}
	return buf, nil
}

func (r *FileReader) Close() error {
	if r.isClosed.Swap(true) {
		return nil
	}
	return r.f.Close()
}
