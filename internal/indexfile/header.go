// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package indexfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bpowers/binidx/dtype"
)

const (
	fileFormatVersion = 1
	// HeaderSize is the length of the fixed-size prefix of an index file.
	HeaderSize = magicLen + 8 + 1 + 8 + 8

	magicLen       = 9
	versionOff     = magicLen
	dtypeOff       = versionOff + 8
	chunkCountOff  = dtypeOff + 1
	boundaryCntOff = chunkCountOff + 8
)

var magicIndexHeader = [magicLen]byte{'M', 'M', 'I', 'D', 'I', 'D', 'X', 0, 0}

// Header is the fixed-size prefix of an index file.
type Header struct {
	DType dtype.DType
	// ChunkCount is the number of entries in the sizes and pointers arrays.
	ChunkCount int64
	// BoundaryCount is the number of document boundaries, which is one more
	// than the number of documents.
	BoundaryCount int64
}

// DocumentCount returns the number of documents described by the header.
func (h Header) DocumentCount() int64 {
	return h.BoundaryCount - 1
}

// Len returns the total encoded length of an index file with this header.
func (h Header) Len() int64 {
	return HeaderSize + h.ChunkCount*(4+8) + h.BoundaryCount*8
}

func (h *Header) MarshalTo(buf []byte) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("buf too short: %d < %d", len(buf), HeaderSize)
	}
	copy(buf[:magicLen], magicIndexHeader[:])
	binary.LittleEndian.PutUint64(buf[versionOff:], fileFormatVersion)
	buf[dtypeOff] = uint8(h.DType)
	binary.LittleEndian.PutUint64(buf[chunkCountOff:], uint64(h.ChunkCount))
	binary.LittleEndian.PutUint64(buf[boundaryCntOff:], uint64(h.BoundaryCount))
	return nil
}

func (h *Header) WriteTo(w io.Writer) (n int64, err error) {
	var headerBuf [HeaderSize]byte
	if err := h.MarshalTo(headerBuf[:]); err != nil {
		return 0, err
	}
	written, err := w.Write(headerBuf[:])
	if err != nil {
		return int64(written), fmt.Errorf("write: %w", err)
	}
	return int64(written), nil
}

func (h *Header) UnmarshalBytes(headerBytes []byte) error {
	if len(headerBytes) < magicLen || !bytes.Equal(headerBytes[:magicLen], magicIndexHeader[:]) {
		return fmt.Errorf("%w: bad magic number on index file -- not an MMIDIDX index or corrupted", ErrFormat)
	}
	if len(headerBytes) < HeaderSize {
		return fmt.Errorf("%w: header too short: %d < %d", ErrCorrupt, len(headerBytes), HeaderSize)
	}

	version := binary.LittleEndian.Uint64(headerBytes[versionOff:])
	if version != fileFormatVersion {
		return fmt.Errorf("%w: this version of binidx can only read v%d index files; found v%d", ErrFormat, fileFormatVersion, version)
	}

	d, err := dtype.FromCode(headerBytes[dtypeOff])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFormat, err)
	}

	chunkCount := int64(binary.LittleEndian.Uint64(headerBytes[chunkCountOff:]))
	boundaryCount := int64(binary.LittleEndian.Uint64(headerBytes[boundaryCntOff:]))
	if chunkCount < 0 || chunkCount > maxEntries {
		return fmt.Errorf("%w: chunk count %d out of range", ErrCorrupt, chunkCount)
	}
	if boundaryCount < 1 || boundaryCount > maxEntries {
		return fmt.Errorf("%w: boundary count %d out of range", ErrCorrupt, boundaryCount)
	}

	h.DType = d
	h.ChunkCount = chunkCount
	h.BoundaryCount = boundaryCount
	return nil
}

// ReadHeader reads and validates only the fixed-size header of the index
// file at path.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer func() {
		_ = f.Close()
	}()

	var buf [HeaderSize]byte
	n, err := io.ReadFull(f, buf[:])
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return h, fmt.Errorf("io.ReadFull(%s): %w", path, err)
	}
	if err := h.UnmarshalBytes(buf[:n]); err != nil {
		return h, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}
