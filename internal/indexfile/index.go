// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package indexfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/bpowers/binidx/dtype"
)

const (
	// maxEntries bounds the array lengths we are willing to decode, so that
	// offset arithmetic on a hostile header can't overflow int64.
	maxEntries = 1 << 48
)

var (
	// ErrFormat means the file isn't an index file we know how to read.
	ErrFormat = errors.New("unrecognized index format")
	// ErrCorrupt means the file has the right shape but inconsistent contents.
	ErrCorrupt = errors.New("index corrupted")
)

// int32Slice is a read-only view into a byte array as if it was []int32
type int32Slice []byte

// int64Slice is a read-only view into a byte array as if it was []int64
type int64Slice []byte

func (s int32Slice) Get(off int64) int32 {
	return int32(binary.LittleEndian.Uint32(s[off*4 : off*4+4]))
}

func (s int64Slice) Get(off int64) int64 {
	return int64(binary.LittleEndian.Uint64(s[off*8 : off*8+8]))
}

// Index is a decoded, validated index file.  The arrays are views into the
// byte slice passed to Decode; when that slice is backed by an mmap the
// Index must not be used after the mapping is released.
type Index struct {
	h          Header
	itemSize   int64
	sizes      int32Slice
	pointers   int64Slice
	boundaries int64Slice
}

// Decode validates b as a complete index file and returns a view over it.
func Decode(b []byte) (*Index, error) {
	var h Header
	if err := h.UnmarshalBytes(b); err != nil {
		return nil, err
	}
	if int64(len(b)) != h.Len() {
		return nil, fmt.Errorf("%w: index is %d bytes, but header with %d chunks and %d boundaries implies %d",
			ErrCorrupt, len(b), h.ChunkCount, h.BoundaryCount, h.Len())
	}

	sizesOff := int64(HeaderSize)
	pointersOff := sizesOff + 4*h.ChunkCount
	boundariesOff := pointersOff + 8*h.ChunkCount

	idx := &Index{
		h:          h,
		itemSize:   int64(h.DType.Size()),
		sizes:      int32Slice(b[sizesOff:pointersOff]),
		pointers:   int64Slice(b[pointersOff:boundariesOff]),
		boundaries: int64Slice(b[boundariesOff:]),
	}
	if err := idx.validate(); err != nil {
		return nil, err
	}
	return idx, nil
}

// ReadFile reads the whole index file at path onto the heap and decodes it.
func ReadFile(path string) (*Index, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	idx, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return idx, nil
}

func (x *Index) validate() error {
	var expected int64
	for i := int64(0); i < x.h.ChunkCount; i++ {
		size := x.sizes.Get(i)
		if size < 0 {
			return fmt.Errorf("%w: chunk %d has negative size %d", ErrCorrupt, i, size)
		}
		if ptr := x.pointers.Get(i); ptr != expected {
			return fmt.Errorf("%w: chunk %d at offset %d, expected %d", ErrCorrupt, i, ptr, expected)
		}
		expected += int64(size) * x.itemSize
	}

	prev := int64(0)
	for i := int64(0); i < x.h.BoundaryCount; i++ {
		b := x.boundaries.Get(i)
		if b < 0 || b > x.h.ChunkCount {
			return fmt.Errorf("%w: document boundary %d (%d) outside [0, %d]", ErrCorrupt, i, b, x.h.ChunkCount)
		}
		if b < prev {
			return fmt.Errorf("%w: document boundary %d (%d) decreases from %d", ErrCorrupt, i, b, prev)
		}
		prev = b
	}
	if !x.Grouped() {
		return fmt.Errorf("%w: document boundaries [%d, %d] don't cover chunks [0, %d]",
			ErrCorrupt, x.boundaries.Get(0), prev, x.h.ChunkCount)
	}
	return nil
}

func (x *Index) Header() Header {
	return x.h
}

func (x *Index) DType() dtype.DType {
	return x.h.DType
}

func (x *Index) ChunkCount() int64 {
	return x.h.ChunkCount
}

func (x *Index) DocumentCount() int64 {
	return x.h.DocumentCount()
}

func (x *Index) Size(i int64) int32 {
	return x.sizes.Get(i)
}

func (x *Index) Pointer(i int64) int64 {
	return x.pointers.Get(i)
}

func (x *Index) Boundary(i int64) int64 {
	return x.boundaries.Get(i)
}

// Grouped reports whether every chunk belongs to some document, which is
// always true for indexes written by Builder.
func (x *Index) Grouped() bool {
	return x.boundaries.Get(0) == 0 && x.boundaries.Get(x.h.BoundaryCount-1) == x.h.ChunkCount
}

// PayloadLen is the exact length in bytes the payload file must have.
func (x *Index) PayloadLen() int64 {
	if x.h.ChunkCount == 0 {
		return 0
	}
	last := x.h.ChunkCount - 1
	return x.pointers.Get(last) + int64(x.sizes.Get(last))*x.itemSize
}

// CheckPayload verifies a payload of payloadLen bytes matches this index.
func (x *Index) CheckPayload(payloadLen int64) error {
	if want := x.PayloadLen(); payloadLen != want {
		return fmt.Errorf("%w: payload is %d bytes, index expects %d", ErrCorrupt, payloadLen, want)
	}
	return nil
}

// ChunkSpan returns the byte offset and length of chunk i in the payload.
func (x *Index) ChunkSpan(i int64) (off, n int64) {
	return x.pointers.Get(i), int64(x.sizes.Get(i)) * x.itemSize
}

// DocumentChunks returns the half-open range of chunks making up document i.
func (x *Index) DocumentChunks(i int64) (first, last int64) {
	return x.boundaries.Get(i), x.boundaries.Get(i + 1)
}

// DocumentSpan returns the byte offset and length of document i in the
// payload.  Chunks of a document are contiguous, so this is one range.
func (x *Index) DocumentSpan(i int64) (off, n int64) {
	first, last := x.DocumentChunks(i)
	if first == last {
		return 0, 0
	}
	off = x.pointers.Get(first)
	endOff, endLen := x.ChunkSpan(last - 1)
	return off, endOff + endLen - off
}

// Sizes copies the chunk size array.
func (x *Index) Sizes() []int32 {
	out := make([]int32, x.h.ChunkCount)
	for i := range out {
		out[i] = x.sizes.Get(int64(i))
	}
	return out
}

// Pointers copies the chunk offset array.
func (x *Index) Pointers() []int64 {
	out := make([]int64, x.h.ChunkCount)
	for i := range out {
		out[i] = x.pointers.Get(int64(i))
	}
	return out
}

// Boundaries copies the document boundary array.
func (x *Index) Boundaries() []int64 {
	out := make([]int64, x.h.BoundaryCount)
	for i := range out {
		out[i] = x.boundaries.Get(int64(i))
	}
	return out
}
