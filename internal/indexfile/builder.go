// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package indexfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/bpowers/binidx/dtype"
)

const defaultBufferSize = 4 * 1024 * 1024

var errChunkTooBig = errors.New("chunks are limited to 2^31-1 tokens")

// Builder accumulates index metadata in memory while a payload is being
// written, and serializes it once the payload is complete.
type Builder struct {
	dt         dtype.DType
	itemSize   int64
	sizes      []int32
	pointers   []int64
	boundaries []int64
	payloadLen int64
}

// NewBuilder returns an empty index for tokens of type dt.
func NewBuilder(dt dtype.DType) *Builder {
	return &Builder{
		dt:         dt,
		itemSize:   int64(dt.Size()),
		boundaries: []int64{0},
	}
}

// AddChunk records a chunk of n tokens starting at the current end of the
// payload.
func (b *Builder) AddChunk(n int) error {
	if n < 0 || n > math.MaxInt32 {
		return fmt.Errorf("%w: got %d", errChunkTooBig, n)
	}
	b.sizes = append(b.sizes, int32(n))
	b.pointers = append(b.pointers, b.payloadLen)
	b.payloadLen += int64(n) * b.itemSize
	return nil
}

// EndDocument closes the chunks added since the previous boundary as one
// document.  With no chunks added the document is empty.
func (b *Builder) EndDocument() {
	b.boundaries = append(b.boundaries, int64(len(b.sizes)))
}

// Pending is the number of chunks added since the last document boundary.
func (b *Builder) Pending() int {
	return len(b.sizes) - int(b.boundaries[len(b.boundaries)-1])
}

// Extend appends every chunk and document of other after the ones already
// in b, rebasing offsets onto the end of the current payload.  other's
// payload must be appended to b's payload byte-for-byte by the caller.
func (b *Builder) Extend(other *Index) error {
	if other.DType() != b.dt {
		return fmt.Errorf("Extend: dtype %s != %s", other.DType(), b.dt)
	}
	if !other.Grouped() {
		return errors.New("Extend: other index has chunks outside of any document")
	}
	chunkBase := int64(len(b.sizes))
	payloadBase := b.payloadLen
	for i := int64(0); i < other.ChunkCount(); i++ {
		b.sizes = append(b.sizes, other.Size(i))
		b.pointers = append(b.pointers, payloadBase+other.Pointer(i))
	}
	b.payloadLen = payloadBase + other.PayloadLen()
	// the leading boundary of other is the trailing boundary of b
	for i := int64(1); i < other.Header().BoundaryCount; i++ {
		b.boundaries = append(b.boundaries, chunkBase+other.Boundary(i))
	}
	return nil
}

func (b *Builder) DType() dtype.DType {
	return b.dt
}

func (b *Builder) ChunkCount() int {
	return len(b.sizes)
}

func (b *Builder) DocumentCount() int {
	return len(b.boundaries) - 1
}

// PayloadLen is the length the payload file must have for this index.
func (b *Builder) PayloadLen() int64 {
	return b.payloadLen
}

func (b *Builder) Header() Header {
	return Header{
		DType:         b.dt,
		ChunkCount:    int64(len(b.sizes)),
		BoundaryCount: int64(len(b.boundaries)),
	}
}

// Write serializes the index to w.
func (b *Builder) Write(w io.Writer) error {
	bw := bufio.NewWriterSize(w, defaultBufferSize)

	h := b.Header()
	if _, err := h.WriteTo(bw); err != nil {
		return fmt.Errorf("Header.WriteTo: %w", err)
	}

	var buf [8]byte
	for _, size := range b.sizes {
		binary.LittleEndian.PutUint32(buf[:4], uint32(size))
		if _, err := bw.Write(buf[:4]); err != nil {
			return err
		}
	}
	for _, ptr := range b.pointers {
		binary.LittleEndian.PutUint64(buf[:], uint64(ptr))
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
	}
	for _, boundary := range b.boundaries {
		binary.LittleEndian.PutUint64(buf[:], uint64(boundary))
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("bufio.Flush: %w", err)
	}
	return nil
}
