// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package binidx

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"

	"github.com/bpowers/binidx/dtype"
	"github.com/bpowers/binidx/internal/datafile"
	"github.com/bpowers/binidx/internal/indexfile"
)

// Dataset is a read-only view of a finalized shard.  It is safe for
// concurrent use, and any number of Datasets may have the same shard open.
type Dataset struct {
	prefix   string
	strategy Strategy
	data     datafile.Reader
	idx      *indexfile.Index
	// idxMap backs idx under the Mapped strategy and is nil otherwise.
	idxMap *datafile.MmapReader
	// h and payloadLen stay usable after Close
	h          indexfile.Header
	payloadLen int64
	docs       *lru.Cache
	logger     *slog.Logger
	isClosed   atomic.Bool
}

// Open opens the shard at prefix, that is the pair prefix.bin and
// prefix.idx.  The index is fully validated and checked against the
// payload length before Open returns; on error nothing stays open.
func Open(prefix string, opts ...OpenOption) (*Dataset, error) {
	options := openOptions{
		strategy: Mapped,
		logger:   discardLogger(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if err := checkPair(prefix); err != nil {
		return nil, err
	}

	d := &Dataset{
		prefix:   prefix,
		strategy: options.strategy,
		logger:   options.logger,
	}
	if err := d.open(options); err != nil {
		d.release()
		return nil, err
	}

	d.logger.Debug("opened shard",
		"prefix", prefix,
		"strategy", d.strategy.String(),
		"dtype", d.idx.DType().String(),
		"documents", d.idx.DocumentCount(),
		"chunks", d.idx.ChunkCount(),
		"bytes", d.data.Len())
	return d, nil
}

func (d *Dataset) open(options openOptions) error {
	dataPath, indexPath := DataPath(d.prefix), IndexPath(d.prefix)

	var err error
	switch d.strategy {
	case Mapped:
		if d.idxMap, err = datafile.NewMmapReader(indexPath, datafile.Random); err != nil {
			return fmt.Errorf("datafile.NewMmapReader(%s): %w", indexPath, err)
		}
		if d.idx, err = indexfile.Decode(d.idxMap.Data()); err != nil {
			return translateError(fmt.Errorf("%s: %w", indexPath, err))
		}
		if d.data, err = datafile.NewMmapReader(dataPath, datafile.Random); err != nil {
			return fmt.Errorf("datafile.NewMmapReader(%s): %w", dataPath, err)
		}
	case Cached, Lazy:
		if d.idx, err = indexfile.ReadFile(indexPath); err != nil {
			return translateError(fmt.Errorf("indexfile.ReadFile: %w", err))
		}
		if d.strategy == Cached {
			d.data, err = datafile.NewCachedReader(dataPath)
		} else {
			d.data, err = datafile.NewFileReader(dataPath)
		}
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("binidx: unknown strategy %d", d.strategy)
	}

	if err := d.idx.CheckPayload(d.data.Len()); err != nil {
		return translateError(fmt.Errorf("%s: %w", dataPath, err))
	}
	d.h = d.idx.Header()
	d.payloadLen = d.idx.PayloadLen()

	if d.strategy == Lazy && options.cacheSize > 0 {
		if d.docs, err = lru.New(options.cacheSize); err != nil {
			return fmt.Errorf("lru.New: %w", err)
		}
	}
	return nil
}

func (d *Dataset) release() {
	if d.data != nil {
		_ = d.data.Close()
	}
	if d.idxMap != nil {
		_ = d.idxMap.Close()
	}
}

// Close releases the payload and index.  Tokens previously returned by the
// Mapped strategy must not be used afterwards.
func (d *Dataset) Close() error {
	if d.isClosed.Swap(true) {
		return nil
	}
	if d.docs != nil {
		d.docs.Purge()
	}
	var err error
	if d.data != nil {
		err = d.data.Close()
	}
	if d.idxMap != nil {
		if idxErr := d.idxMap.Close(); err == nil {
			err = idxErr
		}
	}
	return err
}

func (d *Dataset) Strategy() Strategy {
	return d.strategy
}

func (d *Dataset) DType() dtype.DType {
	return d.h.DType
}

// DocumentCount is the number of documents in the shard.
func (d *Dataset) DocumentCount() int {
	return int(d.h.DocumentCount())
}

// ChunkCount is the number of chunks in the shard.
func (d *Dataset) ChunkCount() int {
	return int(d.h.ChunkCount)
}

// TokenCount is the total number of tokens in the shard.
func (d *Dataset) TokenCount() int64 {
	return d.payloadLen / int64(d.h.DType.Size())
}

// Sizes returns a copy of the per-chunk token counts, or nil once the
// Dataset is closed.
func (d *Dataset) Sizes() []int32 {
	if d.isClosed.Load() {
		return nil
	}
	return d.idx.Sizes()
}

// Pointers returns a copy of the per-chunk byte offsets, or nil once the
// Dataset is closed.
func (d *Dataset) Pointers() []int64 {
	if d.isClosed.Load() {
		return nil
	}
	return d.idx.Pointers()
}

// DocumentBoundaries returns a copy of the document boundary array, where
// document i spans chunks [b[i], b[i+1]).  It returns nil once the Dataset
// is closed.
func (d *Dataset) DocumentBoundaries() []int64 {
	if d.isClosed.Load() {
		return nil
	}
	return d.idx.Boundaries()
}

func (d *Dataset) slice(off, n int64) (Tokens, error) {
	raw, err := d.data.Slice(off, n)
	if err != nil {
		return Tokens{}, translateError(fmt.Errorf("%s: %w", d.prefix, err))
	}
	return Tokens{dt: d.h.DType, raw: raw}, nil
}

// Document returns the tokens of document i, the concatenation of its
// chunks in order.
func (d *Dataset) Document(i int) (Tokens, error) {
	if d.isClosed.Load() {
		return Tokens{}, ErrClosed
	}
	if i < 0 || i >= d.DocumentCount() {
		return Tokens{}, fmt.Errorf("%w: document %d of %d", ErrIndexOutOfRange, i, d.DocumentCount())
	}
	if d.docs != nil {
		if cached, ok := d.docs.Get(i); ok {
			return cached.(Tokens), nil
		}
	}

	off, n := d.idx.DocumentSpan(int64(i))
	toks, err := d.slice(off, n)
	if err != nil {
		return Tokens{}, err
	}
	if d.docs != nil {
		// Lazy buffers are owned by us, so they are safe to hand out twice
		d.docs.Add(i, toks)
	}
	return toks, nil
}

// Chunk returns the tokens of chunk i, as appended by a single AddItem.
func (d *Dataset) Chunk(i int) (Tokens, error) {
	if d.isClosed.Load() {
		return Tokens{}, ErrClosed
	}
	if i < 0 || i >= d.ChunkCount() {
		return Tokens{}, fmt.Errorf("%w: chunk %d of %d", ErrIndexOutOfRange, i, d.ChunkCount())
	}
	off, n := d.idx.ChunkSpan(int64(i))
	return d.slice(off, n)
}

// DocumentRange returns length tokens of document i starting at token
// offset.  A negative length means through the end of the document.  Only
// the requested bytes are read, whatever the strategy.
func (d *Dataset) DocumentRange(i, offset, length int) (Tokens, error) {
	if d.isClosed.Load() {
		return Tokens{}, ErrClosed
	}
	if i < 0 || i >= d.DocumentCount() {
		return Tokens{}, fmt.Errorf("%w: document %d of %d", ErrIndexOutOfRange, i, d.DocumentCount())
	}
	if d.docs != nil {
		if cached, ok := d.docs.Get(i); ok {
			toks := cached.(Tokens)
			from, to, err := clampRange(toks.Len(), offset, length)
			if err != nil {
				return Tokens{}, fmt.Errorf("document %d: %w", i, err)
			}
			return toks.slice(from, to), nil
		}
	}

	itemSize := int64(d.h.DType.Size())
	off, n := d.idx.DocumentSpan(int64(i))
	from, to, err := clampRange(int(n/itemSize), offset, length)
	if err != nil {
		return Tokens{}, fmt.Errorf("document %d: %w", i, err)
	}
	return d.slice(off+int64(from)*itemSize, int64(to-from)*itemSize)
}

func clampRange(n, offset, length int) (from, to int, err error) {
	if length < 0 {
		length = n - offset
	}
	if offset < 0 || offset > n || length < 0 || offset+length > n {
		return 0, 0, fmt.Errorf("%w: tokens [%d, %d+%d) of %d", ErrIndexOutOfRange, offset, offset, length, n)
	}
	return offset, offset + length, nil
}
