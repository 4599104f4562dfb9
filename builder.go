// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package binidx

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"log/slog"

	"github.com/bpowers/binidx/dtype"
	"github.com/bpowers/binidx/internal/datafile"
	"github.com/bpowers/binidx/internal/indexfile"
)

var errChunkTooBig = errors.New("binidx: chunks are limited to 2^31-1 tokens")

// Builder is used to construct an immutable shard from a stream of
// tokenized documents.  A Builder is not safe for concurrent use; parallel
// builds use one Builder per shard and Merge the results.
type Builder struct {
	resultPath string
	dataFile   *os.File
	payload    *datafile.Writer
	index      *indexfile.Builder
	scratch    []byte
	logger     *slog.Logger
	done       bool
}

// NewBuilder creates a Builder whose payload will end up at dataFilePath.
// All tokens are stored as dt.  Nothing is visible at dataFilePath until
// Finalize succeeds.
func NewBuilder(dataFilePath string, dt dtype.DType, opts ...BuilderOption) (*Builder, error) {
	if !dt.Valid() {
		return nil, fmt.Errorf("binidx: %w: %s", dtype.ErrUnknown, dt)
	}
	options := builderOptions{
		logger: discardLogger(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	// we want to write to a new file and do an atomic rename when we're done on disk
	dataFilePath, err := filepath.Abs(dataFilePath)
	if err != nil {
		return nil, fmt.Errorf("filepath.Abs: %w", err)
	}
	dir := filepath.Dir(dataFilePath)
	dataFile, err := os.CreateTemp(dir, "binidx-builder.*.bin")
	if err != nil {
		return nil, fmt.Errorf("CreateTemp failed (may need permissions for dir %q containing dataFile): %w", dir, err)
	}
	return &Builder{
		resultPath: dataFilePath,
		dataFile:   dataFile,
		payload:    datafile.NewWriter(dataFile, options.bufferSize),
		index:      indexfile.NewBuilder(dt),
		logger:     options.logger,
	}, nil
}

func (b *Builder) DType() dtype.DType {
	return b.index.DType()
}

// DocumentCount is the number of documents closed so far.
func (b *Builder) DocumentCount() int {
	return b.index.DocumentCount()
}

// ChunkCount is the number of chunks added so far, including chunks of
// the currently open document.
func (b *Builder) ChunkCount() int {
	return b.index.ChunkCount()
}

// PayloadLen is the number of payload bytes written so far.
func (b *Builder) PayloadLen() int64 {
	return b.payload.Len()
}

// AddItem appends tokens as one chunk of the current document.  A token
// that doesn't fit the dtype is rejected before anything is written.
func (b *Builder) AddItem(tokens []uint64) error {
	if b.done {
		return ErrFinalized
	}
	if len(tokens) > math.MaxInt32 {
		return fmt.Errorf("%w: got %d", errChunkTooBig, len(tokens))
	}
	raw, err := b.index.DType().Append(b.scratch[:0], tokens)
	if err != nil {
		return fmt.Errorf("binidx: AddItem: %w", err)
	}
	b.scratch = raw
	if _, err := b.payload.Append(raw); err != nil {
		return fmt.Errorf("payload.Append: %w", err)
	}
	if err := b.index.AddChunk(len(tokens)); err != nil {
		return fmt.Errorf("index.AddChunk: %w", err)
	}
	return nil
}

// EndDocument closes the chunks added since the previous EndDocument as one
// document.  Calling it with no chunks added records an empty document.
func (b *Builder) EndDocument() error {
	if b.done {
		return ErrFinalized
	}
	b.index.EndDocument()
	return nil
}

// MergeFile appends every document of the finalized shard at prefix after
// the documents already in b, by copying its payload bytes and rebasing its
// index.  The dtypes must match; that and the shard's integrity are checked
// before anything is written.
func (b *Builder) MergeFile(prefix string) error {
	if b.done {
		return ErrFinalized
	}
	if b.index.Pending() > 0 {
		return fmt.Errorf("%w: %d pending chunks before MergeFile(%s)", ErrDocumentOpen, b.index.Pending(), prefix)
	}
	if err := checkPair(prefix); err != nil {
		return err
	}

	dataPath, indexPath := DataPath(prefix), IndexPath(prefix)
	other, err := indexfile.ReadFile(indexPath)
	if err != nil {
		return translateError(fmt.Errorf("indexfile.ReadFile: %w", err))
	}
	if other.DType() != b.DType() {
		return &DTypeMismatchError{Path: indexPath, Expected: b.DType(), Actual: other.DType()}
	}
	f, err := os.Open(dataPath)
	if err != nil {
		return fmt.Errorf("os.Open(%s): %w", dataPath, err)
	}
	defer func() {
		_ = f.Close()
	}()
	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("f.Stat: %w", err)
	}
	if err := other.CheckPayload(stat.Size()); err != nil {
		return translateError(fmt.Errorf("%s: %w", dataPath, err))
	}

	if _, err := b.payload.AppendFrom(f, stat.Size()); err != nil {
		return translateError(fmt.Errorf("payload.AppendFrom(%s): %w", dataPath, err))
	}
	if err := b.index.Extend(other); err != nil {
		return fmt.Errorf("index.Extend: %w", err)
	}

	b.logger.Debug("merged shard",
		"prefix", prefix,
		"documents", other.DocumentCount(),
		"chunks", other.ChunkCount(),
		"bytes", stat.Size())
	return nil
}

// Finalize flushes the payload and writes the index to indexPath, then
// atomically moves both into place.  The Builder can't be used afterwards,
// whether or not Finalize succeeds.
func (b *Builder) Finalize(indexPath string) error {
	if b.done {
		return ErrFinalized
	}
	if b.index.Pending() > 0 {
		return fmt.Errorf("%w: %d pending chunks at Finalize", ErrDocumentOpen, b.index.Pending())
	}
	b.done = true

	if err := b.finalize(indexPath); err != nil {
		b.cleanup()
		return err
	}
	return nil
}

func (b *Builder) finalize(indexPath string) error {
	if err := b.payload.Finish(); err != nil {
		return fmt.Errorf("payload.Finish: %w", err)
	}
	if b.payload.Len() != b.index.PayloadLen() {
		return fmt.Errorf("invariant broken: wrote %d payload bytes, index expects %d", b.payload.Len(), b.index.PayloadLen())
	}
	if err := b.dataFile.Sync(); err != nil {
		return fmt.Errorf("f.Sync: %w", err)
	}
	if err := b.dataFile.Close(); err != nil {
		return fmt.Errorf("f.Close: %w", err)
	}

	indexPath, err := filepath.Abs(indexPath)
	if err != nil {
		return fmt.Errorf("filepath.Abs: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(indexPath), "binidx-builder.*.idx")
	if err != nil {
		return fmt.Errorf("os.CreateTemp: %w", err)
	}
	if err := b.index.Write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return fmt.Errorf("index.Write: %w", err)
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return err
	}
	if err = f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return err
	}

	// make the files read-only
	if err := os.Chmod(b.dataFile.Name(), 0444); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("os.Chmod(0444): %w", err)
	}
	if err = os.Chmod(f.Name(), 0444); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("os.Chmod(0444): %w", err)
	}
	if err := os.Rename(b.dataFile.Name(), b.resultPath); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("os.Rename: %w", err)
	}
	if err = os.Rename(f.Name(), indexPath); err != nil {
		_ = os.Remove(f.Name())
		// the payload is already in place; don't leave it without an index
		_ = os.Remove(b.resultPath)
		b.dataFile = nil
		return fmt.Errorf("os.Rename: %w", err)
	}
	b.dataFile = nil

	b.logger.Info("finalized shard",
		"data", b.resultPath,
		"index", indexPath,
		"dtype", b.DType().String(),
		"documents", b.index.DocumentCount(),
		"chunks", b.index.ChunkCount(),
		"bytes", b.index.PayloadLen())
	return nil
}

// Abort discards everything written so far.  The Builder can't be used
// afterwards.
func (b *Builder) Abort() error {
	if b.done {
		return ErrFinalized
	}
	b.done = true
	b.cleanup()
	return nil
}

func (b *Builder) cleanup() {
	if b.dataFile == nil {
		return
	}
	_ = b.dataFile.Close()
	_ = os.Remove(b.dataFile.Name())
	b.dataFile = nil
}
