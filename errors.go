// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package binidx

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/bpowers/binidx/dtype"
	"github.com/bpowers/binidx/internal/datafile"
	"github.com/bpowers/binidx/internal/indexfile"
)

var (
	// ErrFormat is returned when an index file has an unrecognized magic
	// number, version or dtype.
	ErrFormat = errors.New("binidx: unrecognized index format")
	// ErrCorrupt is returned when the index and payload disagree, or the
	// index violates its own invariants.
	ErrCorrupt = errors.New("binidx: shard corrupted")
	// ErrIndexOutOfRange is returned for a document or chunk ordinal
	// outside the shard.
	ErrIndexOutOfRange = errors.New("binidx: index out of range")
	// ErrFinalized is returned by any Builder method called after Finalize
	// or Abort.
	ErrFinalized = errors.New("binidx: builder already finalized")
	// ErrDocumentOpen is returned when chunks added since the last
	// EndDocument would otherwise be grouped implicitly.
	ErrDocumentOpen = errors.New("binidx: chunks added without a closing EndDocument")
	// ErrNoInputs is returned by Merge with an empty input list.
	ErrNoInputs = errors.New("binidx: no input shards")
	// ErrTokenRange is returned when a token doesn't fit the shard's dtype.
	ErrTokenRange = dtype.ErrTokenRange
	// ErrClosed is returned when reading from a closed Dataset.
	ErrClosed = datafile.ErrClosed
)

// DTypeMismatchError is returned when shards of different dtypes would be
// combined.  Nothing has been written when it is returned.
type DTypeMismatchError struct {
	Path     string
	Expected dtype.DType
	Actual   dtype.DType
}

func (e *DTypeMismatchError) Error() string {
	return fmt.Sprintf("binidx: dtype mismatch: %s is %s, expected %s", e.Path, e.Actual, e.Expected)
}

// MissingPairError is returned when a shard is missing its payload or its
// index file.
//
// The underlying stat error can be accessed via errors.Unwrap, so
// errors.Is(err, fs.ErrNotExist) holds for missing files.
type MissingPairError struct {
	Prefix string
	Path   string
	cause  error
}

func (e *MissingPairError) Error() string {
	return fmt.Sprintf("binidx: shard %s is missing %s: %v", e.Prefix, e.Path, e.cause)
}

func (e *MissingPairError) Unwrap() error { return e.cause }

// translateError maps errors from the internal packages onto the public
// sentinels while keeping the original error in the chain.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrFormat) || errors.Is(err, ErrCorrupt) {
		return err
	}
	if errors.Is(err, indexfile.ErrFormat) {
		return fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if errors.Is(err, indexfile.ErrCorrupt) || errors.Is(err, datafile.ErrShortPayload) {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return err
}

// checkPair verifies both halves of the shard at prefix exist.
func checkPair(prefix string) error {
	for _, path := range []string{DataPath(prefix), IndexPath(prefix)} {
		stat, err := os.Stat(path)
		if err != nil {
			return &MissingPairError{Prefix: prefix, Path: path, cause: err}
		}
		if stat.IsDir() {
			return &MissingPairError{Prefix: prefix, Path: path, cause: fmt.Errorf("%s is a directory: %w", path, fs.ErrInvalid)}
		}
	}
	return nil
}
