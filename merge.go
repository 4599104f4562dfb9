// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package binidx

import (
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/bpowers/binidx/internal/indexfile"
)

// Merge concatenates the shards at inputs, in order, into a new shard at
// outPrefix.  Every input is checked for both halves and a readable index
// of one common dtype before any output file is created, so a
// MissingPairError, ErrFormat or DTypeMismatchError leaves nothing behind.
func Merge(outPrefix string, inputs []string, opts ...BuilderOption) error {
	if len(inputs) == 0 {
		return ErrNoInputs
	}
	options := builderOptions{
		logger: discardLogger(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	outAbs, err := filepath.Abs(outPrefix)
	if err != nil {
		return fmt.Errorf("filepath.Abs: %w", err)
	}
	var first indexfile.Header
	for i, prefix := range inputs {
		if err := checkPair(prefix); err != nil {
			return err
		}
		inAbs, err := filepath.Abs(prefix)
		if err != nil {
			return fmt.Errorf("filepath.Abs: %w", err)
		}
		if inAbs == outAbs {
			return fmt.Errorf("binidx: merge output %s is also an input", outPrefix)
		}
		h, err := indexfile.ReadHeader(IndexPath(prefix))
		if err != nil {
			return translateError(fmt.Errorf("indexfile.ReadHeader: %w", err))
		}
		if i == 0 {
			first = h
		} else if h.DType != first.DType {
			return &DTypeMismatchError{Path: IndexPath(prefix), Expected: first.DType, Actual: h.DType}
		}
	}

	b, err := NewBuilder(DataPath(outPrefix), first.DType, opts...)
	if err != nil {
		return fmt.Errorf("NewBuilder: %w", err)
	}
	progress := rate.Sometimes{Interval: 5 * time.Second}
	for i, prefix := range inputs {
		if err := b.MergeFile(prefix); err != nil {
			_ = b.Abort()
			return fmt.Errorf("MergeFile(%s): %w", prefix, err)
		}
		progress.Do(func() {
			options.logger.Info("merging shards",
				"done", i+1,
				"total", len(inputs),
				"documents", b.DocumentCount())
		})
	}
	if err := b.Finalize(IndexPath(outPrefix)); err != nil {
		return fmt.Errorf("Finalize: %w", err)
	}
	return nil
}
