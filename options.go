// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package binidx

import (
	"io"
	"log/slog"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// BuilderOption configures the Builder.
type BuilderOption func(*builderOptions)

type builderOptions struct {
	logger     *slog.Logger
	bufferSize int
}

// WithBuilderLogger sets an optional logger for the builder to use for progress updates.
// If not provided, no logging output will be produced.
func WithBuilderLogger(logger *slog.Logger) BuilderOption {
	return func(opts *builderOptions) {
		opts.logger = logger
	}
}

// WithBufferSize sets the size of the write buffer in front of the payload
// file.
func WithBufferSize(n int) BuilderOption {
	return func(opts *builderOptions) {
		opts.bufferSize = n
	}
}

// Strategy selects how a Dataset accesses its payload file.
type Strategy int

const (
	// Mapped memory-maps the payload and index; documents are zero-copy
	// views into the mapping.
	Mapped Strategy = iota
	// Cached reads the entire payload into memory at Open.
	Cached
	// Lazy keeps an open file and reads exactly the bytes of a document on
	// every access.
	Lazy
)

func (s Strategy) String() string {
	switch s {
	case Mapped:
		return "mapped"
	case Cached:
		return "cached"
	case Lazy:
		return "lazy"
	}
	return "unknown"
}

// ParseStrategy is the inverse of Strategy.String.
func ParseStrategy(name string) (Strategy, bool) {
	for _, s := range []Strategy{Mapped, Cached, Lazy} {
		if s.String() == name {
			return s, true
		}
	}
	return Mapped, false
}

// OpenOption configures Open.
type OpenOption func(*openOptions)

type openOptions struct {
	strategy  Strategy
	cacheSize int
	logger    *slog.Logger
}

// WithStrategy picks the payload access strategy.  The default is Mapped.
func WithStrategy(s Strategy) OpenOption {
	return func(opts *openOptions) {
		opts.strategy = s
	}
}

// WithDocumentCache keeps up to n recently read documents in an LRU cache.
// It only applies to the Lazy strategy; the other strategies already serve
// documents from memory.
func WithDocumentCache(n int) OpenOption {
	return func(opts *openOptions) {
		opts.cacheSize = n
	}
}

// WithLogger sets an optional logger for Open to report what it mapped.
func WithLogger(logger *slog.Logger) OpenOption {
	return func(opts *openOptions) {
		opts.logger = logger
	}
}
