// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package preprocess

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bpowers/binidx"
	"github.com/bpowers/binidx/dtype"
	"github.com/bpowers/binidx/internal/config"
	"github.com/bpowers/binidx/internal/tokenizer"
)

// TokenizerFactory loads a fresh Tokenizer; Run calls it once per worker.
type TokenizerFactory func() (tokenizer.Tokenizer, error)

// FactoryFor returns the TokenizerFactory configured by cfg.
func FactoryFor(cfg *config.Config) TokenizerFactory {
	return func() (tokenizer.Tokenizer, error) {
		kind, source, err := cfg.TokenizerSource()
		if err != nil {
			return nil, err
		}
		return tokenizer.New(kind, source)
	}
}

// BuildShard processes files, in order, into a new shard at prefix.
func BuildShard(ctx context.Context, cfg *config.Config, tok tokenizer.Tokenizer, dt dtype.DType, prefix string, files []string, logger *slog.Logger) (Stats, error) {
	var opts []binidx.BuilderOption
	if logger != nil {
		opts = append(opts, binidx.WithBuilderLogger(logger))
	}
	b, err := binidx.NewBuilder(binidx.DataPath(prefix), dt, opts...)
	if err != nil {
		return Stats{}, fmt.Errorf("binidx.NewBuilder: %w", err)
	}
	p := New(cfg, tok, b, logger)
	for _, path := range files {
		if err := p.ProcessFile(ctx, path); err != nil {
			_ = b.Abort()
			return p.Stats(), err
		}
	}
	if err := b.Finalize(binidx.IndexPath(prefix)); err != nil {
		return p.Stats(), fmt.Errorf("Finalize: %w", err)
	}
	return p.Stats(), nil
}

// Run builds the shard at outPrefix from files.  The files are split into
// up to cfg.Workers contiguous runs that are built concurrently as
// temporary part shards, then merged in order, so documents appear in the
// same order as the input files.
func Run(ctx context.Context, cfg *config.Config, newTokenizer TokenizerFactory, outPrefix string, files []string, logger *slog.Logger) (Stats, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if len(files) == 0 {
		return Stats{}, fmt.Errorf("preprocess: no input files")
	}

	first, err := newTokenizer()
	if err != nil {
		return Stats{}, fmt.Errorf("loading tokenizer: %w", err)
	}
	dt, err := cfg.ResolveDType(first.VocabSize())
	if err != nil {
		return Stats{}, err
	}
	logger.Info("preprocessing",
		"files", len(files),
		"workers", min(cfg.Workers, len(files)),
		"dtype", dt.String(),
		"vocab_size", first.VocabSize())

	parts := splitFiles(files, cfg.Workers)
	if len(parts) == 1 {
		return BuildShard(ctx, cfg, first, dt, outPrefix, parts[0], logger)
	}

	prefixes := make([]string, len(parts))
	for i := range parts {
		prefixes[i] = fmt.Sprintf("%s.part-%04d", outPrefix, i)
	}
	defer removeShards(prefixes)

	var mu sync.Mutex
	var total Stats
	g, gctx := errgroup.WithContext(ctx)
	for i, part := range parts {
		g.Go(func() error {
			tok := first
			if i > 0 {
				var err error
				if tok, err = newTokenizer(); err != nil {
					return fmt.Errorf("loading tokenizer: %w", err)
				}
			}
			stats, err := BuildShard(gctx, cfg, tok, dt, prefixes[i], part, logger.With("part", i))
			mu.Lock()
			total = total.Add(stats)
			mu.Unlock()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return total, err
	}

	if err := binidx.Merge(outPrefix, prefixes, binidx.WithBuilderLogger(logger)); err != nil {
		return total, fmt.Errorf("binidx.Merge: %w", err)
	}
	return total, nil
}

// splitFiles divides files into at most n contiguous, non-empty runs.
func splitFiles(files []string, n int) [][]string {
	n = max(1, min(n, len(files)))
	parts := make([][]string, 0, n)
	for w := 0; w < n; w++ {
		lo, hi := w*len(files)/n, (w+1)*len(files)/n
		parts = append(parts, files[lo:hi])
	}
	return parts
}

func removeShards(prefixes []string) {
	for _, prefix := range prefixes {
		_ = os.Remove(binidx.DataPath(prefix))
		_ = os.Remove(binidx.IndexPath(prefix))
	}
}
