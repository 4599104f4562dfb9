// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package preprocess converts JSONL corpora into binidx shards.
package preprocess

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/bpowers/binidx"
	"github.com/bpowers/binidx/internal/config"
	"github.com/bpowers/binidx/internal/tokenizer"
)

const maxLineSize = 64 * 1024 * 1024

// Stats counts what a Processor has done so far.
type Stats struct {
	Files     int
	Records   int64
	Documents int64
	// Skipped is the number of records none of the mapped fields matched.
	Skipped int64
	Tokens  int64
}

// Add returns the sum of s and other.
func (s Stats) Add(other Stats) Stats {
	return Stats{
		Files:     s.Files + other.Files,
		Records:   s.Records + other.Records,
		Documents: s.Documents + other.Documents,
		Skipped:   s.Skipped + other.Skipped,
		Tokens:    s.Tokens + other.Tokens,
	}
}

// Processor tokenizes records and writes one document per extracted text.
// It is not safe for concurrent use.
type Processor struct {
	fields    config.FieldsConfig
	prefix    []uint64
	postfix   []uint64
	appendEOD bool
	eod       uint64
	tok       tokenizer.Tokenizer
	b         *binidx.Builder
	stats     Stats
	progress  rate.Sometimes
	logger    *slog.Logger
	buf       []uint64
}

// New returns a Processor writing documents into b.
func New(cfg *config.Config, tok tokenizer.Tokenizer, b *binidx.Builder, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Processor{
		fields:    cfg.Fields,
		prefix:    cfg.PrefixTokens,
		postfix:   cfg.PostfixTokens,
		appendEOD: cfg.AppendEOD,
		eod:       cfg.EODToken,
		tok:       tok,
		b:         b,
		progress:  rate.Sometimes{Interval: 10 * time.Second},
		logger:    logger,
	}
}

func (p *Processor) Stats() Stats {
	return p.stats
}

// AddDocument tokenizes text and writes it as one single-chunk document.
func (p *Processor) AddDocument(text string) error {
	ids, err := p.tok.Encode(text)
	if err != nil {
		return fmt.Errorf("tokenizer.Encode: %w", err)
	}
	p.buf = append(p.buf[:0], p.prefix...)
	p.buf = append(p.buf, ids...)
	p.buf = append(p.buf, p.postfix...)
	if p.appendEOD {
		p.buf = append(p.buf, p.eod)
	}
	if err := p.b.AddItem(p.buf); err != nil {
		return fmt.Errorf("AddItem: %w", err)
	}
	if err := p.b.EndDocument(); err != nil {
		return fmt.Errorf("EndDocument: %w", err)
	}
	p.stats.Documents++
	p.stats.Tokens += int64(len(p.buf))
	return nil
}

// ProcessReader reads JSONL records from r, one per line.  name is used in
// error messages and logs.
func (p *Processor) ProcessReader(ctx context.Context, r io.Reader, name string) error {
	s := bufio.NewScanner(bufio.NewReaderSize(r, 1024*1024))
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for s.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		record := bytes.TrimSpace(s.Bytes())
		if len(record) == 0 {
			continue
		}
		p.stats.Records++

		texts, err := Extract(p.fields, record)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", name, line, err)
		}
		if len(texts) == 0 {
			p.stats.Skipped++
			continue
		}
		for _, text := range texts {
			if err := p.AddDocument(text); err != nil {
				return fmt.Errorf("%s:%d: %w", name, line, err)
			}
		}
		p.progress.Do(func() {
			p.logger.Info("preprocess progress",
				"file", name,
				"records", p.stats.Records,
				"documents", p.stats.Documents,
				"tokens", p.stats.Tokens)
		})
	}
	if err := s.Err(); err != nil {
		return fmt.Errorf("%s: bufio.Scanner: %w", name, err)
	}
	p.stats.Files++
	return nil
}

// ProcessFile is ProcessReader on the file at path.
func (p *Processor) ProcessFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("os.Open: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return p.ProcessReader(ctx, f, path)
}
