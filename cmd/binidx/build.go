// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"github.com/bpowers/binidx"
	"github.com/bpowers/binidx/dtype"
)

// parseDocument parses one line of pre-tokenized input: whitespace
// separated token ids, with '|' between chunks.  An empty line is an empty
// document.
func parseDocument(line string, dst [][]uint64) ([][]uint64, error) {
	dst = dst[:0]
	if strings.TrimSpace(line) == "" {
		return dst, nil
	}
	for _, chunk := range strings.Split(line, "|") {
		fields := strings.Fields(chunk)
		ids := make([]uint64, 0, len(fields))
		for _, f := range fields {
			id, err := strconv.ParseUint(f, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad token %q: %w", f, err)
			}
			ids = append(ids, id)
		}
		dst = append(dst, ids)
	}
	return dst, nil
}

func buildFrom(ctx context.Context, env *env, r io.Reader, prefix string, dt dtype.DType) (docs int, err error) {
	b, err := binidx.NewBuilder(binidx.DataPath(prefix), dt, binidx.WithBuilderLogger(env.logger))
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = b.Abort()
		}
	}()

	progress := rate.Sometimes{Interval: 10 * time.Second}
	s := bufio.NewScanner(bufio.NewReaderSize(r, 1024*1024))
	s.Buffer(make([]byte, 0, 64*1024), 256*1024*1024)
	var chunks [][]uint64
	line := 0
	for s.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if chunks, err = parseDocument(s.Text(), chunks); err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}
		for _, chunk := range chunks {
			if err := b.AddItem(chunk); err != nil {
				return 0, fmt.Errorf("line %d: %w", line, err)
			}
		}
		if err := b.EndDocument(); err != nil {
			return 0, err
		}
		progress.Do(func() {
			env.logger.Info("building", "documents", humanize.Comma(int64(b.DocumentCount())), "bytes", humanize.Bytes(uint64(b.PayloadLen())))
		})
	}
	if err := s.Err(); err != nil {
		return 0, fmt.Errorf("bufio.Scanner: %w", err)
	}
	docs = b.DocumentCount()
	if err := b.Finalize(binidx.IndexPath(prefix)); err != nil {
		// Finalize cleans up on failure, and Abort would only report ErrFinalized
		return 0, fmt.Errorf("Finalize: %w", err)
	}
	return docs, nil
}

func runBuild(ctx context.Context, env *env, args []string) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	input := fs.String("input", "-", "pre-tokenized input file, - for stdin")
	output := fs.String("output", "", "output shard prefix")
	dtName := fs.String("dtype", "uint16", "token dtype")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *output == "" {
		fs.Usage()
		return errUsage
	}
	dt, err := dtype.Parse(*dtName)
	if err != nil {
		return err
	}

	r := env.stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			return err
		}
		defer func() {
			_ = f.Close()
		}()
		r = f
	}

	docs, err := buildFrom(ctx, env, r, *output, dt)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "%s: %s documents\n", binidx.DataPath(*output), humanize.Comma(int64(docs)))
	return nil
}
