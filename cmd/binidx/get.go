// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/bpowers/binidx"
)

func runGet(_ context.Context, env *env, args []string) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	strategyName := fs.String("strategy", "mapped", "payload access strategy (mapped, cached or lazy)")
	offset := fs.Int("offset", 0, "first token of the document to print")
	length := fs.Int("length", -1, "number of tokens to print, -1 for the rest")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errUsage
	}
	strategy, ok := binidx.ParseStrategy(*strategyName)
	if !ok {
		return fmt.Errorf("unknown strategy %q", *strategyName)
	}
	i, err := strconv.Atoi(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("bad document number %q: %w", fs.Arg(1), err)
	}

	ds, err := binidx.Open(binidx.TrimSuffix(fs.Arg(0)), binidx.WithStrategy(strategy), binidx.WithLogger(env.logger))
	if err != nil {
		return err
	}
	defer func() {
		_ = ds.Close()
	}()

	toks, err := ds.DocumentRange(i, *offset, *length)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(env.stdout)
	var buf []byte
	for j := 0; j < toks.Len(); j++ {
		if j > 0 {
			buf = append(buf, ' ')
		}
		buf = strconv.AppendUint(buf, toks.At(j), 10)
		if len(buf) > 4096 {
			if _, err := w.Write(buf); err != nil {
				return err
			}
			buf = buf[:0]
		}
	}
	buf = append(buf, '\n')
	if _, err := w.Write(buf); err != nil {
		return err
	}
	return w.Flush()
}
