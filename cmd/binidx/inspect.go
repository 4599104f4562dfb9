// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/bpowers/binidx"
)

func runInspect(_ context.Context, env *env, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	showDocs := fs.Bool("documents", false, "also print the token count of every document")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}
	prefixes, err := expandShards(fs.Args())
	if err != nil {
		return err
	}

	for _, prefix := range prefixes {
		if err := inspectShard(env, prefix, *showDocs); err != nil {
			return err
		}
	}
	return nil
}

func inspectShard(env *env, prefix string, showDocs bool) error {
	fp, err := binidx.Fingerprint(prefix)
	if err != nil {
		return err
	}
	ds, err := binidx.Open(prefix, binidx.WithLogger(env.logger))
	if err != nil {
		return err
	}
	defer func() {
		_ = ds.Close()
	}()

	payload := uint64(ds.TokenCount()) * uint64(ds.DType().Size())
	fmt.Fprintf(env.stdout, "%s\n", prefix)
	fmt.Fprintf(env.stdout, "  dtype:       %s\n", ds.DType())
	fmt.Fprintf(env.stdout, "  documents:   %s\n", humanize.Comma(int64(ds.DocumentCount())))
	fmt.Fprintf(env.stdout, "  chunks:      %s\n", humanize.Comma(int64(ds.ChunkCount())))
	fmt.Fprintf(env.stdout, "  tokens:      %s\n", humanize.Comma(ds.TokenCount()))
	fmt.Fprintf(env.stdout, "  payload:     %s\n", humanize.Bytes(payload))
	fmt.Fprintf(env.stdout, "  fingerprint: %016x\n", fp)

	if showDocs {
		bounds := ds.DocumentBoundaries()
		sizes := ds.Sizes()
		var sb strings.Builder
		for i := 0; i+1 < len(bounds); i++ {
			var n int64
			for c := bounds[i]; c < bounds[i+1]; c++ {
				n += int64(sizes[c])
			}
			sb.WriteString("  ")
			sb.WriteString(strconv.Itoa(i))
			sb.WriteString("\t")
			sb.WriteString(strconv.FormatInt(n, 10))
			sb.WriteString("\n")
		}
		fmt.Fprint(env.stdout, sb.String())
	}
	return nil
}
