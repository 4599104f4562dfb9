// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/bpowers/binidx"
)

func runMerge(_ context.Context, env *env, args []string) error {
	fs := flag.NewFlagSet("merge", flag.ContinueOnError)
	output := fs.String("output", "", "output shard prefix")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *output == "" || fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	inputs, err := expandShards(fs.Args())
	if err != nil {
		return err
	}
	if err := binidx.Merge(*output, inputs, binidx.WithBuilderLogger(env.logger)); err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "merged %d shards into %s\n", len(inputs), *output)
	return nil
}
