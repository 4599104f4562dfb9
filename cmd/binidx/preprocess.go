// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bpowers/binidx"
	"github.com/bpowers/binidx/internal/config"
	"github.com/bpowers/binidx/internal/preprocess"
)

func runPreprocess(ctx context.Context, env *env, args []string) error {
	fs := flag.NewFlagSet("preprocess", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML preprocessing config")
	input := fs.String("input", "", "JSONL file, directory or glob pattern")
	output := fs.String("output", "", "output shard prefix")
	workers := fs.Int("workers", 0, "number of parallel workers (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" || *output == "" || (*input == "" && fs.NArg() == 0) {
		fs.Usage()
		return errUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}

	var inputs []string
	if *input != "" {
		inputs = append(inputs, *input)
	}
	inputs = append(inputs, fs.Args()...)
	files, err := expandInputs(inputs)
	if err != nil {
		return err
	}

	start := time.Now()
	stats, err := preprocess.Run(ctx, &cfg, preprocess.FactoryFor(&cfg), *output, files, env.logger)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("interrupted: %w", err)
		}
		return err
	}

	env.logger.Info("preprocess complete",
		"output", *output,
		"files", stats.Files,
		"records", humanize.Comma(stats.Records),
		"documents", humanize.Comma(stats.Documents),
		"skipped", humanize.Comma(stats.Skipped),
		"tokens", humanize.Comma(stats.Tokens),
		"elapsed", time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(env.stdout, "%s: %s documents, %s tokens\n",
		binidx.DataPath(*output), humanize.Comma(stats.Documents), humanize.Comma(stats.Tokens))
	return nil
}
