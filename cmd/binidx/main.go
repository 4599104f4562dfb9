// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Command binidx builds, merges and inspects binidx shards.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, env *env, args []string) error
}

var commands = []command{
	{"preprocess", "-config c.yaml -input dir -output prefix", runPreprocess},
	{"build", "-input tokens.txt -output prefix [-dtype uint16]", runBuild},
	{"merge", "-output prefix input...", runMerge},
	{"inspect", "prefix...", runInspect},
	{"get", "[-strategy mapped] prefix document", runGet},
}

// env is what every subcommand gets to work with.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	logger *slog.Logger
}

var errUsage = errors.New("usage")

func usage(w io.Writer, global *flag.FlagSet) {
	fmt.Fprintf(w, "usage: binidx [flags] <command> [args]\n\ncommands:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.usage)
	}
	fmt.Fprintf(w, "\nflags:\n")
	global.SetOutput(w)
	global.PrintDefaults()
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("bad -log-level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("bad -log-format %q: want text or json", format)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("binidx", flag.ContinueOnError)
	global.SetOutput(stderr)
	logLevel := global.String("log-level", "info", "minimum log level (debug, info, warn, error)")
	logFormat := global.String("log-format", "text", "log format (text or json)")
	global.Usage = func() { usage(stderr, global) }
	if err := global.Parse(args); err != nil {
		return err
	}

	logger, err := newLogger(stderr, *logLevel, *logFormat)
	if err != nil {
		return err
	}

	rest := global.Args()
	if len(rest) == 0 {
		usage(stderr, global)
		return errUsage
	}
	for _, c := range commands {
		if c.name == rest[0] {
			return c.run(ctx, &env{stdin: stdin, stdout: stdout, logger: logger}, rest[1:])
		}
	}
	usage(stderr, global)
	return fmt.Errorf("%w: unknown command %q", errUsage, rest[0])
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "binidx: %v\n", err)
		}
		os.Exit(1)
	}
}
