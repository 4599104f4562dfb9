// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yargevad/filepathx"

	"github.com/bpowers/binidx"
)

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, `*?[\`)
}

// expandShards turns arguments naming shards into shard prefixes.  An
// argument may be a prefix, either file of a shard, or a glob pattern
// (including **) matching shard files.  Order is kept, and the matches of
// each pattern are sorted.
func expandShards(args []string) ([]string, error) {
	var prefixes []string
	seen := make(map[string]bool)
	add := func(prefix string) {
		if !seen[prefix] {
			seen[prefix] = true
			prefixes = append(prefixes, prefix)
		}
	}
	for _, arg := range args {
		if !hasMeta(arg) {
			add(binidx.TrimSuffix(arg))
			continue
		}
		matches, err := filepathx.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("filepathx.Glob(%q): %w", arg, err)
		}
		var found []string
		for _, m := range matches {
			if strings.HasSuffix(m, binidx.IndexSuffix) || strings.HasSuffix(m, binidx.DataSuffix) {
				found = append(found, binidx.TrimSuffix(m))
			}
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("%q matched no shards", arg)
		}
		sort.Strings(found)
		for _, prefix := range found {
			add(prefix)
		}
	}
	return prefixes, nil
}

// expandInputs returns the JSONL files named by args, in order.  A
// directory stands for every .jsonl file below it.
func expandInputs(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		pattern := arg
		if stat, err := os.Stat(arg); err == nil && stat.IsDir() {
			pattern = filepath.Join(arg, "**", "*.jsonl")
		} else if !hasMeta(arg) {
			if err != nil {
				return nil, err
			}
			files = append(files, arg)
			continue
		}
		matches, err := filepathx.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("filepathx.Glob(%q): %w", pattern, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if stat, err := os.Stat(m); err == nil && !stat.IsDir() {
				files = append(files, m)
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files in %v", args)
	}
	return files, nil
}
