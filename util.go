// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package binidx

import (
	"strings"
)

const (
	// DataSuffix is appended to a shard prefix to name its payload file.
	DataSuffix = ".bin"
	// IndexSuffix is appended to a shard prefix to name its index file.
	IndexSuffix = ".idx"
)

// DataPath returns the payload file path for the shard at prefix.
func DataPath(prefix string) string {
	return prefix + DataSuffix
}

// IndexPath returns the index file path for the shard at prefix.
func IndexPath(prefix string) string {
	return prefix + IndexSuffix
}

// TrimSuffix turns a path to either half of a shard into its prefix.  Paths
// without a shard suffix are returned unchanged.
func TrimSuffix(path string) string {
	if p, ok := strings.CutSuffix(path, DataSuffix); ok {
		return p
	}
	if p, ok := strings.CutSuffix(path, IndexSuffix); ok {
		return p
	}
	return path
}
