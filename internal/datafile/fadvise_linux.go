// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package datafile

import (
	"os"

	"golang.org/x/sys/unix"
)

// fadviseRandom disables kernel readahead, which only wastes page cache
// when documents are fetched in random order.
func fadviseRandom(f *os.File) error {
	return unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_RANDOM)
}
