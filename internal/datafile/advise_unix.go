// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

//go:build unix

package datafile

import (
	"golang.org/x/sys/unix"
)

func madvise(b []byte, advice Advice) error {
	switch advice {
	case Sequential:
		return unix.Madvise(b, unix.MADV_SEQUENTIAL)
	default:
		return unix.Madvise(b, unix.MADV_RANDOM)
	}
}
