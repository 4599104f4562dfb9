// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package datafile

// Advice is an access-pattern hint passed to the kernel for mappings.
type Advice int

const (
	Random Advice = iota
	Sequential
)
