// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package binidx

import (
	"bytes"

	"github.com/bpowers/binidx/dtype"
)

// Tokens is a read-only view of encoded tokens.  Depending on the
// Dataset's strategy it may alias a shared mapping, so the bytes must never
// be written to and must not be used after the Dataset is closed.
type Tokens struct {
	dt  dtype.DType
	raw []byte
}

func (t Tokens) DType() dtype.DType {
	return t.dt
}

// Len is the number of tokens.
func (t Tokens) Len() int {
	return t.dt.Count(t.raw)
}

// At returns the i-th token.
func (t Tokens) At(i int) uint64 {
	return t.dt.At(t.raw, i)
}

// Bytes returns the little-endian encoded tokens.
func (t Tokens) Bytes() []byte {
	return t.raw
}

// Uint64s decodes every token into a new slice.
func (t Tokens) Uint64s() []uint64 {
	out := make([]uint64, t.Len())
	for i := range out {
		out[i] = t.dt.At(t.raw, i)
	}
	return out
}

// Equal reports whether t and other hold the same tokens of the same dtype.
func (t Tokens) Equal(other Tokens) bool {
	return t.dt == other.dt && bytes.Equal(t.raw, other.raw)
}

func (t Tokens) slice(from, to int) Tokens {
	size := t.dt.Size()
	return Tokens{dt: t.dt, raw: t.raw[from*size : to*size : to*size]}
}
