// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package dtype describes the fixed-width integer types tokens are
// stored as in a binidx payload file.
//
// The numeric codes are the ones written into index files.  Codes 1-5
// and 8 match the MMIDIDX convention used by existing training
// toolchains, so shards built here can be read by them and vice versa.
// Codes 6 and 7 are floating point types in that convention and are
// never valid token types.
package dtype

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

type DType uint8

const (
	Invalid     DType = 0
	Uint8       DType = 1
	Int8        DType = 2
	Int16       DType = 3
	Int32       DType = 4
	Int64       DType = 5
	float64Code DType = 6
	float32Code DType = 7
	Uint16      DType = 8
	Uint32      DType = 9
	Uint64      DType = 10
)

var (
	// ErrTokenRange is returned when a token id can't be represented by a dtype.
	ErrTokenRange = errors.New("token id out of range for dtype")
	// ErrUnknown is returned for codes that are not integer token types.
	ErrUnknown = errors.New("unknown dtype")
)

var names = map[DType]string{
	Uint8:  "uint8",
	Int8:   "int8",
	Int16:  "int16",
	Int32:  "int32",
	Int64:  "int64",
	Uint16: "uint16",
	Uint32: "uint32",
	Uint64: "uint64",
}

// Valid reports whether d is one of the supported integer token types.
func (d DType) Valid() bool {
	_, ok := names[d]
	return ok
}

func (d DType) String() string {
	if name, ok := names[d]; ok {
		return name
	}
	switch d {
	case float64Code:
		return "float64(unsupported)"
	case float32Code:
		return "float32(unsupported)"
	}
	return fmt.Sprintf("dtype(%d)", uint8(d))
}

// Size returns the width of a single token in bytes (the "itemsize").  It
// returns 0 for invalid dtypes.
func (d DType) Size() int {
	switch d {
	case Uint8, Int8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32:
		return 4
	case Uint64, Int64:
		return 8
	}
	return 0
}

// Signed reports whether tokens are stored as two's complement integers.
func (d DType) Signed() bool {
	return d == Int8 || d == Int16 || d == Int32 || d == Int64
}

// Max returns the largest token id representable by d.
func (d DType) Max() uint64 {
	switch d {
	case Uint8:
		return math.MaxUint8
	case Int8:
		return math.MaxInt8
	case Uint16:
		return math.MaxUint16
	case Int16:
		return math.MaxInt16
	case Uint32:
		return math.MaxUint32
	case Int32:
		return math.MaxInt32
	case Uint64:
		return math.MaxUint64
	case Int64:
		return math.MaxInt64
	}
	return 0
}

// FromCode validates an on-disk dtype code.
func FromCode(code uint8) (DType, error) {
	d := DType(code)
	if !d.Valid() {
		return Invalid, fmt.Errorf("%w: code %d (%s)", ErrUnknown, code, d)
	}
	return d, nil
}

// Parse returns the DType with the given name, e.g. "uint16".
func Parse(name string) (DType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for d, n := range names {
		if n == name {
			return d, nil
		}
	}
	return Invalid, fmt.Errorf("%w: %q", ErrUnknown, name)
}

// ForMaxToken returns the smallest unsigned dtype that can hold maxID.
func ForMaxToken(maxID uint64) DType {
	switch {
	case maxID <= math.MaxUint8:
		return Uint8
	case maxID <= math.MaxUint16:
		return Uint16
	case maxID <= math.MaxUint32:
		return Uint32
	}
	return Uint64
}

// ForVocabSize picks a dtype for a vocabulary of n entries.  Anything that
// fits is widened to at least Uint16, the width nearly all tooling expects.
func ForVocabSize(n int) DType {
	if n <= math.MaxUint16+1 {
		return Uint16
	}
	return ForMaxToken(uint64(n - 1))
}

// Append encodes tokens little-endian onto dst.  On error dst is returned
// unmodified up to its original length.
func (d DType) Append(dst []byte, tokens []uint64) ([]byte, error) {
	size := d.Size()
	if size == 0 {
		return dst, fmt.Errorf("%w: %s", ErrUnknown, d)
	}
	limit := d.Max()
	orig := len(dst)
	for i, t := range tokens {
		if t > limit {
			return dst[:orig], fmt.Errorf("%w: token %d (at %d) > %d for %s", ErrTokenRange, t, i, limit, d)
		}
		switch size {
		case 1:
			dst = append(dst, uint8(t))
		case 2:
			dst = binary.LittleEndian.AppendUint16(dst, uint16(t))
		case 4:
			dst = binary.LittleEndian.AppendUint32(dst, uint32(t))
		case 8:
			dst = binary.LittleEndian.AppendUint64(dst, t)
		}
	}
	return dst, nil
}

// At decodes the i-th token of raw.  Signed values are returned as their
// uint64 conversion; valid token ids are never negative.
func (d DType) At(raw []byte, i int) uint64 {
	switch d {
	case Uint8:
		return uint64(raw[i])
	case Int8:
		return uint64(int8(raw[i]))
	case Uint16:
		return uint64(binary.LittleEndian.Uint16(raw[2*i:]))
	case Int16:
		return uint64(int16(binary.LittleEndian.Uint16(raw[2*i:])))
	case Uint32:
		return uint64(binary.LittleEndian.Uint32(raw[4*i:]))
	case Int32:
		return uint64(int32(binary.LittleEndian.Uint32(raw[4*i:])))
	case Uint64, Int64:
		return binary.LittleEndian.Uint64(raw[8*i:])
	}
	panic(fmt.Sprintf("dtype.At: invalid dtype %s", d))
}

// Count returns the number of tokens encoded in raw.
func (d DType) Count(raw []byte) int {
	size := d.Size()
	if size == 0 {
		return 0
	}
	return len(raw) / size
}
