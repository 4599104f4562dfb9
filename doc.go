// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package binidx stores tokenized documents in immutable, randomly
// accessible shards for feeding language-model training.
//
// A shard is a pair of files sharing a prefix.  prefix.bin is the payload:
// every token of every document, fixed width and little-endian, with no
// framing at all.  prefix.idx is the index, laid out compatibly with the
// MMIDIDX format:
//
//	┌──────────────────────────┐
//	│ magic "MMIDIDX\x00\x00"  │  9 bytes
//	│ version (1)              │  uint64
//	│ dtype code               │  uint8
//	│ chunk count C            │  int64
//	│ boundary count D+1       │  int64
//	├──────────────────────────┤
//	│ sizes                    │  int32 × C, tokens per chunk
//	├──────────────────────────┤
//	│ pointers                 │  int64 × C, byte offset per chunk
//	├──────────────────────────┤
//	│ document boundaries      │  int64 × (D+1), document i is
//	│                          │  chunks [b[i], b[i+1])
//	└──────────────────────────┘
//
// A chunk is the tokens of a single Builder.AddItem call, and a document is
// the run of chunks closed by Builder.EndDocument.  Documents may be empty.
// Because chunks are written back to back, each document is one contiguous
// byte range of the payload, which lets the Mapped strategy return it
// without copying.
//
// Shards built independently, for example by parallel workers, can be
// concatenated with Merge or Builder.MergeFile by copying payload bytes and
// rebasing the index.
package binidx
