// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Command gen-testdata writes random pre-tokenized documents in the format
// read by "binidx build": one document per line, whitespace separated token
// ids, with '|' between chunks.
package main

import (
	"bufio"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"strconv"
)

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		var seedBytes [8]byte
		_, _ = crand.Read(seedBytes[:])
		seed = int64(binary.LittleEndian.Uint64(seedBytes[:]))
	}
	return rand.New(rand.NewSource(seed))
}

type params struct {
	docs      int
	vocab     uint64
	maxLen    int
	maxChunks int
}

func (p params) validate() error {
	if p.vocab == 0 || p.vocab > math.MaxInt64 {
		return fmt.Errorf("-vocab must be in [1, %d], got %d", uint64(math.MaxInt64), p.vocab)
	}
	if p.docs < 0 || p.maxLen < 0 || p.maxChunks < 1 {
		return errors.New("-docs and -max-len must be non-negative and -max-chunks positive")
	}
	return nil
}

func generate(out io.Writer, rng *rand.Rand, p params) error {
	w := bufio.NewWriterSize(out, 1024*1024)
	var line []byte
	for i := 0; i < p.docs; i++ {
		line = line[:0]
		chunks := 1 + rng.Intn(p.maxChunks)
		for c := 0; c < chunks; c++ {
			if c > 0 {
				line = append(line, " | "...)
			}
			n := rng.Intn(p.maxLen/chunks + 1)
			for j := 0; j < n; j++ {
				if j > 0 {
					line = append(line, ' ')
				}
				line = strconv.AppendUint(line, uint64(rng.Int63n(int64(p.vocab))), 10)
			}
		}
		line = append(line, '\n')
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	return w.Flush()
}

func main() {
	var p params
	flag.IntVar(&p.docs, "docs", 100000, "number of documents")
	flag.Uint64Var(&p.vocab, "vocab", 50257, "token ids are drawn from [0, vocab)")
	flag.IntVar(&p.maxLen, "max-len", 2048, "maximum tokens per document")
	flag.IntVar(&p.maxChunks, "max-chunks", 1, "maximum chunks per document")
	seed := flag.Int64("seed", 0, "random seed (0 picks one)")
	flag.Parse()

	if err := p.validate(); err != nil {
		fmt.Fprintf(os.Stderr, "gen-testdata: %v\n", err)
		os.Exit(1)
	}
	if err := generate(os.Stdout, newRand(*seed), p); err != nil {
		fmt.Fprintf(os.Stderr, "gen-testdata: %v\n", err)
		os.Exit(1)
	}
}
