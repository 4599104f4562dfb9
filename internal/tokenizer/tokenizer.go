// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package tokenizer turns document text into token ids for the
// preprocess command.  The set of tokenizers is closed and chosen once
// from configuration.
package tokenizer

import (
	"errors"
	"fmt"
)

// Kind names a tokenizer implementation.
type Kind string

const (
	// KindTrie is greedy longest-match over a vocabulary file.
	KindTrie Kind = "trie"
	// KindSentencePiece loads a SentencePiece model file.
	KindSentencePiece Kind = "sentencepiece"
	// KindGPTBPE uses a BPE vocabulary known to gpt_bpe, such as "gpt2",
	// "pile" or a huggingface model id.
	KindGPTBPE Kind = "gpt_bpe"
)

// Kinds lists every supported Kind.
var Kinds = []Kind{KindTrie, KindSentencePiece, KindGPTBPE}

var (
	ErrUnknownKind = errors.New("unknown tokenizer kind")
	// ErrNoMatch is returned when some input can't be covered by the
	// vocabulary.
	ErrNoMatch = errors.New("no vocabulary entry matches input")
)

// Tokenizer encodes text.  Implementations aren't safe for concurrent use;
// callers that encode in parallel load one Tokenizer per goroutine.
type Tokenizer interface {
	Encode(text string) ([]uint64, error)
	// VocabSize is one more than the largest id Encode can return.
	VocabSize() int
}

// ParseKind validates a configured tokenizer name.
func ParseKind(name string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == name {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// New loads the tokenizer of the given kind.  source is the vocabulary
// file for KindTrie, the model file for KindSentencePiece, and the
// vocabulary id for KindGPTBPE.
func New(kind Kind, source string) (Tokenizer, error) {
	switch kind {
	case KindTrie:
		return LoadTrie(source)
	case KindSentencePiece:
		return LoadSentencePiece(source)
	case KindGPTBPE:
		return LoadGPTBPE(source)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}
