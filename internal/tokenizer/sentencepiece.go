// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package tokenizer

import (
	"fmt"
	"os"

	"github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
	"google.golang.org/protobuf/proto"
)

// SentencePiece wraps a SentencePiece model, such as the ones trained for
// RWKV preprocessing.
type SentencePiece struct {
	sp        sentencepiece.Sentencepiece
	vocabSize int
}

var _ Tokenizer = &SentencePiece{}

// LoadSentencePiece loads the .model file at path.
func LoadSentencePiece(path string) (*SentencePiece, error) {
	// the encoder doesn't expose its vocabulary, so size it from the model
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile(%s): %w", path, err)
	}
	var model sentencepiece.ModelProto
	if err := proto.Unmarshal(buf, &model); err != nil {
		return nil, fmt.Errorf("proto.Unmarshal(%s): %w", path, err)
	}
	if len(model.GetPieces()) == 0 {
		return nil, fmt.Errorf("%s: model has no pieces", path)
	}

	sp, err := sentencepiece.NewSentencepieceFromFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("sentencepiece.NewSentencepieceFromFile(%s): %w", path, err)
	}
	return &SentencePiece{
		sp:        sp,
		vocabSize: len(model.GetPieces()),
	}, nil
}

func (s *SentencePiece) VocabSize() int {
	return s.vocabSize
}

func (s *SentencePiece) Encode(text string) ([]uint64, error) {
	tokens := s.sp.Tokenize(text)
	out := make([]uint64, 0, len(tokens))
	for _, tok := range tokens {
		id := int64(tok.ID)
		if id < 0 {
			return nil, fmt.Errorf("%w: piece %q", ErrNoMatch, tok.Text)
		}
		out = append(out, uint64(id))
	}
	return out, nil
}
