// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package tokenizer

import (
	"fmt"

	"github.com/wbrown/gpt_bpe"
)

// GPTBPE wraps a gpt_bpe encoder.
type GPTBPE struct {
	enc *gpt_bpe.GPTEncoder
}

var _ Tokenizer = &GPTBPE{}

// LoadGPTBPE resolves vocabID, which is either an embedded vocabulary like
// "gpt2" or a huggingface model id that gpt_bpe downloads.
func LoadGPTBPE(vocabID string) (*GPTBPE, error) {
	enc, err := gpt_bpe.NewEncoder(vocabID)
	if err != nil {
		return nil, fmt.Errorf("gpt_bpe.NewEncoder(%s): %w", vocabID, err)
	}
	return &GPTBPE{enc: enc}, nil
}

func (g *GPTBPE) VocabSize() int {
	maxID := -1
	for _, tok := range g.enc.Encoder {
		if int(tok) > maxID {
			maxID = int(tok)
		}
	}
	return maxID + 1
}

func (g *GPTBPE) Encode(text string) ([]uint64, error) {
	tokens := g.enc.Encode(&text)
	if tokens == nil {
		return []uint64{}, nil
	}
	out := make([]uint64, len(*tokens))
	for i, tok := range *tokens {
		out[i] = uint64(tok)
	}
	return out, nil
}
