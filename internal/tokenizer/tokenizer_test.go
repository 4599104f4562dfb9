// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package tokenizer

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
	"google.golang.org/protobuf/proto"
)

const testVocab = `0 "a"
1 "b"
2 "ab"
3 "abc" 3
4	" "
5 "hello"
6 "hell"
7 "o"
9 "é" 2
10 b"â\u0080"

`

func TestTrie_LongestMatch(t *testing.T) {
	trie, err := ReadTrie(strings.NewReader(testVocab))
	require.NoError(t, err)
	assert.Equal(t, 11, trie.VocabSize())

	for _, tc := range []struct {
		input    string
		expected []uint64
	}{
		{"", nil},
		{"a", []uint64{0}},
		{"ab", []uint64{2}},
		{"abc", []uint64{3}},
		{"abab", []uint64{2, 2}},
		{"aab", []uint64{0, 2}},
		{"hello", []uint64{5}},
		{"hellohello o", []uint64{5, 5, 4, 7}},
		{"abca", []uint64{3, 0}},
		{"é", []uint64{9}},
		{"\xe2\x80", []uint64{10}},
	} {
		ids, err := trie.Encode(tc.input)
		require.NoError(t, err, tc.input)
		assert.Equal(t, tc.expected, ids, tc.input)
	}

	_, err = trie.Encode("abz")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestTrie_BadVocab(t *testing.T) {
	for _, tc := range []struct {
		name  string
		vocab string
	}{
		{"empty", "\n\n"},
		{"no string", "1\n"},
		{"bad id", "x \"a\"\n"},
		{"bad json", "1 \"a\n"},
		{"duplicate id", "1 \"a\"\n1 \"b\"\n"},
		{"duplicate token", "1 \"a\"\n2 \"a\"\n"},
		{"wrong length", "1 \"ab\" 3\n"},
		{"empty token", "1 \"\"\n"},
		{"wide byte string", "1 b\"Ā\"\n"},
		{"id past int range", "9223372036854775807 \"a\"\n"},
		{"id past int64 range", "18446744073709551615 \"a\"\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadTrie(strings.NewReader(tc.vocab))
			assert.Error(t, err)
		})
	}
}

func TestTrie_LargeID(t *testing.T) {
	trie, err := ReadTrie(strings.NewReader("9223372036854775806 \"a\"\n1 \"b\"\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), int64(trie.VocabSize()))
}

func TestNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte(testVocab), 0644))

	tok, err := New(KindTrie, path)
	require.NoError(t, err)
	ids, err := tok.Encode("ab")
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, ids)

	_, err = New(KindTrie, filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = New(Kind("wordpiece"), path)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		parsed, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseKind("bert")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func writeSentencePieceModel(t *testing.T, pieces ...string) string {
	model := &sentencepiece.ModelProto{}
	model.Pieces = append(model.Pieces, &sentencepiece.ModelProto_SentencePiece{
		Piece: proto.String("<unk>"),
		Score: proto.Float32(0),
		Type:  sentencepiece.ModelProto_SentencePiece_UNKNOWN.Enum(),
	})
	for i, p := range pieces {
		model.Pieces = append(model.Pieces, &sentencepiece.ModelProto_SentencePiece{
			Piece: proto.String(p),
			Score: proto.Float32(-float32(i)),
			Type:  sentencepiece.ModelProto_SentencePiece_NORMAL.Enum(),
		})
	}
	buf, err := proto.Marshal(model)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "test.model")
	require.NoError(t, os.WriteFile(path, buf, 0644))
	return path
}

func TestSentencePiece(t *testing.T) {
	path := writeSentencePieceModel(t, "▁hello", "▁world", "▁", "h", "e", "l", "o", "w", "r", "d")
	tok, err := New(KindSentencePiece, path)
	require.NoError(t, err)
	assert.Equal(t, 11, tok.VocabSize())

	ids, err := tok.Encode("hello world")
	require.NoError(t, err)
	require.NotEmpty(t, ids)
	for _, id := range ids {
		assert.Less(t, id, uint64(tok.VocabSize()))
	}

	garbage := filepath.Join(t.TempDir(), "garbage.model")
	require.NoError(t, os.WriteFile(garbage, []byte{0xff, 0xff, 0xff}, 0644))
	_, err = New(KindSentencePiece, garbage)
	assert.Error(t, err)
}

func TestGPTBPE(t *testing.T) {
	tok, err := New(KindGPTBPE, "gpt2")
	if err != nil {
		t.Skipf("gpt2 vocabulary unavailable: %v", err)
	}
	assert.Equal(t, 50257, tok.VocabSize())

	ids, err := tok.Encode("hello world")
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	for _, id := range ids {
		assert.Less(t, id, uint64(tok.VocabSize()))
	}
}
