// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package preprocess

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpowers/binidx"
	"github.com/bpowers/binidx/dtype"
	"github.com/bpowers/binidx/internal/config"
	"github.com/bpowers/binidx/internal/tokenizer"
)

// charVocab maps a-z to 1-26, space to 27, ':' to 28 and '\n' to 29.
func charVocab(t testing.TB) tokenizer.Tokenizer {
	var sb strings.Builder
	for c := 'a'; c <= 'z'; c++ {
		fmt.Fprintf(&sb, "%d \"%c\"\n", c-'a'+1, c)
	}
	sb.WriteString("27 \" \"\n28 \":\"\n29 \"\\n\"\n")
	tok, err := tokenizer.ReadTrie(strings.NewReader(sb.String()))
	require.NoError(t, err)
	return tok
}

func encodeChars(s string) []uint64 {
	out := []uint64{}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z':
			out = append(out, uint64(c-'a'+1))
		case c == ' ':
			out = append(out, 27)
		case c == ':':
			out = append(out, 28)
		case c == '\n':
			out = append(out, 29)
		}
	}
	return out
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Tokenizer.Vocab = "unused"
	return cfg
}

func TestExtract(t *testing.T) {
	fields := config.FieldsConfig{
		Text:         "text",
		Documents:    "pages",
		Conversation: "messages",
		Role:         "role",
		Content:      "content",
		System:       "system",
	}
	for _, tc := range []struct {
		name     string
		record   string
		expected []string
	}{
		{"text", `{"text": "hello", "id": 3}`, []string{"hello"}},
		{"empty text", `{"text": ""}`, []string{""}},
		{"documents", `{"pages": ["a", "b"]}`, []string{"a", "b"}},
		{"text and documents", `{"text": "t", "pages": ["p"]}`, []string{"t", "p"}},
		{"none", `{"title": "x"}`, nil},
		{"conversation", `{"messages": [{"role": "user", "content": "hi"}, {"role": "assistant", "content": "yo"}]}`,
			[]string{"user: hi\n\nassistant: yo"}},
		{"conversation with system", `{"system": "be nice", "messages": [{"role": "user", "content": "hi"}]}`,
			[]string{"system: be nice\n\nuser: hi"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			docs, err := Extract(fields, []byte(tc.record))
			require.NoError(t, err)
			assert.Equal(t, tc.expected, docs)
		})
	}

	for _, bad := range []string{
		`{"text": 3}`,
		`{"pages": "a"}`,
		`{"messages": [{"role": "user"}]}`,
		`{"messages": {}}`,
		`not json`,
	} {
		_, err := Extract(fields, []byte(bad))
		assert.Error(t, err, bad)
	}
	_, err := Extract(fields, []byte(`{"text": 3}`))
	assert.ErrorIs(t, err, ErrFieldType)
}

func newBuilder(t *testing.T, prefix string, dt dtype.DType) *binidx.Builder {
	b, err := binidx.NewBuilder(binidx.DataPath(prefix), dt)
	require.NoError(t, err)
	return b
}

func readAll(t *testing.T, prefix string) [][]uint64 {
	ds, err := binidx.Open(prefix)
	require.NoError(t, err)
	defer func() {
		_ = ds.Close()
	}()
	var docs [][]uint64
	for i := 0; i < ds.DocumentCount(); i++ {
		toks, err := ds.Document(i)
		require.NoError(t, err)
		docs = append(docs, toks.Uint64s())
	}
	return docs
}

func TestProcessor(t *testing.T) {
	cfg := testConfig()
	cfg.EODToken = 0
	cfg.PrefixTokens = []uint64{30}
	cfg.PostfixTokens = []uint64{31}

	prefix := filepath.Join(t.TempDir(), "shard")
	b := newBuilder(t, prefix, dtype.Uint16)
	p := New(&cfg, charVocab(t), b, nil)

	input := "{\"text\": \"ab\"}\n\n{\"title\": \"skipped\"}\n  {\"text\": \"\"}  \n{\"text\": \"c d\"}\n"
	require.NoError(t, p.ProcessReader(context.Background(), strings.NewReader(input), "input.jsonl"))
	require.NoError(t, b.Finalize(binidx.IndexPath(prefix)))

	assert.Equal(t, Stats{Files: 1, Records: 4, Documents: 3, Skipped: 1, Tokens: 5 + 3 + 6}, p.Stats())
	assert.Equal(t, [][]uint64{
		{30, 1, 2, 31, 0},
		{30, 31, 0},
		{30, 3, 27, 4, 31, 0},
	}, readAll(t, prefix))
}

func TestProcessor_Errors(t *testing.T) {
	cfg := testConfig()
	prefix := filepath.Join(t.TempDir(), "shard")
	b := newBuilder(t, prefix, dtype.Uint8)
	defer func() {
		_ = b.Abort()
	}()
	p := New(&cfg, charVocab(t), b, nil)

	err := p.ProcessReader(context.Background(), strings.NewReader("{\"text\": \"a\"}\n{\"text\": 1}\n"), "bad.jsonl")
	assert.ErrorIs(t, err, ErrFieldType)
	assert.Contains(t, err.Error(), "bad.jsonl:2")

	err = p.ProcessReader(context.Background(), strings.NewReader("{\"text\": \"A\"}\n"), "upper.jsonl")
	assert.ErrorIs(t, err, tokenizer.ErrNoMatch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = p.ProcessReader(ctx, strings.NewReader("{\"text\": \"a\"}\n"), "canceled.jsonl")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessor_TokenRange(t *testing.T) {
	cfg := testConfig()
	cfg.EODToken = 300
	prefix := filepath.Join(t.TempDir(), "shard")
	b := newBuilder(t, prefix, dtype.Uint8)
	defer func() {
		_ = b.Abort()
	}()
	p := New(&cfg, charVocab(t), b, nil)
	assert.ErrorIs(t, p.AddDocument("a"), binidx.ErrTokenRange)
}

func writeCorpus(t *testing.T, dir string, files int) []string {
	var paths []string
	for i := 0; i < files; i++ {
		path := filepath.Join(dir, "corpus", fmt.Sprintf("%02d", i), "data.jsonl")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		var sb strings.Builder
		for j := 0; j <= i; j++ {
			fmt.Fprintf(&sb, "{\"text\": \"file %c record %c\"}\n", 'a'+i, 'a'+j)
		}
		require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0644))
		paths = append(paths, path)
	}
	return paths
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	files := writeCorpus(t, dir, 5)
	factory := func() (tokenizer.Tokenizer, error) {
		return charVocab(t), nil
	}

	fingerprints := map[int]uint64{}
	for _, workers := range []int{1, 2, 3, 8} {
		cfg := testConfig()
		cfg.Workers = workers
		out := filepath.Join(dir, fmt.Sprintf("out-%d", workers))

		stats, err := Run(context.Background(), &cfg, factory, out, files, nil)
		require.NoError(t, err)
		assert.Equal(t, 5, stats.Files)
		assert.Equal(t, int64(1+2+3+4+5), stats.Documents)

		docs := readAll(t, out)
		require.Len(t, docs, 15)
		assert.Equal(t, append(encodeChars("file a record a"), 0), docs[0])
		assert.Equal(t, append(encodeChars("file e record e"), 0), docs[14])

		fp, err := binidx.Fingerprint(out)
		require.NoError(t, err)
		fingerprints[workers] = fp
	}
	for workers, fp := range fingerprints {
		assert.Equal(t, fingerprints[1], fp, "%d workers", workers)
	}

	// no part shards are left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"corpus",
		"out-1.bin", "out-1.idx",
		"out-2.bin", "out-2.idx",
		"out-3.bin", "out-3.idx",
		"out-8.bin", "out-8.idx",
	}, names)
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	files := writeCorpus(t, dir, 3)
	bad := filepath.Join(dir, "bad.jsonl")
	require.NoError(t, os.WriteFile(bad, []byte("{\"text\": 1}\n"), 0644))
	factory := func() (tokenizer.Tokenizer, error) {
		return charVocab(t), nil
	}

	cfg := testConfig()
	cfg.Workers = 2
	out := filepath.Join(dir, "out")
	_, err := Run(context.Background(), &cfg, factory, out, append(files, bad), nil)
	assert.ErrorIs(t, err, ErrFieldType)
	_, err = os.Stat(binidx.DataPath(out))
	assert.ErrorIs(t, err, os.ErrNotExist)
	matches, err := filepath.Glob(filepath.Join(dir, "out*"))
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = Run(context.Background(), &cfg, factory, out, nil, nil)
	assert.Error(t, err)
}

func TestSplitFiles(t *testing.T) {
	files := []string{"a", "b", "c", "d", "e"}
	assert.Equal(t, [][]string{{"a", "b", "c", "d", "e"}}, splitFiles(files, 1))
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d", "e"}}, splitFiles(files, 2))
	assert.Len(t, splitFiles(files, 10), 5)
	assert.Len(t, splitFiles(files, 0), 1)
}
