// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package binidx

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bpowers/binidx/dtype"
)

// doc is a document as the list of its chunks.
type doc [][]uint64

// single wraps each token list as a one-chunk document.
func single(docs ...[]uint64) []doc {
	out := make([]doc, 0, len(docs))
	for _, d := range docs {
		if len(d) == 0 {
			out = append(out, doc{})
		} else {
			out = append(out, doc{d})
		}
	}
	return out
}

func (d doc) tokens() []uint64 {
	out := []uint64{}
	for _, chunk := range d {
		out = append(out, chunk...)
	}
	return out
}

func addDocs(t testing.TB, b *Builder, docs []doc) {
	for _, d := range docs {
		for _, chunk := range d {
			require.NoError(t, b.AddItem(chunk))
		}
		require.NoError(t, b.EndDocument())
	}
}

// buildShard writes docs to a new shard named name in dir and returns its
// prefix.
func buildShard(t testing.TB, dir, name string, dt dtype.DType, docs []doc) string {
	prefix := filepath.Join(dir, name)
	b, err := NewBuilder(DataPath(prefix), dt)
	require.NoError(t, err)
	addDocs(t, b, docs)
	require.NoError(t, b.Finalize(IndexPath(prefix)))
	return prefix
}

func dirNames(t testing.TB, dir string) []string {
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestBuilder_ExampleShard(t *testing.T) {
	dir := t.TempDir()
	prefix := buildShard(t, dir, "shard", dtype.Uint16, single(
		[]uint64{1, 2, 3},
		[]uint64{4},
		nil,
		[]uint64{5, 6},
	))

	stat, err := os.Stat(DataPath(prefix))
	require.NoError(t, err)
	assert.Equal(t, int64((3+1+0+2)*2), stat.Size())
	assert.Equal(t, os.FileMode(0444), stat.Mode().Perm())

	stat, err = os.Stat(IndexPath(prefix))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0444), stat.Mode().Perm())

	// no temporary files are left behind
	assert.Equal(t, []string{"shard.bin", "shard.idx"}, dirNames(t, dir))

	payload, err := os.ReadFile(DataPath(prefix))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 2, 0, 3, 0, 4, 0, 5, 0, 6, 0}, payload)
}

func TestBuilder_NothingVisibleBeforeFinalize(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "shard")
	b, err := NewBuilder(DataPath(prefix), dtype.Uint32)
	require.NoError(t, err)
	addDocs(t, b, single([]uint64{1, 2}, []uint64{3}))

	_, err = os.Stat(DataPath(prefix))
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(IndexPath(prefix))
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.Equal(t, 2, b.DocumentCount())
	assert.Equal(t, 2, b.ChunkCount())
	assert.Equal(t, int64(12), b.PayloadLen())
	require.NoError(t, b.Finalize(IndexPath(prefix)))
}

func TestBuilder_IndexRenameFails(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "shard")
	// a non-empty directory where the index should go can't be replaced
	require.NoError(t, os.MkdirAll(filepath.Join(IndexPath(prefix), "x"), 0o755))

	b, err := NewBuilder(DataPath(prefix), dtype.Uint16)
	require.NoError(t, err)
	addDocs(t, b, single([]uint64{1, 2}))
	assert.Error(t, b.Finalize(IndexPath(prefix)))

	_, err = os.Stat(DataPath(prefix))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, []string{"shard.idx"}, dirNames(t, dir))
}

func TestBuilder_TokenRange(t *testing.T) {
	dir := t.TempDir()
	b, err := NewBuilder(filepath.Join(dir, "shard.bin"), dtype.Uint8)
	require.NoError(t, err)
	defer func() {
		_ = b.Abort()
	}()

	require.NoError(t, b.AddItem([]uint64{255}))
	err = b.AddItem([]uint64{1, 256})
	assert.ErrorIs(t, err, ErrTokenRange)
	// the rejected chunk wasn't recorded at all
	assert.Equal(t, 1, b.ChunkCount())
	assert.Equal(t, int64(1), b.PayloadLen())
}

func TestBuilder_InvalidDType(t *testing.T) {
	_, err := NewBuilder(filepath.Join(t.TempDir(), "shard.bin"), dtype.DType(7))
	assert.ErrorIs(t, err, dtype.ErrUnknown)
}

func TestBuilder_MissingDirectory(t *testing.T) {
	_, err := NewBuilder(filepath.Join(t.TempDir(), "nope", "shard.bin"), dtype.Uint16)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuilder_Finalized(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "shard")
	other := buildShard(t, dir, "other", dtype.Uint16, single([]uint64{1}))

	b, err := NewBuilder(DataPath(prefix), dtype.Uint16)
	require.NoError(t, err)
	addDocs(t, b, single([]uint64{1, 2}))
	require.NoError(t, b.Finalize(IndexPath(prefix)))

	assert.ErrorIs(t, b.AddItem([]uint64{1}), ErrFinalized)
	assert.ErrorIs(t, b.EndDocument(), ErrFinalized)
	assert.ErrorIs(t, b.MergeFile(other), ErrFinalized)
	assert.ErrorIs(t, b.Finalize(IndexPath(prefix)), ErrFinalized)
	assert.ErrorIs(t, b.Abort(), ErrFinalized)
}

func TestBuilder_PendingChunks(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "shard")
	b, err := NewBuilder(DataPath(prefix), dtype.Uint16)
	require.NoError(t, err)

	require.NoError(t, b.AddItem([]uint64{1, 2}))
	assert.ErrorIs(t, b.Finalize(IndexPath(prefix)), ErrDocumentOpen)

	// grouping is never implicit, but the builder is still usable
	require.NoError(t, b.EndDocument())
	require.NoError(t, b.Finalize(IndexPath(prefix)))

	ds, err := Open(prefix)
	require.NoError(t, err)
	defer func() {
		_ = ds.Close()
	}()
	assert.Equal(t, 1, ds.DocumentCount())
}

func TestBuilder_Abort(t *testing.T) {
	dir := t.TempDir()
	b, err := NewBuilder(filepath.Join(dir, "shard.bin"), dtype.Uint16)
	require.NoError(t, err)
	addDocs(t, b, single([]uint64{1, 2, 3}))
	require.NoError(t, b.Abort())

	assert.Empty(t, dirNames(t, dir))
	assert.ErrorIs(t, b.AddItem([]uint64{1}), ErrFinalized)
}

func TestBuilder_EmptyShard(t *testing.T) {
	dir := t.TempDir()
	prefix := buildShard(t, dir, "empty", dtype.Uint16, nil)

	for _, s := range []Strategy{Mapped, Cached, Lazy} {
		ds, err := Open(prefix, WithStrategy(s))
		require.NoError(t, err, s.String())
		assert.Equal(t, 0, ds.DocumentCount())
		assert.Equal(t, int64(0), ds.TokenCount())
		_, err = ds.Document(0)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
		require.NoError(t, ds.Close())
	}
}

func TestBuilder_Logger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	dir := t.TempDir()
	other := buildShard(t, dir, "other", dtype.Uint16, single([]uint64{1}))
	prefix := filepath.Join(dir, "shard")
	b, err := NewBuilder(DataPath(prefix), dtype.Uint16, WithBuilderLogger(logger), WithBufferSize(16))
	require.NoError(t, err)
	require.NoError(t, b.MergeFile(other))
	require.NoError(t, b.Finalize(IndexPath(prefix)))

	out := buf.String()
	assert.Contains(t, out, "merged shard")
	assert.Contains(t, out, "finalized shard")
	assert.Contains(t, out, "dtype=uint16")
}

func TestBuilder_SmallBuffer(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "shard")
	b, err := NewBuilder(DataPath(prefix), dtype.Uint64, WithBufferSize(3))
	require.NoError(t, err)
	docs := single([]uint64{1 << 40, 2, 3}, []uint64{1<<64 - 1})
	addDocs(t, b, docs)
	require.NoError(t, b.Finalize(IndexPath(prefix)))

	ds, err := Open(prefix)
	require.NoError(t, err)
	defer func() {
		_ = ds.Close()
	}()
	for i, d := range docs {
		toks, err := ds.Document(i)
		require.NoError(t, err)
		assert.Equal(t, d.tokens(), toks.Uint64s())
	}
}
