// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package tokenizer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

type trieNode struct {
	children map[byte]*trieNode
	id       uint64
	terminal bool
}

func (n *trieNode) child(b byte) *trieNode {
	if n.children == nil {
		n.children = make(map[byte]*trieNode)
	}
	c, ok := n.children[b]
	if !ok {
		c = &trieNode{}
		n.children[b] = c
	}
	return c
}

// Trie tokenizes by repeatedly taking the longest vocabulary entry that
// prefixes the remaining input bytes.
type Trie struct {
	root      trieNode
	vocabSize int
}

var _ Tokenizer = &Trie{}

// LoadTrie reads a vocabulary file, see ReadTrie.
func LoadTrie(path string) (*Trie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open(%s): %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	t, err := ReadTrie(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ReadTrie parses a vocabulary with one entry per line:
//
//	<id> <json string> [<byte length>]
//
// A string prefixed with b, like b"â\u0080", is a byte string: each
// character is one byte value.  Blank lines are skipped.
func ReadTrie(r io.Reader) (*Trie, error) {
	t := &Trie{}
	ids := make(map[uint64]struct{})

	s := bufio.NewScanner(bufio.NewReaderSize(r, 16*1024))
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for s.Scan() {
		line++
		text := strings.TrimSpace(s.Text())
		if text == "" {
			continue
		}
		id, token, err := parseVocabLine(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if _, dup := ids[id]; dup {
			return nil, fmt.Errorf("line %d: duplicate id %d", line, id)
		}
		ids[id] = struct{}{}
		if err := t.insert(token, id); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("bufio.Scanner: %w", err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("empty vocabulary")
	}
	return t, nil
}

func parseVocabLine(text string) (id uint64, token []byte, err error) {
	sep := strings.IndexAny(text, " \t")
	if sep < 0 {
		return 0, nil, fmt.Errorf("expected '<id> <string>', got %q", text)
	}
	idStr, rest := text[:sep], text[sep+1:]
	id, err = strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("strconv.ParseUint: %w", err)
	}

	rest = strings.TrimSpace(rest)
	raw := strings.HasPrefix(rest, "b\"")
	if raw {
		rest = rest[1:]
	}
	dec := json.NewDecoder(strings.NewReader(rest))
	var str string
	if err := dec.Decode(&str); err != nil {
		return 0, nil, fmt.Errorf("bad token string %q: %w", rest, err)
	}
	if raw {
		token = make([]byte, 0, len(str))
		for _, c := range str {
			if c > 0xff {
				return 0, nil, fmt.Errorf("byte string %q has non-byte character %q", rest, c)
			}
			token = append(token, byte(c))
		}
	} else {
		token = []byte(str)
	}

	if tail := strings.TrimSpace(rest[dec.InputOffset():]); tail != "" {
		n, err := strconv.Atoi(tail)
		if err != nil {
			return 0, nil, fmt.Errorf("bad byte length %q: %w", tail, err)
		}
		if n != len(token) {
			return 0, nil, fmt.Errorf("token %q is %d bytes, line says %d", token, len(token), n)
		}
	}
	return id, token, nil
}

func (t *Trie) insert(token []byte, id uint64) error {
	if len(token) == 0 {
		return fmt.Errorf("empty token for id %d", id)
	}
	// VocabSize is id+1 and must fit an int
	if id >= math.MaxInt {
		return fmt.Errorf("id %d too large", id)
	}
	n := &t.root
	for _, b := range token {
		n = n.child(b)
	}
	if n.terminal {
		return fmt.Errorf("token %q is listed twice (ids %d and %d)", token, n.id, id)
	}
	n.terminal = true
	n.id = id
	if id >= uint64(t.vocabSize) {
		t.vocabSize = int(id) + 1
	}
	return nil
}

func (t *Trie) VocabSize() int {
	return t.vocabSize
}

// Encode returns the ids of the greedy longest-match tokenization of text.
func (t *Trie) Encode(text string) ([]uint64, error) {
	var out []uint64
	for i := 0; i < len(text); {
		n := &t.root
		matchLen := 0
		var matchID uint64
		for j := i; j < len(text); j++ {
			next, ok := n.children[text[j]]
			if !ok {
				break
			}
			n = next
			if n.terminal {
				matchLen = j + 1 - i
				matchID = n.id
			}
		}
		if matchLen == 0 {
			return nil, fmt.Errorf("%w: byte %#x at offset %d", ErrNoMatch, text[i], i)
		}
		out = append(out, matchID)
		i += matchLen
	}
	return out, nil
}
