// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package config holds the settings of the preprocess command.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/bpowers/binidx/dtype"
	"github.com/bpowers/binidx/internal/tokenizer"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config describes how JSONL records become documents.
type Config struct {
	// DType is the on-disk token type.  When empty it's picked from the
	// tokenizer's vocabulary size.
	DType string `yaml:"dtype"`
	// AppendEOD appends EODToken to the end of every document.
	AppendEOD bool   `yaml:"append_eod"`
	EODToken  uint64 `yaml:"eod_token"`
	// PrefixTokens and PostfixTokens are wrapped around every document's
	// tokens, before any EOD token.
	PrefixTokens  []uint64 `yaml:"prefix_tokens"`
	PostfixTokens []uint64 `yaml:"postfix_tokens"`
	// Workers is the number of shards built in parallel.
	Workers   int             `yaml:"workers"`
	Tokenizer TokenizerConfig `yaml:"tokenizer"`
	Fields    FieldsConfig    `yaml:"fields"`
}

type TokenizerConfig struct {
	Kind string `yaml:"kind"`
	// Vocab is the vocabulary file of the trie tokenizer.
	Vocab string `yaml:"vocab"`
	// Model is the SentencePiece model file.
	Model string `yaml:"model"`
	// Name is the gpt_bpe vocabulary id.
	Name string `yaml:"name"`
}

// FieldsConfig maps JSONL keys onto documents.  Each record yields
// documents from whichever of Text, Documents and Conversation are set and
// present in the record, in that order.
type FieldsConfig struct {
	// Text is a string field holding one document.
	Text string `yaml:"text"`
	// Documents is a list-of-strings field, one document per element.
	Documents string `yaml:"documents"`
	// Conversation is a list of message objects that together make one
	// document, each rendered as "<role>: <content>".
	Conversation string `yaml:"conversation"`
	Role         string `yaml:"role"`
	Content      string `yaml:"content"`
	// System is an optional string field rendered before the messages.
	System string `yaml:"system"`
}

// Default returns the settings used for keys a config file leaves out.
func Default() Config {
	return Config{
		AppendEOD: true,
		EODToken:  0,
		Workers:   4,
		Tokenizer: TokenizerConfig{
			Kind: string(tokenizer.KindTrie),
		},
		Fields: FieldsConfig{
			Text:    "text",
			Role:    "role",
			Content: "content",
		},
	}
}

// Load reads the YAML file at path on top of Default and validates the
// result.  Unknown keys are an error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("os.ReadFile: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse is Load for an in-memory document.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.DisallowUnknownField()); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// TokenizerSource returns the kind and the file or id to load it from.
func (c *Config) TokenizerSource() (tokenizer.Kind, string, error) {
	kind, err := tokenizer.ParseKind(c.Tokenizer.Kind)
	if err != nil {
		return "", "", err
	}
	switch kind {
	case tokenizer.KindTrie:
		return kind, c.Tokenizer.Vocab, nil
	case tokenizer.KindSentencePiece:
		return kind, c.Tokenizer.Model, nil
	default:
		return kind, c.Tokenizer.Name, nil
	}
}

// ResolveDType returns the configured dtype, or the one fitting vocabSize
// if none was configured.  Every configured special token must fit.
func (c *Config) ResolveDType(vocabSize int) (dtype.DType, error) {
	var dt dtype.DType
	if c.DType != "" {
		var err error
		if dt, err = dtype.Parse(c.DType); err != nil {
			return dtype.Invalid, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	} else {
		dt = dtype.ForVocabSize(vocabSize)
	}
	if vocabSize > 0 && uint64(vocabSize-1) > dt.Max() {
		return dtype.Invalid, fmt.Errorf("%w: vocabulary of %d doesn't fit %s", ErrInvalid, vocabSize, dt)
	}
	for _, tok := range c.specialTokens() {
		if tok > dt.Max() {
			return dtype.Invalid, fmt.Errorf("%w: special token %d doesn't fit %s", ErrInvalid, tok, dt)
		}
	}
	return dt, nil
}

func (c *Config) specialTokens() []uint64 {
	var toks []uint64
	toks = append(toks, c.PrefixTokens...)
	toks = append(toks, c.PostfixTokens...)
	if c.AppendEOD {
		toks = append(toks, c.EODToken)
	}
	return toks
}

// Validate reports every problem with c at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DType != "" {
		if _, err := dtype.Parse(c.DType); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}

	kind, source, err := c.TokenizerSource()
	if err != nil {
		errs = append(errs, err)
	} else if source == "" {
		key := map[tokenizer.Kind]string{
			tokenizer.KindTrie:          "vocab",
			tokenizer.KindSentencePiece: "model",
			tokenizer.KindGPTBPE:        "name",
		}[kind]
		errs = append(errs, fmt.Errorf("tokenizer.%s is required for the %s tokenizer", key, kind))
	}

	f := c.Fields
	if f.Text == "" && f.Documents == "" && f.Conversation == "" {
		errs = append(errs, errors.New("one of fields.text, fields.documents or fields.conversation is required"))
	}
	if f.Conversation != "" && (f.Role == "" || f.Content == "") {
		errs = append(errs, errors.New("fields.role and fields.content are required with fields.conversation"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
