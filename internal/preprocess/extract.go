// Copyright 2024 The bit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package preprocess

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bpowers/binidx/internal/config"
)

// ErrFieldType is returned when a mapped field holds the wrong JSON type.
var ErrFieldType = errors.New("field has wrong type")

// Extract returns the document texts of one JSONL record.  Fields the
// mapping names but the record lacks are skipped, so a record may yield no
// documents at all.
func Extract(fields config.FieldsConfig, record []byte) ([]string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(record, &obj); err != nil {
		return nil, fmt.Errorf("json.Unmarshal: %w", err)
	}

	var docs []string
	if fields.Text != "" {
		if raw, ok := obj[fields.Text]; ok {
			var text string
			if err := json.Unmarshal(raw, &text); err != nil {
				return nil, fmt.Errorf("%w: %q should be a string: %w", ErrFieldType, fields.Text, err)
			}
			docs = append(docs, text)
		}
	}
	if fields.Documents != "" {
		if raw, ok := obj[fields.Documents]; ok {
			var texts []string
			if err := json.Unmarshal(raw, &texts); err != nil {
				return nil, fmt.Errorf("%w: %q should be a list of strings: %w", ErrFieldType, fields.Documents, err)
			}
			docs = append(docs, texts...)
		}
	}
	if fields.Conversation != "" {
		if raw, ok := obj[fields.Conversation]; ok {
			text, err := renderConversation(fields, obj, raw)
			if err != nil {
				return nil, err
			}
			docs = append(docs, text)
		}
	}
	return docs, nil
}

// renderConversation joins messages as "<role>: <content>" paragraphs,
// led by the system prompt if the record has one.
func renderConversation(fields config.FieldsConfig, obj map[string]json.RawMessage, raw json.RawMessage) (string, error) {
	var messages []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &messages); err != nil {
		return "", fmt.Errorf("%w: %q should be a list of objects: %w", ErrFieldType, fields.Conversation, err)
	}

	var parts []string
	if fields.System != "" {
		if sysRaw, ok := obj[fields.System]; ok {
			var system string
			if err := json.Unmarshal(sysRaw, &system); err != nil {
				return "", fmt.Errorf("%w: %q should be a string: %w", ErrFieldType, fields.System, err)
			}
			if system != "" {
				parts = append(parts, "system: "+system)
			}
		}
	}
	for i, msg := range messages {
		var role, content string
		if err := json.Unmarshal(msg[fields.Role], &role); err != nil {
			return "", fmt.Errorf("%w: message %d %q should be a string: %w", ErrFieldType, i, fields.Role, err)
		}
		if err := json.Unmarshal(msg[fields.Content], &content); err != nil {
			return "", fmt.Errorf("%w: message %d %q should be a string: %w", ErrFieldType, i, fields.Content, err)
		}
		parts = append(parts, role+": "+content)
	}
	return strings.Join(parts, "\n\n"), nil
}
