// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/olegiv/otax-go/internal/taxonomy"
)

// MaxTextLength is the maximum length of a single multilingual value.
const MaxTextLength = 1000

// MultilingualText is a language-tagged text map with deterministic fallback.
// Insertion order is preserved, so fallback resolution is stable across
// serialization round-trips.
type MultilingualText struct {
	langs  []string
	values map[string]string
}

// NewMultilingualText creates a MultilingualText from alternating
// language/value pairs, preserving the given order.
func NewMultilingualText(pairs ...string) MultilingualText {
	var t MultilingualText
	for i := 0; i+1 < len(pairs); i += 2 {
		t.Set(pairs[i], pairs[i+1])
	}
	return t
}

// Set stores a value for a language. Setting an existing language replaces
// the value but keeps its original position.
func (t *MultilingualText) Set(lang, value string) {
	if t.values == nil {
		t.values = make(map[string]string)
	}
	if _, ok := t.values[lang]; !ok {
		t.langs = append(t.langs, lang)
	}
	t.values[lang] = value
}

// Get returns the exact-match value for a language.
func (t MultilingualText) Get(lang string) (string, bool) {
	v, ok := t.values[lang]
	return v, ok
}

// GetOr returns the exact-match value for a language, or def if absent.
func (t MultilingualText) GetOr(lang, def string) string {
	if v, ok := t.values[lang]; ok {
		return v
	}
	return def
}

// Resolve returns the first value matching the preferred languages in order,
// falling back to the first entry in insertion order, or "" when empty.
func (t MultilingualText) Resolve(preferred ...string) string {
	for _, lang := range preferred {
		if v, ok := t.values[lang]; ok {
			return v
		}
	}
	if len(t.langs) > 0 {
		return t.values[t.langs[0]]
	}
	return ""
}

// Languages returns the language codes in insertion order.
func (t MultilingualText) Languages() []string {
	out := make([]string, len(t.langs))
	copy(out, t.langs)
	return out
}

// Len returns the number of language entries.
func (t MultilingualText) Len() int {
	return len(t.langs)
}

// IsZero reports whether the map has no entries.
func (t MultilingualText) IsZero() bool {
	return len(t.langs) == 0
}

// Clone returns an independent copy.
func (t MultilingualText) Clone() MultilingualText {
	var c MultilingualText
	for _, lang := range t.langs {
		c.Set(lang, t.values[lang])
	}
	return c
}

// Equal reports whether two maps hold the same entries in the same order.
func (t MultilingualText) Equal(other MultilingualText) bool {
	if len(t.langs) != len(other.langs) {
		return false
	}
	for i, lang := range t.langs {
		if other.langs[i] != lang || t.values[lang] != other.values[lang] {
			return false
		}
	}
	return true
}

// Validate checks the construction rules: at least one entry when required,
// language codes of at least two characters, values non-empty and at most
// MaxTextLength characters.
func (t MultilingualText) Validate(field string, required bool) error {
	if t.Len() == 0 {
		if required {
			return &taxonomy.ValidationError{Field: field, Message: "at least one language entry is required"}
		}
		return nil
	}
	for _, lang := range t.langs {
		if len(lang) < 2 {
			return &taxonomy.ValidationError{Field: field, Message: fmt.Sprintf("invalid language code %q", lang)}
		}
		value := t.values[lang]
		if strings.TrimSpace(value) == "" {
			return &taxonomy.ValidationError{Field: field, Message: fmt.Sprintf("empty value for language %q", lang)}
		}
		if len([]rune(value)) > MaxTextLength {
			return &taxonomy.ValidationError{Field: field, Message: fmt.Sprintf("value for language %q exceeds %d characters", lang, MaxTextLength)}
		}
	}
	return nil
}

// MarshalJSON encodes the map as a JSON object in insertion order.
func (t MultilingualText) MarshalJSON() ([]byte, error) {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, lang := range t.langs {
		if i > 0 {
			sb.WriteByte(',')
		}
		k, err := json.Marshal(lang)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(t.values[lang])
		if err != nil {
			return nil, err
		}
		sb.Write(k)
		sb.WriteByte(':')
		sb.Write(v)
	}
	sb.WriteByte('}')
	return []byte(sb.String()), nil
}

// UnmarshalJSON decodes a JSON object preserving key order.
func (t *MultilingualText) UnmarshalJSON(data []byte) error {
	*t = MultilingualText{}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("multilingual text: expected JSON object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("multilingual text: non-string key %v", keyTok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("multilingual text: value for %q: %w", key, err)
		}
		t.Set(key, value)
	}
	_, err = dec.Token() // closing brace
	return err
}

// Value implements driver.Valuer so the map can be stored as a JSON column.
func (t MultilingualText) Value() (driver.Value, error) {
	b, err := t.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSON columns.
func (t *MultilingualText) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = MultilingualText{}
		return nil
	case string:
		return t.UnmarshalJSON([]byte(v))
	case []byte:
		return t.UnmarshalJSON(v)
	default:
		return fmt.Errorf("multilingual text: cannot scan %T", src)
	}
}
