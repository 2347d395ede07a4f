// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/olegiv/otax-go/internal/taxonomy"
)

func TestMultilingualText_Resolve(t *testing.T) {
	text := NewMultilingualText("en", "Sciences", "cs", "Vědy", "de", "Wissenschaften")

	if got := text.Resolve("cs"); got != "Vědy" {
		t.Errorf("Resolve(cs) = %q, want %q", got, "Vědy")
	}
	if got := text.Resolve("fr", "de"); got != "Wissenschaften" {
		t.Errorf("Resolve(fr, de) = %q, want %q", got, "Wissenschaften")
	}
	// No preferred match falls back to the first inserted language.
	if got := text.Resolve("fr"); got != "Sciences" {
		t.Errorf("Resolve(fr) = %q, want first-inserted %q", got, "Sciences")
	}

	var empty MultilingualText
	if got := empty.Resolve("en"); got != "" {
		t.Errorf("Resolve on empty = %q, want empty string", got)
	}
}

func TestMultilingualText_SetKeepsPosition(t *testing.T) {
	text := NewMultilingualText("en", "One", "cs", "Jedna")
	text.Set("en", "First")

	langs := text.Languages()
	if len(langs) != 2 || langs[0] != "en" || langs[1] != "cs" {
		t.Fatalf("Languages() = %v, want [en cs]", langs)
	}
	if got, _ := text.Get("en"); got != "First" {
		t.Errorf("Get(en) = %q, want %q", got, "First")
	}
}

func TestMultilingualText_JSONRoundTripPreservesOrder(t *testing.T) {
	text := NewMultilingualText("cs", "Fyzika", "en", "Physics", "de", "Physik")

	b, err := json.Marshal(text)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"cs":"Fyzika","en":"Physics","de":"Physik"}`
	if string(b) != want {
		t.Errorf("Marshal = %s, want %s", b, want)
	}

	var decoded MultilingualText
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !decoded.Equal(text) {
		t.Errorf("round trip changed content or order: %v vs %v", decoded.Languages(), text.Languages())
	}
	// Fallback target must survive the round trip.
	if got := decoded.Resolve("xx"); got != "Fyzika" {
		t.Errorf("Resolve after round trip = %q, want %q", got, "Fyzika")
	}
}

func TestMultilingualText_ScanValue(t *testing.T) {
	text := NewMultilingualText("en", "Audio", "cs", "Zvuk")

	v, err := text.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var scanned MultilingualText
	if err := scanned.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !scanned.Equal(text) {
		t.Errorf("Scan(Value()) = %v, want %v", scanned, text)
	}

	var fromNil MultilingualText
	if err := fromNil.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if !fromNil.IsZero() {
		t.Error("Scan(nil) did not produce zero value")
	}
}

func TestMultilingualText_Validate(t *testing.T) {
	tests := []struct {
		name     string
		text     MultilingualText
		required bool
		wantErr  bool
	}{
		{"valid", NewMultilingualText("en", "Sciences"), true, false},
		{"empty optional", MultilingualText{}, false, false},
		{"empty required", MultilingualText{}, true, true},
		{"short lang code", NewMultilingualText("e", "Sciences"), true, true},
		{"blank value", NewMultilingualText("en", "   "), true, true},
		{"too long value", NewMultilingualText("en", strings.Repeat("x", MaxTextLength+1)), true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.text.Validate("name", tt.required)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var ve *taxonomy.ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("Validate() error type = %T, want *taxonomy.ValidationError", err)
				}
				if ve.Field != "name" {
					t.Errorf("Field = %q, want %q", ve.Field, "name")
				}
			}
		})
	}
}

func TestMultilingualText_CloneIsIndependent(t *testing.T) {
	orig := NewMultilingualText("en", "Topic")
	clone := orig.Clone()
	clone.Set("en", "Changed")
	clone.Set("cs", "Téma")

	if got, _ := orig.Get("en"); got != "Topic" {
		t.Errorf("original mutated through clone: %q", got)
	}
	if orig.Len() != 1 {
		t.Errorf("original Len() = %d, want 1", orig.Len())
	}
}
