// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package util provides general-purpose utility functions including
// URL slug generation and validation with Unicode normalization support.
package util

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// slugRegex matches non-alphanumeric characters (except hyphens)
	slugRegex = regexp.MustCompile(`[^a-z0-9-]+`)
	// multipleHyphens matches multiple consecutive hyphens
	multipleHyphens = regexp.MustCompile(`-{2,}`)
	// colorRegex matches a 6-hex-digit color string, with optional leading #
	colorRegex = regexp.MustCompile(`^#?[0-9a-fA-F]{6}$`)
	// langCodeRegex matches BCP-47-ish language codes: "en", "pt-br", "zh-hant"
	langCodeRegex = regexp.MustCompile(`^[a-z]{2,3}(-[a-z0-9]{2,8})*$`)
)

// Slugify converts a string to a URL-friendly slug. Non-Latin scripts are
// transliterated to ASCII first, then accents are decomposed and stripped.
func Slugify(s string) string {
	// Transliterate non-ASCII scripts (Cyrillic, CJK, ...) to ASCII
	result := unidecode.Unidecode(s)

	// Normalize unicode characters (decompose accents)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ = transform.String(t, result)

	result = strings.ToLower(result)
	result = strings.ReplaceAll(result, " ", "-")
	result = slugRegex.ReplaceAllString(result, "")
	result = multipleHyphens.ReplaceAllString(result, "-")
	result = strings.Trim(result, "-")

	return result
}

// IsValidSlug checks if a string is a valid slug format.
func IsValidSlug(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
			return false
		}
	}

	if s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}

	return !strings.Contains(s, "--")
}

// IsValidLangCode checks if a string looks like a language code (ISO 639
// with optional subtags, lowercase).
func IsValidLangCode(s string) bool {
	return langCodeRegex.MatchString(s)
}

// IsValidColorScheme checks if a string is a 6-hex-digit color, with or
// without a leading #.
func IsValidColorScheme(s string) bool {
	return colorRegex.MatchString(s)
}

// NormalizeColorScheme lowercases a color string and strips a leading #.
func NormalizeColorScheme(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, "#"))
}
