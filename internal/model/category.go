// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the taxonomy domain types.
package model

import (
	"time"
)

// Category types
const (
	CategoryTypeTopic      = "topic"
	CategoryTypeFormat     = "format"
	CategoryTypeAudience   = "audience"
	CategoryTypeLanguage   = "language"
	CategoryTypeSeriesType = "series_type"
)

// CategoryTypes lists all valid category types.
var CategoryTypes = []string{
	CategoryTypeTopic,
	CategoryTypeFormat,
	CategoryTypeAudience,
	CategoryTypeLanguage,
	CategoryTypeSeriesType,
}

// Visibility values
const (
	VisibilityPublic     = "public"
	VisibilityPrivate    = "private"
	VisibilityRestricted = "restricted"
)

// Visibilities lists all valid visibility values.
var Visibilities = []string{VisibilityPublic, VisibilityPrivate, VisibilityRestricted}

// IsValidCategoryType reports whether t is a known category type.
func IsValidCategoryType(t string) bool {
	for _, v := range CategoryTypes {
		if v == t {
			return true
		}
	}
	return false
}

// IsValidVisibility reports whether v is a known visibility value.
func IsValidVisibility(v string) bool {
	for _, known := range Visibilities {
		if known == v {
			return true
		}
	}
	return false
}

// Category is a node in a multilingual taxonomy tree. The path is the
// materialized, slash-delimited encoding of the ancestor chain; counters are
// denormalized and maintained incrementally.
type Category struct {
	ID             string           `json:"id"`
	CategoryType   string           `json:"category_type"`
	Name           MultilingualText `json:"name"`
	Description    MultilingualText `json:"description,omitempty"`
	Slug           MultilingualText `json:"slug,omitempty"`
	SEOTitle       MultilingualText `json:"seo_title,omitempty"`
	SEODescription MultilingualText `json:"seo_description,omitempty"`
	ParentID       *string          `json:"parent_id,omitempty"`
	Level          int              `json:"level"`
	Path           string           `json:"path"`
	SortOrder      int              `json:"sort_order"`
	IsActive       bool             `json:"is_active"`
	Visibility     string           `json:"visibility"`

	ContentCount      int64 `json:"content_count"`
	SubcategoryCount  int64 `json:"subcategory_count"`
	TotalContentCount int64 `json:"total_content_count"`

	ColorScheme string `json:"color_scheme,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRoot returns true for nodes without a parent.
func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}

// Segment returns the last path segment of the materialized path.
func (c *Category) Segment() string {
	for i := len(c.Path) - 1; i >= 0; i-- {
		if c.Path[i] == '/' {
			return c.Path[i+1:]
		}
	}
	return c.Path
}

// TreeNode is a category with its resolved children, as returned by GetTree.
type TreeNode struct {
	Category
	Children []*TreeNode `json:"children,omitempty"`
}
