// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import "testing"

func TestJoinPath(t *testing.T) {
	tests := []struct {
		parent  string
		segment string
		want    string
	}{
		{"", "sciences", "/sciences"},
		{"/", "sciences", "/sciences"},
		{"/sciences", "physics", "/sciences/physics"},
		{"/sciences/physics", "quantum", "/sciences/physics/quantum"},
	}
	for _, tt := range tests {
		if got := JoinPath(tt.parent, tt.segment); got != tt.want {
			t.Errorf("JoinPath(%q, %q) = %q, want %q", tt.parent, tt.segment, got, tt.want)
		}
	}
}

func TestLastSegment(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/sciences", "sciences"},
		{"/sciences/physics", "physics"},
		{"physics", "physics"},
	}
	for _, tt := range tests {
		if got := LastSegment(tt.path); got != tt.want {
			t.Errorf("LastSegment(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestParentPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/sciences", ""},
		{"/sciences/physics", "/sciences"},
		{"/a/b/c", "/a/b"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ParentPath(tt.path); got != tt.want {
			t.Errorf("ParentPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestIsDescendantPath(t *testing.T) {
	tests := []struct {
		ancestor  string
		candidate string
		want      bool
	}{
		{"/sciences", "/sciences/physics", true},
		{"/sciences", "/sciences/physics/quantum", true},
		{"/sciences", "/sciences", false},
		{"/sciences", "/sciences-2", false},
		{"/sciences", "/arts", false},
	}
	for _, tt := range tests {
		if got := IsDescendantPath(tt.ancestor, tt.candidate); got != tt.want {
			t.Errorf("IsDescendantPath(%q, %q) = %v, want %v", tt.ancestor, tt.candidate, got, tt.want)
		}
	}
}

func TestReplacePathPrefix(t *testing.T) {
	got := ReplacePathPrefix("/sciences/physics/quantum", "/sciences/physics", "/physics")
	if got != "/physics/quantum" {
		t.Errorf("ReplacePathPrefix = %q, want %q", got, "/physics/quantum")
	}
}

func TestPathDepth(t *testing.T) {
	tests := []struct {
		path string
		want int
	}{
		{"", 0},
		{"/", 0},
		{"/sciences", 1},
		{"/sciences/physics", 2},
	}
	for _, tt := range tests {
		if got := PathDepth(tt.path); got != tt.want {
			t.Errorf("PathDepth(%q) = %d, want %d", tt.path, got, tt.want)
		}
	}
}
