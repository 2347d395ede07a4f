// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import "strings"

// Helpers for materialized category paths. Paths always start with "/" and
// never end with one: "/sciences/physics".

// JoinPath appends a segment to a parent path. An empty parent path yields a
// root path.
func JoinPath(parentPath, segment string) string {
	if parentPath == "" || parentPath == "/" {
		return "/" + segment
	}
	return parentPath + "/" + segment
}

// LastSegment returns the final segment of a path.
func LastSegment(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// ParentPath returns the path with the last segment removed, or "" for a
// root path.
func ParentPath(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i <= 0 {
		return ""
	}
	return path[:i]
}

// IsDescendantPath reports whether candidate is a strict descendant of
// ancestor in path terms.
func IsDescendantPath(ancestorPath, candidatePath string) bool {
	return strings.HasPrefix(candidatePath, ancestorPath+"/")
}

// ReplacePathPrefix rewrites a descendant path after its ancestor moved from
// oldPrefix to newPrefix. The caller must ensure path has the old prefix.
func ReplacePathPrefix(path, oldPrefix, newPrefix string) string {
	return newPrefix + strings.TrimPrefix(path, oldPrefix)
}

// PathDepth returns the number of segments in a path ("/a/b" -> 2), which
// equals level+1 for a well-formed node path.
func PathDepth(path string) int {
	if path == "" || path == "/" {
		return 0
	}
	return strings.Count(path, "/")
}
