// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// Content dispositions for category deletion.
const (
	ContentActionMoveToParent   = "move_to_parent"
	ContentActionMoveToCategory = "move_to_category"
	ContentActionArchive        = "archive"
)

// Subcategory dispositions for category deletion.
const (
	SubcategoryActionMoveToParent   = "move_to_parent"
	SubcategoryActionMoveToCategory = "move_to_category"
	SubcategoryActionDelete         = "delete"
)

// DeletionPolicy describes what happens to a category's direct content and
// direct children when the category is removed. Empty actions are only valid
// for nodes without content/children, or under ForceDelete.
type DeletionPolicy struct {
	ContentAction     string  `json:"content_action,omitempty"`
	SubcategoryAction string  `json:"subcategory_action,omitempty"`
	TargetCategoryID  *string `json:"target_category_id,omitempty"`
	ForceDelete       bool    `json:"force_delete,omitempty"`
}

// DeletionDisposition records what was done with one node during a deletion.
type DeletionDisposition struct {
	CategoryID        string `json:"category_id"`
	Path              string `json:"path"`
	ContentAction     string `json:"content_action,omitempty"`
	ContentMoved      int64  `json:"content_moved,omitempty"`
	ContentArchived   int64  `json:"content_archived,omitempty"`
	SubcategoryAction string `json:"subcategory_action,omitempty"`
	MovedTo           string `json:"moved_to,omitempty"`
}

// DeletionReport is returned by Delete for audit logging. It lists the
// disposition taken for the deleted node and every subcategory removed with
// it.
type DeletionReport struct {
	CategoryID      string                `json:"category_id"`
	Dispositions    []DeletionDisposition `json:"dispositions"`
	NodesDeleted    int                   `json:"nodes_deleted"`
	ContentArchived int64                 `json:"content_archived"`
	ContentMoved    int64                 `json:"content_moved"`
}
