// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/olegiv/otax-go/internal/model"
)

const categoryColumns = `id, category_type, name, description, slug, seo_title, seo_description,
	parent_id, level, path, sort_order, is_active, visibility,
	content_count, subcategory_count, total_content_count,
	color_scheme, version, created_at, updated_at`

// scanCategory scans a row into a Category.
func scanCategory(scanner interface{ Scan(...any) error }) (model.Category, error) {
	var c model.Category
	var parentID sql.NullString
	err := scanner.Scan(
		&c.ID, &c.CategoryType, &c.Name, &c.Description, &c.Slug, &c.SEOTitle, &c.SEODescription,
		&parentID, &c.Level, &c.Path, &c.SortOrder, &c.IsActive, &c.Visibility,
		&c.ContentCount, &c.SubcategoryCount, &c.TotalContentCount,
		&c.ColorScheme, &c.Version, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return model.Category{}, err
	}
	if parentID.Valid {
		c.ParentID = &parentID.String
	}
	return c, nil
}

func scanCategories(rows *sql.Rows) ([]model.Category, error) {
	defer func() { _ = rows.Close() }()

	var items []model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func nullParent(parentID *string) sql.NullString {
	if parentID != nil {
		return sql.NullString{String: *parentID, Valid: true}
	}
	return sql.NullString{}
}

// GetCategoryByID fetches a single category. Returns sql.ErrNoRows when absent.
func (q *Queries) GetCategoryByID(ctx context.Context, id string) (model.Category, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	return scanCategory(row)
}

// GetCategoryByPath fetches a category by its materialized path.
func (q *Queries) GetCategoryByPath(ctx context.Context, path string) (model.Category, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE path = ?`, path)
	return scanCategory(row)
}

// CategoryPathExists reports whether any row (active or not) holds the path.
func (q *Queries) CategoryPathExists(ctx context.Context, path string) (bool, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE path = ?`, path).Scan(&n)
	return n > 0, err
}

// ListChildren returns the direct children of a parent (nil for roots),
// ordered by sort_order then path for a stable traversal.
func (q *Queries) ListChildren(ctx context.Context, parentID *string, includeInactive bool) ([]model.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE `
	var args []any
	if parentID == nil {
		query += `parent_id IS NULL`
	} else {
		query += `parent_id = ?`
		args = append(args, *parentID)
	}
	if !includeInactive {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY sort_order, path`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return scanCategories(rows)
}

// ListDescendants returns every node whose path lies strictly under the given
// path, ordered by level so ancestors come before their descendants.
func (q *Queries) ListDescendants(ctx context.Context, path string) ([]model.Category, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE path LIKE ? ESCAPE '\' ORDER BY level, path`,
		escapeLike(path)+`/%`)
	if err != nil {
		return nil, fmt.Errorf("list descendants: %w", err)
	}
	return scanCategories(rows)
}

// CountChildren returns the live count of direct children.
func (q *Queries) CountChildren(ctx context.Context, parentID *string, activeOnly bool) (int64, error) {
	query := `SELECT COUNT(*) FROM categories WHERE `
	var args []any
	if parentID == nil {
		query += `parent_id IS NULL`
	} else {
		query += `parent_id = ?`
		args = append(args, *parentID)
	}
	if activeOnly {
		query += ` AND is_active = 1`
	}
	var n int64
	err := q.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// CreateCategory inserts a category row and its per-language text mirror.
func (q *Queries) CreateCategory(ctx context.Context, c *model.Category) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO categories (
			id, category_type, name, description, slug, seo_title, seo_description,
			parent_id, level, path, sort_order, is_active, visibility,
			content_count, subcategory_count, total_content_count,
			color_scheme, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CategoryType, c.Name, c.Description, c.Slug, c.SEOTitle, c.SEODescription,
		nullParent(c.ParentID), c.Level, c.Path, c.SortOrder, c.IsActive, c.Visibility,
		c.ContentCount, c.SubcategoryCount, c.TotalContentCount,
		c.ColorScheme, c.Version, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return q.ReplaceCategoryTexts(ctx, c.ID, c.Name, c.Slug)
}

// UpdateCategory rewrites the mutable fields of a category, guarded by the
// expected version. On success the row's version is incremented and the text
// mirror replaced. Returns ErrVersionMismatch or sql.ErrNoRows on conflict.
func (q *Queries) UpdateCategory(ctx context.Context, c *model.Category, expectedVersion int64) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE categories SET
			name = ?, description = ?, slug = ?, seo_title = ?, seo_description = ?,
			parent_id = ?, level = ?, path = ?, sort_order = ?, is_active = ?, visibility = ?,
			color_scheme = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		c.Name, c.Description, c.Slug, c.SEOTitle, c.SEODescription,
		nullParent(c.ParentID), c.Level, c.Path, c.SortOrder, c.IsActive, c.Visibility,
		c.ColorScheme, time.Now(), c.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if err := q.checkGuard(ctx, res, c.ID); err != nil {
		return err
	}
	c.Version = expectedVersion + 1
	return q.ReplaceCategoryTexts(ctx, c.ID, c.Name, c.Slug)
}

// UpdatePathLevel rewrites the materialized path and level of a single node,
// guarded by the expected version. Used for subtree cascades.
func (q *Queries) UpdatePathLevel(ctx context.Context, id, path string, level int, expectedVersion int64) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE categories SET path = ?, level = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		path, level, time.Now(), id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update path: %w", err)
	}
	return q.checkGuard(ctx, res, id)
}

// SetParent rewrites only the parent pointer. Callers update path and level
// separately; the version was already bumped by that guarded write.
func (q *Queries) SetParent(ctx context.Context, id string, parentID *string) error {
	if _, err := q.db.ExecContext(ctx, `
		UPDATE categories SET parent_id = ?, updated_at = ? WHERE id = ?`,
		nullParent(parentID), time.Now(), id,
	); err != nil {
		return fmt.Errorf("set parent: %w", err)
	}
	return nil
}

// SetActive flips the soft-delete flag, guarded by the expected version.
func (q *Queries) SetActive(ctx context.Context, id string, active bool, expectedVersion int64) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE categories SET is_active = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		active, time.Now(), id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	return q.checkGuard(ctx, res, id)
}

// AdjustCounters applies relative counter deltas as a single atomic update,
// so concurrent writers on the same lineage cannot lose increments.
func (q *Queries) AdjustCounters(ctx context.Context, id string, contentDelta, subcategoryDelta, totalDelta int64) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE categories SET
			content_count = content_count + ?,
			subcategory_count = subcategory_count + ?,
			total_content_count = total_content_count + ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ?`,
		contentDelta, subcategoryDelta, totalDelta, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("adjust counters: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetCounters overwrites the denormalized counters with recomputed values.
// Only the repair path uses it.
func (q *Queries) SetCounters(ctx context.Context, id string, contentCount, subcategoryCount, totalCount int64) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE categories SET
			content_count = ?, subcategory_count = ?, total_content_count = ?,
			version = version + 1, updated_at = ?
		WHERE id = ?`,
		contentCount, subcategoryCount, totalCount, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("set counters: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SumChildrenTotals returns the sum of total_content_count over the active
// direct children of a node. Soft-deleted children already had their totals
// withdrawn from the ancestor chain.
func (q *Queries) SumChildrenTotals(ctx context.Context, parentID string) (int64, error) {
	var total sql.NullInt64
	err := q.db.QueryRowContext(ctx,
		`SELECT SUM(total_content_count) FROM categories WHERE parent_id = ? AND is_active = 1`, parentID).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Int64, nil
}

// SlugExists reports whether a sibling of parentID already uses the slug in
// the given language. excludeID skips the node being updated.
func (q *Queries) SlugExists(ctx context.Context, parentID *string, language, slug, excludeID string) (bool, error) {
	query := `
		SELECT COUNT(*) FROM category_texts t
		JOIN categories c ON c.id = t.category_id
		WHERE t.field = 'slug' AND t.language = ? AND t.value = ? AND c.id != ? AND `
	args := []any{language, slug, excludeID}
	if parentID == nil {
		query += `c.parent_id IS NULL`
	} else {
		query += `c.parent_id = ?`
		args = append(args, *parentID)
	}
	var n int64
	if err := q.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("slug exists: %w", err)
	}
	return n > 0, nil
}

// ReplaceCategoryTexts rebuilds the per-language text mirror for a category.
func (q *Queries) ReplaceCategoryTexts(ctx context.Context, categoryID string, name, slug model.MultilingualText) error {
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM category_texts WHERE category_id = ?`, categoryID); err != nil {
		return fmt.Errorf("replace texts: %w", err)
	}
	insert := func(field string, text model.MultilingualText) error {
		for _, lang := range text.Languages() {
			value, _ := text.Get(lang)
			if _, err := q.db.ExecContext(ctx,
				`INSERT INTO category_texts (category_id, field, language, value) VALUES (?, ?, ?, ?)`,
				categoryID, field, lang, value); err != nil {
				return fmt.Errorf("replace texts: %s/%s: %w", field, lang, err)
			}
		}
		return nil
	}
	if err := insert("name", name); err != nil {
		return err
	}
	return insert("slug", slug)
}

// SearchCategoriesParams filters the category search.
type SearchCategoriesParams struct {
	Query           string  // free-text match over name and slug values
	Language        string  // restrict text match to one language
	CategoryType    string  // optional type filter
	ParentID        *string // optional parent filter (used when FilterParent)
	FilterParent    bool
	IncludeInactive bool
	Limit           int64
	Offset          int64
}

// SearchCategories runs a filtered, paginated category search and returns
// the page plus the total match count.
func (q *Queries) SearchCategories(ctx context.Context, p SearchCategoriesParams) ([]model.Category, int64, error) {
	var (
		where []string
		args  []any
		joins string
	)

	if p.Query != "" {
		joins = ` JOIN category_texts t ON t.category_id = c.id`
		where = append(where, `t.field IN ('name', 'slug')`)
		if p.Language != "" {
			where = append(where, `t.language = ?`)
			args = append(args, p.Language)
		}
		where = append(where, `t.value LIKE ? ESCAPE '\'`)
		args = append(args, `%`+escapeLike(p.Query)+`%`)
	}
	if p.CategoryType != "" {
		where = append(where, `c.category_type = ?`)
		args = append(args, p.CategoryType)
	}
	if p.FilterParent {
		if p.ParentID == nil {
			where = append(where, `c.parent_id IS NULL`)
		} else {
			where = append(where, `c.parent_id = ?`)
			args = append(args, *p.ParentID)
		}
	}
	if !p.IncludeInactive {
		where = append(where, `c.is_active = 1`)
	}

	cond := ""
	if len(where) > 0 {
		cond = ` WHERE ` + strings.Join(where, ` AND `)
	}

	var total int64
	countQuery := `SELECT COUNT(DISTINCT c.id) FROM categories c` + joins + cond
	if err := q.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count search: %w", err)
	}

	cols := strings.ReplaceAll(categoryColumns, "\n", " ")
	parts := strings.Split(cols, ",")
	for i, part := range parts {
		parts[i] = "c." + strings.TrimSpace(part)
	}
	query := `SELECT DISTINCT ` + strings.Join(parts, ", ") +
		` FROM categories c` + joins + cond +
		` ORDER BY c.sort_order, c.path LIMIT ? OFFSET ?`
	args = append(args, p.Limit, p.Offset)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search categories: %w", err)
	}
	items, err := scanCategories(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// checkGuard maps a zero-row guarded update to the right error: missing row
// or version conflict.
func (q *Queries) checkGuard(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists int64
	if err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories WHERE id = ?`, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return sql.ErrNoRows
	}
	return ErrVersionMismatch
}

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
