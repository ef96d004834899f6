package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/hitoshi/blogdesk/internal/model"
)

const categoryColumns = `id, name, slug, description, meta_title, meta_description, featured_image, created_at, updated_at`

var updatableCategoryColumns = map[string]bool{
	"name":             true,
	"slug":             true,
	"description":      true,
	"meta_title":       true,
	"meta_description": true,
	"featured_image":   true,
}

// PostgresCategoryRepo はPostgreSQLを使用したカテゴリリポジトリ。
type PostgresCategoryRepo struct {
	db   *sql.DB
	inst instrument
}

// NewPostgresCategoryRepo はPostgresCategoryRepoを生成する。
func NewPostgresCategoryRepo(db *sql.DB, observer StoreObserver) *PostgresCategoryRepo {
	return &PostgresCategoryRepo{db: db, inst: instrument{observer: observer}}
}

// List は名前順で全カテゴリを取得する。
func (r *PostgresCategoryRepo) List(ctx context.Context) (categories []*model.Category, err error) {
	ctx, finish := r.inst.start(ctx, "categories.list", "categories")
	defer func() { finish(err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", toStoreError(err))
	}
	defer rows.Close()

	categories = []*model.Category{}
	for rows.Next() {
		c := &model.Category{}
		if err := scanCategory(rows, c); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", toStoreError(err))
	}
	return categories, nil
}

// FindByID は指定IDのカテゴリを取得する。見つからない場合はnilを返す。
func (r *PostgresCategoryRepo) FindByID(ctx context.Context, id string) (category *model.Category, err error) {
	ctx, finish := r.inst.start(ctx, "categories.find_by_id", "categories")
	defer func() { finish(err) }()

	category = &model.Category{}
	err = scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id,
	), category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find category by ID: %w", err)
	}
	return category, nil
}

// Create はカテゴリを作成し、採番された行を返す。
func (r *PostgresCategoryRepo) Create(ctx context.Context, c *model.Category) (category *model.Category, err error) {
	ctx, finish := r.inst.start(ctx, "categories.create", "categories")
	defer func() { finish(err) }()

	category = &model.Category{}
	err = scanCategory(r.db.QueryRowContext(ctx,
		`INSERT INTO categories (name, slug, description, meta_title, meta_description, featured_image)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+categoryColumns,
		c.Name, c.Slug, c.Description, c.MetaTitle, c.MetaDescription, c.FeaturedImage,
	), category)
	if err != nil {
		return nil, fmt.Errorf("failed to insert category: %w", err)
	}
	return category, nil
}

// Update は指定カラムのみを更新する。
func (r *PostgresCategoryRepo) Update(ctx context.Context, id string, columns map[string]any) (category *model.Category, err error) {
	ctx, finish := r.inst.start(ctx, "categories.update", "categories")
	defer func() { finish(err) }()

	query, args, err := buildSparseUpdate("categories", updatableCategoryColumns, id, columns, categoryColumns)
	if err != nil {
		return nil, err
	}

	category = &model.Category{}
	err = scanCategory(r.db.QueryRowContext(ctx, query, args...), category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update category: %w", err)
	}
	return category, nil
}

// Delete はカテゴリを削除する。参照していた記事のcategory_idはNULLになる。
func (r *PostgresCategoryRepo) Delete(ctx context.Context, id string) (err error) {
	ctx, finish := r.inst.start(ctx, "categories.delete", "categories")
	defer func() { finish(err) }()

	return deleteByID(ctx, r.db, "categories", id)
}

func scanCategory(row rowScanner, c *model.Category) error {
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.MetaTitle, &c.MetaDescription,
		&c.FeaturedImage, &c.CreatedAt, &c.UpdatedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return toStoreError(err)
	}
	return err
}

// buildSparseUpdate は許可されたカラムのみを含むUPDATE ... RETURNINGを組み立てる。
func buildSparseUpdate(table string, allowed map[string]bool, id string, columns map[string]any, returning string) (string, []any, error) {
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("no columns to update")
	}
	for col := range columns {
		if !allowed[col] {
			return "", nil, fmt.Errorf("column %q is not updatable on %s", col, table)
		}
	}

	query, args, err := sq.Update(table).
		SetMap(columns).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + returning).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build update query: %w", err)
	}
	return query, args, nil
}

// compile-time interface check
var _ CategoryRepository = (*PostgresCategoryRepo)(nil)
