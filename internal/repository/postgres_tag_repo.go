package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/blogdesk/internal/model"
)

const tagColumns = `id, name, slug, color, created_at, updated_at`

var updatableTagColumns = map[string]bool{
	"name":  true,
	"slug":  true,
	"color": true,
}

// PostgresTagRepo はPostgreSQLを使用したタグリポジトリ。
type PostgresTagRepo struct {
	db   *sql.DB
	inst instrument
}

// NewPostgresTagRepo はPostgresTagRepoを生成する。
func NewPostgresTagRepo(db *sql.DB, observer StoreObserver) *PostgresTagRepo {
	return &PostgresTagRepo{db: db, inst: instrument{observer: observer}}
}

// List は名前順で全タグを取得する。
func (r *PostgresTagRepo) List(ctx context.Context) (tags []*model.Tag, err error) {
	ctx, finish := r.inst.start(ctx, "tags.list", "tags")
	defer func() { finish(err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT `+tagColumns+` FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", toStoreError(err))
	}
	defer rows.Close()

	tags = []*model.Tag{}
	for rows.Next() {
		t := &model.Tag{}
		if err := scanTag(rows, t); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", toStoreError(err))
	}
	return tags, nil
}

// FindByID は指定IDのタグを取得する。見つからない場合はnilを返す。
func (r *PostgresTagRepo) FindByID(ctx context.Context, id string) (tag *model.Tag, err error) {
	ctx, finish := r.inst.start(ctx, "tags.find_by_id", "tags")
	defer func() { finish(err) }()

	tag = &model.Tag{}
	err = scanTag(r.db.QueryRowContext(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = $1`, id), tag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find tag by ID: %w", err)
	}
	return tag, nil
}

// Create はタグを作成する。
func (r *PostgresTagRepo) Create(ctx context.Context, t *model.Tag) (tag *model.Tag, err error) {
	ctx, finish := r.inst.start(ctx, "tags.create", "tags")
	defer func() { finish(err) }()

	tag = &model.Tag{}
	err = scanTag(r.db.QueryRowContext(ctx,
		`INSERT INTO tags (name, slug, color) VALUES ($1, $2, $3) RETURNING `+tagColumns,
		t.Name, t.Slug, t.Color,
	), tag)
	if err != nil {
		return nil, fmt.Errorf("failed to insert tag: %w", err)
	}
	return tag, nil
}

// Update は指定カラムのみを更新する。
func (r *PostgresTagRepo) Update(ctx context.Context, id string, columns map[string]any) (tag *model.Tag, err error) {
	ctx, finish := r.inst.start(ctx, "tags.update", "tags")
	defer func() { finish(err) }()

	query, args, err := buildSparseUpdate("tags", updatableTagColumns, id, columns, tagColumns)
	if err != nil {
		return nil, err
	}

	tag = &model.Tag{}
	err = scanTag(r.db.QueryRowContext(ctx, query, args...), tag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update tag: %w", err)
	}
	return tag, nil
}

// Delete はタグを削除する。blog_post_tagsはCASCADE削除される。
func (r *PostgresTagRepo) Delete(ctx context.Context, id string) (err error) {
	ctx, finish := r.inst.start(ctx, "tags.delete", "tags")
	defer func() { finish(err) }()

	return deleteByID(ctx, r.db, "tags", id)
}

func scanTag(row rowScanner, t *model.Tag) error {
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Color, &t.CreatedAt, &t.UpdatedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return toStoreError(err)
	}
	return err
}

// compile-time interface check
var _ TagRepository = (*PostgresTagRepo)(nil)
