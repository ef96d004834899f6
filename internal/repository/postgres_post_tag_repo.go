package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/hitoshi/blogdesk/internal/model"
)

// PostgresPostTagRepo はPostgreSQLを使用した記事タグ関連リポジトリ。
type PostgresPostTagRepo struct {
	db   *sql.DB
	inst instrument
}

// NewPostgresPostTagRepo はPostgresPostTagRepoを生成する。
func NewPostgresPostTagRepo(db *sql.DB, observer StoreObserver) *PostgresPostTagRepo {
	return &PostgresPostTagRepo{db: db, inst: instrument{observer: observer}}
}

// ListByPostID は記事に紐づく関連行を、タグの射影付きで作成順に取得する。
// タグ行が存在しない関連行のtagsは空になる。
func (r *PostgresPostTagRepo) ListByPostID(ctx context.Context, postID string) (tags []model.PostTagRelation, err error) {
	ctx, finish := r.inst.start(ctx, "blog_post_tags.list_by_post", "blog_post_tags")
	defer func() { finish(err) }()

	rows, err := r.db.QueryContext(ctx,
		`SELECT bpt.id, bpt.blog_post_id, bpt.tag_id, bpt.created_at,
			CASE WHEN t.id IS NULL THEN NULL
				ELSE json_build_object('id', t.id, 'name', t.name, 'slug', t.slug, 'color', t.color)
			END AS tags
		 FROM blog_post_tags bpt
		 LEFT JOIN tags t ON t.id = bpt.tag_id
		 WHERE bpt.blog_post_id = $1
		 ORDER BY bpt.created_at`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list blog post tags: %w", toStoreError(err))
	}
	defer rows.Close()

	tags = []model.PostTagRelation{}
	for rows.Next() {
		var (
			rel model.PostTagRelation
			tag []byte
		)
		if err := rows.Scan(&rel.ID, &rel.BlogPostID, &rel.TagID, &rel.CreatedAt, &tag); err != nil {
			return nil, fmt.Errorf("failed to scan blog post tag: %w", err)
		}
		if len(tag) > 0 {
			if err := json.Unmarshal(tag, &rel.Tags); err != nil {
				return nil, fmt.Errorf("failed to decode tag: %w", err)
			}
		}
		tags = append(tags, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate blog post tags: %w", toStoreError(err))
	}
	return tags, nil
}

// Add は記事にタグを1件追加する。既に割り当て済みの場合は既存の関連行を返す。
func (r *PostgresPostTagRepo) Add(ctx context.Context, postID, tagID string) (tag *model.BlogPostTag, err error) {
	ctx, finish := r.inst.start(ctx, "blog_post_tags.add", "blog_post_tags")
	defer func() { finish(err) }()

	// DO NOTHINGでは既存行がRETURNINGに現れないため、同値で更新して行を返す
	var t model.BlogPostTag
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO blog_post_tags (blog_post_id, tag_id) VALUES ($1, $2)
		 ON CONFLICT (blog_post_id, tag_id) DO UPDATE SET tag_id = EXCLUDED.tag_id
		 RETURNING id, blog_post_id, tag_id, created_at`,
		postID, tagID,
	).Scan(&t.ID, &t.BlogPostID, &t.TagID, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add blog post tag: %w", toStoreError(err))
	}
	return &t, nil
}

// Remove は記事からタグを1件外す。関連行がない場合はErrNotFoundを返す。
func (r *PostgresPostTagRepo) Remove(ctx context.Context, postID, tagID string) (err error) {
	ctx, finish := r.inst.start(ctx, "blog_post_tags.remove", "blog_post_tags")
	defer func() { finish(err) }()

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM blog_post_tags WHERE blog_post_id = $1 AND tag_id = $2`,
		postID, tagID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove blog post tag: %w", toStoreError(err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByPostID は記事に紐づく関連行を全て削除する。対象がなくてもエラーにしない。
func (r *PostgresPostTagRepo) DeleteByPostID(ctx context.Context, postID string) (err error) {
	ctx, finish := r.inst.start(ctx, "blog_post_tags.delete_by_post", "blog_post_tags")
	defer func() { finish(err) }()

	return deletePostTags(ctx, r.db, postID)
}

// InsertForPost はタグIDごとに関連行を挿入する。
func (r *PostgresPostTagRepo) InsertForPost(ctx context.Context, postID string, tagIDs []string) (tags []model.BlogPostTag, err error) {
	ctx, finish := r.inst.start(ctx, "blog_post_tags.insert", "blog_post_tags")
	defer func() { finish(err) }()

	return insertPostTags(ctx, r.db, postID, tagIDs)
}

// ReplaceForPost は削除と挿入を1トランザクションで行う。
// 失敗時は元のタグが残る。
func (r *PostgresPostTagRepo) ReplaceForPost(ctx context.Context, postID string, tagIDs []string) (tags []model.BlogPostTag, err error) {
	ctx, finish := r.inst.start(ctx, "blog_post_tags.replace", "blog_post_tags")
	defer func() { finish(err) }()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", toStoreError(err))
	}
	defer tx.Rollback()

	if err := deletePostTags(ctx, tx, postID); err != nil {
		return nil, err
	}
	tags, err = insertPostTags(ctx, tx, postID, tagIDs)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", toStoreError(err))
	}
	return tags, nil
}

func deletePostTags(ctx context.Context, q queryExecer, postID string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM blog_post_tags WHERE blog_post_id = $1`, postID); err != nil {
		return fmt.Errorf("failed to delete blog post tags: %w", toStoreError(err))
	}
	return nil
}

// insertPostTags は1回の複数行INSERTで関連行を作成する。
// 入力内の重複IDは一意制約により1行にまとめられる。
func insertPostTags(ctx context.Context, q queryExecer, postID string, tagIDs []string) ([]model.BlogPostTag, error) {
	if len(tagIDs) == 0 {
		return []model.BlogPostTag{}, nil
	}

	builder := sq.Insert("blog_post_tags").
		Columns("blog_post_id", "tag_id").
		PlaceholderFormat(sq.Dollar)
	for _, tagID := range tagIDs {
		builder = builder.Values(postID, tagID)
	}
	query, args, err := builder.
		Suffix("ON CONFLICT (blog_post_id, tag_id) DO NOTHING RETURNING id, blog_post_id, tag_id, created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert blog post tags: %w", toStoreError(err))
	}
	defer rows.Close()

	return scanPostTags(rows)
}

func scanPostTags(rows *sql.Rows) ([]model.BlogPostTag, error) {
	tags := []model.BlogPostTag{}
	for rows.Next() {
		var t model.BlogPostTag
		if err := rows.Scan(&t.ID, &t.BlogPostID, &t.TagID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan blog post tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate blog post tags: %w", toStoreError(err))
	}
	return tags, nil
}

// compile-time interface check
var _ PostTagRepository = (*PostgresPostTagRepo)(nil)
