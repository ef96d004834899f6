package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/hitoshi/blogdesk/internal/model"
)

// postColumns はblog_postsの取得カラム。scanBlogPostの引数順と一致させること。
const postColumns = `id, title, slug, content, excerpt, featured_image, meta_title, meta_description,
	status, published_at, category_id, author, tables, created_at, updated_at`

// basePostColumns は最初のマイグレーションから存在するカラムのうち、最小行の挿入で返すもの。
// 任意項目のカラムが未作成のストアでも挿入を失敗させないため、ここには含めない。
const basePostColumns = `id, title, slug, content, excerpt, status, created_at, updated_at`

// postWithRelationsQuery はカテゴリとタグをJSONとして埋め込んだ記事取得クエリ。
// categoriesは単一オブジェクト、blog_post_tagsは配列で返る。
const postWithRelationsQuery = `SELECT p.id, p.title, p.slug, p.content, p.excerpt, p.featured_image,
	p.meta_title, p.meta_description, p.status, p.published_at, p.category_id, p.author,
	p.tables, p.created_at, p.updated_at,
	(SELECT row_to_json(c) FROM (
		SELECT id, name, slug FROM categories WHERE id = p.category_id
	) c) AS categories,
	COALESCE((
		SELECT json_agg(json_build_object(
			'id', bpt.id,
			'blog_post_id', bpt.blog_post_id,
			'tag_id', bpt.tag_id,
			'created_at', bpt.created_at,
			'tags', json_build_object('id', t.id, 'name', t.name, 'slug', t.slug, 'color', t.color)
		) ORDER BY t.name)
		FROM blog_post_tags bpt
		JOIN tags t ON t.id = bpt.tag_id
		WHERE bpt.blog_post_id = p.id
	), '[]'::json) AS blog_post_tags
FROM blog_posts p`

// updatablePostColumns は部分更新で指定可能なカラム。
var updatablePostColumns = map[string]bool{
	"title":            true,
	"slug":             true,
	"content":          true,
	"excerpt":          true,
	"featured_image":   true,
	"meta_title":       true,
	"meta_description": true,
	"status":           true,
	"published_at":     true,
	"category_id":      true,
	"author":           true,
	"tables":           true,
}

type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresPostRepo はPostgreSQLを使用したブログ記事リポジトリ。
type PostgresPostRepo struct {
	db   *sql.DB
	inst instrument
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。observerはnilでもよい。
func NewPostgresPostRepo(db *sql.DB, observer StoreObserver) *PostgresPostRepo {
	return &PostgresPostRepo{db: db, inst: instrument{observer: observer}}
}

// ListWithRelations は全記事をカテゴリ・タグ付きでcreated_at降順に取得する。
func (r *PostgresPostRepo) ListWithRelations(ctx context.Context) (posts []model.PostWithRelations, err error) {
	ctx, finish := r.inst.start(ctx, "blog_posts.list_with_relations", "blog_posts")
	defer func() { finish(err) }()

	rows, err := r.db.QueryContext(ctx, postWithRelationsQuery+` ORDER BY p.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list blog posts: %w", toStoreError(err))
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPostWithRelations(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate blog posts: %w", toStoreError(err))
	}
	return posts, nil
}

// ListSummaries は公開一覧用の概要をcreated_at降順に取得する。
func (r *PostgresPostRepo) ListSummaries(ctx context.Context, status *model.PostStatus, limit int) (summaries []model.PostSummary, err error) {
	ctx, finish := r.inst.start(ctx, "blog_posts.list_summaries", "blog_posts")
	defer func() { finish(err) }()

	builder := sq.Select("id", "slug", "title", "status", "created_at").
		From("blog_posts").
		OrderBy("created_at DESC").
		PlaceholderFormat(sq.Dollar)
	if status != nil {
		builder = builder.Where(sq.Eq{"status": string(*status)})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build summary query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list blog post summaries: %w", toStoreError(err))
	}
	defer rows.Close()

	summaries = []model.PostSummary{}
	for rows.Next() {
		var s model.PostSummary
		if err := rows.Scan(&s.ID, &s.Slug, &s.Title, &s.Status, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan blog post summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate blog post summaries: %w", toStoreError(err))
	}
	return summaries, nil
}

// ListPublished は公開済み記事を公開日時（未設定の場合は作成日時）の降順で取得する。
func (r *PostgresPostRepo) ListPublished(ctx context.Context, limit int) (posts []*model.BlogPost, err error) {
	ctx, finish := r.inst.start(ctx, "blog_posts.list_published", "blog_posts")
	defer func() { finish(err) }()

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM blog_posts
		 WHERE status = 'published'
		 ORDER BY COALESCE(published_at, created_at) DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list published blog posts: %w", toStoreError(err))
	}
	defer rows.Close()

	for rows.Next() {
		p := &model.BlogPost{}
		if err := scanBlogPost(rows, p); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate published blog posts: %w", toStoreError(err))
	}
	return posts, nil
}

// FindBySlug はスラッグで記事をカテゴリ・タグ付きで取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindBySlug(ctx context.Context, slug string) (post *model.PostWithRelations, err error) {
	ctx, finish := r.inst.start(ctx, "blog_posts.find_by_slug", "blog_posts")
	defer func() { finish(err) }()

	return r.findOne(ctx, `p.slug = $1`, slug)
}

// FindByID はIDで記事をカテゴリ・タグ付きで取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (post *model.PostWithRelations, err error) {
	ctx, finish := r.inst.start(ctx, "blog_posts.find_by_id", "blog_posts")
	defer func() { finish(err) }()

	return r.findOne(ctx, `p.id = $1`, id)
}

func (r *PostgresPostRepo) findOne(ctx context.Context, where string, arg string) (*model.PostWithRelations, error) {
	row := r.db.QueryRowContext(ctx, postWithRelationsQuery+` WHERE `+where, arg)
	post, err := scanPostWithRelations(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return post, nil
}

// UpdateColumns は指定カラムのみを更新し、更新後の行を返す。
func (r *PostgresPostRepo) UpdateColumns(ctx context.Context, id string, columns map[string]any) (post *model.BlogPost, err error) {
	ctx, finish := r.inst.start(ctx, "blog_posts.update_columns", "blog_posts")
	defer func() { finish(err) }()

	return updatePostColumns(ctx, r.db, id, columns)
}

// UpdateStatus は公開状態のみを更新する。published_atは変更しない。
func (r *PostgresPostRepo) UpdateStatus(ctx context.Context, id string, status model.PostStatus) (post *model.BlogPost, err error) {
	ctx, finish := r.inst.start(ctx, "blog_posts.update_status", "blog_posts")
	defer func() { finish(err) }()

	post = &model.BlogPost{}
	err = scanBlogPost(r.db.QueryRowContext(ctx,
		`UPDATE blog_posts SET status = $1 WHERE id = $2 RETURNING `+postColumns,
		string(status), id,
	), post)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update blog post status: %w", err)
	}
	return post, nil
}

// Delete は記事を削除する。
func (r *PostgresPostRepo) Delete(ctx context.Context, id string) (err error) {
	ctx, finish := r.inst.start(ctx, "blog_posts.delete", "blog_posts")
	defer func() { finish(err) }()

	return deleteByID(ctx, r.db, "blog_posts", id)
}

// RunInTx は1つのトランザクション内でfnを実行する。
func (r *PostgresPostRepo) RunInTx(ctx context.Context, fn func(PostWriter) error) (err error) {
	ctx, finish := r.inst.start(ctx, "blog_posts.transaction", "blog_posts")
	defer func() { finish(err) }()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", toStoreError(err))
	}
	defer tx.Rollback()

	if err := fn(&postgresPostWriter{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", toStoreError(err))
	}
	return nil
}

// postgresPostWriter はトランザクションに束縛されたPostWriter。
type postgresPostWriter struct {
	tx *sql.Tx
}

// Insert は必須カラムのみで記事を作成する。
func (w *postgresPostWriter) Insert(ctx context.Context, post *model.BlogPost) (*model.BlogPost, error) {
	created := &model.BlogPost{}
	err := w.tx.QueryRowContext(ctx,
		`INSERT INTO blog_posts (title, slug, content, excerpt, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+basePostColumns,
		post.Title, post.Slug, post.Content, post.Excerpt, string(post.Status),
	).Scan(&created.ID, &created.Title, &created.Slug, &created.Content, &created.Excerpt,
		&created.Status, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert blog post: %w", toStoreError(err))
	}
	return created, nil
}

// TryUpdateColumn はSAVEPOINTで囲んで1カラムを更新する。
// 失敗時はSAVEPOINTまで巻き戻し、トランザクション自体は継続できる。
// 更新後の行はストアに存在するカラムだけを読み込む。
func (w *postgresPostWriter) TryUpdateColumn(ctx context.Context, id, column string, value any) (*model.BlogPost, error) {
	if _, err := w.tx.ExecContext(ctx, `SAVEPOINT optional_column`); err != nil {
		return nil, fmt.Errorf("failed to create savepoint: %w", toStoreError(err))
	}

	post, err := updatePostColumnReturningAll(ctx, w.tx, id, column, value)
	if err != nil {
		if _, rbErr := w.tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT optional_column`); rbErr != nil {
			return nil, fmt.Errorf("failed to rollback to savepoint: %w", toStoreError(rbErr))
		}
		return nil, err
	}

	if _, err := w.tx.ExecContext(ctx, `RELEASE SAVEPOINT optional_column`); err != nil {
		return nil, fmt.Errorf("failed to release savepoint: %w", toStoreError(err))
	}
	return post, nil
}

// updatePostColumnReturningAll は1カラムを更新し、RETURNING * の結果をカラム名で読み込む。
func updatePostColumnReturningAll(ctx context.Context, q queryExecer, id, column string, value any) (*model.BlogPost, error) {
	query, args, err := buildSparseUpdate("blog_posts", updatablePostColumns, id, map[string]any{column: value}, "*")
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update blog post %s: %w", column, toStoreError(err))
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to update blog post %s: %w", column, toStoreError(err))
		}
		return nil, ErrNotFound
	}
	post := &model.BlogPost{}
	if err := scanBlogPostByName(rows, post); err != nil {
		return nil, err
	}
	return post, nil
}

// ReplaceTags はトランザクション内で記事のタグを置き換える。
func (w *postgresPostWriter) ReplaceTags(ctx context.Context, postID string, tagIDs []string) ([]model.BlogPostTag, error) {
	if err := deletePostTags(ctx, w.tx, postID); err != nil {
		return nil, err
	}
	return insertPostTags(ctx, w.tx, postID, tagIDs)
}

// updatePostColumns は部分UPDATEを実行し、更新後の行を返す。
func updatePostColumns(ctx context.Context, q queryExecer, id string, columns map[string]any) (*model.BlogPost, error) {
	query, args, err := buildSparseUpdate("blog_posts", updatablePostColumns, id, columns, postColumns)
	if err != nil {
		return nil, err
	}

	post := &model.BlogPost{}
	err = scanBlogPost(q.QueryRowContext(ctx, query, args...), post)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update blog post: %w", err)
	}
	return post, nil
}

// deleteByID は1行を削除し、対象がなければErrNotFoundを返す。
// tableは呼び出し側の定数のみを渡すこと。
func deleteByID(ctx context.Context, q queryExecer, table, id string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, toStoreError(err))
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

// scanBlogPost はpostColumnsの順で1行を読み込む。
// sql.ErrNoRowsはそのまま返し、それ以外はStoreErrorに変換する。
func scanBlogPost(row rowScanner, p *model.BlogPost, extra ...any) error {
	var tables []byte
	dest := []any{
		&p.ID, &p.Title, &p.Slug, &p.Content, &p.Excerpt, &p.FeaturedImage,
		&p.MetaTitle, &p.MetaDescription, &p.Status, &p.PublishedAt, &p.CategoryID, &p.Author,
		&tables, &p.CreatedAt, &p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return toStoreError(err)
	}

	if len(tables) > 0 {
		if err := json.Unmarshal(tables, &p.Tables); err != nil {
			return fmt.Errorf("failed to decode tables column: %w", err)
		}
	}
	return nil
}

// scanBlogPostByName は結果のカラム名に合わせて1行を読み込む。
// 知らないカラムは読み捨て、存在しないカラムはゼロ値のままにする。
func scanBlogPostByName(rows *sql.Rows, p *model.BlogPost) error {
	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("failed to read result columns: %w", err)
	}

	var tables []byte
	dest := make([]any, len(columns))
	for i, name := range columns {
		switch name {
		case "id":
			dest[i] = &p.ID
		case "title":
			dest[i] = &p.Title
		case "slug":
			dest[i] = &p.Slug
		case "content":
			dest[i] = &p.Content
		case "excerpt":
			dest[i] = &p.Excerpt
		case "featured_image":
			dest[i] = &p.FeaturedImage
		case "meta_title":
			dest[i] = &p.MetaTitle
		case "meta_description":
			dest[i] = &p.MetaDescription
		case "status":
			dest[i] = &p.Status
		case "published_at":
			dest[i] = &p.PublishedAt
		case "category_id":
			dest[i] = &p.CategoryID
		case "author":
			dest[i] = &p.Author
		case "tables":
			dest[i] = &tables
		case "created_at":
			dest[i] = &p.CreatedAt
		case "updated_at":
			dest[i] = &p.UpdatedAt
		default:
			dest[i] = new(any)
		}
	}
	if err := rows.Scan(dest...); err != nil {
		return toStoreError(err)
	}

	if len(tables) > 0 {
		if err := json.Unmarshal(tables, &p.Tables); err != nil {
			return fmt.Errorf("failed to decode tables column: %w", err)
		}
	}
	return nil
}

func scanPostWithRelations(row rowScanner) (*model.PostWithRelations, error) {
	var categories, postTags []byte
	p := &model.PostWithRelations{}
	if err := scanBlogPost(row, &p.BlogPost, &categories, &postTags); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan blog post: %w", err)
	}

	if len(categories) > 0 {
		if err := json.Unmarshal(categories, &p.Categories); err != nil {
			return nil, fmt.Errorf("failed to decode categories: %w", err)
		}
	}
	if len(postTags) > 0 {
		if err := json.Unmarshal(postTags, &p.BlogPostTags); err != nil {
			return nil, fmt.Errorf("failed to decode blog_post_tags: %w", err)
		}
	}
	return p, nil
}

// compile-time interface check
var (
	_ PostRepository = (*PostgresPostRepo)(nil)
	_ PostWriter     = (*postgresPostWriter)(nil)
)
