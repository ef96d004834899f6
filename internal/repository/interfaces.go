// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hitoshi/blogdesk/internal/model"
)

// ErrNotFound は更新・削除対象の行が存在しない場合に返される。
// 取得系メソッドは見つからない場合にnilを返し、このエラーは使わない。
var ErrNotFound = errors.New("record not found")

// PostRepository はブログ記事の永続化インターフェース。
type PostRepository interface {
	// ListWithRelations は全記事をカテゴリ・タグ付きでcreated_at降順に取得する。
	ListWithRelations(ctx context.Context) ([]model.PostWithRelations, error)

	// ListSummaries は公開一覧用の概要をcreated_at降順に取得する。
	// statusがnilの場合は全状態を対象とする。
	ListSummaries(ctx context.Context, status *model.PostStatus, limit int) ([]model.PostSummary, error)

	// ListPublished は公開済み記事を公開日時の降順で取得する。
	ListPublished(ctx context.Context, limit int) ([]*model.BlogPost, error)

	// FindBySlug はスラッグで記事をカテゴリ・タグ付きで取得する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.PostWithRelations, error)

	// FindByID はIDで記事をカテゴリ・タグ付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.PostWithRelations, error)

	// UpdateColumns は指定カラムのみを更新し、更新後の行を返す。
	// 行が存在しない場合はErrNotFoundを返す。
	UpdateColumns(ctx context.Context, id string, columns map[string]any) (*model.BlogPost, error)

	// UpdateStatus は公開状態のみを更新する。
	UpdateStatus(ctx context.Context, id string, status model.PostStatus) (*model.BlogPost, error)

	// Delete は記事を削除する。blog_post_tagsはCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// RunInTx は1つのトランザクション内でfnを実行する。
	// fnがエラーを返した場合はロールバックする。
	RunInTx(ctx context.Context, fn func(PostWriter) error) error
}

// PostWriter はトランザクション内で記事を段階的に書き込む。
type PostWriter interface {
	// Insert は必須カラムのみで記事を作成する。
	Insert(ctx context.Context, post *model.BlogPost) (*model.BlogPost, error)

	// TryUpdateColumn は1カラムを更新する。失敗時はその更新だけを取り消し、
	// トランザクションは継続可能な状態に戻る。
	TryUpdateColumn(ctx context.Context, id, column string, value any) (*model.BlogPost, error)

	// ReplaceTags は記事のタグを指定IDの集合に置き換える。
	ReplaceTags(ctx context.Context, postID string, tagIDs []string) ([]model.BlogPostTag, error)
}

// PostTagRepository は記事とタグの関連の永続化インターフェース。
type PostTagRepository interface {
	// ListByPostID は記事に紐づく関連行をタグの射影付きで取得する。
	ListByPostID(ctx context.Context, postID string) ([]model.PostTagRelation, error)

	// Add はタグを1件追加する。割り当て済みなら既存の関連行を返す。
	Add(ctx context.Context, postID, tagID string) (*model.BlogPostTag, error)

	// Remove はタグを1件外す。関連行がない場合はErrNotFoundを返す。
	Remove(ctx context.Context, postID, tagID string) error

	// DeleteByPostID は記事に紐づく関連行を全て削除する。
	DeleteByPostID(ctx context.Context, postID string) error

	// InsertForPost はタグIDごとに関連行を挿入する。重複はストアが除外する。
	InsertForPost(ctx context.Context, postID string, tagIDs []string) ([]model.BlogPostTag, error)

	// ReplaceForPost は削除と挿入を1トランザクションで行う。
	ReplaceForPost(ctx context.Context, postID string, tagIDs []string) ([]model.BlogPostTag, error)
}

// CategoryRepository はカテゴリの永続化インターフェース。
type CategoryRepository interface {
	List(ctx context.Context) ([]*model.Category, error)
	// FindByID は見つからない場合にnilを返す。
	FindByID(ctx context.Context, id string) (*model.Category, error)
	Create(ctx context.Context, category *model.Category) (*model.Category, error)
	// Update は行が存在しない場合にErrNotFoundを返す。
	Update(ctx context.Context, id string, columns map[string]any) (*model.Category, error)
	Delete(ctx context.Context, id string) error
}

// TagRepository はタグの永続化インターフェース。
type TagRepository interface {
	List(ctx context.Context) ([]*model.Tag, error)
	FindByID(ctx context.Context, id string) (*model.Tag, error)
	Create(ctx context.Context, tag *model.Tag) (*model.Tag, error)
	Update(ctx context.Context, id string, columns map[string]any) (*model.Tag, error)
	Delete(ctx context.Context, id string) error
}

// WaitlistRepository はウェイトリストの永続化インターフェース。
type WaitlistRepository interface {
	// List はcreated_at降順で全登録を取得する。
	List(ctx context.Context) ([]*model.WaitlistEntry, error)

	// BulkInsert は1回のINSERTでメールアドレスを登録し、実際に追加された件数を返す。
	// 既存のメールアドレスは一意制約により除外される。
	BulkInsert(ctx context.Context, emails []string) (int, error)

	Delete(ctx context.Context, id string) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// queryExecer は*sql.DBと*sql.Txの共通部分。
type queryExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
