package repository

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/hitoshi/blogdesk/internal/model"
)

// PostgresWaitlistRepo はPostgreSQLを使用したウェイトリストリポジトリ。
type PostgresWaitlistRepo struct {
	db   *sql.DB
	inst instrument
}

// NewPostgresWaitlistRepo はPostgresWaitlistRepoを生成する。
func NewPostgresWaitlistRepo(db *sql.DB, observer StoreObserver) *PostgresWaitlistRepo {
	return &PostgresWaitlistRepo{db: db, inst: instrument{observer: observer}}
}

// List はcreated_at降順で全登録を取得する。
func (r *PostgresWaitlistRepo) List(ctx context.Context) (entries []*model.WaitlistEntry, err error) {
	ctx, finish := r.inst.start(ctx, "waitlist.list", "waitlist")
	defer func() { finish(err) }()

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, email, created_at, updated_at FROM waitlist ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list waitlist: %w", toStoreError(err))
	}
	defer rows.Close()

	entries = []*model.WaitlistEntry{}
	for rows.Next() {
		e := &model.WaitlistEntry{}
		if err := rows.Scan(&e.ID, &e.Email, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan waitlist entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate waitlist: %w", toStoreError(err))
	}
	return entries, nil
}

// BulkInsert は1回のINSERTでメールアドレスを登録し、追加件数を返す。
func (r *PostgresWaitlistRepo) BulkInsert(ctx context.Context, emails []string) (added int, err error) {
	ctx, finish := r.inst.start(ctx, "waitlist.bulk_insert", "waitlist")
	defer func() { finish(err) }()

	if len(emails) == 0 {
		return 0, nil
	}

	builder := sq.Insert("waitlist").Columns("email").PlaceholderFormat(sq.Dollar)
	for _, email := range emails {
		builder = builder.Values(email)
	}
	query, args, err := builder.Suffix("ON CONFLICT (email) DO NOTHING").ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build insert query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert waitlist entries: %w", toStoreError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// Delete は登録を削除する。
func (r *PostgresWaitlistRepo) Delete(ctx context.Context, id string) (err error) {
	ctx, finish := r.inst.start(ctx, "waitlist.delete", "waitlist")
	defer func() { finish(err) }()

	return deleteByID(ctx, r.db, "waitlist", id)
}

// compile-time interface check
var _ WaitlistRepository = (*PostgresWaitlistRepo)(nil)
