// Package cleanup は参照先を失った関連データを定期的に整理するジョブを提供する。
// 外部キー制約の外で作られた行（手動投入、制約追加前のデータ）を対象とし、
// 何度実行しても結果が変わらない。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

const (
	deleteOrphanPostTagsQuery = `DELETE FROM blog_post_tags bpt
WHERE NOT EXISTS (SELECT 1 FROM blog_posts p WHERE p.id = bpt.blog_post_id)
   OR NOT EXISTS (SELECT 1 FROM tags t WHERE t.id = bpt.tag_id)`

	clearDanglingCategoriesQuery = `UPDATE blog_posts p SET category_id = NULL, updated_at = now()
WHERE p.category_id IS NOT NULL
  AND NOT EXISTS (SELECT 1 FROM categories c WHERE c.id = p.category_id)`
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Metrics はクリーンアップ結果の記録インターフェース。
type Metrics interface {
	RecordCleanup(orphanTags, danglingCategories int64)
}

// Result は1回の実行で整理した件数。
type Result struct {
	OrphanPostTags     int64
	DanglingCategories int64
}

// OrphanCleanupJob は孤立したタグ割り当てと、存在しないカテゴリへの参照を整理する。
type OrphanCleanupJob struct {
	db      Executor
	metrics Metrics
	logger  *slog.Logger
}

// NewOrphanCleanupJob は新しいOrphanCleanupJobを生成する。metricsはnilでもよい。
func NewOrphanCleanupJob(db Executor, metrics Metrics, logger *slog.Logger) *OrphanCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrphanCleanupJob{
		db:      db,
		metrics: metrics,
		logger:  logger,
	}
}

// Run はクリーンアップを1回実行する。
// 投稿・タグのいずれかが存在しないblog_post_tagsを削除し、
// 存在しないカテゴリを指すblog_posts.category_idをNULLにする。
func (j *OrphanCleanupJob) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	var res Result

	tags, err := j.exec(ctx, deleteOrphanPostTagsQuery)
	if err != nil {
		j.logger.Error("孤立したタグ割り当ての削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return res, fmt.Errorf("孤立したタグ割り当ての削除に失敗: %w", err)
	}
	res.OrphanPostTags = tags

	categories, err := j.exec(ctx, clearDanglingCategoriesQuery)
	if err != nil {
		j.logger.Error("存在しないカテゴリ参照の解除に失敗しました",
			slog.String("error", err.Error()),
		)
		return res, fmt.Errorf("存在しないカテゴリ参照の解除に失敗: %w", err)
	}
	res.DanglingCategories = categories

	if j.metrics != nil {
		j.metrics.RecordCleanup(res.OrphanPostTags, res.DanglingCategories)
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("orphan_post_tags", res.OrphanPostTags),
		slog.Int64("dangling_categories", res.DanglingCategories),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return res, nil
}

func (j *OrphanCleanupJob) exec(ctx context.Context, query string) (int64, error) {
	result, err := j.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("処理件数の取得に失敗: %w", err)
	}
	return n, nil
}

// Start は起動直後に1回、その後interval間隔でジョブを実行する。
// コンテキストがキャンセルされるまで実行を継続し、個々の失敗では停止しない。
func (j *OrphanCleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップワーカーを開始しました",
		slog.Duration("interval", interval),
	)

	_, _ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップワーカーを停止しました")
			return
		case <-ticker.C:
			_, _ = j.Run(ctx)
		}
	}
}
