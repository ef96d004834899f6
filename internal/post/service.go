// Package post はブログ記事の作成・更新・タグ割り当て・一覧取得のドメインロジックを提供する。
package post

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/blogdesk/internal/model"
	"github.com/hitoshi/blogdesk/internal/repository"
)

// 公開一覧の取得件数の上限
const maxListLimit = 100

// TagMode はタグ割り当ての実行方式。
type TagMode string

const (
	// TagModeTransactional は削除と挿入を1トランザクションで行う。
	TagModeTransactional TagMode = "transactional"
	// TagModeSequential は削除と挿入を別々に実行する。
	// 挿入に失敗すると記事のタグは0件のまま残る。
	TagModeSequential TagMode = "sequential"
)

// ContentSanitizer は記事本文のHTMLを保存前に無害化する。
type ContentSanitizer interface {
	Sanitize(rawHTML string) string
}

// ImageValidator はアイキャッチ画像の値を検証する。
type ImageValidator interface {
	Validate(value string) error
}

// Metrics は記事操作のメトリクス記録インターフェース。
type Metrics interface {
	RecordSkippedField(field string)
	RecordTagAssignment(mode string, err error)
}

// Options はServiceの任意設定。ゼロ値のフィールドには既定値が使われる。
type Options struct {
	TagMode   TagMode
	ListLimit int
	Sanitizer ContentSanitizer
	Images    ImageValidator
	Metrics   Metrics
	Logger    *slog.Logger
}

// Service はブログ記事のサービス層。
type Service struct {
	posts     repository.PostRepository
	postTags  repository.PostTagRepository
	tagMode   TagMode
	listLimit int
	sanitizer ContentSanitizer
	images    ImageValidator
	metrics   Metrics
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(posts repository.PostRepository, postTags repository.PostTagRepository, opts Options) *Service {
	s := &Service{
		posts:     posts,
		postTags:  postTags,
		tagMode:   opts.TagMode,
		listLimit: opts.ListLimit,
		sanitizer: opts.Sanitizer,
		images:    opts.Images,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
	if s.tagMode == "" {
		s.tagMode = TagModeTransactional
	}
	if s.listLimit <= 0 {
		s.listLimit = 10
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

type nopMetrics struct{}

func (nopMetrics) RecordSkippedField(string)         {}
func (nopMetrics) RecordTagAssignment(string, error) {}

// List は全記事をカテゴリ・タグを正規化した形でcreated_at降順に返す。
func (s *Service) List(ctx context.Context) ([]View, error) {
	rows, err := s.posts.ListWithRelations(ctx)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}

	views := make([]View, len(rows))
	for i, row := range rows {
		views[i] = Project(row)
	}
	return views, nil
}

// GetBySlug はスラッグで記事をカテゴリ・タグ付きで取得する。
func (s *Service) GetBySlug(ctx context.Context, slug string) (*model.PostWithRelations, error) {
	post, err := s.posts.FindBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(slug)
	}
	return post, nil
}

// GetByID はIDで記事を取得し、一覧と同じ形に正規化して返す。
func (s *Service) GetByID(ctx context.Context, id string) (*View, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewPostNotFoundError(id)
	}

	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(id)
	}
	view := Project(*post)
	return &view, nil
}

// ListSummaries は公開一覧用の概要を返す。
// statusが空の場合は全状態を対象とし、limitは1から上限までに丸める。
func (s *Service) ListSummaries(ctx context.Context, status string, limit int) ([]model.PostSummary, error) {
	var filter *model.PostStatus
	if status != "" {
		st := model.PostStatus(status)
		if !st.Valid() {
			return nil, model.NewInvalidStatusError(status)
		}
		filter = &st
	}

	summaries, err := s.posts.ListSummaries(ctx, filter, s.clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	return summaries, nil
}

// ListPublished はRSS配信用に公開済み記事を返す。
func (s *Service) ListPublished(ctx context.Context, limit int) ([]*model.BlogPost, error) {
	posts, err := s.posts.ListPublished(ctx, s.clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("公開記事の取得に失敗しました: %w", err)
	}
	return posts, nil
}

// Delete は記事を削除する。関連するタグ割り当てはストアが削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewPostNotFoundError(id)
	}

	if err := s.posts.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewPostNotFoundError(id)
		}
		return fmt.Errorf("記事の削除に失敗しました: %w", err)
	}
	return nil
}

func (s *Service) clampLimit(limit int) int {
	if limit <= 0 {
		return s.listLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// validateIDs はIDがすべてUUID形式であることを確認する。
func validateIDs(field string, ids ...string) error {
	for _, id := range ids {
		if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
			return model.NewInvalidRequestError(fmt.Sprintf("%sの形式が不正です: %q", field, id))
		}
	}
	return nil
}
