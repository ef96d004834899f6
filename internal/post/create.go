package post

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/blogdesk/internal/model"
	"github.com/hitoshi/blogdesk/internal/repository"
	"github.com/hitoshi/blogdesk/internal/slug"
)

// 抜粋を本文から自動生成する際の文字数
const excerptLength = 200

// CreateInput は記事作成の入力。
// ポインタのフィールドはnilまたは空文字列の場合に未指定として扱う。
type CreateInput struct {
	Title           string
	Slug            string
	Content         string
	Excerpt         *string
	FeaturedImage   *string
	MetaTitle       *string
	MetaDescription *string
	Status          model.PostStatus
	PublishedAt     *time.Time
	CategoryID      *string
	Author          *string
	Tables          []model.TableData
	TagIDs          []string
}

// CreateResult は記事作成の結果。
type CreateResult struct {
	// Post は最後に成功した書き込みを反映した記事。
	Post *model.BlogPost
	// SkippedFields は保存できなかった任意項目のカラム名。
	SkippedFields []string
	// Tags は割り当てたタグの関連行。
	Tags []model.BlogPostTag
}

// optionalColumn は作成後に1カラムずつ書き込む任意項目。
type optionalColumn struct {
	name  string
	value any
}

// Create は記事を段階的に作成する。
//
// 必須項目のみで行を挿入した後、任意項目を1カラムずつ更新する。
// 任意項目の更新はSAVEPOINTで個別に保護され、失敗した項目はスキップして
// SkippedFieldsに記録する。タグの指定があれば同じトランザクション内で割り当てる。
func (s *Service) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	base, optional, err := s.prepareCreate(in)
	if err != nil {
		return nil, err
	}

	result := &CreateResult{Tags: []model.BlogPostTag{}}
	err = s.posts.RunInTx(ctx, func(w repository.PostWriter) error {
		created, err := w.Insert(ctx, base)
		if err != nil {
			return fmt.Errorf("記事の作成に失敗しました: %w", err)
		}
		result.Post = created

		for _, col := range optional {
			updated, err := w.TryUpdateColumn(ctx, created.ID, col.name, col.value)
			if err != nil {
				s.logger.Warn("任意項目の保存をスキップしました",
					slog.String("post_id", created.ID),
					slog.String("field", col.name),
					slog.String("reason", skipReason(err)),
					slog.String("error", err.Error()),
				)
				s.metrics.RecordSkippedField(col.name)
				result.SkippedFields = append(result.SkippedFields, col.name)
				continue
			}
			result.Post = updated
		}

		if len(in.TagIDs) > 0 {
			tags, err := w.ReplaceTags(ctx, created.ID, in.TagIDs)
			s.metrics.RecordTagAssignment("create", err)
			if err != nil {
				return fmt.Errorf("タグの割り当てに失敗しました: %w", err)
			}
			result.Tags = tags
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("記事を作成しました",
		slog.String("post_id", result.Post.ID),
		slog.String("slug", result.Post.Slug),
		slog.Int("skipped_fields", len(result.SkippedFields)),
	)
	return result, nil
}

// prepareCreate は入力を検証し、挿入する行と任意項目の列を組み立てる。
func (s *Service) prepareCreate(in CreateInput) (*model.BlogPost, []optionalColumn, error) {
	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)

	var missing []string
	if title == "" {
		missing = append(missing, "title")
	}
	if content == "" {
		missing = append(missing, "content")
	}
	if len(missing) > 0 {
		return nil, nil, model.NewValidationError(missing...)
	}

	status := in.Status
	if status == "" {
		status = model.PostStatusDraft
	}
	if !status.Valid() {
		return nil, nil, model.NewInvalidStatusError(string(status))
	}

	featuredImage := nonEmpty(in.FeaturedImage)
	if featuredImage != nil && s.images != nil {
		if err := s.images.Validate(*featuredImage); err != nil {
			return nil, nil, model.NewInvalidFeaturedImageError(err.Error())
		}
	}

	categoryID := nonEmpty(in.CategoryID)
	if categoryID != nil {
		if err := validateIDs("category_id", *categoryID); err != nil {
			return nil, nil, err
		}
	}
	if err := validateIDs("tag_ids", in.TagIDs...); err != nil {
		return nil, nil, err
	}

	// 無害化で本文が空になった場合も必須項目の欠落として扱う
	if s.sanitizer != nil {
		content = strings.TrimSpace(s.sanitizer.Sanitize(content))
		if content == "" {
			return nil, nil, model.NewValidationError("content")
		}
	}

	postSlug := slug.Make(in.Slug)
	if postSlug == "" {
		postSlug = slug.MakeOrFallback(title, "post")
	}

	excerpt := nonEmpty(in.Excerpt)
	if excerpt == nil {
		generated := DefaultExcerpt(content)
		excerpt = &generated
	}

	base := &model.BlogPost{
		Title:   title,
		Slug:    postSlug,
		Content: content,
		Excerpt: excerpt,
		Status:  status,
	}

	var optional []optionalColumn
	add := func(name string, v *string) {
		if v != nil {
			optional = append(optional, optionalColumn{name: name, value: *v})
		}
	}
	add("featured_image", featuredImage)
	add("meta_title", nonEmpty(in.MetaTitle))
	add("meta_description", nonEmpty(in.MetaDescription))
	add("category_id", categoryID)
	add("author", nonEmpty(in.Author))
	if in.PublishedAt != nil {
		optional = append(optional, optionalColumn{name: "published_at", value: *in.PublishedAt})
	}
	if len(in.Tables) > 0 {
		tables, err := model.MarshalTables(in.Tables)
		if err != nil {
			return nil, nil, model.NewInvalidRequestError("tablesの形式が不正です")
		}
		optional = append(optional, optionalColumn{name: "tables", value: tables})
	}

	return base, optional, nil
}

// skipReason は任意項目の保存に失敗した理由をログ用に分類する。
// カラム未作成のストアではundefined_columnになる。
func skipReason(err error) string {
	var storeErr *model.StoreError
	if !errors.As(err, &storeErr) {
		return "error"
	}
	switch storeErr.Code {
	case model.StoreCodeUndefinedColumn:
		return "undefined_column"
	case model.StoreCodeForeignKeyViolation:
		return "invalid_reference"
	default:
		return "store_error"
	}
}

// DefaultExcerpt は本文の先頭200文字に"..."を付けた抜粋を返す。
func DefaultExcerpt(content string) string {
	if utf8.RuneCountInString(content) <= excerptLength {
		return content + "..."
	}
	runes := []rune(content)
	return string(runes[:excerptLength]) + "..."
}

// nonEmpty は前後の空白を除いた値が空でなければそのポインタを返す。
func nonEmpty(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
