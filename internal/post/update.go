package post

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/blogdesk/internal/model"
	"github.com/hitoshi/blogdesk/internal/repository"
	"github.com/hitoshi/blogdesk/internal/slug"
)

// PostUpdate は記事の部分更新。Setがfalseのフィールドは変更しない。
// NULL許容のフィールドはValueがnilならNULLに更新する。
type PostUpdate struct {
	Title           model.Nullable[string]            `json:"title"`
	Slug            model.Nullable[string]            `json:"slug"`
	Content         model.Nullable[string]            `json:"content"`
	Excerpt         model.Nullable[string]            `json:"excerpt"`
	FeaturedImage   model.Nullable[string]            `json:"featured_image"`
	MetaTitle       model.Nullable[string]            `json:"meta_title"`
	MetaDescription model.Nullable[string]            `json:"meta_description"`
	Status          model.Nullable[model.PostStatus]  `json:"status"`
	PublishedAt     model.Nullable[time.Time]         `json:"published_at"`
	CategoryID      model.Nullable[string]            `json:"category_id"`
	Author          model.Nullable[string]            `json:"author"`
	Tables          model.Nullable[[]model.TableData] `json:"tables"`
}

// statusOnly は公開状態だけが指定されているかを返す。
func (u PostUpdate) statusOnly() bool {
	return u.Status.Set &&
		!u.Title.Set && !u.Slug.Set && !u.Content.Set && !u.Excerpt.Set &&
		!u.FeaturedImage.Set && !u.MetaTitle.Set && !u.MetaDescription.Set &&
		!u.PublishedAt.Set && !u.CategoryID.Set && !u.Author.Set && !u.Tables.Set
}

// Update は指定されたフィールドのみを更新し、更新後の記事を返す。
// 公開状態だけの変更は公開状態のみを書き換える。published_atは暗黙には変更しない。
func (s *Service) Update(ctx context.Context, id string, u PostUpdate) (*model.BlogPost, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewPostNotFoundError(id)
	}

	if u.statusOnly() {
		if u.Status.Value == nil {
			return nil, model.NewInvalidStatusError("null")
		}
		return s.UpdateStatus(ctx, id, *u.Status.Value)
	}

	columns, err := s.buildColumns(u)
	if err != nil {
		return nil, err
	}

	post, err := s.posts.UpdateColumns(ctx, id, columns)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewPostNotFoundError(id)
		}
		return nil, fmt.Errorf("記事の更新に失敗しました: %w", err)
	}
	return post, nil
}

// UpdateStatus は記事の公開状態のみを変更する。
func (s *Service) UpdateStatus(ctx context.Context, id string, status model.PostStatus) (*model.BlogPost, error) {
	if !status.Valid() {
		return nil, model.NewInvalidStatusError(string(status))
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewPostNotFoundError(id)
	}

	post, err := s.posts.UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewPostNotFoundError(id)
		}
		return nil, fmt.Errorf("公開状態の更新に失敗しました: %w", err)
	}
	return post, nil
}

// buildColumns は指定されたフィールドだけを含む更新カラムを組み立てる。
func (s *Service) buildColumns(u PostUpdate) (map[string]any, error) {
	columns := make(map[string]any)

	// title, slug, contentはNULLや空文字列にできない
	required := []struct {
		name  string
		field model.Nullable[string]
	}{
		{"title", u.Title},
		{"slug", u.Slug},
		{"content", u.Content},
	}
	var invalid []string
	for _, r := range required {
		if !r.field.Set {
			continue
		}
		if r.field.Value == nil || strings.TrimSpace(*r.field.Value) == "" {
			invalid = append(invalid, r.name)
			continue
		}
		columns[r.name] = strings.TrimSpace(*r.field.Value)
	}
	if v, ok := columns["slug"].(string); ok {
		normalized := slug.Make(v)
		if normalized == "" {
			invalid = append(invalid, "slug")
		} else {
			columns["slug"] = normalized
		}
	}
	if v, ok := columns["content"].(string); ok && s.sanitizer != nil {
		sanitized := strings.TrimSpace(s.sanitizer.Sanitize(v))
		if sanitized == "" {
			invalid = append(invalid, "content")
		} else {
			columns["content"] = sanitized
		}
	}
	if len(invalid) > 0 {
		return nil, model.NewValidationError(invalid...)
	}

	if u.Status.Set {
		if u.Status.Value == nil || !u.Status.Value.Valid() {
			status := "null"
			if u.Status.Value != nil {
				status = string(*u.Status.Value)
			}
			return nil, model.NewInvalidStatusError(status)
		}
		columns["status"] = string(*u.Status.Value)
	}

	if u.FeaturedImage.Set && u.FeaturedImage.Value != nil && s.images != nil {
		if err := s.images.Validate(*u.FeaturedImage.Value); err != nil {
			return nil, model.NewInvalidFeaturedImageError(err.Error())
		}
	}
	if u.CategoryID.Set && u.CategoryID.Value != nil {
		if err := validateIDs("category_id", *u.CategoryID.Value); err != nil {
			return nil, err
		}
	}

	nullable := []struct {
		name  string
		field model.Nullable[string]
	}{
		{"excerpt", u.Excerpt},
		{"featured_image", u.FeaturedImage},
		{"meta_title", u.MetaTitle},
		{"meta_description", u.MetaDescription},
		{"category_id", u.CategoryID},
		{"author", u.Author},
	}
	for _, n := range nullable {
		if n.field.Set {
			columns[n.name] = n.field.ColumnValue()
		}
	}

	if u.PublishedAt.Set {
		columns["published_at"] = u.PublishedAt.ColumnValue()
	}
	if u.Tables.Set {
		var tables []model.TableData
		if u.Tables.Value != nil {
			tables = *u.Tables.Value
			if tables == nil {
				tables = []model.TableData{}
			}
		}
		value, err := model.MarshalTables(tables)
		if err != nil {
			return nil, model.NewInvalidRequestError("tablesの形式が不正です")
		}
		columns["tables"] = value
	}

	if len(columns) == 0 {
		return nil, model.NewInvalidRequestError("更新する項目が指定されていません")
	}
	return columns, nil
}
