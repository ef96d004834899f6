// Package taxonomy はカテゴリとタグの管理ロジックを提供する。
package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/blogdesk/internal/model"
	"github.com/hitoshi/blogdesk/internal/repository"
	"github.com/hitoshi/blogdesk/internal/slug"
)

// ImageValidator はカテゴリのアイキャッチ画像を検証する。
type ImageValidator interface {
	Validate(value string) error
}

// CategoryInput はカテゴリ作成の入力。
type CategoryInput struct {
	Name            string  `json:"name"`
	Description     *string `json:"description"`
	MetaTitle       *string `json:"meta_title"`
	MetaDescription *string `json:"meta_description"`
	FeaturedImage   *string `json:"featured_image"`
}

// CategoryUpdate はカテゴリの部分更新。名前を変更するとスラッグも再生成する。
type CategoryUpdate struct {
	Name            model.Nullable[string] `json:"name"`
	Description     model.Nullable[string] `json:"description"`
	MetaTitle       model.Nullable[string] `json:"meta_title"`
	MetaDescription model.Nullable[string] `json:"meta_description"`
	FeaturedImage   model.Nullable[string] `json:"featured_image"`
}

// TagInput はタグ作成の入力。
type TagInput struct {
	Name  string  `json:"name"`
	Color *string `json:"color"`
}

// TagUpdate はタグの部分更新。
type TagUpdate struct {
	Name  model.Nullable[string] `json:"name"`
	Color model.Nullable[string] `json:"color"`
}

// Service はカテゴリとタグのサービス層。
type Service struct {
	categories repository.CategoryRepository
	tags       repository.TagRepository
	images     ImageValidator
}

// NewService はServiceの新しいインスタンスを生成する。imagesはnilでもよい。
func NewService(categories repository.CategoryRepository, tags repository.TagRepository, images ImageValidator) *Service {
	return &Service{
		categories: categories,
		tags:       tags,
		images:     images,
	}
}

// ListCategories はカテゴリを名前順に返す。
func (s *Service) ListCategories(ctx context.Context) ([]*model.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の取得に失敗しました: %w", err)
	}
	return categories, nil
}

// GetCategory はIDでカテゴリを取得する。
func (s *Service) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	if !validID(id) {
		return nil, model.NewCategoryNotFoundError(id)
	}

	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("カテゴリの取得に失敗しました: %w", err)
	}
	if category == nil {
		return nil, model.NewCategoryNotFoundError(id)
	}
	return category, nil
}

// CreateCategory は名前からスラッグを生成してカテゴリを作成する。
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*model.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, model.NewValidationError("name")
	}

	featuredImage := trimmed(in.FeaturedImage)
	if err := s.validateImage(featuredImage); err != nil {
		return nil, err
	}

	category, err := s.categories.Create(ctx, &model.Category{
		Name:            name,
		Slug:            slug.MakeOrFallback(name, "category"),
		Description:     trimmed(in.Description),
		MetaTitle:       trimmed(in.MetaTitle),
		MetaDescription: trimmed(in.MetaDescription),
		FeaturedImage:   featuredImage,
	})
	if err != nil {
		return nil, fmt.Errorf("カテゴリの作成に失敗しました: %w", err)
	}
	return category, nil
}

// UpdateCategory は指定されたフィールドのみを更新する。
func (s *Service) UpdateCategory(ctx context.Context, id string, u CategoryUpdate) (*model.Category, error) {
	if !validID(id) {
		return nil, model.NewCategoryNotFoundError(id)
	}

	columns := make(map[string]any)
	if u.Name.Set {
		name, err := requiredName(u.Name)
		if err != nil {
			return nil, err
		}
		columns["name"] = name
		columns["slug"] = slug.MakeOrFallback(name, "category")
	}
	if u.FeaturedImage.Set {
		if err := s.validateImage(u.FeaturedImage.Value); err != nil {
			return nil, err
		}
		columns["featured_image"] = u.FeaturedImage.ColumnValue()
	}
	if u.Description.Set {
		columns["description"] = u.Description.ColumnValue()
	}
	if u.MetaTitle.Set {
		columns["meta_title"] = u.MetaTitle.ColumnValue()
	}
	if u.MetaDescription.Set {
		columns["meta_description"] = u.MetaDescription.ColumnValue()
	}
	if len(columns) == 0 {
		return nil, model.NewInvalidRequestError("更新する項目が指定されていません")
	}

	category, err := s.categories.Update(ctx, id, columns)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewCategoryNotFoundError(id)
		}
		return nil, fmt.Errorf("カテゴリの更新に失敗しました: %w", err)
	}
	return category, nil
}

// DeleteCategory はカテゴリを削除する。参照していた記事のcategory_idはNULLになる。
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	if !validID(id) {
		return model.NewCategoryNotFoundError(id)
	}

	if err := s.categories.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewCategoryNotFoundError(id)
		}
		return fmt.Errorf("カテゴリの削除に失敗しました: %w", err)
	}
	return nil
}

// ListTags はタグを名前順に返す。
func (s *Service) ListTags(ctx context.Context) ([]*model.Tag, error) {
	tags, err := s.tags.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("タグ一覧の取得に失敗しました: %w", err)
	}
	return tags, nil
}

// GetTag はIDでタグを取得する。
func (s *Service) GetTag(ctx context.Context, id string) (*model.Tag, error) {
	if !validID(id) {
		return nil, model.NewTagNotFoundError(id)
	}

	tag, err := s.tags.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("タグの取得に失敗しました: %w", err)
	}
	if tag == nil {
		return nil, model.NewTagNotFoundError(id)
	}
	return tag, nil
}

// CreateTag は名前からスラッグを生成してタグを作成する。
func (s *Service) CreateTag(ctx context.Context, in TagInput) (*model.Tag, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, model.NewValidationError("name")
	}

	tag, err := s.tags.Create(ctx, &model.Tag{
		Name:  name,
		Slug:  slug.MakeOrFallback(name, "tag"),
		Color: trimmed(in.Color),
	})
	if err != nil {
		return nil, fmt.Errorf("タグの作成に失敗しました: %w", err)
	}
	return tag, nil
}

// UpdateTag は指定されたフィールドのみを更新する。
func (s *Service) UpdateTag(ctx context.Context, id string, u TagUpdate) (*model.Tag, error) {
	if !validID(id) {
		return nil, model.NewTagNotFoundError(id)
	}

	columns := make(map[string]any)
	if u.Name.Set {
		name, err := requiredName(u.Name)
		if err != nil {
			return nil, err
		}
		columns["name"] = name
		columns["slug"] = slug.MakeOrFallback(name, "tag")
	}
	if u.Color.Set {
		columns["color"] = u.Color.ColumnValue()
	}
	if len(columns) == 0 {
		return nil, model.NewInvalidRequestError("更新する項目が指定されていません")
	}

	tag, err := s.tags.Update(ctx, id, columns)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewTagNotFoundError(id)
		}
		return nil, fmt.Errorf("タグの更新に失敗しました: %w", err)
	}
	return tag, nil
}

// DeleteTag はタグを削除する。記事との関連行はストアが削除する。
func (s *Service) DeleteTag(ctx context.Context, id string) error {
	if !validID(id) {
		return model.NewTagNotFoundError(id)
	}

	if err := s.tags.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewTagNotFoundError(id)
		}
		return fmt.Errorf("タグの削除に失敗しました: %w", err)
	}
	return nil
}

func (s *Service) validateImage(v *string) error {
	if v == nil || s.images == nil {
		return nil
	}
	if err := s.images.Validate(*v); err != nil {
		return model.NewInvalidFeaturedImageError(err.Error())
	}
	return nil
}

func requiredName(n model.Nullable[string]) (string, error) {
	if n.Value == nil || strings.TrimSpace(*n.Value) == "" {
		return "", model.NewValidationError("name")
	}
	return strings.TrimSpace(*n.Value), nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// trimmed は前後の空白を除き、空であればnilを返す。
func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}
