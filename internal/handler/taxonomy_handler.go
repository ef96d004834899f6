package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blogdesk/internal/model"
	"github.com/hitoshi/blogdesk/internal/taxonomy"
)

// TaxonomyServiceInterface はカテゴリ・タグ管理ハンドラーが必要とするサービスインターフェース。
type TaxonomyServiceInterface interface {
	ListCategories(ctx context.Context) ([]*model.Category, error)
	GetCategory(ctx context.Context, id string) (*model.Category, error)
	CreateCategory(ctx context.Context, in taxonomy.CategoryInput) (*model.Category, error)
	UpdateCategory(ctx context.Context, id string, u taxonomy.CategoryUpdate) (*model.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	ListTags(ctx context.Context) ([]*model.Tag, error)
	GetTag(ctx context.Context, id string) (*model.Tag, error)
	CreateTag(ctx context.Context, in taxonomy.TagInput) (*model.Tag, error)
	UpdateTag(ctx context.Context, id string, u taxonomy.TagUpdate) (*model.Tag, error)
	DeleteTag(ctx context.Context, id string) error
}

// TaxonomyHandler はカテゴリとタグのHTTPハンドラー。
type TaxonomyHandler struct {
	service TaxonomyServiceInterface
}

// NewTaxonomyHandler はTaxonomyHandlerを生成する。
func NewTaxonomyHandler(service TaxonomyServiceInterface) *TaxonomyHandler {
	return &TaxonomyHandler{service: service}
}

type categoryResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Slug            string    `json:"slug"`
	Description     *string   `json:"description"`
	MetaTitle       *string   `json:"meta_title"`
	MetaDescription *string   `json:"meta_description"`
	FeaturedImage   *string   `json:"featured_image"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type tagResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Color     *string   `json:"color"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// --- カテゴリ ---

// ListCategories はカテゴリ一覧を返す。
// GET /api/admin/categories
func (h *TaxonomyHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]categoryResponse, len(categories))
	for i, c := range categories {
		results[i] = toCategoryResponse(c)
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": results})
}

// GetCategory はカテゴリを1件返す。
// GET /api/admin/categories/{id}
func (h *TaxonomyHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.service.GetCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"category": toCategoryResponse(category)})
}

// CreateCategory はカテゴリを作成する。スラッグは名前から生成する。
// POST /api/admin/categories
func (h *TaxonomyHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req taxonomy.CategoryInput
	if !decodeJSON(w, r, &req) {
		return
	}

	category, err := h.service.CreateCategory(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"category": toCategoryResponse(category)})
}

// UpdateCategory はカテゴリを部分更新する。
// PATCH /api/admin/categories/{id}
func (h *TaxonomyHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req taxonomy.CategoryUpdate
	if !decodeJSON(w, r, &req) {
		return
	}

	category, err := h.service.UpdateCategory(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"category": toCategoryResponse(category)})
}

// DeleteCategory はカテゴリを削除する。参照していた記事のcategory_idはNULLになる。
// DELETE /api/admin/categories/{id}
func (h *TaxonomyHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- タグ ---

// ListTags はタグ一覧を返す。
// GET /api/admin/tags
func (h *TaxonomyHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.service.ListTags(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]tagResponse, len(tags))
	for i, t := range tags {
		results[i] = toTagResponse(t)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": results})
}

// CreateTag はタグを作成する。
// POST /api/admin/tags
func (h *TaxonomyHandler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req taxonomy.TagInput
	if !decodeJSON(w, r, &req) {
		return
	}

	tag, err := h.service.CreateTag(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"tag": toTagResponse(tag)})
}

// UpdateTag はタグを部分更新する。
// PATCH /api/admin/tags/{id}
func (h *TaxonomyHandler) UpdateTag(w http.ResponseWriter, r *http.Request) {
	var req taxonomy.TagUpdate
	if !decodeJSON(w, r, &req) {
		return
	}

	tag, err := h.service.UpdateTag(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tag": toTagResponse(tag)})
}

// DeleteTag はタグを削除する。記事への割り当てはストアが削除する。
// DELETE /api/admin/tags/{id}
func (h *TaxonomyHandler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTag(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toCategoryResponse(c *model.Category) categoryResponse {
	return categoryResponse{
		ID:              c.ID,
		Name:            c.Name,
		Slug:            c.Slug,
		Description:     c.Description,
		MetaTitle:       c.MetaTitle,
		MetaDescription: c.MetaDescription,
		FeaturedImage:   c.FeaturedImage,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func toTagResponse(t *model.Tag) tagResponse {
	return tagResponse{
		ID:        t.ID,
		Name:      t.Name,
		Slug:      t.Slug,
		Color:     t.Color,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}
