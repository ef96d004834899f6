package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blogdesk/internal/model"
	"github.com/hitoshi/blogdesk/internal/post"
)

// PostServiceInterface は記事管理ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	List(ctx context.Context) ([]post.View, error)
	GetByID(ctx context.Context, id string) (*post.View, error)
	Create(ctx context.Context, in post.CreateInput) (*post.CreateResult, error)
	Update(ctx context.Context, id string, u post.PostUpdate) (*model.BlogPost, error)
	UpdateStatus(ctx context.Context, id string, status model.PostStatus) (*model.BlogPost, error)
	Delete(ctx context.Context, id string) error
	SetTags(ctx context.Context, postID string, tagIDs []string) ([]model.BlogPostTag, error)
	ListTags(ctx context.Context, postID string) ([]post.TagView, error)
	AddTag(ctx context.Context, postID, tagID string) (*model.BlogPostTag, error)
	RemoveTag(ctx context.Context, postID, tagID string) error
}

// PostHandler は記事管理のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{service: service}
}

// createPostRequest は記事作成リクエストのボディ。
type createPostRequest struct {
	Title           string            `json:"title"`
	Slug            string            `json:"slug"`
	Content         string            `json:"content"`
	Excerpt         *string           `json:"excerpt"`
	FeaturedImage   *string           `json:"featured_image"`
	MetaTitle       *string           `json:"meta_title"`
	MetaDescription *string           `json:"meta_description"`
	Status          model.PostStatus  `json:"status"`
	PublishedAt     *time.Time        `json:"published_at"`
	CategoryID      *string           `json:"category_id"`
	Author          *string           `json:"author"`
	Tables          []model.TableData `json:"tables"`
	TagIDs          []string          `json:"tag_ids"`
}

type updateStatusRequest struct {
	Status model.PostStatus `json:"status"`
}

type setTagsRequest struct {
	TagIDs []string `json:"tag_ids"`
}

// postResponse は記事1行のAPIレスポンス。
type postResponse struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Slug            string            `json:"slug"`
	Content         string            `json:"content"`
	Excerpt         *string           `json:"excerpt"`
	FeaturedImage   *string           `json:"featured_image"`
	MetaTitle       *string           `json:"meta_title"`
	MetaDescription *string           `json:"meta_description"`
	Status          model.PostStatus  `json:"status"`
	PublishedAt     *time.Time        `json:"published_at"`
	CategoryID      *string           `json:"category_id"`
	Author          *string           `json:"author"`
	Tables          []model.TableData `json:"tables"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// postViewResponse はカテゴリ・タグを正規化した記事のAPIレスポンス。
type postViewResponse struct {
	postResponse
	Categories   *model.CategoryRef    `json:"categories"`
	TagsID       *string               `json:"tags_id"`
	BlogPostTags []postTagViewResponse `json:"blog_post_tags"`
}

type postTagViewResponse struct {
	ID         string        `json:"id"`
	BlogPostID string        `json:"blog_post_id"`
	TagID      string        `json:"tag_id"`
	CreatedAt  time.Time     `json:"created_at"`
	Tags       *model.TagRef `json:"tags"`
}

// ListPosts は全記事を返す。
// GET /api/admin/posts
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]postViewResponse, len(views))
	for i, v := range views {
		results[i] = toPostViewResponse(v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": results})
}

// GetPost は記事を1件返す。
// GET /api/admin/posts/{id}
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"post": toPostViewResponse(*view)})
}

// CreatePost は記事を作成する。保存できなかった任意項目はskipped_fieldsで返す。
// POST /api/admin/posts
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Create(r.Context(), post.CreateInput{
		Title:           req.Title,
		Slug:            req.Slug,
		Content:         req.Content,
		Excerpt:         req.Excerpt,
		FeaturedImage:   req.FeaturedImage,
		MetaTitle:       req.MetaTitle,
		MetaDescription: req.MetaDescription,
		Status:          req.Status,
		PublishedAt:     req.PublishedAt,
		CategoryID:      req.CategoryID,
		Author:          req.Author,
		Tables:          req.Tables,
		TagIDs:          req.TagIDs,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	skipped := result.SkippedFields
	if skipped == nil {
		skipped = []string{}
	}
	tags := result.Tags
	if tags == nil {
		tags = []model.BlogPostTag{}
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"post":           toPostResponse(result.Post),
		"skipped_fields": skipped,
		"tags":           tags,
	})
}

// UpdatePost は指定されたフィールドのみを更新する。
// PATCH /api/admin/posts/{id}
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	var req post.PostUpdate
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"post": toPostResponse(updated)})
}

// UpdateStatus は公開状態のみを変更する。
// PUT /api/admin/posts/{id}/status
func (h *PostHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"post": toPostResponse(updated)})
}

// DeletePost は記事を削除する。
// DELETE /api/admin/posts/{id}
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTags は記事に割り当てられたタグの関連行を、タグの実体付きで返す。
// GET /api/admin/posts/{id}/tags
func (h *PostHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.service.ListTags(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": toPostTagViewResponses(tags)})
}

// SetTags は記事のタグを指定した集合に置き換える。
// PUT /api/admin/posts/{id}/tags
func (h *PostHandler) SetTags(w http.ResponseWriter, r *http.Request) {
	var req setTagsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tags, err := h.service.SetTags(r.Context(), chi.URLParam(r, "id"), req.TagIDs)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

// AddTag は記事にタグを1件追加する。割り当て済みの場合も既存の関連行を返す。
// POST /api/admin/posts/{id}/tags/{tagId}
func (h *PostHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	tag, err := h.service.AddTag(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "tagId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"tag": tag})
}

// RemoveTag は記事からタグを1件外す。
// DELETE /api/admin/posts/{id}/tags/{tagId}
func (h *PostHandler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveTag(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "tagId")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toPostResponse(p *model.BlogPost) postResponse {
	return postResponse{
		ID:              p.ID,
		Title:           p.Title,
		Slug:            p.Slug,
		Content:         p.Content,
		Excerpt:         p.Excerpt,
		FeaturedImage:   p.FeaturedImage,
		MetaTitle:       p.MetaTitle,
		MetaDescription: p.MetaDescription,
		Status:          p.Status,
		PublishedAt:     p.PublishedAt,
		CategoryID:      p.CategoryID,
		Author:          p.Author,
		Tables:          p.Tables,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func toPostViewResponse(v post.View) postViewResponse {
	resp := postViewResponse{
		postResponse: toPostResponse(&v.BlogPost),
		Categories:   v.Categories,
		TagsID:       v.TagsID,
		BlogPostTags: toPostTagViewResponses(v.BlogPostTags),
	}
	return resp
}

func toPostTagViewResponses(tags []post.TagView) []postTagViewResponse {
	resp := make([]postTagViewResponse, len(tags))
	for i, t := range tags {
		resp[i] = postTagViewResponse{
			ID:         t.ID,
			BlogPostID: t.BlogPostID,
			TagID:      t.TagID,
			CreatedAt:  t.CreatedAt,
			Tags:       t.Tags,
		}
	}
	return resp
}
