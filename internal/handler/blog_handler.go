package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blogdesk/internal/feed"
	"github.com/hitoshi/blogdesk/internal/middleware"
	"github.com/hitoshi/blogdesk/internal/model"
)

// BlogServiceInterface は公開APIハンドラーが必要とするサービスインターフェース。
type BlogServiceInterface interface {
	// ListPosts は記事概要をcreated_at降順で返す。statusが空の場合は全状態を対象とする。
	ListPosts(ctx context.Context, status string, limit int) ([]postSummaryResponse, error)
	// GetPost はスラッグで記事詳細を返す。
	GetPost(ctx context.Context, slug string) (*postDetailResponse, error)
	// ListFeedPosts はRSS配信対象の公開済み記事を返す。
	ListFeedPosts(ctx context.Context) ([]*model.BlogPost, error)
}

// Pinger はヘルスチェック用のDB疎通確認インターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// BlogHandler は公開APIのHTTPハンドラー。
type BlogHandler struct {
	service BlogServiceInterface
	site    feed.Site
}

// NewBlogHandler はBlogHandlerを生成する。
func NewBlogHandler(service BlogServiceInterface, site feed.Site) *BlogHandler {
	return &BlogHandler{
		service: service,
		site:    site,
	}
}

// postSummaryResponse は公開一覧の1件。
type postSummaryResponse struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// postDetailResponse は公開詳細APIの記事。
type postDetailResponse struct {
	ID            string                 `json:"id"`
	Slug          string                 `json:"slug"`
	Title         string                 `json:"title"`
	Excerpt       *string                `json:"excerpt"`
	Content       string                 `json:"content"`
	PublishedAt   *time.Time             `json:"publishedAt"`
	Author        *authorResponse        `json:"author"`
	Category      *categoryRefResponse   `json:"category"`
	FeaturedImage *featuredImageResponse `json:"featuredImage"`
	Tags          []tagRefResponse       `json:"tags"`
}

type authorResponse struct {
	ID   *string `json:"id"`
	Name string  `json:"name"`
}

type categoryRefResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type featuredImageResponse struct {
	URL string `json:"url"`
}

type tagRefResponse struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Slug  string  `json:"slug"`
	Color *string `json:"color"`
}

// ListPosts は記事一覧を返す。
// GET /api/blog?limit=&status=
func (h *BlogHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			middleware.WritePublicError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	posts, err := h.service.ListPosts(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeInvalidStatus {
			middleware.WritePublicError(w, http.StatusBadRequest, apiErr.Message)
			return
		}
		logStoreError(err)
		middleware.WritePublicError(w, http.StatusInternalServerError, "Failed to load blog posts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// GetPost は記事詳細を返す。
// GET /api/blog/{slug}
func (h *BlogHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	post, err := h.service.GetPost(r.Context(), slug)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodePostNotFound {
			middleware.WritePublicError(w, http.StatusNotFound, "Post not found")
			return
		}
		logStoreError(err)
		middleware.WritePublicError(w, http.StatusInternalServerError, "Failed to load blog post")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"post": post})
}

// Feed は公開済み記事のRSSを返す。
// GET /feed.xml
func (h *BlogHandler) Feed(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListFeedPosts(r.Context())
	if err != nil {
		logStoreError(err)
		http.Error(w, "failed to build feed", http.StatusInternalServerError)
		return
	}

	body, err := feed.BuildRSS(h.site, posts)
	if err != nil {
		slog.Error("RSSの生成に失敗しました", slog.String("error", err.Error()))
		http.Error(w, "failed to build feed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// NewHealthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func NewHealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			slog.Warn("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
