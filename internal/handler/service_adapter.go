package handler

import (
	"context"

	"github.com/hitoshi/blogdesk/internal/model"
	"github.com/hitoshi/blogdesk/internal/post"
)

// feedItemLimit はRSSに含める記事数。
const feedItemLimit = 50

// BlogServiceAdapter は post.Service を BlogServiceInterface に適合させるアダプタ。
type BlogServiceAdapter struct {
	svc *post.Service
}

// NewBlogServiceAdapter はBlogServiceAdapterを生成する。
func NewBlogServiceAdapter(svc *post.Service) *BlogServiceAdapter {
	return &BlogServiceAdapter{svc: svc}
}

// ListPosts は記事概要をhandlerレスポンス型で返す。
func (a *BlogServiceAdapter) ListPosts(ctx context.Context, status string, limit int) ([]postSummaryResponse, error) {
	summaries, err := a.svc.ListSummaries(ctx, status, limit)
	if err != nil {
		return nil, err
	}

	results := make([]postSummaryResponse, len(summaries))
	for i, s := range summaries {
		results[i] = postSummaryResponse{
			ID:        s.ID,
			Slug:      s.Slug,
			Title:     s.Title,
			Status:    string(s.Status),
			CreatedAt: s.CreatedAt,
		}
	}
	return results, nil
}

// GetPost は記事詳細をhandlerレスポンス型で返す。
func (a *BlogServiceAdapter) GetPost(ctx context.Context, slug string) (*postDetailResponse, error) {
	p, err := a.svc.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	resp := toPostDetailResponse(*p)
	return &resp, nil
}

// ListFeedPosts はRSS配信対象の記事を返す。
func (a *BlogServiceAdapter) ListFeedPosts(ctx context.Context) ([]*model.BlogPost, error) {
	return a.svc.ListPublished(ctx, feedItemLimit)
}

// toPostDetailResponse はJOIN結果を公開詳細APIの形に変換する。
// カテゴリは単一オブジェクトに正規化し、実体のないタグは除外する。
func toPostDetailResponse(p model.PostWithRelations) postDetailResponse {
	resp := postDetailResponse{
		ID:          p.ID,
		Slug:        p.Slug,
		Title:       p.Title,
		Excerpt:     p.Excerpt,
		Content:     p.Content,
		PublishedAt: p.PublishedAt,
	}

	if p.Author != nil && *p.Author != "" {
		resp.Author = &authorResponse{Name: *p.Author}
	}
	if c := p.Categories.One(); c != nil {
		resp.Category = &categoryRefResponse{ID: c.ID, Name: c.Name}
	}
	if p.FeaturedImage != nil && *p.FeaturedImage != "" {
		resp.FeaturedImage = &featuredImageResponse{URL: *p.FeaturedImage}
	}

	tags := post.Tags(p)
	resp.Tags = make([]tagRefResponse, len(tags))
	for i, t := range tags {
		resp.Tags[i] = tagRefResponse{ID: t.ID, Name: t.Name, Slug: t.Slug, Color: t.Color}
	}
	return resp
}
