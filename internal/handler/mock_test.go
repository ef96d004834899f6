package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blogdesk/internal/model"
	"github.com/hitoshi/blogdesk/internal/post"
	"github.com/hitoshi/blogdesk/internal/taxonomy"
	"github.com/hitoshi/blogdesk/internal/waitlist"
)

// --- モック定義 ---

// mockBlogService はBlogServiceInterfaceのモック実装。
type mockBlogService struct {
	listPostsFn     func(ctx context.Context, status string, limit int) ([]postSummaryResponse, error)
	getPostFn       func(ctx context.Context, slug string) (*postDetailResponse, error)
	listFeedPostsFn func(ctx context.Context) ([]*model.BlogPost, error)
}

func (m *mockBlogService) ListPosts(ctx context.Context, status string, limit int) ([]postSummaryResponse, error) {
	if m.listPostsFn != nil {
		return m.listPostsFn(ctx, status, limit)
	}
	return []postSummaryResponse{}, nil
}

func (m *mockBlogService) GetPost(ctx context.Context, slug string) (*postDetailResponse, error) {
	if m.getPostFn != nil {
		return m.getPostFn(ctx, slug)
	}
	return nil, model.NewPostNotFoundError(slug)
}

func (m *mockBlogService) ListFeedPosts(ctx context.Context) ([]*model.BlogPost, error) {
	if m.listFeedPostsFn != nil {
		return m.listFeedPostsFn(ctx)
	}
	return nil, nil
}

// mockPostService はPostServiceInterfaceのモック実装。
type mockPostService struct {
	listFn         func(ctx context.Context) ([]post.View, error)
	getByIDFn      func(ctx context.Context, id string) (*post.View, error)
	createFn       func(ctx context.Context, in post.CreateInput) (*post.CreateResult, error)
	updateFn       func(ctx context.Context, id string, u post.PostUpdate) (*model.BlogPost, error)
	updateStatusFn func(ctx context.Context, id string, status model.PostStatus) (*model.BlogPost, error)
	deleteFn       func(ctx context.Context, id string) error
	setTagsFn      func(ctx context.Context, postID string, tagIDs []string) ([]model.BlogPostTag, error)
	listTagsFn     func(ctx context.Context, postID string) ([]post.TagView, error)
	addTagFn       func(ctx context.Context, postID, tagID string) (*model.BlogPostTag, error)
	removeTagFn    func(ctx context.Context, postID, tagID string) error
}

func (m *mockPostService) List(ctx context.Context) ([]post.View, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockPostService) GetByID(ctx context.Context, id string) (*post.View, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.NewPostNotFoundError(id)
}

func (m *mockPostService) Create(ctx context.Context, in post.CreateInput) (*post.CreateResult, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return &post.CreateResult{Post: &model.BlogPost{Title: in.Title}}, nil
}

func (m *mockPostService) Update(ctx context.Context, id string, u post.PostUpdate) (*model.BlogPost, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, u)
	}
	return &model.BlogPost{ID: id}, nil
}

func (m *mockPostService) UpdateStatus(ctx context.Context, id string, status model.PostStatus) (*model.BlogPost, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return &model.BlogPost{ID: id, Status: status}, nil
}

func (m *mockPostService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockPostService) SetTags(ctx context.Context, postID string, tagIDs []string) ([]model.BlogPostTag, error) {
	if m.setTagsFn != nil {
		return m.setTagsFn(ctx, postID, tagIDs)
	}
	return []model.BlogPostTag{}, nil
}

func (m *mockPostService) ListTags(ctx context.Context, postID string) ([]post.TagView, error) {
	if m.listTagsFn != nil {
		return m.listTagsFn(ctx, postID)
	}
	return []post.TagView{}, nil
}

func (m *mockPostService) AddTag(ctx context.Context, postID, tagID string) (*model.BlogPostTag, error) {
	if m.addTagFn != nil {
		return m.addTagFn(ctx, postID, tagID)
	}
	return &model.BlogPostTag{ID: "r1", BlogPostID: postID, TagID: tagID}, nil
}

func (m *mockPostService) RemoveTag(ctx context.Context, postID, tagID string) error {
	if m.removeTagFn != nil {
		return m.removeTagFn(ctx, postID, tagID)
	}
	return nil
}

// mockTaxonomyService はTaxonomyServiceInterfaceのモック実装。
type mockTaxonomyService struct {
	listCategoriesFn func(ctx context.Context) ([]*model.Category, error)
	getCategoryFn    func(ctx context.Context, id string) (*model.Category, error)
	createCategoryFn func(ctx context.Context, in taxonomy.CategoryInput) (*model.Category, error)
	updateCategoryFn func(ctx context.Context, id string, u taxonomy.CategoryUpdate) (*model.Category, error)
	deleteCategoryFn func(ctx context.Context, id string) error
	listTagsFn       func(ctx context.Context) ([]*model.Tag, error)
	getTagFn         func(ctx context.Context, id string) (*model.Tag, error)
	createTagFn      func(ctx context.Context, in taxonomy.TagInput) (*model.Tag, error)
	updateTagFn      func(ctx context.Context, id string, u taxonomy.TagUpdate) (*model.Tag, error)
	deleteTagFn      func(ctx context.Context, id string) error
}

func (m *mockTaxonomyService) ListCategories(ctx context.Context) ([]*model.Category, error) {
	if m.listCategoriesFn != nil {
		return m.listCategoriesFn(ctx)
	}
	return nil, nil
}

func (m *mockTaxonomyService) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	if m.getCategoryFn != nil {
		return m.getCategoryFn(ctx, id)
	}
	return nil, model.NewCategoryNotFoundError(id)
}

func (m *mockTaxonomyService) CreateCategory(ctx context.Context, in taxonomy.CategoryInput) (*model.Category, error) {
	if m.createCategoryFn != nil {
		return m.createCategoryFn(ctx, in)
	}
	return &model.Category{Name: in.Name}, nil
}

func (m *mockTaxonomyService) UpdateCategory(ctx context.Context, id string, u taxonomy.CategoryUpdate) (*model.Category, error) {
	if m.updateCategoryFn != nil {
		return m.updateCategoryFn(ctx, id, u)
	}
	return &model.Category{ID: id}, nil
}

func (m *mockTaxonomyService) DeleteCategory(ctx context.Context, id string) error {
	if m.deleteCategoryFn != nil {
		return m.deleteCategoryFn(ctx, id)
	}
	return nil
}

func (m *mockTaxonomyService) ListTags(ctx context.Context) ([]*model.Tag, error) {
	if m.listTagsFn != nil {
		return m.listTagsFn(ctx)
	}
	return nil, nil
}

func (m *mockTaxonomyService) GetTag(ctx context.Context, id string) (*model.Tag, error) {
	if m.getTagFn != nil {
		return m.getTagFn(ctx, id)
	}
	return nil, model.NewTagNotFoundError(id)
}

func (m *mockTaxonomyService) CreateTag(ctx context.Context, in taxonomy.TagInput) (*model.Tag, error) {
	if m.createTagFn != nil {
		return m.createTagFn(ctx, in)
	}
	return &model.Tag{Name: in.Name}, nil
}

func (m *mockTaxonomyService) UpdateTag(ctx context.Context, id string, u taxonomy.TagUpdate) (*model.Tag, error) {
	if m.updateTagFn != nil {
		return m.updateTagFn(ctx, id, u)
	}
	return &model.Tag{ID: id}, nil
}

func (m *mockTaxonomyService) DeleteTag(ctx context.Context, id string) error {
	if m.deleteTagFn != nil {
		return m.deleteTagFn(ctx, id)
	}
	return nil
}

// mockWaitlistService はWaitlistServiceInterfaceのモック実装。
type mockWaitlistService struct {
	listFn      func(ctx context.Context) ([]*model.WaitlistEntry, error)
	bulkAddFn   func(ctx context.Context, emails []string) (int, error)
	deleteFn    func(ctx context.Context, id string) error
	importCSVFn func(ctx context.Context, r io.Reader) (*waitlist.ImportResult, error)
	exportCSVFn func(ctx context.Context, w io.Writer) error
}

func (m *mockWaitlistService) List(ctx context.Context) ([]*model.WaitlistEntry, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockWaitlistService) BulkAdd(ctx context.Context, emails []string) (int, error) {
	if m.bulkAddFn != nil {
		return m.bulkAddFn(ctx, emails)
	}
	return len(emails), nil
}

func (m *mockWaitlistService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockWaitlistService) ImportCSV(ctx context.Context, r io.Reader) (*waitlist.ImportResult, error) {
	if m.importCSVFn != nil {
		return m.importCSVFn(ctx, r)
	}
	return &waitlist.ImportResult{}, nil
}

func (m *mockWaitlistService) ExportCSV(ctx context.Context, w io.Writer) error {
	if m.exportCSVFn != nil {
		return m.exportCSVFn(ctx, w)
	}
	return nil
}

// --- テストヘルパー ---

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	return withChiURLParams(r, key, value)
}

// withChiURLParams はkey, valueの組を順に並べてchiのURLパラメータを設定する。
func withChiURLParams(r *http.Request, pairs ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(pairs); i += 2 {
		rctx.URLParams.Add(pairs[i], pairs[i+1])
	}
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// decodeBody はレスポンスボディを汎用マップにデコードするヘルパー。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return result
}

func strPtr(s string) *string { return &s }
