package post

import (
	"context"
	"sync"

	"github.com/hitoshi/blogdesk/internal/model"
	"github.com/hitoshi/blogdesk/internal/repository"
)

// --- モック ---

type mockPostRepo struct {
	listWithRelationsFn func(ctx context.Context) ([]model.PostWithRelations, error)
	listSummariesFn     func(ctx context.Context, status *model.PostStatus, limit int) ([]model.PostSummary, error)
	listPublishedFn     func(ctx context.Context, limit int) ([]*model.BlogPost, error)
	findBySlugFn        func(ctx context.Context, slug string) (*model.PostWithRelations, error)
	findByIDFn          func(ctx context.Context, id string) (*model.PostWithRelations, error)
	updateColumnsFn     func(ctx context.Context, id string, columns map[string]any) (*model.BlogPost, error)
	updateStatusFn      func(ctx context.Context, id string, status model.PostStatus) (*model.BlogPost, error)
	deleteFn            func(ctx context.Context, id string) error
	writer              repository.PostWriter
	commitErr           error
}

func (m *mockPostRepo) ListWithRelations(ctx context.Context) ([]model.PostWithRelations, error) {
	return m.listWithRelationsFn(ctx)
}
func (m *mockPostRepo) ListSummaries(ctx context.Context, status *model.PostStatus, limit int) ([]model.PostSummary, error) {
	return m.listSummariesFn(ctx, status, limit)
}
func (m *mockPostRepo) ListPublished(ctx context.Context, limit int) ([]*model.BlogPost, error) {
	return m.listPublishedFn(ctx, limit)
}
func (m *mockPostRepo) FindBySlug(ctx context.Context, slug string) (*model.PostWithRelations, error) {
	return m.findBySlugFn(ctx, slug)
}
func (m *mockPostRepo) FindByID(ctx context.Context, id string) (*model.PostWithRelations, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockPostRepo) UpdateColumns(ctx context.Context, id string, columns map[string]any) (*model.BlogPost, error) {
	return m.updateColumnsFn(ctx, id, columns)
}
func (m *mockPostRepo) UpdateStatus(ctx context.Context, id string, status model.PostStatus) (*model.BlogPost, error) {
	return m.updateStatusFn(ctx, id, status)
}
func (m *mockPostRepo) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}
func (m *mockPostRepo) RunInTx(ctx context.Context, fn func(repository.PostWriter) error) error {
	if err := fn(m.writer); err != nil {
		return err
	}
	return m.commitErr
}

// mockWriter はメモリ上の1行に対して書き込みを適用するPostWriter。
type mockWriter struct {
	mu          sync.Mutex
	post        model.BlogPost
	insertErr   error
	failColumns map[string]error
	replaceFn   func(ctx context.Context, postID string, tagIDs []string) ([]model.BlogPostTag, error)
	updated     []string
}

func (w *mockWriter) Insert(ctx context.Context, post *model.BlogPost) (*model.BlogPost, error) {
	if w.insertErr != nil {
		return nil, w.insertErr
	}
	w.post = *post
	w.post.ID = "11111111-1111-1111-1111-111111111111"
	created := w.post
	return &created, nil
}

func (w *mockWriter) TryUpdateColumn(ctx context.Context, id, column string, value any) (*model.BlogPost, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err, ok := w.failColumns[column]; ok {
		return nil, err
	}
	w.updated = append(w.updated, column)
	switch column {
	case "featured_image":
		v := value.(string)
		w.post.FeaturedImage = &v
	case "meta_title":
		v := value.(string)
		w.post.MetaTitle = &v
	case "meta_description":
		v := value.(string)
		w.post.MetaDescription = &v
	case "category_id":
		v := value.(string)
		w.post.CategoryID = &v
	case "author":
		v := value.(string)
		w.post.Author = &v
	}
	updated := w.post
	return &updated, nil
}

func (w *mockWriter) ReplaceTags(ctx context.Context, postID string, tagIDs []string) ([]model.BlogPostTag, error) {
	return w.replaceFn(ctx, postID, tagIDs)
}

type mockPostTagRepo struct {
	listByPostIDFn   func(ctx context.Context, postID string) ([]model.PostTagRelation, error)
	addFn            func(ctx context.Context, postID, tagID string) (*model.BlogPostTag, error)
	removeFn         func(ctx context.Context, postID, tagID string) error
	deleteByPostIDFn func(ctx context.Context, postID string) error
	insertForPostFn  func(ctx context.Context, postID string, tagIDs []string) ([]model.BlogPostTag, error)
	replaceForPostFn func(ctx context.Context, postID string, tagIDs []string) ([]model.BlogPostTag, error)
}

func (m *mockPostTagRepo) ListByPostID(ctx context.Context, postID string) ([]model.PostTagRelation, error) {
	return m.listByPostIDFn(ctx, postID)
}
func (m *mockPostTagRepo) Add(ctx context.Context, postID, tagID string) (*model.BlogPostTag, error) {
	return m.addFn(ctx, postID, tagID)
}
func (m *mockPostTagRepo) Remove(ctx context.Context, postID, tagID string) error {
	return m.removeFn(ctx, postID, tagID)
}
func (m *mockPostTagRepo) DeleteByPostID(ctx context.Context, postID string) error {
	return m.deleteByPostIDFn(ctx, postID)
}
func (m *mockPostTagRepo) InsertForPost(ctx context.Context, postID string, tagIDs []string) ([]model.BlogPostTag, error) {
	return m.insertForPostFn(ctx, postID, tagIDs)
}
func (m *mockPostTagRepo) ReplaceForPost(ctx context.Context, postID string, tagIDs []string) ([]model.BlogPostTag, error) {
	return m.replaceForPostFn(ctx, postID, tagIDs)
}

type recordingMetrics struct {
	skipped     []string
	assignments []string
}

func (m *recordingMetrics) RecordSkippedField(field string) {
	m.skipped = append(m.skipped, field)
}
func (m *recordingMetrics) RecordTagAssignment(mode string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.assignments = append(m.assignments, mode+":"+outcome)
}

// memTagStore はストアの一意制約による重複除外を再現する関連行ストア。
type memTagStore struct {
	mu   sync.Mutex
	rows map[string]map[string]bool
}

func newMemTagStore() *memTagStore {
	return &memTagStore{rows: make(map[string]map[string]bool)}
}

func (s *memTagStore) deleteAll(postID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, postID)
}

func (s *memTagStore) insert(postID string, tagIDs []string) []model.BlogPostTag {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rows[postID] == nil {
		s.rows[postID] = make(map[string]bool)
	}
	inserted := []model.BlogPostTag{}
	for _, id := range tagIDs {
		if s.rows[postID][id] {
			continue
		}
		s.rows[postID][id] = true
		inserted = append(inserted, model.BlogPostTag{BlogPostID: postID, TagID: id})
	}
	return inserted
}

func (s *memTagStore) tagSet(postID string) map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.rows[postID]))
	for id := range s.rows[postID] {
		out[id] = true
	}
	return out
}
