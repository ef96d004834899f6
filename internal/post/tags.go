package post

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/blogdesk/internal/model"
	"github.com/hitoshi/blogdesk/internal/repository"
)

// SetTags は記事のタグ集合を指定されたIDの集合に置き換え、挿入した関連行を返す。
//
// 重複したIDはそのままストアに渡し、ストアの一意制約で1行にまとめる。
// TagModeSequentialでは削除後の挿入に失敗すると記事のタグは0件になる。
func (s *Service) SetTags(ctx context.Context, postID string, tagIDs []string) ([]model.BlogPostTag, error) {
	if err := validateIDs("post_id", postID); err != nil {
		return nil, model.NewPostNotFoundError(postID)
	}
	if err := validateIDs("tag_ids", tagIDs...); err != nil {
		return nil, err
	}

	var (
		tags []model.BlogPostTag
		err  error
	)
	switch s.tagMode {
	case TagModeSequential:
		tags, err = s.setTagsSequential(ctx, postID, tagIDs)
	default:
		tags, err = s.postTags.ReplaceForPost(ctx, postID, tagIDs)
		if err != nil {
			err = fmt.Errorf("タグの置き換えに失敗しました: %w", err)
		}
	}
	s.metrics.RecordTagAssignment(string(s.tagMode), err)
	if err != nil {
		return nil, err
	}

	if tags == nil {
		tags = []model.BlogPostTag{}
	}
	return tags, nil
}

// setTagsSequential は既存の関連行を削除してから新しい関連行を挿入する。
func (s *Service) setTagsSequential(ctx context.Context, postID string, tagIDs []string) ([]model.BlogPostTag, error) {
	if err := s.postTags.DeleteByPostID(ctx, postID); err != nil {
		return nil, fmt.Errorf("既存タグの削除に失敗しました: %w", err)
	}
	if len(tagIDs) == 0 {
		return []model.BlogPostTag{}, nil
	}

	tags, err := s.postTags.InsertForPost(ctx, postID, tagIDs)
	if err != nil {
		return nil, fmt.Errorf("タグの挿入に失敗しました（記事のタグは0件になっています）: %w", err)
	}
	return tags, nil
}

// ListTags は記事に割り当てられた関連行を、タグの射影付きで返す。
func (s *Service) ListTags(ctx context.Context, postID string) ([]TagView, error) {
	if err := validateIDs("post_id", postID); err != nil {
		return nil, model.NewPostNotFoundError(postID)
	}

	rels, err := s.postTags.ListByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("記事のタグ取得に失敗しました: %w", err)
	}
	return projectTags(rels), nil
}

// AddTag は記事にタグを1件追加する。割り当て済みのタグを指定しても成功する。
func (s *Service) AddTag(ctx context.Context, postID, tagID string) (*model.BlogPostTag, error) {
	if err := validateIDs("post_id", postID); err != nil {
		return nil, model.NewPostNotFoundError(postID)
	}
	if err := validateIDs("tag_id", tagID); err != nil {
		return nil, err
	}

	tag, err := s.postTags.Add(ctx, postID, tagID)
	s.metrics.RecordTagAssignment("add", err)
	if err != nil {
		return nil, fmt.Errorf("タグの追加に失敗しました: %w", err)
	}
	return tag, nil
}

// RemoveTag は記事からタグを1件外す。割り当てられていない場合はTAG_NOT_FOUNDを返す。
func (s *Service) RemoveTag(ctx context.Context, postID, tagID string) error {
	if err := validateIDs("post_id", postID); err != nil {
		return model.NewPostNotFoundError(postID)
	}
	if err := validateIDs("tag_id", tagID); err != nil {
		return model.NewTagNotFoundError(tagID)
	}

	err := s.postTags.Remove(ctx, postID, tagID)
	s.metrics.RecordTagAssignment("remove", err)
	if errors.Is(err, repository.ErrNotFound) {
		return model.NewTagNotFoundError(tagID)
	}
	if err != nil {
		return fmt.Errorf("タグの削除に失敗しました: %w", err)
	}
	return nil
}
