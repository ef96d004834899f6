package post

import (
	"strings"
	"time"

	"github.com/hitoshi/blogdesk/internal/model"
)

// View は一覧表示用に正規化した記事。
// Categoriesは単一オブジェクトかnil、BlogPostTagsの各Tagsも単一オブジェクトかnilになる。
type View struct {
	model.BlogPost
	Categories   *model.CategoryRef
	TagsID       *string // タグ名を", "で連結した表示用の値。タグがなければnil
	BlogPostTags []TagView
}

// TagView はblog_post_tagsの1行と、そのタグの射影。
type TagView struct {
	ID         string
	BlogPostID string
	TagID      string
	CreatedAt  time.Time
	Tags       *model.TagRef
}

// Project はストアから取得した記事を一覧表示用の形に正規化する。
func Project(p model.PostWithRelations) View {
	view := View{
		BlogPost:     p.BlogPost,
		Categories:   p.Categories.One(),
		BlogPostTags: projectTags(p.BlogPostTags),
	}

	var names []string
	for _, tv := range view.BlogPostTags {
		if tv.Tags != nil {
			names = append(names, tv.Tags.Name)
		}
	}

	if len(names) > 0 {
		joined := strings.Join(names, ", ")
		view.TagsID = &joined
	}
	return view
}

// projectTags は関連行のtagsを単一オブジェクトかnilに正規化する。
func projectTags(rels []model.PostTagRelation) []TagView {
	views := make([]TagView, len(rels))
	for i, rel := range rels {
		views[i] = TagView{
			ID:         rel.ID,
			BlogPostID: rel.BlogPostID,
			TagID:      rel.TagID,
			CreatedAt:  rel.CreatedAt,
			Tags:       rel.Tags.One(),
		}
	}
	return views
}

// Tags は割り当て済みのタグのうち、実体が取得できたものだけを返す。
func Tags(p model.PostWithRelations) []model.TagRef {
	tags := make([]model.TagRef, 0, len(p.BlogPostTags))
	for _, rel := range p.BlogPostTags {
		if tag := rel.Tags.One(); tag != nil {
			tags = append(tags, *tag)
		}
	}
	return tags
}
