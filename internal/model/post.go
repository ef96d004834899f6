// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"time"
)

// PostStatus はブログ記事の公開状態を表す。
type PostStatus string

const (
	// PostStatusDraft は下書き状態。
	PostStatusDraft PostStatus = "draft"
	// PostStatusPublished は公開状態。
	PostStatusPublished PostStatus = "published"
	// PostStatusArchived はアーカイブ状態。
	PostStatusArchived PostStatus = "archived"
)

// Valid は定義済みの公開状態かどうかを返す。
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusDraft, PostStatusPublished, PostStatusArchived:
		return true
	default:
		return false
	}
}

// BlogPost はblog_postsテーブルの1行を表す。
// NULL許容カラムはポインタで保持する。
type BlogPost struct {
	ID              string
	Title           string
	Slug            string
	Content         string
	Excerpt         *string
	FeaturedImage   *string // リモートURLまたはbase64のdata URI
	MetaTitle       *string
	MetaDescription *string
	Status          PostStatus
	PublishedAt     *time.Time
	CategoryID      *string
	Author          *string // 自由入力の著者名（外部キーではない）
	Tables          []TableData
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableData は記事に埋め込まれるユーザー作成の表。
type TableData struct {
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// BlogPostTag は記事とタグの関連（blog_post_tagsの1行）を表す。
type BlogPostTag struct {
	ID         string    `json:"id"`
	BlogPostID string    `json:"blog_post_id"`
	TagID      string    `json:"tag_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// CategoryRef は記事にJOINされたカテゴリの射影。
type CategoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// TagRef は記事にJOINされたタグの射影。
type TagRef struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Slug  string  `json:"slug"`
	Color *string `json:"color"`
}

// PostTagRelation はストアから返るblog_post_tagsのJOIN行。
// tagsはJOINのカーディナリティによってオブジェクトまたは配列で返る。
type PostTagRelation struct {
	ID         string           `json:"id"`
	BlogPostID string           `json:"blog_post_id"`
	TagID      string           `json:"tag_id"`
	CreatedAt  time.Time        `json:"created_at"`
	Tags       Relation[TagRef] `json:"tags"`
}

// PostWithRelations はカテゴリとタグをJOINした記事のストア表現。
type PostWithRelations struct {
	BlogPost
	Categories   Relation[CategoryRef]
	BlogPostTags []PostTagRelation
}

// PostSummary は公開一覧APIで返す記事の概要。
type PostSummary struct {
	ID        string
	Slug      string
	Title     string
	Status    PostStatus
	CreatedAt time.Time
}

// MarshalTables はtablesカラムに格納するJSONを返す。nilの場合はNULLとして扱う。
func MarshalTables(tables []TableData) (any, error) {
	if tables == nil {
		return nil, nil
	}
	b, err := json.Marshal(tables)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
