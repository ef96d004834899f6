package model

import "time"

// Category はcategoriesテーブルの1行を表す。
type Category struct {
	ID              string
	Name            string
	Slug            string
	Description     *string
	MetaTitle       *string
	MetaDescription *string
	FeaturedImage   *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Tag はtagsテーブルの1行を表す。
type Tag struct {
	ID        string
	Name      string
	Slug      string
	Color     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WaitlistEntry はメーリングリストのウェイトリスト登録を表す。
type WaitlistEntry struct {
	ID        string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
