package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Relation はJOINで取得した関連エンティティを表す。
// ストアはJOINのカーディナリティに応じて関連を単一オブジェクト、
// 要素数1の配列、空配列、nullのいずれかで返すため、
// どの形で受け取っても同じ値に正規化する。
//
//	{...}      → 要素1件
//	[{...}]    → 要素1件
//	[{...},…]  → 全件を保持し、One()は先頭を返す
//	[] / null  → 要素0件
type Relation[T any] struct {
	items []T
}

// NewRelation は指定した要素からRelationを生成する。
func NewRelation[T any](items ...T) Relation[T] {
	return Relation[T]{items: items}
}

// UnmarshalJSON はオブジェクトと配列の両方の表現を受け付ける。
func (r *Relation[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		r.items = nil
		return nil
	}

	switch trimmed[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return fmt.Errorf("関連配列のデコードに失敗しました: %w", err)
		}
		r.items = items
	case '{':
		var item T
		if err := json.Unmarshal(trimmed, &item); err != nil {
			return fmt.Errorf("関連オブジェクトのデコードに失敗しました: %w", err)
		}
		r.items = []T{item}
	default:
		return fmt.Errorf("関連の形式が不正です: %s", string(trimmed))
	}
	return nil
}

// MarshalJSON は正規化後の単一オブジェクト（またはnull）として出力する。
func (r Relation[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.One())
}

// One は先頭の要素を返す。要素がない場合はnilを返す。
func (r Relation[T]) One() *T {
	if len(r.items) == 0 {
		return nil
	}
	item := r.items[0]
	return &item
}

// Len は保持している要素数を返す。
func (r Relation[T]) Len() int {
	return len(r.items)
}
