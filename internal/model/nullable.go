package model

import (
	"bytes"
	"encoding/json"
)

// Nullable は部分更新における「未指定」「null指定」「値指定」を区別するフィールド。
// JSONでキーが存在しない場合はSet=false、nullの場合はSet=trueかつValue=nilとなる。
type Nullable[T any] struct {
	Set   bool
	Value *T
}

// Null はnull指定のNullableを返す。
func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

// Value は値指定のNullableを返す。
func Value[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: &v}
}

// UnmarshalJSON はキーが存在した時点でSetをtrueにする。
func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// ColumnValue はNULL指定を考慮したSQLパラメータ値を返す。
func (n Nullable[T]) ColumnValue() any {
	if n.Value == nil {
		return nil
	}
	return *n.Value
}
