package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, content, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodePostNotFound          = "POST_NOT_FOUND"
	ErrCodeCategoryNotFound      = "CATEGORY_NOT_FOUND"
	ErrCodeTagNotFound           = "TAG_NOT_FOUND"
	ErrCodeWaitlistEntryNotFound = "WAITLIST_ENTRY_NOT_FOUND"
	ErrCodeValidation            = "VALIDATION_FAILED"
	ErrCodeInvalidStatus         = "INVALID_STATUS"
	ErrCodeInvalidFeaturedImage  = "INVALID_FEATURED_IMAGE"
	ErrCodeSlugConflict          = "SLUG_CONFLICT"
	ErrCodeInvalidReference      = "INVALID_REFERENCE"
	ErrCodeNoEmails              = "NO_EMAILS_FOUND"
	ErrCodeUnauthorized          = "UNAUTHORIZED"
	ErrCodeCSRF                  = "CSRF_VALIDATION_FAILED"
	ErrCodeRateLimited           = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal              = "INTERNAL_ERROR"
)

// NewPostNotFoundError は記事未検出エラーを生成する。
func NewPostNotFoundError(key string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された記事が見つかりません: %s", key),
		Category: "content",
		Action:   "記事のスラッグまたはIDを確認してください。",
	}
}

// NewCategoryNotFoundError はカテゴリ未検出エラーを生成する。
func NewCategoryNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeCategoryNotFound,
		Message:  fmt.Sprintf("指定されたカテゴリが見つかりません: %s", id),
		Category: "content",
		Action:   "カテゴリIDを確認してください。",
	}
}

// NewTagNotFoundError はタグ未検出エラーを生成する。
func NewTagNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeTagNotFound,
		Message:  fmt.Sprintf("指定されたタグが見つかりません: %s", id),
		Category: "content",
		Action:   "タグIDを確認してください。",
	}
}

// NewWaitlistEntryNotFoundError はウェイトリスト登録未検出エラーを生成する。
func NewWaitlistEntryNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeWaitlistEntryNotFound,
		Message:  fmt.Sprintf("指定されたウェイトリスト登録が見つかりません: %s", id),
		Category: "content",
		Action:   "一覧を再読み込みしてください。",
	}
}

// NewValidationError は入力検証エラーを生成する。
// ストアへの問い合わせ前に検出されたエラーに使用する。
func NewValidationError(fields ...string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("必須項目が入力されていません: %s", strings.Join(fields, ", ")),
		Category: "validation",
		Action:   "必須項目を入力してから再度保存してください。",
	}
}

// NewInvalidRequestError はリクエスト形式が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidStatusError は公開状態が不正な場合のエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効な公開状態です: %s", status),
		Category: "validation",
		Action:   "公開状態には draft、published、archived のいずれかを指定してください。",
	}
}

// NewInvalidFeaturedImageError はアイキャッチ画像が不正な場合のエラーを生成する。
func NewInvalidFeaturedImageError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFeaturedImage,
		Message:  fmt.Sprintf("アイキャッチ画像が不正です: %s", reason),
		Category: "validation",
		Action:   "http(s)のURLまたはbase64形式の画像を指定してください。",
	}
}

// NewSlugConflictError はスラッグ等の一意制約違反エラーを生成する。
func NewSlugConflictError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeSlugConflict,
		Message:  fmt.Sprintf("同じ値がすでに使用されています: %s", detail),
		Category: "validation",
		Action:   "別のスラッグまたは名前を指定してください。",
	}
}

// NewInvalidReferenceError は存在しないカテゴリ・タグを参照した場合のエラーを生成する。
func NewInvalidReferenceError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidReference,
		Message:  fmt.Sprintf("参照先が存在しません: %s", detail),
		Category: "validation",
		Action:   "カテゴリまたはタグを選び直してください。",
	}
}

// NewNoEmailsError はCSVに有効なメールアドレスが含まれない場合のエラーを生成する。
func NewNoEmailsError() *APIError {
	return &APIError{
		Code:     ErrCodeNoEmails,
		Message:  "CSVファイルに有効なメールアドレスが見つかりませんでした。",
		Category: "validation",
		Action:   "1行に1件ずつメールアドレスを記載したCSVを指定してください。",
	}
}

// NewUnauthorizedError は認証トークンがない、または無効な場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewCSRFError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限を超過した場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// StoreError はストア（PostgreSQL）が返した構造化エラー。
type StoreError struct {
	Message string
	Details string
	Hint    string
	Code    string
}

// Error はerrorインターフェースを実装する。
func (e *StoreError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Details != "" {
		return e.Details
	}
	return "unknown database error"
}

// ストアのエラーコード（SQLSTATE）
const (
	StoreCodeUniqueViolation     = "23505"
	StoreCodeForeignKeyViolation = "23503"
	StoreCodeUndefinedColumn     = "42703"
)
