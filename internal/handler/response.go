// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/blogdesk/internal/middleware"
	"github.com/hitoshi/blogdesk/internal/model"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// decodeJSON はリクエストボディをデコードする。失敗時は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return false
	}
	return true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	if apiErr := toAPIError(err); apiErr != nil {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	logStoreError(err)
	middleware.WriteInternalServerError(w)
}

// toAPIError はエラーをクライアントに返せるAPIErrorに変換する。
// 一意制約違反と外部キー違反以外のストアエラーはnilを返す。
func toAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var storeErr *model.StoreError
	if errors.As(err, &storeErr) {
		switch storeErr.Code {
		case model.StoreCodeUniqueViolation:
			return model.NewSlugConflictError(storeErr.Details)
		case model.StoreCodeForeignKeyViolation:
			return model.NewInvalidReferenceError(storeErr.Details)
		}
	}
	return nil
}

func logStoreError(err error) {
	attrs := []any{slog.String("error", err.Error())}
	var storeErr *model.StoreError
	if errors.As(err, &storeErr) {
		attrs = append(attrs,
			slog.String("store_code", storeErr.Code),
			slog.String("store_details", storeErr.Details),
			slog.String("store_hint", storeErr.Hint),
		)
	}
	slog.Error("internal server error", attrs...)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodePostNotFound, model.ErrCodeCategoryNotFound,
		model.ErrCodeTagNotFound, model.ErrCodeWaitlistEntryNotFound:
		return http.StatusNotFound
	case model.ErrCodeValidation, model.ErrCodeInvalidStatus, model.ErrCodeInvalidFeaturedImage,
		model.ErrCodeInvalidReference, model.ErrCodeNoEmails:
		return http.StatusBadRequest
	case model.ErrCodeSlugConflict:
		return http.StatusConflict
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeCSRF:
		return http.StatusForbidden
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
