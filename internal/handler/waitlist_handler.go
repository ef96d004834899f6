package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blogdesk/internal/middleware"
	"github.com/hitoshi/blogdesk/internal/model"
	"github.com/hitoshi/blogdesk/internal/waitlist"
)

// 取り込みCSVの最大サイズ
const maxImportBytes = 2 << 20

// WaitlistServiceInterface はウェイトリスト管理ハンドラーが必要とするサービスインターフェース。
type WaitlistServiceInterface interface {
	List(ctx context.Context) ([]*model.WaitlistEntry, error)
	BulkAdd(ctx context.Context, emails []string) (int, error)
	Delete(ctx context.Context, id string) error
	ImportCSV(ctx context.Context, r io.Reader) (*waitlist.ImportResult, error)
	ExportCSV(ctx context.Context, w io.Writer) error
}

// WaitlistHandler はウェイトリストのHTTPハンドラー。
type WaitlistHandler struct {
	service WaitlistServiceInterface
	now     func() time.Time
}

// NewWaitlistHandler はWaitlistHandlerを生成する。
func NewWaitlistHandler(service WaitlistServiceInterface) *WaitlistHandler {
	return &WaitlistHandler{service: service, now: time.Now}
}

type addWaitlistRequest struct {
	Emails []string `json:"emails"`
}

type waitlistEntryResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// ListEntries は登録一覧を返す。
// GET /api/admin/waitlist
func (h *WaitlistHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]waitlistEntryResponse, len(entries))
	for i, e := range entries {
		results[i] = waitlistEntryResponse{ID: e.ID, Email: e.Email, CreatedAt: e.CreatedAt}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": results})
}

// AddEntries はメールアドレスを一括登録する。
// POST /api/admin/waitlist
func (h *WaitlistHandler) AddEntries(w http.ResponseWriter, r *http.Request) {
	var req addWaitlistRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	added, err := h.service.BulkAdd(r.Context(), req.Emails)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}

// ImportCSV はCSVファイルからメールアドレスを取り込む。
// multipart/form-dataのfileフィールド、またはtext/csvの本文を受け付ける。
// POST /api/admin/waitlist/import
func (h *WaitlistHandler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidRequestError("CSVファイルを読み込めませんでした"))
			return
		}
		defer file.Close()
		src = file
	}

	result, err := h.service.ImportCSV(r.Context(), src)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ExportCSV は登録一覧をCSVとしてダウンロードさせる。
// GET /api/admin/waitlist/export
func (h *WaitlistHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf strings.Builder
	if err := h.service.ExportCSV(r.Context(), &buf); err != nil {
		handleServiceError(w, err)
		return
	}

	filename := "waitlist-" + h.now().UTC().Format("2006-01-02") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, buf.String()); err != nil {
		slog.Warn("CSVの書き込みに失敗しました", slog.String("error", err.Error()))
	}
}

// DeleteEntry は登録を削除する。
// DELETE /api/admin/waitlist/{id}
func (h *WaitlistHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
