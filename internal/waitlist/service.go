// Package waitlist はメーリングリストのウェイトリスト管理を提供する。
package waitlist

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/blogdesk/internal/model"
	"github.com/hitoshi/blogdesk/internal/repository"
)

// Metrics はウェイトリスト操作のメトリクス記録インターフェース。
type Metrics interface {
	RecordWaitlistAdded(count int)
}

// ImportResult はCSV取り込みの結果。
type ImportResult struct {
	Found int `json:"found"` // CSVから抽出したメールアドレス数（重複除外後）
	Added int `json:"added"` // 実際に追加された件数
}

// Service はウェイトリストのサービス層。
type Service struct {
	repo    repository.WaitlistRepository
	metrics Metrics
}

// NewService はServiceの新しいインスタンスを生成する。metricsはnilでもよい。
func NewService(repo repository.WaitlistRepository, metrics Metrics) *Service {
	return &Service{repo: repo, metrics: metrics}
}

// List は登録をcreated_at降順で返す。
func (s *Service) List(ctx context.Context) ([]*model.WaitlistEntry, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ウェイトリストの取得に失敗しました: %w", err)
	}
	return entries, nil
}

// BulkAdd はメールアドレスを1回のINSERTで登録し、実際に追加された件数を返す。
// 既存のメールアドレスはストアの一意制約で除外される。
func (s *Service) BulkAdd(ctx context.Context, emails []string) (int, error) {
	cleaned := normalizeEmails(emails)
	if len(cleaned) == 0 {
		return 0, nil
	}

	added, err := s.repo.BulkInsert(ctx, cleaned)
	if err != nil {
		return 0, fmt.Errorf("ウェイトリストへの追加に失敗しました: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordWaitlistAdded(added)
	}

	slog.Info("ウェイトリストに追加しました",
		slog.Int("requested", len(cleaned)),
		slog.Int("added", added),
	)
	return added, nil
}

// Delete は登録を削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewWaitlistEntryNotFoundError(id)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewWaitlistEntryNotFoundError(id)
		}
		return fmt.Errorf("ウェイトリスト登録の削除に失敗しました: %w", err)
	}
	return nil
}

// ImportCSV はCSVから'@'を含むフィールドをメールアドレスとして抽出し、一括登録する。
// 1件も見つからない場合はNO_EMAILS_FOUNDエラーを返す。
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	emails, err := ParseEmails(r)
	if err != nil {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("CSVを読み込めません: %v", err))
	}
	if len(emails) == 0 {
		return nil, model.NewNoEmailsError()
	}

	added, err := s.BulkAdd(ctx, emails)
	if err != nil {
		return nil, err
	}
	return &ImportResult{Found: len(emails), Added: added}, nil
}

// ExportCSV は全登録を email,created_at 形式のCSVで書き出す。
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) error {
	entries, err := s.List(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"email", "created_at"}); err != nil {
		return fmt.Errorf("CSVの書き出しに失敗しました: %w", err)
	}
	for _, e := range entries {
		if err := cw.Write([]string{e.Email, e.CreatedAt.UTC().Format(time.RFC3339)}); err != nil {
			return fmt.Errorf("CSVの書き出しに失敗しました: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("CSVの書き出しに失敗しました: %w", err)
	}
	return nil
}

// ParseEmails はCSVの各行から'@'を含む最初のフィールドを取り出す。
// 行全体ではなくフィールド単位で見るため、ExportCSVの出力をそのまま取り込める。
// 前後の空白は取り除き、同じアドレスは1件にまとめる。
func ParseEmails(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	var emails []string
	seen := make(map[string]bool)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, field := range record {
			field = strings.TrimSpace(field)
			if !strings.Contains(field, "@") {
				continue
			}
			if !seen[field] {
				seen[field] = true
				emails = append(emails, field)
			}
			break
		}
	}
	return emails, nil
}

// normalizeEmails は空白を除去し、空と重複を取り除く。
func normalizeEmails(emails []string) []string {
	cleaned := make([]string, 0, len(emails))
	seen := make(map[string]bool, len(emails))
	for _, e := range emails {
		e = strings.TrimSpace(e)
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		cleaned = append(cleaned, e)
	}
	return cleaned
}
