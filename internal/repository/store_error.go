package repository

import (
	"errors"

	"github.com/lib/pq"

	"github.com/hitoshi/blogdesk/internal/model"
)

// toStoreError はドライバのエラーをmodel.StoreErrorに変換する。
// PostgreSQL由来でないエラーはそのまま返す。
func toStoreError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &model.StoreError{
			Message: pqErr.Message,
			Details: pqErr.Detail,
			Hint:    pqErr.Hint,
			Code:    string(pqErr.Code),
		}
	}
	return err
}
