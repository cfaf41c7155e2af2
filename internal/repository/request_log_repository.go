package repository

import (
	"context"
	"time"

	"boilerplate/internal/domain/model"
)

//リクエストログの絞り込み条件。
type RequestLogFilter struct {
	UserID      *string
	Method      *string
	Status      *int
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// リクエストログの保存・一覧取得の約束。
type RequestLogRepository interface {
	//1件保存
	Create(ctx context.Context, log model.RequestLog) error

	//条件で一覧取得。totalはlimit/offset適用前の件数。
	List(ctx context.Context, filter RequestLogFilter) (logs []model.RequestLog, total int64, err error)
}

// limit/offsetの丸め。limitは1..200、未指定は50。
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
