package repository

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/hitoshi/blogdesk/internal/repository"

// StoreObserver はストア操作の結果を受け取る。metrics.Collectorが実装する。
type StoreObserver interface {
	ObserveStoreOperation(operation string, duration time.Duration, err error)
}

// instrument はリポジトリ呼び出しをスパンとメトリクスで計測する。
// observerがnilの場合はスパンのみを記録する。ErrNotFoundは失敗として扱わない。
type instrument struct {
	observer StoreObserver
}

// start は操作の計測を開始し、終了時に呼び出す関数を返す。
//
//	ctx, finish := r.inst.start(ctx, "blog_posts.list", "blog_posts")
//	defer func() { finish(err) }()
func (i instrument) start(ctx context.Context, operation, table string) (context.Context, func(error)) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "repository."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.sql.table", table),
		),
	)
	started := time.Now()

	return ctx, func(err error) {
		if errors.Is(err, ErrNotFound) {
			err = nil
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if i.observer != nil {
			i.observer.ObserveStoreOperation(operation, time.Since(started), err)
		}
	}
}
