package repository

import (
	"context"
	"time"

	"log-analyzer/internal/domain"
)

// LogRepository defines persistence operations for log records. Records are
// immutable after insertion; the only destructive operation is the bulk
// age-based delete.
type LogRepository interface {
	Init(ctx context.Context) error
	Insert(ctx context.Context, record *domain.LogRecord) (int64, error)
	// Query returns the matching page and the total count over the same
	// filter predicate, unaffected by limit/offset.
	Query(ctx context.Context, filter domain.LogFilter, limit, offset int) ([]domain.LogRecord, int64, error)
	Aggregate(ctx context.Context, filter domain.LogFilter, groupBy domain.GroupBy) ([]domain.StatsRow, error)
	// ListBefore returns the records a DeleteBefore with the same cutoff
	// would remove, in id order.
	ListBefore(ctx context.Context, cutoff time.Time) ([]domain.LogRecord, error)
	// DeleteBefore removes records with timestamp strictly before cutoff and
	// returns the number of rows removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
