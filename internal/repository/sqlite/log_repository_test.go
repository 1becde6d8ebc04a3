package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"log-analyzer/internal/domain"
	"log-analyzer/internal/repository"
)

func newTestLogRepo(t *testing.T) repository.LogRepository {
	t.Helper()

	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewLogRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func mustInsert(t *testing.T, repo repository.LogRepository, ts time.Time, level domain.LogLevel, svc, msg string, metadata []byte) int64 {
	t.Helper()
	id, err := repo.Insert(context.Background(), &domain.LogRecord{
		Timestamp: ts,
		Level:     level,
		Service:   svc,
		Message:   msg,
		Metadata:  metadata,
	})
	require.NoError(t, err)
	return id
}

func strPtr(s string) *string { return &s }

func levelPtr(l domain.LogLevel) *domain.LogLevel { return &l }

func timePtr(t time.Time) *time.Time { return &t }

func TestLogRepositoryRoundTrip(t *testing.T) {
	repo := newTestLogRepo(t)
	ctx := context.Background()

	ts := time.Date(2025, 5, 14, 12, 0, 0, 0, time.UTC)
	id := mustInsert(t, repo, ts, domain.LevelError, "payments", "charge failed", []byte(`{"user_id":1}`))
	assert.Equal(t, int64(1), id)

	records, total, err := repo.Query(ctx, domain.LogFilter{}, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, ts, got.Timestamp)
	assert.Equal(t, domain.LevelError, got.Level)
	assert.Equal(t, "payments", got.Service)
	assert.Equal(t, "charge failed", got.Message)
	assert.JSONEq(t, `{"user_id":1}`, string(got.Metadata))
}

func TestLogRepositoryNilMetadata(t *testing.T) {
	repo := newTestLogRepo(t)

	ts := time.Date(2025, 5, 14, 12, 0, 0, 0, time.UTC)
	mustInsert(t, repo, ts, domain.LevelInfo, "auth", "login ok", nil)

	records, _, err := repo.Query(context.Background(), domain.LogFilter{}, 100, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].Metadata)
}

func TestLogRepositoryFilterConjunction(t *testing.T) {
	repo := newTestLogRepo(t)
	ctx := context.Background()

	base := time.Date(2025, 5, 14, 10, 0, 0, 0, time.UTC)
	mustInsert(t, repo, base, domain.LevelInfo, "auth", "a", nil)
	mustInsert(t, repo, base.Add(30*time.Minute), domain.LevelError, "auth", "b", nil)
	mustInsert(t, repo, base.Add(time.Hour), domain.LevelError, "billing", "c", nil)
	mustInsert(t, repo, base.Add(2*time.Hour), domain.LevelDebug, "billing", "d", nil)

	tests := []struct {
		name     string
		filter   domain.LogFilter
		wantMsgs []string
	}{
		{
			name:     "by level",
			filter:   domain.LogFilter{Level: levelPtr(domain.LevelError)},
			wantMsgs: []string{"b", "c"},
		},
		{
			name:     "by service",
			filter:   domain.LogFilter{Service: strPtr("billing")},
			wantMsgs: []string{"c", "d"},
		},
		{
			name:     "level and service",
			filter:   domain.LogFilter{Level: levelPtr(domain.LevelError), Service: strPtr("auth")},
			wantMsgs: []string{"b"},
		},
		{
			name:     "time range inclusive",
			filter:   domain.LogFilter{Start: timePtr(base.Add(30 * time.Minute)), End: timePtr(base.Add(time.Hour))},
			wantMsgs: []string{"b", "c"},
		},
		{
			name:     "no match",
			filter:   domain.LogFilter{Level: levelPtr(domain.LevelWarning)},
			wantMsgs: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			records, total, err := repo.Query(ctx, tc.filter, 100, 0)
			require.NoError(t, err)
			assert.Equal(t, int64(len(tc.wantMsgs)), total)

			var msgs []string
			for _, r := range records {
				msgs = append(msgs, r.Message)
			}
			assert.Equal(t, tc.wantMsgs, msgs)
		})
	}
}

func TestLogRepositoryPagination(t *testing.T) {
	repo := newTestLogRepo(t)
	ctx := context.Background()

	base := time.Date(2025, 5, 14, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		mustInsert(t, repo, base.Add(time.Duration(i)*time.Minute), domain.LevelInfo, "svc", "m", nil)
	}

	records, total, err := repo.Query(ctx, domain.LogFilter{}, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0].ID)
	assert.Equal(t, int64(2), records[1].ID)

	records, total, err = repo.Query(ctx, domain.LogFilter{}, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, records, 1)
	assert.Equal(t, int64(5), records[0].ID)
}

func TestLogRepositoryAggregateByHour(t *testing.T) {
	repo := newTestLogRepo(t)

	mustInsert(t, repo, time.Date(2025, 5, 14, 10, 15, 0, 0, time.UTC), domain.LevelInfo, "svc", "m", nil)
	mustInsert(t, repo, time.Date(2025, 5, 14, 10, 45, 0, 0, time.UTC), domain.LevelInfo, "svc", "m", nil)
	mustInsert(t, repo, time.Date(2025, 5, 14, 11, 5, 0, 0, time.UTC), domain.LevelInfo, "svc", "m", nil)

	rows, err := repo.Aggregate(context.Background(), domain.LogFilter{}, domain.GroupByHour)
	require.NoError(t, err)
	assert.Equal(t, []domain.StatsRow{
		{Count: 2, TimeInterval: "2025-05-14T10:00:00Z"},
		{Count: 1, TimeInterval: "2025-05-14T11:00:00Z"},
	}, rows)
}

func TestLogRepositoryAggregateByDay(t *testing.T) {
	repo := newTestLogRepo(t)

	mustInsert(t, repo, time.Date(2025, 5, 14, 10, 15, 0, 0, time.UTC), domain.LevelInfo, "svc", "m", nil)
	mustInsert(t, repo, time.Date(2025, 5, 14, 23, 59, 59, 0, time.UTC), domain.LevelInfo, "svc", "m", nil)
	mustInsert(t, repo, time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC), domain.LevelInfo, "svc", "m", nil)

	rows, err := repo.Aggregate(context.Background(), domain.LogFilter{}, domain.GroupByDay)
	require.NoError(t, err)
	assert.Equal(t, []domain.StatsRow{
		{Count: 2, TimeInterval: "2025-05-14T00:00Z"},
		{Count: 1, TimeInterval: "2025-05-15T00:00Z"},
	}, rows)
}

func TestLogRepositoryAggregateByField(t *testing.T) {
	repo := newTestLogRepo(t)
	ctx := context.Background()

	ts := time.Date(2025, 5, 14, 12, 0, 0, 0, time.UTC)
	mustInsert(t, repo, ts, domain.LevelInfo, "auth", "m", nil)
	mustInsert(t, repo, ts, domain.LevelInfo, "billing", "m", nil)
	mustInsert(t, repo, ts, domain.LevelError, "billing", "m", nil)

	byLevel, err := repo.Aggregate(ctx, domain.LogFilter{}, domain.GroupByLevel)
	require.NoError(t, err)
	assert.Equal(t, []domain.StatsRow{
		{Count: 1, Level: "ERROR"},
		{Count: 2, Level: "INFO"},
	}, byLevel)

	byService, err := repo.Aggregate(ctx, domain.LogFilter{}, domain.GroupByService)
	require.NoError(t, err)
	assert.Equal(t, []domain.StatsRow{
		{Count: 1, Service: "auth"},
		{Count: 2, Service: "billing"},
	}, byService)
}

func TestLogRepositoryAggregateNoGroup(t *testing.T) {
	repo := newTestLogRepo(t)

	ts := time.Date(2025, 5, 14, 12, 0, 0, 0, time.UTC)
	mustInsert(t, repo, ts, domain.LevelInfo, "auth", "m", nil)
	mustInsert(t, repo, ts, domain.LevelError, "billing", "m", nil)

	rows, err := repo.Aggregate(context.Background(), domain.LogFilter{Service: strPtr("billing")}, domain.GroupByNone)
	require.NoError(t, err)
	assert.Equal(t, []domain.StatsRow{{Count: 1}}, rows)
}

func TestLogRepositoryDeleteBefore(t *testing.T) {
	repo := newTestLogRepo(t)
	ctx := context.Background()

	cutoff := time.Date(2025, 5, 14, 12, 0, 0, 0, time.UTC)
	mustInsert(t, repo, cutoff.Add(-time.Hour), domain.LevelInfo, "svc", "old", nil)
	mustInsert(t, repo, cutoff.Add(-time.Minute), domain.LevelInfo, "svc", "older", nil)
	mustInsert(t, repo, cutoff, domain.LevelInfo, "svc", "at cutoff", nil)
	mustInsert(t, repo, cutoff.Add(time.Hour), domain.LevelInfo, "svc", "new", nil)

	doomed, err := repo.ListBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Len(t, doomed, 2)

	deleted, err := repo.DeleteBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	// the record at exactly the cutoff survives
	records, total, err := repo.Query(ctx, domain.LogFilter{}, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, records, 2)
	assert.Equal(t, "at cutoff", records[0].Message)

	// repeated deletion removes nothing
	deleted, err = repo.DeleteBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestLogRepositoryIdempotentRead(t *testing.T) {
	repo := newTestLogRepo(t)
	ctx := context.Background()

	ts := time.Date(2025, 5, 14, 12, 0, 0, 0, time.UTC)
	mustInsert(t, repo, ts, domain.LevelInfo, "svc", "m", nil)

	first, firstTotal, err := repo.Query(ctx, domain.LogFilter{}, 100, 0)
	require.NoError(t, err)
	second, secondTotal, err := repo.Query(ctx, domain.LogFilter{}, 100, 0)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstTotal, secondTotal)
}
