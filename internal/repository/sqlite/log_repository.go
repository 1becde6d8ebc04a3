package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"log-analyzer/internal/domain"
	"log-analyzer/internal/repository"
)

const createLogTable = `
CREATE TABLE IF NOT EXISTS log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	level TEXT NOT NULL,
	service TEXT NOT NULL,
	message TEXT NOT NULL,
	metadata_json TEXT NULL
);
CREATE INDEX IF NOT EXISTS idx_log_timestamp ON log (timestamp);
CREATE INDEX IF NOT EXISTS idx_log_level ON log (level);
CREATE INDEX IF NOT EXISTS idx_log_service ON log (service);
CREATE INDEX IF NOT EXISTS idx_log_level_service ON log (level, service);
`

// timeLayout is the sqlite datetime text format. Timestamps are stored as UTC
// text in this layout so strftime bucketing and range comparisons operate on
// a format sqlite defines.
const timeLayout = "2006-01-02 15:04:05"

type LogRepository struct {
	db *sql.DB
}

func NewLogRepository(db *sql.DB) repository.LogRepository {
	return &LogRepository{db: db}
}

func (r *LogRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createLogTable); err != nil {
		return fmt.Errorf("create log table: %w", err)
	}
	return nil
}

func (r *LogRepository) Insert(ctx context.Context, record *domain.LogRecord) (int64, error) {
	var metadata any
	if record.Metadata != nil {
		metadata = string(record.Metadata)
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO log (timestamp, level, service, message, metadata_json)
VALUES (?, ?, ?, ?, ?)`,
		record.Timestamp.UTC().Format(timeLayout),
		string(record.Level),
		record.Service,
		record.Message,
		metadata,
	)
	if err != nil {
		return 0, fmt.Errorf("insert log: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("log last insert id: %w", err)
	}
	record.ID = id
	return id, nil
}

func (r *LogRepository) Query(ctx context.Context, filter domain.LogFilter, limit, offset int) ([]domain.LogRecord, int64, error) {
	where, args := buildWhere(filter, true)

	var total int64
	countQuery := `SELECT COUNT(*) FROM log` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count logs: %w", err)
	}

	query := `
SELECT id, timestamp, level, service, message, metadata_json
FROM log` + where + `
ORDER BY id ASC
LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	var records []domain.LogRecord
	for rows.Next() {
		record, err := scanLog(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, *record)
	}

	return records, total, rows.Err()
}

func (r *LogRepository) Aggregate(ctx context.Context, filter domain.LogFilter, groupBy domain.GroupBy) ([]domain.StatsRow, error) {
	where, args := buildWhere(filter, false)

	var keyExpr string
	switch groupBy {
	case domain.GroupByHour:
		keyExpr = `strftime('%Y-%m-%dT%H:00:00Z', timestamp)`
	case domain.GroupByDay:
		keyExpr = `strftime('%Y-%m-%dT00:00Z', timestamp)`
	case domain.GroupByLevel:
		keyExpr = `level`
	case domain.GroupByService:
		keyExpr = `service`
	case domain.GroupByNone:
		// single total row
		var row domain.StatsRow
		query := `SELECT COUNT(*) FROM log` + where
		if err := r.db.QueryRowContext(ctx, query, args...).Scan(&row.Count); err != nil {
			return nil, fmt.Errorf("count logs: %w", err)
		}
		return []domain.StatsRow{row}, nil
	default:
		return nil, fmt.Errorf("unsupported group_by %q", groupBy)
	}

	query := fmt.Sprintf(`SELECT %s AS grp, COUNT(*) FROM log%s GROUP BY grp ORDER BY grp ASC`, keyExpr, where)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate logs: %w", err)
	}
	defer rows.Close()

	var stats []domain.StatsRow
	for rows.Next() {
		var (
			key   string
			count int64
		)
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scan aggregate row: %w", err)
		}
		row := domain.StatsRow{Count: count}
		switch groupBy {
		case domain.GroupByHour, domain.GroupByDay:
			row.TimeInterval = key
		case domain.GroupByLevel:
			row.Level = key
		case domain.GroupByService:
			row.Service = key
		}
		stats = append(stats, row)
	}

	return stats, rows.Err()
}

func (r *LogRepository) ListBefore(ctx context.Context, cutoff time.Time) ([]domain.LogRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, timestamp, level, service, message, metadata_json
FROM log
WHERE timestamp < ?
ORDER BY id ASC`,
		cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query logs before cutoff: %w", err)
	}
	defer rows.Close()

	var records []domain.LogRecord
	for rows.Next() {
		record, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

func (r *LogRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM log WHERE timestamp < ?`,
		cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("delete logs: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleted rows affected: %w", err)
	}
	return deleted, nil
}

// buildWhere assembles the optional AND-combined predicates. The level
// predicate is only honored when withLevel is set; the aggregate filter set
// deliberately omits it.
func buildWhere(filter domain.LogFilter, withLevel bool) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if withLevel && filter.Level != nil {
		conds = append(conds, `level = ?`)
		args = append(args, string(*filter.Level))
	}
	if filter.Service != nil {
		conds = append(conds, `service = ?`)
		args = append(args, *filter.Service)
	}
	if filter.Start != nil {
		conds = append(conds, `timestamp >= ?`)
		args = append(args, filter.Start.UTC().Format(timeLayout))
	}
	if filter.End != nil {
		conds = append(conds, `timestamp <= ?`)
		args = append(args, filter.End.UTC().Format(timeLayout))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "\nWHERE " + strings.Join(conds, " AND "), args
}

func scanLog(scanner interface {
	Scan(dest ...any) error
}) (*domain.LogRecord, error) {
	var (
		record    domain.LogRecord
		timestamp string
		level     string
		metadata  sql.NullString
	)
	if err := scanner.Scan(
		&record.ID,
		&timestamp,
		&level,
		&record.Service,
		&record.Message,
		&metadata,
	); err != nil {
		return nil, fmt.Errorf("scan log: %w", err)
	}

	ts, err := time.ParseInLocation(timeLayout, timestamp, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse log timestamp: %w", err)
	}
	record.Timestamp = ts
	record.Level = domain.LogLevel(level)
	if metadata.Valid {
		record.Metadata = []byte(metadata.String)
	}
	return &record, nil
}
