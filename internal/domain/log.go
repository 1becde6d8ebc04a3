package domain

import "time"

type LogLevel string

const (
	LevelDebug   LogLevel = "DEBUG"
	LevelInfo    LogLevel = "INFO"
	LevelWarning LogLevel = "WARNING"
	LevelError   LogLevel = "ERROR"
)

// Valid reports whether the level is one of the accepted values.
func (l LogLevel) Valid() bool {
	switch l {
	case LevelDebug, LevelInfo, LevelWarning, LevelError:
		return true
	}
	return false
}

// LogRecord represents one immutable log entry submitted by a client.
// Metadata holds the raw serialized form; nil means no metadata was supplied.
type LogRecord struct {
	ID        int64
	Timestamp time.Time
	Level     LogLevel
	Service   string
	Message   string
	Metadata  []byte
}

// LogFilter carries the optional, AND-combined query predicates.
// Nil fields are not applied.
type LogFilter struct {
	Level   *LogLevel
	Service *string
	Start   *time.Time
	End     *time.Time
}

type GroupBy string

const (
	GroupByNone    GroupBy = ""
	GroupByHour    GroupBy = "hour"
	GroupByDay     GroupBy = "day"
	GroupByLevel   GroupBy = "level"
	GroupByService GroupBy = "service"
)

func (g GroupBy) Valid() bool {
	switch g {
	case GroupByNone, GroupByHour, GroupByDay, GroupByLevel, GroupByService:
		return true
	}
	return false
}

// StatsRow is one aggregation bucket. Exactly one of TimeInterval, Level or
// Service is set depending on the grouping dimension; all are empty for an
// ungrouped total.
type StatsRow struct {
	Count        int64
	TimeInterval string
	Level        string
	Service      string
}
