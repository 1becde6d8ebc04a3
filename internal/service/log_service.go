package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"log-analyzer/internal/domain"
	"log-analyzer/internal/repository"
	"log-analyzer/internal/storage"
)

// LogService coordinates log record operations backed by the repository.
type LogService interface {
	Ingest(ctx context.Context, record *domain.LogRecord) (int64, error)
	Query(ctx context.Context, filter domain.LogFilter, limit, offset int) ([]domain.LogRecord, int64, error)
	Stats(ctx context.Context, filter domain.LogFilter, groupBy domain.GroupBy) ([]domain.StatsRow, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type logService struct {
	logs        repository.LogRepository
	archive     storage.Service
	archiveOpts storage.UploadOptions
	logger      *logrus.Logger
}

// NewLogService builds a LogService. archive may be nil; purges then delete
// without writing a snapshot.
func NewLogService(logs repository.LogRepository, archive storage.Service, archiveOpts storage.UploadOptions, logger *logrus.Logger) LogService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &logService{
		logs:        logs,
		archive:     archive,
		archiveOpts: archiveOpts,
		logger:      logger,
	}
}

func (s *logService) Ingest(ctx context.Context, record *domain.LogRecord) (int64, error) {
	if !record.Level.Valid() {
		return 0, fmt.Errorf("invalid log level %q", record.Level)
	}
	if record.Service == "" {
		return 0, errors.New("service is required")
	}
	if record.Message == "" {
		return 0, errors.New("message is required")
	}
	return s.logs.Insert(ctx, record)
}

func (s *logService) Query(ctx context.Context, filter domain.LogFilter, limit, offset int) ([]domain.LogRecord, int64, error) {
	return s.logs.Query(ctx, filter, limit, offset)
}

func (s *logService) Stats(ctx context.Context, filter domain.LogFilter, groupBy domain.GroupBy) ([]domain.StatsRow, error) {
	if !groupBy.Valid() {
		return nil, fmt.Errorf("invalid group_by %q", groupBy)
	}
	return s.logs.Aggregate(ctx, filter, groupBy)
}

// PurgeBefore removes all records older than cutoff. When an archive target
// is configured the doomed records are uploaded first; an archive failure
// aborts the purge.
func (s *logService) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.archive != nil && s.archiveOpts.Bucket != "" {
		if err := s.archivePurged(ctx, cutoff); err != nil {
			return 0, err
		}
	}
	return s.logs.DeleteBefore(ctx, cutoff)
}

type archivedRecord struct {
	ID        int64           `json:"id"`
	Timestamp string          `json:"timestamp"`
	Level     string          `json:"level"`
	Service   string          `json:"service"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (s *logService) archivePurged(ctx context.Context, cutoff time.Time) error {
	records, err := s.logs.ListBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	archived := make([]archivedRecord, len(records))
	for i, record := range records {
		archived[i] = archivedRecord{
			ID:        record.ID,
			Timestamp: record.Timestamp.UTC().Format(time.RFC3339),
			Level:     string(record.Level),
			Service:   record.Service,
			Message:   record.Message,
			Metadata:  json.RawMessage(record.Metadata),
		}
	}

	payload, err := json.Marshal(struct {
		Cutoff string           `json:"cutoff"`
		Count  int              `json:"count"`
		Logs   []archivedRecord `json:"logs"`
	}{
		Cutoff: cutoff.UTC().Format(time.RFC3339),
		Count:  len(archived),
		Logs:   archived,
	})
	if err != nil {
		return fmt.Errorf("marshal purge archive: %w", err)
	}

	name := fmt.Sprintf("logs-before-%s.json", cutoff.UTC().Format("20060102T150405Z"))
	location, err := s.archive.UploadArchive(ctx, name, payload, s.archiveOpts)
	if err != nil {
		return fmt.Errorf("archive purged logs: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"location": location,
		"count":    len(archived),
	}).Info("archived purged logs")
	return nil
}
