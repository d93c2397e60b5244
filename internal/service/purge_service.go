package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mkawase/classtask-api/pkg/jobs"
)

type purgeFileStore interface {
	Delete(filename string) error
}

// PurgeService consumes submission file purge jobs emitted by hard deletes
// and the retention sweep. A missing file is treated as already purged.
type PurgeService struct {
	storage purgeFileStore
	logger  *zap.Logger
}

// NewPurgeService constructs the service.
func NewPurgeService(storage purgeFileStore, logger *zap.Logger) *PurgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PurgeService{storage: storage, logger: logger}
}

// Handle processes one purge job from the queue.
func (s *PurgeService) Handle(ctx context.Context, job jobs.Job) error {
	path, ok := job.Payload.(string)
	if !ok || path == "" {
		s.logger.Warn("purge job without file path", zap.String("job_id", job.ID))
		return nil
	}
	if s.storage == nil {
		return nil
	}
	if err := s.storage.Delete(path); err != nil {
		return fmt.Errorf("purge submission file %s: %w", path, err)
	}
	s.logger.Debug("submission file purged", zap.String("path", path))
	return nil
}
