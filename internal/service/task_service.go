package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mkawase/classtask-api/internal/dto"
	"github.com/mkawase/classtask-api/internal/models"
	appErrors "github.com/mkawase/classtask-api/pkg/errors"
)

type queryTaskStore interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id string) (*models.Task, error)
	ListByOwner(ctx context.Context, ownerID string, filter models.TaskFilter) ([]models.Task, error)
	ListHistory(ctx context.Context, taskID string) ([]models.OperationEntry, error)
}

// TaskService covers task creation and read paths: listings per lifecycle
// view, the deleted view with its retention countdown, and history access.
type TaskService struct {
	tasks     queryTaskStore
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	window    time.Duration
	now       func() time.Time
}

// NewTaskService constructs the service. window is the retention window used
// for the deleted-view countdown.
func NewTaskService(tasks queryTaskStore, cache *CacheService, validate *validator.Validate, logger *zap.Logger, window time.Duration) *TaskService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	return &TaskService{
		tasks:     tasks,
		cache:     cache,
		validator: validate,
		logger:    logger,
		window:    window,
		now:       time.Now,
	}
}

// Create stores a new active task owned by the actor.
func (s *TaskService) Create(ctx context.Context, req dto.CreateTaskRequest, actorID string) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload")
	}
	task := &models.Task{
		ClassID:                      req.ClassID,
		CreatedBy:                    actorID,
		Title:                        req.Title,
		Category:                     req.Category,
		Deadline:                     req.Deadline,
		AIPolicy:                     req.AIPolicy,
		AllowStudentViewWhenArchived: true,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create task")
	}
	s.invalidate(ctx, actorID)
	return task, nil
}

// Get returns a task, applying archived-view visibility for non-owners: a
// deleted task is invisible to everyone but its owner, and an archived task
// is only visible to students while the owner permits it.
func (s *TaskService) Get(ctx context.Context, taskID string, actor *models.JWTClaims) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrTaskNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}
	if actor != nil && task.CreatedBy == actor.UserID {
		return task, nil
	}
	if task.IsDeleted {
		return nil, appErrors.ErrTaskNotFound
	}
	if task.IsArchived && !task.AllowStudentViewWhenArchived {
		return nil, appErrors.ErrForbidden
	}
	return task, nil
}

// List returns the owner's tasks in the active or archived view.
func (s *TaskService) List(ctx context.Context, actorID string, state models.TaskState) ([]models.Task, error) {
	tasks, err := s.tasks.ListByOwner(ctx, actorID, models.TaskFilter{State: state})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tasks")
	}
	return tasks, nil
}

// ListDeleted returns the owner's soft-deleted tasks with their derived
// retention countdown. The listing is cached per owner and invalidated by
// any lifecycle transition.
func (s *TaskService) ListDeleted(ctx context.Context, actorID string) ([]dto.DeletedTaskItem, error) {
	cacheKey := deletedListingKey(actorID)
	if s.cache != nil {
		var cached []dto.DeletedTaskItem
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return cached, nil
		}
	}

	tasks, err := s.tasks.ListByOwner(ctx, actorID, models.TaskFilter{State: models.TaskStateDeleted})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list deleted tasks")
	}

	now := s.now().UTC()
	items := make([]dto.DeletedTaskItem, 0, len(tasks))
	for _, task := range tasks {
		if task.DeletedAt == nil {
			continue
		}
		items = append(items, dto.DeletedTaskItem{
			Task:            task,
			DaysLeft:        DaysLeft(*task.DeletedAt, now, s.window),
			WillBeDeletedAt: task.DeletedAt.Add(s.window),
		})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, items, 0); err != nil {
			s.logger.Warn("failed to cache deleted listing", zap.String("owner_id", actorID), zap.Error(err))
		}
	}
	return items, nil
}

// History returns the task's operation history, owner-only.
func (s *TaskService) History(ctx context.Context, taskID, actorID string) ([]models.OperationEntry, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrTaskNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}
	if task.CreatedBy != actorID {
		return nil, appErrors.ErrNotOwner
	}
	entries, err := s.tasks.ListHistory(ctx, taskID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
	}
	return entries, nil
}

func (s *TaskService) invalidate(ctx context.Context, ownerID string) {
	if s.cache == nil {
		return
	}
	s.cache.InvalidateOwner(ctx, ownerID)
}

func deletedListingKey(ownerID string) string {
	return "tasks:deleted:" + ownerID
}
