package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mkawase/classtask-api/internal/dto"
	"github.com/mkawase/classtask-api/internal/models"
	appErrors "github.com/mkawase/classtask-api/pkg/errors"
	"github.com/mkawase/classtask-api/pkg/response"
)

type taskService interface {
	Create(ctx context.Context, req dto.CreateTaskRequest, actorID string) (*models.Task, error)
	Get(ctx context.Context, taskID string, actor *models.JWTClaims) (*models.Task, error)
	List(ctx context.Context, actorID string, state models.TaskState) ([]models.Task, error)
	ListDeleted(ctx context.Context, actorID string) ([]dto.DeletedTaskItem, error)
	History(ctx context.Context, taskID, actorID string) ([]models.OperationEntry, error)
}

// TaskHandler exposes task creation and read endpoints.
type TaskHandler struct {
	service taskService
}

// NewTaskHandler constructs the handler.
func NewTaskHandler(service taskService) *TaskHandler {
	return &TaskHandler{service: service}
}

// Create godoc
// @Summary Create a task
// @Tags Tasks
// @Accept json
// @Produce json
// @Param body body dto.CreateTaskRequest true "Task"
// @Success 201 {object} response.Envelope
// @Router /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid task payload"))
		return
	}
	task, err := h.service.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, task)
}

// Get godoc
// @Summary Get one task
// @Tags Tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} response.Envelope
// @Router /tasks/{id} [get]
func (h *TaskHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	task, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, task, nil)
}

// List godoc
// @Summary List the caller's tasks by lifecycle view
// @Tags Tasks
// @Produce json
// @Param state query string false "active|archived|deleted (default active)"
// @Success 200 {object} response.Envelope
// @Router /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	state := models.TaskState(strings.ToLower(c.DefaultQuery("state", string(models.TaskStateActive))))
	switch state {
	case models.TaskStateActive, models.TaskStateArchived:
		tasks, err := h.service.List(c.Request.Context(), claims.UserID, state)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, tasks, nil)
	case models.TaskStateDeleted:
		items, err := h.service.ListDeleted(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, items, nil)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "state must be active, archived or deleted"))
	}
}

// History godoc
// @Summary Get a task's operation history
// @Tags Tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} response.Envelope
// @Router /tasks/{id}/history [get]
func (h *TaskHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	entries, err := h.service.History(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
