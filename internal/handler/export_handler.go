package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mkawase/classtask-api/internal/dto"
	"github.com/mkawase/classtask-api/internal/service"
	appErrors "github.com/mkawase/classtask-api/pkg/errors"
	"github.com/mkawase/classtask-api/pkg/response"
)

type historyExportService interface {
	Export(ctx context.Context, taskID, format, actorID string) (*dto.HistoryExportResponse, error)
	Download(ctx context.Context, token string) (*service.HistoryDownload, error)
}

// ExportHandler serves operation history exports.
type ExportHandler struct {
	service historyExportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(service historyExportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Export godoc
// @Summary Export a task's operation history as CSV or PDF
// @Tags Exports
// @Produce json
// @Param id path string true "Task ID"
// @Param format query string true "csv or pdf"
// @Success 200 {object} response.Envelope
// @Router /tasks/{id}/history/export [get]
func (h *ExportHandler) Export(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "history exports not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.Export(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download a rendered history export via signed token
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "history exports not configured"))
		return
	}
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	info, err := result.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export file"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), result.MimeType, result.File, nil)
}
