package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mkawase/classtask-api/internal/dto"
	"github.com/mkawase/classtask-api/internal/models"
	appErrors "github.com/mkawase/classtask-api/pkg/errors"
	"github.com/mkawase/classtask-api/pkg/response"
)

type rosterService interface {
	RemoveStudent(ctx context.Context, classID, studentID, actorID, reason string) (*models.RosterEntry, error)
	RestoreStudent(ctx context.Context, classID, studentID, actorID string) (*models.RosterEntry, error)
}

// RosterHandler exposes roster removal/restore endpoints.
type RosterHandler struct {
	service rosterService
}

// NewRosterHandler constructs the handler.
func NewRosterHandler(service rosterService) *RosterHandler {
	return &RosterHandler{service: service}
}

// Remove godoc
// @Summary Soft-remove a student from a class roster
// @Tags Roster
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param studentId path string true "Student ID"
// @Param body body dto.RosterRemovalRequest false "Removal note"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/students/{studentId}/remove [post]
func (h *RosterHandler) Remove(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RosterRemovalRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid removal payload"))
			return
		}
	}
	entry, err := h.service.RemoveStudent(c.Request.Context(), c.Param("id"), c.Param("studentId"), claims.UserID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rosterResponse(entry), nil)
}

// Restore godoc
// @Summary Restore a removed student to a class roster
// @Tags Roster
// @Produce json
// @Param id path string true "Class ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/students/{studentId}/restore [post]
func (h *RosterHandler) Restore(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	entry, err := h.service.RestoreStudent(c.Request.Context(), c.Param("id"), c.Param("studentId"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rosterResponse(entry), nil)
}

func rosterResponse(entry *models.RosterEntry) dto.RosterEntryResponse {
	return dto.RosterEntryResponse{
		EntryID:   entry.ID,
		ClassID:   entry.ClassID,
		StudentID: entry.StudentID,
		IsRemoved: entry.IsRemoved,
	}
}
