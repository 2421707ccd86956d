package controllers

import (
	"net/http"

	"clinic-crm-backend/services"
	"clinic-crm-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SaveTemplate creates or replaces the branch template for a type and channel.
func (h *Handler) SaveTemplate(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var input services.TemplateInput
	if !bindJSON(c, &input) {
		return
	}

	tmpl, err := h.Messaging.SaveTemplate(c.Request.Context(), sess, input)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

func (h *Handler) GetTemplates(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	branchID, ok := queryID(c, "branchId")
	if !ok {
		return
	}

	templates, err := h.Messaging.ListTemplates(c.Request.Context(), sess, branchID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, templates)
}

func (h *Handler) DeleteTemplate(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.Messaging.DeleteTemplate(c.Request.Context(), sess, id); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template deleted successfully"})
}

// GetMessageLogs lists the notifications sent about a customer or
// appointment, given as ?recordId=.
func (h *Handler) GetMessageLogs(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	recordID, ok := queryID(c, "recordId")
	if !ok {
		return
	}
	if recordID == uuid.Nil {
		utils.RespondWithError(c, http.StatusBadRequest, "recordId is required")
		return
	}

	logs, err := h.Messaging.MessageLogs(c.Request.Context(), sess, recordID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// RunReminders sends tomorrow's reminders immediately instead of waiting
// for the scheduler. Admin only.
func (h *Handler) RunReminders(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if !sess.IsAdmin() {
		h.respondServiceError(c, services.ErrForbidden)
		return
	}

	sent, err := h.Reminders.SendBranchReminders(c.Request.Context(), sess)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": sent})
}
