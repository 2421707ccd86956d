package controllers

import (
	"net/http"

	"clinic-crm-backend/services"

	"github.com/gin-gonic/gin"
)

// ConvertLeadInput carries the appointment chosen when converting a lead.
type ConvertLeadInput struct {
	services.AppointmentDetails
	Version int `json:"version"`
}

func (h *Handler) CreateLead(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var input services.CreateLeadInput
	if !bindJSON(c, &input) {
		return
	}

	lead, err := h.Leads.Create(c.Request.Context(), sess, input)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lead)
}

func (h *Handler) GetLeads(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	branchID, ok := queryID(c, "branchId")
	if !ok {
		return
	}
	limit, offset := pageParams(c)

	leads, total, err := h.Leads.List(c.Request.Context(), sess, services.LeadFilter{
		BranchID:      branchID,
		Status:        c.Query("status"),
		OpenOnly:      c.Query("open") == "true",
		AssignedAgent: c.Query("assignedAgent"),
		Search:        c.Query("search"),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": leads, "total": total})
}

func (h *Handler) GetLead(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	lead, err := h.Leads.Get(c.Request.Context(), sess, id)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

func (h *Handler) UpdateLead(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input services.UpdateLeadInput
	if !bindJSON(c, &input) {
		return
	}

	lead, err := h.Leads.Update(c.Request.Context(), sess, id, input)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

func (h *Handler) DeleteLead(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.Leads.Delete(c.Request.Context(), sess, id); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Lead deleted successfully"})
}

func (h *Handler) GetLeadHistory(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	history, err := h.Leads.History(c.Request.Context(), sess, id)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// ConvertLead books the lead as a customer with its first appointment.
func (h *Handler) ConvertLead(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input ConvertLeadInput
	if !bindJSON(c, &input) {
		return
	}

	result, err := h.Conversions.Convert(c.Request.Context(), sess, id, input.AppointmentDetails, input.Version)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) GetLeadStatuses(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	branchID, ok := paramID(c, "id")
	if !ok {
		return
	}

	statuses, err := h.Leads.Statuses(c.Request.Context(), sess, branchID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, statuses)
}
