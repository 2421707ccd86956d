package controllers

import (
	"net/http"
	"time"

	"clinic-crm-backend/services"
	"clinic-crm-backend/utils"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateAppointment(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	customerID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input services.AppointmentDetails
	if !bindJSON(c, &input) {
		return
	}

	appointment, err := h.Appointments.Create(c.Request.Context(), sess, customerID, input)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, appointment)
}

// GetAppointments lists appointments, optionally filtered by customer,
// status and a from/to date range (RFC 3339).
func (h *Handler) GetAppointments(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	branchID, ok := queryID(c, "branchId")
	if !ok {
		return
	}
	customerID, ok := queryID(c, "customerId")
	if !ok {
		return
	}
	filter := services.AppointmentFilter{
		BranchID:   branchID,
		CustomerID: customerID,
		Status:     c.Query("status"),
	}
	filter.Limit, filter.Offset = pageParams(c)
	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid "+name+" date")
			return
		}
		*dst = &t
	}

	appointments, total, err := h.Appointments.List(c.Request.Context(), sess, filter)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": appointments, "total": total})
}

func (h *Handler) GetAppointment(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	appointment, err := h.Appointments.Get(c.Request.Context(), sess, id)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointment)
}

func (h *Handler) UpdateAppointmentStatus(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input services.UpdateAppointmentStatusInput
	if !bindJSON(c, &input) {
		return
	}

	result, err := h.Appointments.UpdateStatus(c.Request.Context(), sess, id, input)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) RescheduleAppointment(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input services.RescheduleInput
	if !bindJSON(c, &input) {
		return
	}

	appointment, err := h.Appointments.Reschedule(c.Request.Context(), sess, id, input)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointment)
}
