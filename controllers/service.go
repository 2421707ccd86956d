package controllers

import (
	"net/http"

	"clinic-crm-backend/services"

	"github.com/gin-gonic/gin"
)

// CreateService adds a bookable service to a branch
func (h *Handler) CreateService(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var input services.ServiceInput
	if !bindJSON(c, &input) {
		return
	}

	service, err := h.Catalog.Create(c.Request.Context(), sess, input)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, service)
}

// GetServices lists services; ?active=true hides inactive ones
func (h *Handler) GetServices(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	branchID, ok := queryID(c, "branchId")
	if !ok {
		return
	}

	list, err := h.Catalog.List(c.Request.Context(), sess, branchID, c.Query("active") == "true")
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetService(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	service, err := h.Catalog.Get(c.Request.Context(), sess, id)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, service)
}

func (h *Handler) UpdateService(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input services.UpdateServiceInput
	if !bindJSON(c, &input) {
		return
	}

	service, err := h.Catalog.Update(c.Request.Context(), sess, id, input)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, service)
}

func (h *Handler) DeleteService(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.Catalog.Delete(c.Request.Context(), sess, id); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Service deleted successfully"})
}
