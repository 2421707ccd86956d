package controllers

import (
	"net/http"

	"clinic-crm-backend/services"

	"github.com/gin-gonic/gin"
)

type NoShowInput struct {
	Version int `json:"version"`
}

// CreateCustomer books a contact directly as a customer.
func (h *Handler) CreateCustomer(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var input services.BookInput
	if !bindJSON(c, &input) {
		return
	}

	customer, err := h.Customers.Book(c.Request.Context(), sess, input)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (h *Handler) GetCustomers(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	branchID, ok := queryID(c, "branchId")
	if !ok {
		return
	}
	limit, offset := pageParams(c)

	customers, total, err := h.Customers.List(c.Request.Context(), sess, services.CustomerFilter{
		BranchID:   branchID,
		Status:     c.Query("status"),
		Department: c.Query("department"),
		Search:     c.Query("search"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": customers, "total": total})
}

func (h *Handler) GetCustomer(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	customer, err := h.Customers.Get(c.Request.Context(), sess, id)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *Handler) UpdateCustomer(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input services.UpdateCustomerInput
	if !bindJSON(c, &input) {
		return
	}

	result, err := h.Customers.Update(c.Request.Context(), sess, id, input)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// MarkNoShow runs the no-show reconciliation and replies with its result.
func (h *Handler) MarkNoShow(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input NoShowInput
	if c.Request.ContentLength > 0 && !bindJSON(c, &input) {
		return
	}

	result, err := h.NoShows.Reconcile(c.Request.Context(), sess, id, input.Version)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) DeleteCustomer(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.Customers.Delete(c.Request.Context(), sess, id); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Customer deleted successfully"})
}
