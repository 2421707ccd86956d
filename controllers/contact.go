package controllers

import (
	"net/http"

	"clinic-crm-backend/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateContact(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var input services.ContactInput
	if !bindJSON(c, &input) {
		return
	}

	contact, err := h.Contacts.Create(c.Request.Context(), sess, input)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contact)
}

func (h *Handler) GetContacts(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	branchID, ok := queryID(c, "branchId")
	if !ok {
		return
	}
	limit, offset := pageParams(c)

	contacts, total, err := h.Contacts.List(c.Request.Context(), sess, services.ContactFilter{
		BranchID: branchID,
		Search:   c.Query("search"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": contacts, "total": total})
}

func (h *Handler) GetContact(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	contact, err := h.Contacts.Get(c.Request.Context(), sess, id)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *Handler) UpdateContact(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input services.UpdateContactInput
	if !bindJSON(c, &input) {
		return
	}

	contact, err := h.Contacts.Update(c.Request.Context(), sess, id, input)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *Handler) DeleteContact(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.Contacts.Delete(c.Request.Context(), sess, id); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Contact deleted successfully"})
}
