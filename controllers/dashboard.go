package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetDashboardOverview returns lead, customer and appointment counts for
// the branches the caller can see.
func (h *Handler) GetDashboardOverview(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	overview, err := h.Dashboard.Overview(c.Request.Context(), sess)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}
