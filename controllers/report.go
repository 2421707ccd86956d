package controllers

import (
	"fmt"
	"net/http"
	"time"

	"clinic-crm-backend/services"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GetReportAnalytics returns the monthly funnel summary.
func (h *Handler) GetReportAnalytics(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	branchID, ok := queryID(c, "branchId")
	if !ok {
		return
	}

	summary, err := h.Reports.Summary(c.Request.Context(), sess, branchID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ExportLeads streams the filtered lead list as an xlsx workbook.
func (h *Handler) ExportLeads(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	branchID, ok := queryID(c, "branchId")
	if !ok {
		return
	}

	buf, err := h.Reports.ExportLeads(c.Request.Context(), sess, services.LeadFilter{
		BranchID:      branchID,
		Status:        c.Query("status"),
		OpenOnly:      c.Query("open") == "true",
		AssignedAgent: c.Query("assignedAgent"),
		Search:        c.Query("search"),
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("leads-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
