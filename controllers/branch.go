package controllers

import (
	"net/http"

	"clinic-crm-backend/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetBranches(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	branches, err := h.Branches.List(c.Request.Context(), sess)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, branches)
}

func (h *Handler) GetBranch(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	branch, err := h.Branches.Get(c.Request.Context(), sess, id)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, branch)
}

func (h *Handler) CreateBranch(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var input services.BranchInput
	if !bindJSON(c, &input) {
		return
	}

	branch, err := h.Branches.Create(c.Request.Context(), sess, input)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	// The new branch is only in scope once the token is reissued.
	result, err := h.Auth.Refresh(c.Request.Context(), sess.UserID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.SetCookie("token", result.Token, TokenMaxAge, "/", "", true, true)
	c.JSON(http.StatusCreated, gin.H{
		"branch": branch,
		"token":  result.Token,
	})
}

// UpdateBranchSettings changes the branch profile, notification toggles and
// custom lead statuses.
func (h *Handler) UpdateBranchSettings(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input services.BranchSettingsInput
	if !bindJSON(c, &input) {
		return
	}

	branch, err := h.Branches.UpdateSettings(c.Request.Context(), sess, id, input)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, branch)
}
