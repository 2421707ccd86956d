package controllers

import (
	"net/http"

	"clinic-crm-backend/services"
	"clinic-crm-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type LoginInput struct {
	Identifier string `json:"identifier" binding:"required"` // Can be email or phone
	Password   string `json:"password" binding:"required"`
}

// TokenMaxAge is the lifetime of the auth cookie in seconds.
var TokenMaxAge = 24 * 3600

func (h *Handler) Register(c *gin.Context) {
	var input services.RegisterInput
	if !bindJSON(c, &input) {
		return
	}

	result, err := h.Auth.Register(c.Request.Context(), input)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.SetCookie("token", result.Token, TokenMaxAge, "/", "", true, true)
	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful",
		"token":   result.Token,
		"user":    result.User,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input")
		return
	}

	result, err := h.Auth.Login(c.Request.Context(), input.Identifier, input.Password)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.SetCookie("token", result.Token, TokenMaxAge, "/", "", true, true)
	c.JSON(http.StatusOK, gin.H{
		"token": result.Token,
		"user":  result.User,
	})
}

func (h *Handler) Me(c *gin.Context) {
	userID, err := uuid.Parse(c.GetString("userId"))
	if err != nil {
		utils.RespondWithError(c, http.StatusUnauthorized, "User ID not found in context")
		return
	}

	user, err := h.Auth.Me(c.Request.Context(), userID)
	if err != nil {
		utils.RespondWithError(c, http.StatusUnauthorized, "User not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// CreateUser adds an agent or admin to the caller's branches.
func (h *Handler) CreateUser(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var input services.AgentInput
	if !bindJSON(c, &input) {
		return
	}
	user, err := h.Auth.CreateUser(c.Request.Context(), sess, input)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}
