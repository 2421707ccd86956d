package controllers

import (
	"net/http"
	"strconv"

	"clinic-crm-backend/services"
	"clinic-crm-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RecordTextInput struct {
	Text    string `json:"text" binding:"required"`
	Version int    `json:"version" binding:"required,min=1"`
}

// recordRef resolves the :kind and :id route params shared by the note,
// comment and attachment endpoints.
func recordRef(c *gin.Context) (services.RecordKind, uuid.UUID, bool) {
	kind, err := services.ParseRecordKind(c.Param("kind"))
	if err != nil {
		utils.RespondWithError(c, http.StatusNotFound, err.Error())
		return "", uuid.Nil, false
	}
	id, ok := paramID(c, "id")
	if !ok {
		return "", uuid.Nil, false
	}
	return kind, id, true
}

func (h *Handler) AddNote(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	kind, id, ok := recordRef(c)
	if !ok {
		return
	}
	var input RecordTextInput
	if !bindJSON(c, &input) {
		return
	}

	record, err := h.Records.AddNote(c.Request.Context(), sess, kind, id, input.Text, input.Version)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *Handler) AddComment(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	kind, id, ok := recordRef(c)
	if !ok {
		return
	}
	var input RecordTextInput
	if !bindJSON(c, &input) {
		return
	}

	record, err := h.Records.AddComment(c.Request.Context(), sess, kind, id, input.Text, input.Version)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// UploadAttachment expects a multipart form with "file" and "version".
func (h *Handler) UploadAttachment(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	kind, id, ok := recordRef(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, services.MaxAttachmentSize+1<<20)
	header, err := c.FormFile("file")
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "File is required")
		return
	}
	version, err := strconv.Atoi(c.PostForm("version"))
	if err != nil || version < 1 {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid version")
		return
	}

	file, err := header.Open()
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Failed to read file")
		return
	}
	defer file.Close()

	attachment, err := h.Attachments.Upload(c.Request.Context(), sess, kind, id, services.UploadInput{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
		Version:     version,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, attachment)
}

func (h *Handler) DeleteAttachment(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	kind, id, ok := recordRef(c)
	if !ok {
		return
	}
	version, err := strconv.Atoi(c.Query("version"))
	if err != nil || version < 1 {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid version")
		return
	}

	if err := h.Attachments.Delete(c.Request.Context(), sess, kind, id, c.Param("attachmentId"), version); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Attachment deleted successfully"})
}
