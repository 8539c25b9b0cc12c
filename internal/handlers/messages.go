package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-backend/internal/models"
)

// MessageHandler serves message endpoints.
type MessageHandler struct {
	messages MessageWorkflow
}

func NewMessageHandler(messages MessageWorkflow) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// PostMessage stores a message in a chat the caller belongs to.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	var req models.MessageContent
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.messages.Create(requestContext(c), caller(c), c.Param("chat_id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandler) EditMessage(c *gin.Context) {
	var req models.MessageContent
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.messages.Edit(requestContext(c), caller(c), c.Param("message_id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	msg, err := h.messages.Delete(requestContext(c), caller(c), c.Param("chat_id"), c.Param("message_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}
