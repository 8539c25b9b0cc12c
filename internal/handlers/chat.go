package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ChatHandler manages chat and membership endpoints.
type ChatHandler struct {
	chats ChatWorkflow
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chats ChatWorkflow) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// ListChats returns the chats the caller belongs to or is invited to.
func (h *ChatHandler) ListChats(c *gin.Context) {
	chats, err := h.chats.List(requestContext(c), caller(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (h *ChatHandler) CreateChat(c *gin.Context) {
	chat, err := h.chats.Create(requestContext(c), caller(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, chat)
}

// GetChat returns a chat with its messages.
func (h *ChatHandler) GetChat(c *gin.Context) {
	chat, err := h.chats.Get(requestContext(c), caller(c), c.Param("chat_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *ChatHandler) DeleteChat(c *gin.Context) {
	chat, err := h.chats.Delete(requestContext(c), caller(c), c.Param("chat_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *ChatHandler) Invite(c *gin.Context) {
	var req struct {
		NewUser string `json:"newUser" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.chats.Invite(requestContext(c), caller(c), c.Param("chat_id"), req.NewUser)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *ChatHandler) HandleInvite(c *gin.Context) {
	var req struct {
		Accept *bool `json:"accept" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.chats.HandleInvite(requestContext(c), caller(c), c.Param("chat_id"), *req.Accept)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// RemoveUser removes a member, or lets the caller leave.
func (h *ChatHandler) RemoveUser(c *gin.Context) {
	var req struct {
		RemoveUser string `json:"removeUser" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	chat, err := h.chats.RemoveUser(requestContext(c), caller(c), c.Param("chat_id"), req.RemoveUser)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *ChatHandler) Typing(c *gin.Context) {
	var req struct {
		Typing *bool `json:"typing" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	chat, err := h.chats.Typing(requestContext(c), caller(c), c.Param("chat_id"), *req.Typing)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}
