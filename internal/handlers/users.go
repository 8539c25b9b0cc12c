package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-backend/internal/models"
)

// UserHandler serves account and friendship endpoints.
type UserHandler struct {
	users UserWorkflow
}

func NewUserHandler(users UserWorkflow) *UserHandler {
	return &UserHandler{users: users}
}

// FindOne returns the caller's own document or another user's public view.
func (h *UserHandler) FindOne(c *gin.Context) {
	view, err := h.users.FindOne(requestContext(c), caller(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *UserHandler) Network(c *gin.Context) {
	network, err := h.users.Network(requestContext(c), caller(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, network)
}

// Delete removes the caller's account.
func (h *UserHandler) Delete(c *gin.Context) {
	user, err := h.users.Delete(requestContext(c), caller(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) FriendRequest(c *gin.Context) {
	var req struct {
		PotentialFriend string `json:"potentialFriend" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.users.FriendRequest(requestContext(c), caller(c), req.PotentialFriend)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) HandleFriend(c *gin.Context) {
	var req struct {
		PotentialFriend string `json:"potentialFriend" binding:"required"`
		Accept          *bool  `json:"accept" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.users.HandleFriend(requestContext(c), caller(c), req.PotentialFriend, *req.Accept)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) RemoveFriend(c *gin.Context) {
	var req struct {
		Friend string `json:"friend" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.users.RemoveFriend(requestContext(c), caller(c), req.Friend)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req struct {
		Profile *models.Profile `json:"profile" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.users.UpdateProfile(requestContext(c), caller(c), *req.Profile)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// SetDeviceToken registers the push token of the caller's device.
func (h *UserHandler) SetDeviceToken(c *gin.Context) {
	user, err := h.users.SetDeviceToken(requestContext(c), caller(c), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
