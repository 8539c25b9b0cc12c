package handlers

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"chat-backend/internal/apperr"
	"chat-backend/internal/auth"
	"chat-backend/internal/middleware"
	"chat-backend/internal/models"
	"chat-backend/internal/services"
)

type AuthWorkflow interface {
	Signup(ctx context.Context, email, password string) (services.Session, error)
	Login(ctx context.Context, email, password string) (services.Session, error)
}

type UserWorkflow interface {
	FindOne(ctx context.Context, caller auth.Identity, targetID string) (models.UserView, error)
	Delete(ctx context.Context, caller auth.Identity) (models.User, error)
	FriendRequest(ctx context.Context, caller auth.Identity, potentialFriend string) (models.User, error)
	HandleFriend(ctx context.Context, caller auth.Identity, potentialFriend string, accept bool) (models.User, error)
	RemoveFriend(ctx context.Context, caller auth.Identity, friend string) (models.User, error)
	UpdateProfile(ctx context.Context, caller auth.Identity, profile models.Profile) (models.User, error)
	SetDeviceToken(ctx context.Context, caller auth.Identity, token string) (models.User, error)
	Network(ctx context.Context, caller auth.Identity) (models.Network, error)
}

type ChatWorkflow interface {
	Create(ctx context.Context, caller auth.Identity) (models.Chat, error)
	Delete(ctx context.Context, caller auth.Identity, chatID string) (models.Chat, error)
	Invite(ctx context.Context, caller auth.Identity, chatID, newUser string) (models.PublicUser, error)
	HandleInvite(ctx context.Context, caller auth.Identity, chatID string, accept bool) (models.User, error)
	RemoveUser(ctx context.Context, caller auth.Identity, chatID, removeUser string) (models.Chat, error)
	Get(ctx context.Context, caller auth.Identity, chatID string) (models.ChatDetail, error)
	List(ctx context.Context, caller auth.Identity) ([]models.Chat, error)
	Typing(ctx context.Context, caller auth.Identity, chatID string, typing bool) (models.Chat, error)
}

type MessageWorkflow interface {
	Create(ctx context.Context, caller auth.Identity, chatID string, content models.MessageContent) (models.Message, error)
	Edit(ctx context.Context, caller auth.Identity, messageID string, content models.MessageContent) (models.Message, error)
	Delete(ctx context.Context, caller auth.Identity, chatID, messageID string) (models.Message, error)
}

// respondError renders err as {"error": msg} with the status of its kind.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			"path", c.FullPath(),
			"kind", apperr.KindOf(err).String(),
			"request_id", requestIDFromContext(c),
			"err", err,
		)
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func caller(c *gin.Context) auth.Identity {
	return middleware.Identity(c)
}
