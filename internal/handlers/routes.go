package handlers

import (
	"github.com/gin-gonic/gin"

	"chat-backend/internal/middleware"
)

// Routes groups everything mounted on the HTTP router.
type Routes struct {
	Auth      *AuthHandler
	Users     *UserHandler
	Chats     *ChatHandler
	Messages  *MessageHandler
	WebSocket gin.HandlerFunc
	Verifier  middleware.Authenticator
	Store     Pinger
}

// Register mounts the public and authenticated routes.
func (r Routes) Register(router gin.IRouter) {
	router.GET("/healthz", Health(r.Store))

	authGroup := router.Group("/auth")
	authGroup.POST("/signup", r.Auth.Signup)
	authGroup.POST("/login", r.Auth.Login)

	// the websocket handshake authenticates itself so browsers can pass ?token=
	if r.WebSocket != nil {
		router.GET("/ws/chats/:chat_id", r.WebSocket)
	}

	authed := router.Group("/", middleware.AuthMiddleware(r.Verifier))

	users := authed.Group("/users")
	users.GET("/me/network", r.Users.Network)
	users.GET("/:id", r.Users.FindOne)
	users.DELETE("", r.Users.Delete)
	users.POST("/friendRequest", r.Users.FriendRequest)
	users.POST("/handleFriend", r.Users.HandleFriend)
	users.POST("/removeFriend", r.Users.RemoveFriend)
	users.PATCH("/updateProfile", r.Users.UpdateProfile)
	users.PUT("/device/:token", r.Users.SetDeviceToken)

	chats := authed.Group("/chats")
	chats.GET("", r.Chats.ListChats)
	chats.POST("", r.Chats.CreateChat)
	chats.GET("/:chat_id", r.Chats.GetChat)
	chats.DELETE("/:chat_id", r.Chats.DeleteChat)
	chats.POST("/:chat_id/invite", r.Chats.Invite)
	chats.POST("/:chat_id/handleInvite", r.Chats.HandleInvite)
	chats.POST("/:chat_id/remove", r.Chats.RemoveUser)
	chats.POST("/:chat_id/typing", r.Chats.Typing)
	chats.POST("/:chat_id/messages", r.Messages.PostMessage)
	chats.DELETE("/:chat_id/messages/:message_id", r.Messages.DeleteMessage)

	authed.PATCH("/messages/:message_id", r.Messages.EditMessage)
}
