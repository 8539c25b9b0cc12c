package models

import "time"

// Chat is a conversation between its members. Members are identified by email.
type Chat struct {
	ID              string     `json:"id" bson:"_id"`
	Creator         string     `json:"creator" bson:"creator"`
	Members         []string   `json:"members" bson:"members"`
	MembersTyping   []string   `json:"membersTyping" bson:"membersTyping"`
	Messages        []string   `json:"messages" bson:"messages"`
	LastMessage     string     `json:"lastMessage,omitempty" bson:"lastMessage"`
	LastMessageDate *time.Time `json:"lastMessageDate,omitempty" bson:"lastMessageDate"`
	CreatedDate     time.Time  `json:"createdDate" bson:"createdDate"`
}

// IsMember reports whether email is in the member list.
func (c Chat) IsMember(email string) bool {
	return Contains(c.Members, email)
}

// ChatDetail is a chat with its message ids resolved to full messages.
type ChatDetail struct {
	Chat
	Messages []Message `json:"messages"`
}

// ChatEvent is broadcast to websocket subscribers of a chat.
type ChatEvent struct {
	Type      string   `json:"type"`
	ChatID    string   `json:"chat_id"`
	Message   *Message `json:"message,omitempty"`
	MessageID string   `json:"message_id,omitempty"`
	User      string   `json:"user,omitempty"`
	Typing    bool     `json:"typing,omitempty"`
}

const (
	EventMessage        = "message"
	EventMessageEdited  = "message_edited"
	EventMessageDeleted = "message_deleted"
	EventMemberJoined   = "member_joined"
	EventMemberLeft     = "member_left"
	EventTyping         = "typing"
	EventChatDeleted    = "chat_deleted"
)
