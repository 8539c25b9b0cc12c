package models

import "time"

// Message types accepted by the message workflow.
const (
	MessageText  = "text"
	MessageImage = "image"
	MessageVideo = "video"
	MessageAudio = "audio"
	MessageFile  = "file"
)

// Message is a single chat message. Message holds body text or a media reference.
type Message struct {
	ID          string    `json:"id" bson:"_id"`
	Chat        string    `json:"chat" bson:"chat"`
	Author      string    `json:"author" bson:"author"`
	Type        string    `json:"type" bson:"type"`
	Message     string    `json:"message" bson:"message"`
	CreatedDate time.Time `json:"createdDate" bson:"createdDate"`
	EditDate    time.Time `json:"editDate" bson:"editDate"`
}

// MessageContent is the editable payload of a message.
type MessageContent struct {
	Type    string `json:"type" validate:"omitempty,oneof=text image video audio file"`
	Message string `json:"message" validate:"required,max=4000"`
}
