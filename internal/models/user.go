package models

import (
	"encoding/json"
	"time"
)

// Profile is the user-editable part of an account.
type Profile struct {
	Name     string `json:"name" bson:"name" validate:"max=100"`
	Location string `json:"location" bson:"location" validate:"max=100"`
	About    string `json:"about" bson:"about" validate:"max=1000"`
	Picture  string `json:"picture" bson:"picture" validate:"max=2048"`
}

// User is an account together with its embedded social graph state.
type User struct {
	ID                     string    `json:"id" bson:"_id"`
	Email                  string    `json:"email" bson:"email"`
	Password               string    `json:"-" bson:"password"`
	Chats                  []string  `json:"chats" bson:"chats"`
	ChatRequests           []string  `json:"chatRequests" bson:"chatRequests"`
	Friends                []string  `json:"friends" bson:"friends"`
	IncomingFriendRequests []string  `json:"incomingFriendRequests" bson:"incomingFriendRequests"`
	OutgoingFriendRequests []string  `json:"outgoingFriendRequests" bson:"outgoingFriendRequests"`
	Profile                Profile   `json:"profile" bson:"profile"`
	Token                  string    `json:"token,omitempty" bson:"token"`
	CreatedAt              time.Time `json:"createdAt" bson:"createdAt"`
}

// PublicUser is what other users may see of an account.
type PublicUser struct {
	ID      string   `json:"id"`
	Email   string   `json:"email"`
	Friends []string `json:"friends"`
	Profile Profile  `json:"profile"`
}

// Public strips credentials, chat membership and friend-request state.
func (u User) Public() PublicUser {
	friends := u.Friends
	if friends == nil {
		friends = []string{}
	}
	return PublicUser{ID: u.ID, Email: u.Email, Friends: friends, Profile: u.Profile}
}

// UserView is a user as one particular caller may see it: the full
// document for the account owner, the public view for everyone else.
type UserView struct {
	Self   *User
	Public *PublicUser
}

// IsSelf reports whether the view carries the full document.
func (v UserView) IsSelf() bool { return v.Self != nil }

func (v UserView) MarshalJSON() ([]byte, error) {
	if v.Self != nil {
		return json.Marshal(v.Self)
	}
	return json.Marshal(v.Public)
}

// Network lists the people connected to a user.
type Network struct {
	Friends  []PublicUser `json:"friends"`
	Incoming []PublicUser `json:"incomingFriendRequests"`
	Outgoing []PublicUser `json:"outgoingFriendRequests"`
}

// Contains reports whether v is present in set.
func Contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
