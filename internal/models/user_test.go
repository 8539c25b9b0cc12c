package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserViewRendersByAudience(t *testing.T) {
	u := User{
		ID:                     "u1",
		Email:                  "bob@example.com",
		Password:               "$2a$10$hash",
		Chats:                  []string{"c1"},
		IncomingFriendRequests: []string{"u3"},
		Token:                  "device-token",
		Profile:                Profile{Name: "Bob"},
	}

	self, err := json.Marshal(UserView{Self: &u})
	require.NoError(t, err)
	assert.Contains(t, string(self), `"chats":["c1"]`)
	assert.Contains(t, string(self), "device-token")
	assert.NotContains(t, string(self), "$2a$10$hash")

	public := u.Public()
	other, err := json.Marshal(UserView{Public: &public})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(other, &got))
	assert.ElementsMatch(t, []string{"id", "email", "friends", "profile"}, keys(got))
	assert.Equal(t, []any{}, got["friends"])
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
