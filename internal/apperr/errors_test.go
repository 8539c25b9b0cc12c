package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{NotFound("missing"), http.StatusNotFound},
		{Forbidden("no"), http.StatusForbidden},
		{Conflict("dup"), http.StatusConflict},
		{Unauthorized("who"), http.StatusUnauthorized},
		{Upstream(errors.New("db down"), "store unavailable"), http.StatusBadGateway},
		{Inconsistent(errors.New("second write"), "partially applied"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("handle invite: %w", Forbidden("not a member"))
	assert.True(t, Is(err, KindForbidden))
	assert.Equal(t, "not a member", Message(err))
}

func TestMessageHidesInternals(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := Upstream(cause, "failed to load user")

	assert.Equal(t, "failed to load user", Message(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal error", Message(cause))
}
