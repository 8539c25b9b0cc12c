package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-backend/internal/apperr"
	"chat-backend/internal/auth"
)

func newAuthRouter(authenticator Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(authenticator), func(c *gin.Context) {
		id := Identity(c)
		c.JSON(http.StatusOK, gin.H{"id": id.ID, "email": id.Email})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	tokens := auth.NewTokens("secret", time.Hour)
	valid, err := tokens.Issue(auth.Identity{ID: "u1", Email: "a@example.com"})
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer " + valid, http.StatusOK},
		{"lowercase scheme", "bearer " + valid, http.StatusOK},
	}

	r := newAuthRouter(tokens)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.JSONEq(t, `{"id":"u1","email":"a@example.com"}`, w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), `"error"`)
			}
		})
	}
}

type failingAuthenticator struct{ err error }

func (f failingAuthenticator) Authenticate(context.Context, string) (auth.Identity, error) {
	return auth.Identity{}, f.err
}

func TestAuthMiddlewareStoreOutage(t *testing.T) {
	r := newAuthRouter(failingAuthenticator{err: apperr.Upstream(errors.New("conn refused"), "failed to load user")})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"failed to load user"}`, w.Body.String())
}

func TestAuthMiddlewareRejectedAccount(t *testing.T) {
	r := newAuthRouter(failingAuthenticator{err: apperr.Unauthorized("account no longer exists")})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
