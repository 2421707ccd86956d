package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHash(t *testing.T) {
	PasswordCost = 4
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)

	assert.True(t, CheckPasswordHash("s3cret-pass", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("test-secret", time.Hour, "user-1", "Dana", "agent", []string{"b1", "b2"})
	require.NoError(t, err)

	claims, err := ParseToken("test-secret", token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "Dana", claims.Name)
	assert.Equal(t, "agent", claims.Role)
	assert.Equal(t, []string{"b1", "b2"}, claims.Branches)
}

func TestParseTokenRejects(t *testing.T) {
	token, err := GenerateToken("test-secret", time.Hour, "user-1", "Dana", "agent", nil)
	require.NoError(t, err)

	_, err = ParseToken("other-secret", token)
	assert.Error(t, err)

	_, err = GenerateToken("", time.Hour, "user-1", "Dana", "agent", nil)
	assert.Error(t, err)

	fallback, err := GenerateToken("test-secret", -time.Hour, "user-1", "Dana", "agent", nil)
	require.NoError(t, err)
	// Non-positive expiry falls back to the 24h default.
	_, err = ParseToken("test-secret", fallback)
	assert.NoError(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware("test-secret"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"userId":   c.GetString("userId"),
			"role":     c.GetString("role"),
			"branches": c.GetStringSlice("branches"),
		})
	})

	token, err := GenerateToken("test-secret", time.Hour, "user-1", "Dana", "admin", []string{"b1"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid bearer", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"userId":"user-1"`)
				assert.Contains(t, w.Body.String(), `"branches":["b1"]`)
			}
		})
	}
}
