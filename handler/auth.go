package handler

import (
	"net/http"

	"github.com/Areen-09/legal-doc-demystifier/middleware"
	"github.com/gin-gonic/gin"
)

// AuthHandler reports who the bearer token belongs to. Tokens are issued by
// the identity provider, not by this service.
type AuthHandler struct{}

func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// GetCurrentUser returns the current user info
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id": middleware.GetUserID(c),
	})
}
