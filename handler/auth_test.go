package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAuthHandlerGetCurrentUser(t *testing.T) {
	handler := NewAuthHandler()

	router := gin.New()
	router.GET("/api/auth/me", testAuth, handler.GetCurrentUser)

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.Header.Set("X-Test-User", "user-1")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response["user_id"] != "user-1" {
		t.Errorf("Expected user_id 'user-1', got '%s'", response["user_id"])
	}
}
