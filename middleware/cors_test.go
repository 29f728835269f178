package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCORS(t *testing.T) {
	tests := []struct {
		name           string
		origins        string
		origin         string
		expectedStatus int
		expectedAllow  string
	}{
		{"listed origin", "http://localhost:3000, https://app.example.com", "https://app.example.com", http.StatusNoContent, "https://app.example.com"},
		{"unlisted origin", "http://localhost:3000", "https://evil.example.com", http.StatusForbidden, ""},
		{"any origin", "*", "https://anywhere.example.com", http.StatusNoContent, "*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(CORS(tt.origins))
			router.POST("/api/documents", func(c *gin.Context) {
				c.Status(http.StatusCreated)
			})

			req := httptest.NewRequest("OPTIONS", "/api/documents", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", "POST")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.expectedAllow {
				t.Errorf("Expected allow origin '%s', got '%s'", tt.expectedAllow, got)
			}
		})
	}
}
