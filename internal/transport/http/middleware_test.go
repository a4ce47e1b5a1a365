package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestAdminOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/admin/price", AdminOnly([]string{"Admin@crxtrade.io"}), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"email": c.GetString(adminEmailKey)})
	})

	// no header
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/price", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// unknown email
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/admin/price", nil)
	req.Header.Set("X-Admin-Email", "someone@else.io")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// allow-list match is case-insensitive
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/admin/price", nil)
	req.Header.Set("X-Admin-Email", "admin@CRXTRADE.io")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "admin@crxtrade.io")
}
