package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/classforge/backend/pkg/response"
)

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Identity())
	r.GET("/open", func(c *gin.Context) { response.OK(c, gin.H{"email": c.GetString(ContextUserEmail)}) })
	r.GET("/admin", RequireRole("admin"), func(c *gin.Context) { response.OK(c, nil) })
	return r
}

func TestIdentityRejectsMissingHeaders(t *testing.T) {
	r := testRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestIdentityPassesWithHeaders(t *testing.T) {
	r := testRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.Header.Set("X-User-Id", "u-1")
	req.Header.Set("X-User-Email", "amy@example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name  string
		roles string
		want  int
	}{
		{"allowed", "admin", http.StatusOK},
		{"one of several", "student, admin", http.StatusOK},
		{"forbidden", "student", http.StatusForbidden},
		{"no roles", "", http.StatusForbidden},
	}
	r := testRouter()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("X-User-Id", "u-1")
			req.Header.Set("X-User-Email", "amy@example.com")
			req.Header.Set("X-User-Roles", tc.roles)
			r.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}
