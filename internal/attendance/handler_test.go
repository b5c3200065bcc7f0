package attendance

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func handlerRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(svc, nil)
	r := gin.New()
	r.GET("/sessions/:id/attendance", h.Get)
	r.POST("/sessions/:id/attendance/recompute", h.Recompute)
	return r
}

func TestRecomputeEndpoint(t *testing.T) {
	svc, source, _ := serviceFixture()
	r := handlerRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+source.session.ID.String()+"/attendance/recompute", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestRecomputeEndpointUnknownSession(t *testing.T) {
	svc, _, _ := serviceFixture()
	r := handlerRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+uuid.NewString()+"/attendance/recompute", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRecomputeEndpointIntegrityFailure(t *testing.T) {
	svc, source, _ := serviceFixture()
	source.session.BatchID = uuid.Nil
	r := handlerRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+source.session.ID.String()+"/attendance/recompute", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestRecomputeEndpointBadID(t *testing.T) {
	svc, _, _ := serviceFixture()
	r := handlerRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions/not-a-uuid/attendance/recompute", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetEndpointEmptySheet(t *testing.T) {
	svc, source, _ := serviceFixture()
	r := handlerRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/sessions/"+source.session.ID.String()+"/attendance", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 before any computation", w.Code)
	}
}
