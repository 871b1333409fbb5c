package academics

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(nil).Register(r.Group("/v1"))
	return r
}

func request(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// every update/delete route must exist and reject a malformed id before
// touching storage
func TestUpdateDeleteRoutesValidateID(t *testing.T) {
	r := newTestRouter()

	paths := []struct {
		method, path string
	}{
		{http.MethodPut, "/v1/students/abc"},
		{http.MethodDelete, "/v1/students/abc"},
		{http.MethodPut, "/v1/professors/abc"},
		{http.MethodDelete, "/v1/professors/abc"},
		{http.MethodPut, "/v1/classes/abc"},
		{http.MethodDelete, "/v1/classes/abc"},
		{http.MethodPut, "/v1/exams/abc"},
		{http.MethodDelete, "/v1/exams/abc"},
		{http.MethodPut, "/v1/courses/abc"},
		{http.MethodDelete, "/v1/courses/abc"},
	}
	for _, p := range paths {
		w := request(t, r, p.method, p.path, gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code, "%s %s", p.method, p.path)
	}
}

func TestUpdateStudentRejectsMissingFields(t *testing.T) {
	r := newTestRouter()

	w := request(t, r, http.MethodPut, "/v1/students/3", gin.H{"name": "Ada"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateClassRejectsUnknownStatus(t *testing.T) {
	r := newTestRouter()

	w := request(t, r, http.MethodPut, "/v1/classes/3", gin.H{
		"semester":      "fall",
		"academic_year": "2026/2027",
		"status":        "archived",
		"pin":           "483921",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "status")
}

func TestUpdateExamRejectsMissingDate(t *testing.T) {
	r := newTestRouter()

	w := request(t, r, http.MethodPut, "/v1/exams/3", gin.H{"name": "Midterm"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidClassStatus(t *testing.T) {
	for _, status := range []string{ClassPlanned, ClassActive, ClassFinished, ClassCancelled} {
		assert.True(t, validClassStatus(status))
	}
	assert.False(t, validClassStatus("archived"))
	assert.False(t, validClassStatus(""))
}
