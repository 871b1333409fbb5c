package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"campus/internal/domain"
)

func record(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Error(c, err)
	return w
}

func TestErrorMapping(t *testing.T) {
	assert.Equal(t, http.StatusConflict, record(domain.Conflict("copy is not available")).Code)
	assert.Equal(t, http.StatusNotFound, record(domain.NotFound("student not found")).Code)
	assert.Equal(t, http.StatusInternalServerError, record(errors.New("boom")).Code)
}

func TestValidationIncludesField(t *testing.T) {
	w := record(domain.Validation("class_pin", "invalid class PIN"))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"error":"invalid class PIN","field":"class_pin"}`, w.Body.String())
}

func TestOpaqueErrorsAreNotLeaked(t *testing.T) {
	w := record(errors.New("pq: connection refused"))
	assert.NotContains(t, w.Body.String(), "connection refused")
}
