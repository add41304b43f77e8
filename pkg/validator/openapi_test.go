package validator

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"chat-relay/backend/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	v, err := NewOpenAPIValidator()
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(errors.ErrorHandler(), v.Middleware())
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/api/v1/messages", ok)
	r.GET("/api/v1/messages/:id", ok)
	r.GET("/undocumented", ok)
	return r
}

func status(r http.Handler, path string) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w.Code
}

func TestEmbeddedSchemaLoads(t *testing.T) {
	_, err := NewOpenAPIValidator()
	assert.NoError(t, err)
	assert.NotEmpty(t, Schema())
}

func TestMiddleware_ValidatesQuery(t *testing.T) {
	r := newEngine(t)

	assert.Equal(t, http.StatusOK, status(r, "/api/v1/messages"))
	assert.Equal(t, http.StatusOK, status(r, "/api/v1/messages?limit=10"))
	assert.Equal(t, http.StatusBadRequest, status(r, "/api/v1/messages?limit=abc"))
	assert.Equal(t, http.StatusBadRequest, status(r, "/api/v1/messages?limit=0"))
}

func TestMiddleware_PassesUndocumentedRoutes(t *testing.T) {
	r := newEngine(t)

	assert.Equal(t, http.StatusOK, status(r, "/undocumented"))
	assert.Equal(t, http.StatusOK, status(r, "/api/v1/messages/"+uuid.NewString()))
}

func TestNewOpenAPIValidatorFromData_RejectsGarbage(t *testing.T) {
	_, err := NewOpenAPIValidatorFromData([]byte("not: [valid"))
	assert.Error(t, err)
}
