package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayError_KindSurvivesWrapping(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := fmt.Errorf("ingest: %w", Persistence("save message", cause))

	assert.True(t, IsKind(err, KindPersistence))
	assert.False(t, IsKind(err, KindPublish))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "ingest: persistence error: save message: connection refused", err.Error())
}

func TestRelayError_NilCause(t *testing.T) {
	assert.NoError(t, Transport("write", nil))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.False(t, IsKind(nil, KindDecode))
}

func TestFromError(t *testing.T) {
	appErr := NewNotFoundError("MESSAGE_NOT_FOUND", "message not found")
	assert.Same(t, appErr, FromError(fmt.Errorf("lookup: %w", appErr)))

	internal := FromError(stderrors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, internal.StatusCode)
	assert.Equal(t, "INTERNAL_ERROR", internal.Code)
	assert.Nil(t, FromError(nil))
}

func TestErrorHandler_RendersAppError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/x", func(c *gin.Context) {
		_ = c.Error(NewBadRequestError("INVALID_LIMIT", "limit must be positive"))
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"INVALID_LIMIT"`)
}

func TestRecoveryWithLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryWithLogger())
	r.GET("/panic", func(c *gin.Context) {
		panic("unexpected")
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/panic", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "SERVER_ERROR")
}
