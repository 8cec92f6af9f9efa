package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c
}

func TestUserIDFromContextPrefersContextValue(t *testing.T) {
	c := newTestContext(t)
	c.Set("userID", "1")
	c.Request.Header.Set("X-User-Id", "42")

	got := userIDFromContext(c)
	require.NotNil(t, got)
	assert.Equal(t, "1", *got)
}

func TestUserIDFromContextFallsBackToGatewayHeader(t *testing.T) {
	c := newTestContext(t)
	c.Request.Header.Set("X-User-Id", "42")

	got := userIDFromContext(c)
	require.NotNil(t, got)
	assert.Equal(t, "42", *got)
}

func TestUserIDFromContextNilWithoutIdentity(t *testing.T) {
	c := newTestContext(t)
	assert.Nil(t, userIDFromContext(c))
}

func TestRequestIDFromContextIsStable(t *testing.T) {
	c := newTestContext(t)

	first := requestIDFromContext(c)
	require.NotEmpty(t, first)
	assert.Equal(t, first, requestIDFromContext(c))
}
