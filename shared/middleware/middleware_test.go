package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Name   string `json:"name" validate:"required"`
	Access string `json:"access" validate:"required,oneof=READ WRITE"`
}

func TestValidateRequest(t *testing.T) {
	assert.Nil(t, ValidateRequest(sampleRequest{Name: "Alvin", Access: "READ"}))

	errs := ValidateRequest(sampleRequest{Access: "DELETE"})
	require.Len(t, errs, 2)
	assert.Equal(t, ValidationError{Field: "Name", Message: "This field is required", Type: "required"}, errs[0])
	assert.Equal(t, ValidationError{Field: "Access", Message: "Value must be one of: READ, WRITE", Type: "oneof"}, errs[1])
}

func TestLoggingMiddleware_PassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(LoggingMiddleware())
	r.GET("/teapot", func(c *gin.Context) { RespondWithError(c, http.StatusTeapot, "short and stout") })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/teapot", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.JSONEq(t, `{"message":"short and stout"}`, w.Body.String())
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(LoggingMiddleware())
	router.GET("/missing", func(c *gin.Context) {
		RespondWithError(c, http.StatusNotFound, "User does not exist")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "path=/missing")
	assert.Contains(t, out, "status=404")
}
