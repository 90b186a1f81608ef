package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cdserrors "github.com/mantonx/upnpcds/internal/errors"
)

func TestHTTPStatus(t *testing.T) {
	ioErr := cdserrors.IOFailure("stat", "/srv/a.mp3", errors.New("gone"))

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", cdserrors.NotFound("lookup", nil), http.StatusNotFound},
		{"invalid", cdserrors.InvalidArgument("browse", "x", nil), http.StatusBadRequest},
		{"not supported", cdserrors.NotSupported("search"), http.StatusNotImplemented},
		{"io", ioErr, http.StatusInternalServerError},
		{"upstream io", cdserrors.Upstream("update", "/music", ioErr), http.StatusBadGateway},
		{"upstream not found", cdserrors.Upstream("browse", "/music", cdserrors.NotFound("get", nil)), http.StatusNotFound},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestRespondWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(RequestIDKey, "req-1")
		c.Next()
	})
	r.GET("/missing", func(c *gin.Context) {
		RespondWithError(c, "Unknown path", cdserrors.NotFound("lookup", nil).WithPath("/nope"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "not_found", resp.Error.Code)
	assert.Equal(t, "/nope", resp.Error.Path)
	assert.Equal(t, "req-1", resp.Error.RequestID)
}

func TestErrorMiddleware_RecoversPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorMiddleware(hclog.NewNullLogger()))
	r.GET("/panic", func(c *gin.Context) {
		panic("kaboom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "internal", resp.Error.Code)
}
