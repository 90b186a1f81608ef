package errors

import (
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCDSError_IsMatchesTypeSentinel(t *testing.T) {
	_, parseErr := strconv.Atoi("abc")
	err := InvalidArgument("browse", "abc", parseErr)

	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), `value="abc"`)

	wrapped := fmt.Errorf("request failed: %w", NotFound("browse", nil).WithObject("42"))
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, ErrorTypeNotFound, GetType(wrapped))
}

func TestWrap_PreservesExisting(t *testing.T) {
	original := IOFailure("stat", "/music/a.mp3", errors.New("permission denied"))
	assert.Same(t, original, Wrap(original, ErrorTypeInternal, "other"))
	assert.Nil(t, Wrap(nil, ErrorTypeInternal, "noop"))

	plain := Wrap(errors.New("boom"), ErrorTypeUpstream, "route_update")
	assert.Equal(t, ErrorTypeUpstream, GetType(plain))
	assert.True(t, errors.Is(plain, ErrUpstream))
}

func TestUPnPCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not found", NotFound("browse", nil), CodeNoSuchObject},
		{"not a container", NotFound("browse", ErrNotContainer), CodeNoSuchContainer},
		{"invalid flag", InvalidArgument("browse", "Bogus", nil), CodeInvalidArgs},
		{"search", NotSupported("search"), CodeOptionalNotSupported},
		{"upstream", Upstream("route", "/music", errors.New("x")), CodeActionFailed},
		{"plain", errors.New("x"), CodeActionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, UPnPCode(tt.err))
		})
	}
	assert.Equal(t, "No such object", Description(CodeNoSuchObject))
}
