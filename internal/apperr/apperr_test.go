package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tabibdesk/internal/apperr"
)

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
		http int
	}{
		{apperr.Invalid("title required"), codes.InvalidArgument, http.StatusBadRequest},
		{apperr.NotFound("Invoice"), codes.NotFound, http.StatusNotFound},
		{apperr.Conflict("phone already registered"), codes.AlreadyExists, http.StatusConflict},
		{apperr.Precondition("invoice already paid"), codes.FailedPrecondition, http.StatusUnprocessableEntity},
		{apperr.Forbidden("admin only"), codes.PermissionDenied, http.StatusForbidden},
		{apperr.Unauthenticated("bad token"), codes.Unauthenticated, http.StatusUnauthorized},
		{apperr.Internal(errors.New("db down")), codes.Internal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(apperr.CodeOf(tt.err)), func(t *testing.T) {
			s, ok := status.FromError(tt.err)
			assert.True(t, ok)
			assert.Equal(t, tt.code, s.Code())
			assert.Equal(t, tt.http, apperr.HTTPStatus(tt.err))
		})
	}
}

func TestNotFoundMessage(t *testing.T) {
	s, _ := status.FromError(apperr.NotFound("Patient"))
	assert.Equal(t, "Patient not found", s.Message())
}

func TestInternalHidesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := apperr.Internal(cause)
	s, _ := status.FromError(err)
	assert.Equal(t, "internal error", s.Message())
	assert.ErrorIs(t, err, cause)
}

func TestCodeOfWrapped(t *testing.T) {
	err := fmt.Errorf("create: %w", apperr.Conflict("dup"))
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
	assert.Equal(t, apperr.CodeInternal, apperr.CodeOf(errors.New("plain")))
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(status.Error(codes.NotFound, "x")))
}
