package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestValidationError_Error(t *testing.T) {
	assert.Equal(t, "validation failed: email - bad", NewValidationError("email", "bad").Error())
	assert.Equal(t, "validation failed: bad", NewValidationError("", "bad").Error())
}

func TestWrapValidationError_Unwrap(t *testing.T) {
	cause := stderrors.New("invalid email format")
	err := WrapValidationError("email", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "validation failed: email - invalid email format", err.Error())
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: NewValidationError("name", "required"), want: http.StatusBadRequest},
		{name: "not found", err: NewNotFoundError("user", ""), want: http.StatusNotFound},
		{name: "already exists", err: NewAlreadyExistsError("user", ""), want: http.StatusConflict},
		{name: "internal", err: NewInternalError("boom", nil), want: http.StatusInternalServerError},
		{name: "wrapped not found", err: fmt.Errorf("get: %w", NewNotFoundError("user", "")), want: http.StatusNotFound},
		{name: "plain error", err: stderrors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestToGRPCStatus(t *testing.T) {
	assert.Equal(t, codes.OK, ToGRPCStatus(nil).Code())
	assert.Equal(t, codes.InvalidArgument, ToGRPCStatus(NewValidationError("email", "bad")).Code())
	assert.Equal(t, codes.NotFound, ToGRPCStatus(fmt.Errorf("x: %w", NewNotFoundError("user", ""))).Code())
	assert.Equal(t, codes.AlreadyExists, ToGRPCStatus(NewAlreadyExistsError("user", "")).Code())

	st := ToGRPCStatus(stderrors.New("pq: connection refused"))
	assert.Equal(t, codes.Internal, st.Code())
	assert.Equal(t, "internal server error", st.Message())

	st = ToGRPCStatus(NewInternalError("failed to save user", stderrors.New("secret detail")))
	assert.Equal(t, "failed to save user", st.Message())
}

func TestNotFoundError_DefaultMessage(t *testing.T) {
	assert.Equal(t, "user not found", NewNotFoundError("user", "").Error())
	assert.Equal(t, "user already exists", NewAlreadyExistsError("user", "").Error())
}
