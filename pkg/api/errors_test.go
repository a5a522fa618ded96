package api

import (
	"encoding/json"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{"with param", NewInvalidRequestError("message", "is required"), "invalid_request: is required (param: message)"},
		{"without param", NewServerError("store down"), "server_error: store down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		err  *APIError
		want ErrorType
	}{
		{NewInvalidRequestError("message", "x"), ErrorTypeInvalidRequest},
		{NewNotFoundError("x"), ErrorTypeNotFound},
		{NewServerError("x"), ErrorTypeServerError},
		{NewModelError("x"), ErrorTypeModelError},
		{NewTooManyRequestsError("x"), ErrorTypeTooManyRequests},
		{NewUnauthorizedError("x"), ErrorTypeUnauthorized},
		{NewUnavailableError("x"), ErrorTypeUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			if tt.err.Type != tt.want {
				t.Errorf("Type = %q, want %q", tt.err.Type, tt.want)
			}
		})
	}
}

func TestErrorResponse_JSON(t *testing.T) {
	data, err := json.Marshal(ErrorResponse{Error: NewServerError("fail")})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"error":{"type":"server_error","message":"fail"}}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}
