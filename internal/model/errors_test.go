package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError_ErrorFormat(t *testing.T) {
	err := NewNoteNotFoundError()
	if got, want := err.Error(), "[NOT_FOUND] Note not found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAPIError_ErrorsAsThroughWrap(t *testing.T) {
	wrapped := fmt.Errorf("update failed: %w", NewValidationError("Note content cannot be empty"))

	var apiErr *APIError
	if !errors.As(wrapped, &apiErr) {
		t.Fatal("expected errors.As to find *APIError")
	}
	if apiErr.Code != ErrCodeValidation {
		t.Errorf("Code = %q, want %q", apiErr.Code, ErrCodeValidation)
	}
	if apiErr.Category != "validation" {
		t.Errorf("Category = %q, want validation", apiErr.Category)
	}
}

func TestConstructors_Codes(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		code string
	}{
		{"conflict", NewConflictError(), ErrCodeConflict},
		{"authentication", NewAuthenticationError(), ErrCodeAuthentication},
		{"unauthorized", NewUnauthorizedError("Invalid token"), ErrCodeUnauthorized},
		{"note not found", NewNoteNotFoundError(), ErrCodeNotFound},
		{"user not found", NewUserNotFoundError(), ErrCodeNotFound},
		{"route not found", NewRouteNotFoundError("GET", "/x"), ErrCodeNotFound},
		{"rate limited", NewUpstreamRateLimitedError(), ErrCodeUpstreamRateLimited},
		{"assistant disabled", NewAssistantDisabledError(), ErrCodeAssistantDisabled},
		{"assistant failed", NewAssistantFailedError(), ErrCodeAssistantFailed},
		{"internal", NewInternalError(), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Message == "" {
				t.Error("Message should not be empty")
			}
		})
	}
}

func TestNewRouteNotFoundError_IncludesMethodAndPath(t *testing.T) {
	err := NewRouteNotFoundError("PATCH", "/api/unknown")
	if err.Message != "Route PATCH /api/unknown not found" {
		t.Errorf("Message = %q", err.Message)
	}
}
