package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeValidation, "test error")
	expected := "VALIDATION_ERROR: test error"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestAppError_WithCause(t *testing.T) {
	originalErr := errors.New("disk full")
	err := NewPersistenceError("config", originalErr)

	if err.Cause != originalErr {
		t.Errorf("Cause = %v, want %v", err.Cause, originalErr)
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Error() should contain cause, got: %v", err.Error())
	}
	if !errors.Is(err, originalErr) {
		t.Error("errors.Is should see through AppError")
	}
	if err.Context["document"] != "config" {
		t.Errorf("Context[document] = %v, want config", err.Context["document"])
	}
}

func TestAppError_WithContext(t *testing.T) {
	err := NewAppError(ErrCodeValidation, "test error")
	err.WithContext("field", "value").WithContext("count", 42)

	if err.Context["field"] != "value" {
		t.Errorf("Context[field] = %v, want 'value'", err.Context["field"])
	}
	if err.Context["count"] != 42 {
		t.Errorf("Context[count] = %v, want 42", err.Context["count"])
	}
}

func TestResolutionIsValidationVariant(t *testing.T) {
	err := NewResolutionError("nowhere.invalid", errors.New("no such host"))
	if !IsValidation(err) {
		t.Error("resolution errors must be classified as validation errors")
	}
	if err.Context["field"] != "srtla_addr" {
		t.Errorf("Context[field] = %v, want srtla_addr", err.Context["field"])
	}
	if IsPersistence(err) {
		t.Error("resolution error is not a persistence error")
	}
}

func TestGetAppError(t *testing.T) {
	appErr := NewAppError(ErrCodeAuth, "test")

	if result := GetAppError(appErr); result != appErr {
		t.Errorf("GetAppError() = %v, want %v", result, appErr)
	}

	wrapped := fmt.Errorf("starting stream: %w", appErr)
	if result := GetAppError(wrapped); result != appErr {
		t.Error("GetAppError() should extract AppError from wrapped error")
	}

	if result := GetAppError(errors.New("regular error")); result != nil {
		t.Error("GetAppError() should return nil for regular error")
	}
}

func TestOperatorMessage(t *testing.T) {
	err := NewProcessError("failed to start the encoder", errors.New("exec: not found"))
	if got := OperatorMessage(fmt.Errorf("wrapped: %w", err)); got != "failed to start the encoder" {
		t.Errorf("OperatorMessage() = %q", got)
	}
	if got := OperatorMessage(errors.New("plain")); got != "plain" {
		t.Errorf("OperatorMessage() = %q, want plain", got)
	}
}
