package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without wrapped error",
			err:  New(CodeValidation, "invalid input"),
			want: "VALIDATION_ERROR: invalid input",
		},
		{
			name: "with wrapped error",
			err:  Wrap(CodeInternal, "something failed", errors.New("underlying")),
			want: "INTERNAL_ERROR: something failed: underlying",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(CodeInternal, "wrapped", underlying)

	if unwrapped := err.Unwrap(); unwrapped != underlying {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, underlying)
	}
}

func TestAppError_HTTPStatus(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeInvalidRequest, http.StatusBadRequest},
		{CodeEmptyQuery, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeInternal, http.StatusInternalServerError},
		{CodeConfig, http.StatusInternalServerError},
		{CodeRetrieval, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test")
			if status := err.HTTPStatus(); status != tt.status {
				t.Errorf("HTTPStatus() = %d, want %d", status, tt.status)
			}
		})
	}
}

func TestAppError_WithDetail(t *testing.T) {
	err := New(CodeValidation, "invalid").
		WithDetail("field", "query").
		WithDetail("reason", "required")

	if err.Details["field"] != "query" {
		t.Errorf("Details[field] = %s, want query", err.Details["field"])
	}

	if err.Details["reason"] != "required" {
		t.Errorf("Details[reason] = %s, want required", err.Details["reason"])
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("ValidationError", func(t *testing.T) {
		err := ValidationError("bad input")
		if err.Code != CodeValidation {
			t.Errorf("Code = %s, want %s", err.Code, CodeValidation)
		}
	})

	t.Run("EmptyQueryError", func(t *testing.T) {
		err := EmptyQueryError()
		if err.Code != CodeEmptyQuery {
			t.Errorf("Code = %s, want %s", err.Code, CodeEmptyQuery)
		}
	})

	t.Run("NotFoundError", func(t *testing.T) {
		err := NotFoundError("pipeline")
		if err.Code != CodeNotFound {
			t.Errorf("Code = %s, want %s", err.Code, CodeNotFound)
		}
		if err.Message != "pipeline not found" {
			t.Errorf("Message = %s, want 'pipeline not found'", err.Message)
		}
	})

	t.Run("ConfigError", func(t *testing.T) {
		err := ConfigError("bad corpus", errors.New("duplicate pipeline"))
		if err.Code != CodeConfig {
			t.Errorf("Code = %s, want %s", err.Code, CodeConfig)
		}
		if !IsConfig(err) {
			t.Error("IsConfig() = false, want true")
		}
	})

	t.Run("RetrievalError", func(t *testing.T) {
		err := RetrievalError("sales", errors.New("corrupt entry"))
		if err.Code != CodeRetrieval {
			t.Errorf("Code = %s, want %s", err.Code, CodeRetrieval)
		}
		if err.Details["pipeline"] != "sales" {
			t.Errorf("Details[pipeline] = %s, want sales", err.Details["pipeline"])
		}
	})

	t.Run("TimeoutError", func(t *testing.T) {
		err := TimeoutError("answer")
		if err.Code != CodeTimeout {
			t.Errorf("Code = %s, want %s", err.Code, CodeTimeout)
		}
		if !IsTimeout(err) {
			t.Error("IsTimeout() = false, want true")
		}
	})
}

func TestPredicatesRejectPlainErrors(t *testing.T) {
	plain := errors.New("plain")

	if IsConfig(plain) || IsNotFound(plain) || IsTimeout(plain) || IsValidation(plain) {
		t.Error("predicates must return false for non-AppError errors")
	}
}
