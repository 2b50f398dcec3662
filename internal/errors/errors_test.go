package errors

import "testing"

func TestErrValidationError(t *testing.T) {
	err := NewValidation("symbol", "is required")
	if got, want := err.Error(), "symbol: is required"; got != want {
		t.Fatalf("unexpected error string: got %q want %q", got, want)
	}
}
