package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestGetServiceError_UnwrapsChain(t *testing.T) {
	base := Conflict("Recommended app already exists")
	wrapped := fmt.Errorf("publish: %w", base)

	got := GetServiceError(wrapped)
	if got == nil {
		t.Fatal("expected service error in chain")
	}
	if got.HTTPStatus != http.StatusConflict || got.Code != CodeConflict {
		t.Fatalf("unexpected error: %#v", got)
	}
	if !Is(wrapped, CodeConflict) {
		t.Fatal("Is() should match conflict code")
	}
	if GetServiceError(stderrors.New("plain")) != nil {
		t.Fatal("plain errors carry no service error")
	}
}

func TestWithDetails_DoesNotMutateOriginal(t *testing.T) {
	base := Validation("bad page")
	detailed := base.WithDetails("field", "page")

	if len(base.Details) != 0 {
		t.Fatalf("original mutated: %v", base.Details)
	}
	if detailed.Details["field"] != "page" {
		t.Fatalf("detail missing: %v", detailed.Details)
	}
}

func TestInternal_KeepsCause(t *testing.T) {
	cause := stderrors.New("disk on fire")
	err := Internal("", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("cause should be reachable through Unwrap")
	}
	if err.Message != "Internal server error" {
		t.Fatalf("default message = %q", err.Message)
	}
}

func TestRateLimitExceeded_Details(t *testing.T) {
	err := RateLimitExceeded(10, "1s")
	if err.HTTPStatus != http.StatusTooManyRequests {
		t.Fatalf("status = %d", err.HTTPStatus)
	}
	if err.Details["limit"] != 10 || err.Details["window"] != "1s" {
		t.Fatalf("details = %v", err.Details)
	}
}
