package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesCodeThroughFmtWrapping(t *testing.T) {
	base := New(CodeNotFound, "Artwork not found")
	wrapped := fmt.Errorf("load artwork: %w", base)

	if CodeOf(wrapped) != CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %s", CodeOf(wrapped))
	}
	if !stdErrors.Is(wrapped, New(CodeNotFound, "")) {
		t.Fatalf("errors.Is should match on code")
	}
	if StatusOf(wrapped) != http.StatusNotFound {
		t.Fatalf("unexpected status %d", StatusOf(wrapped))
	}
}

func TestPublicMessageHidesStorageDetails(t *testing.T) {
	err := Wrap(CodeStorageFailure, stdErrors.New("dial tcp 10.0.0.1:3306"), "查询作品失败")
	if got := PublicMessage(err); got != "storage failure" {
		t.Fatalf("unexpected public message %q", got)
	}
	if got := PublicMessage(New(CodePermissionDenied, "Unauthorized access: Admin privileges required")); got != "Unauthorized access: Admin privileges required" {
		t.Fatalf("unexpected public message %q", got)
	}
	if got := PublicMessage(stdErrors.New("boom")); got != "unknown error" {
		t.Fatalf("unexpected public message %q", got)
	}
}

func TestRegisterStatus(t *testing.T) {
	const code Code = "TEST_GONE"
	Register(code, Attributes{Message: "gone", Severity: SeverityInfo})
	RegisterStatus(code, http.StatusGone)
	if HTTPStatus(code) != http.StatusGone {
		t.Fatalf("expected 410, got %d", HTTPStatus(code))
	}
}

func TestRetryableDefaultsFromRegistry(t *testing.T) {
	if !RetryableError(New(CodePaymentFailure, "")) {
		t.Fatalf("payment failures should be retryable")
	}
	if RetryableError(New(CodeInvalidArgument, "")) {
		t.Fatalf("invalid argument should not be retryable")
	}
	if !ShouldAlert(Wrap(CodeStorageFailure, stdErrors.New("x"), "")) {
		t.Fatalf("storage failures should alert")
	}
}

func TestRegisterKeepsBoundStatus(t *testing.T) {
	const code Code = "TEST_SOLD_OUT"
	RegisterStatus(code, http.StatusConflict)
	Register(code, Attributes{Message: "sold out", Severity: SeverityInfo})
	if HTTPStatus(code) != http.StatusConflict {
		t.Fatalf("expected 409, got %d", HTTPStatus(code))
	}
	if got := PublicMessage(New(code, "")); got != "sold out" {
		t.Fatalf("unexpected public message %q", got)
	}
}

func TestOverridesWinOverRegistry(t *testing.T) {
	err := Wrap(CodeUnknown, stdErrors.New("smtp down"), "", WithRetryable(true), WithAlert(false))
	if !RetryableError(err) || ShouldAlert(err) {
		t.Fatalf("options should override registry defaults")
	}
	if SeverityOf(err) != SeverityCritical {
		t.Fatalf("severity should still come from the registry, got %s", SeverityOf(err))
	}
	if StatusOf(err) != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", StatusOf(err))
	}
}
