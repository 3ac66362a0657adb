package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeUnprocessable, status: http.StatusUnprocessableEntity, publicMsg: "request could not be processed", detailsOK: true},
		{code: CodeStockShortfall, status: http.StatusConflict, publicMsg: "not enough stock for the selected items", detailsOK: true},
		{code: CodeCouponInvalid, status: http.StatusConflict, publicMsg: "coupon is no longer valid", detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestFromHTTPStatusMapsCodesAndMessages(t *testing.T) {
	tests := []struct {
		status int
		code   Code
	}{
		{http.StatusBadRequest, CodeValidation},
		{http.StatusUnauthorized, CodeUnauthorized},
		{http.StatusForbidden, CodeForbidden},
		{http.StatusNotFound, CodeNotFound},
		{http.StatusConflict, CodeConflict},
		{http.StatusUnprocessableEntity, CodeUnprocessable},
		{http.StatusInternalServerError, CodeDependency},
		{http.StatusBadGateway, CodeDependency},
	}

	for _, tt := range tests {
		err := FromHTTPStatus(tt.status, "upstream said no", nil)
		if err.Code() != tt.code {
			t.Fatalf("status %d expected code %s got %s", tt.status, tt.code, err.Code())
		}
		if err.Message() == "" {
			t.Fatalf("status %d produced empty user message", tt.status)
		}
		if got := UpstreamMessage(err); got != "upstream said no" {
			t.Fatalf("status %d lost upstream message, got %q", tt.status, got)
		}
	}
}

func TestUserMessageForStatusDistinguishesClasses(t *testing.T) {
	if UserMessageForStatus(http.StatusUnauthorized) == UserMessageForStatus(http.StatusNotFound) {
		t.Fatalf("auth and not-found should read differently")
	}
	if UserMessageForStatus(http.StatusServiceUnavailable) != UserMessageForStatus(http.StatusInternalServerError) {
		t.Fatalf("5xx statuses should share the server message")
	}
}

func TestDumpCarriesUpstreamStatus(t *testing.T) {
	err := FromHTTPStatus(http.StatusConflict, "duplicate order", stdErrors.New("status 409"))
	dump := Dump(err)
	if dump.UpstreamStatus != http.StatusConflict {
		t.Fatalf("expected upstream status 409, got %d", dump.UpstreamStatus)
	}
	if dump.UpstreamMessage != "duplicate order" {
		t.Fatalf("unexpected upstream message %q", dump.UpstreamMessage)
	}
	if len(dump.Chain) < 2 {
		t.Fatalf("expected wrapped chain, got %v", dump.Chain)
	}
}

func TestIsMatchesCode(t *testing.T) {
	err := New(CodeStockShortfall, "short")
	if !Is(err, CodeStockShortfall) {
		t.Fatalf("expected stock shortfall to match")
	}
	if Is(stdErrors.New("plain"), CodeStockShortfall) {
		t.Fatalf("plain errors must not match")
	}
}
