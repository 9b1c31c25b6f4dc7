package errors

import (
	"fmt"
	"testing"
)

func TestDataErrorUnwrap(t *testing.T) {
	err := NewDataError("history", "bitcoin", "no points in window", ErrEmptySeries)
	wrapped := Wrap(err, "analyze")

	if !Is(wrapped, ErrEmptySeries) {
		t.Fatalf("expected ErrEmptySeries in chain, got %v", wrapped)
	}

	var dataErr *DataError
	if !As(wrapped, &dataErr) {
		t.Fatalf("expected *DataError in chain")
	}
	if dataErr.CryptoID != "bitcoin" {
		t.Errorf("CryptoID = %q, want bitcoin", dataErr.CryptoID)
	}
}

func TestAPIErrorDefaultsToUpstream(t *testing.T) {
	err := NewAPIError("/cryptos", 502, "bad gateway", nil)
	if !Is(err, ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}

	notFound := NewAPIError("/cryptos/x", 404, "not found", ErrCryptoNotFound)
	if !Is(notFound, ErrCryptoNotFound) {
		t.Errorf("expected ErrCryptoNotFound, got %v", notFound)
	}
	if Is(notFound, ErrUpstream) {
		t.Errorf("explicit cause should replace ErrUpstream")
	}
}

func TestValidationErrorIsInputValidation(t *testing.T) {
	err := NewValidationError("indicator", "vwap", "unsupported")
	if !Is(err, ErrInputValidation) {
		t.Errorf("expected ErrInputValidation, got %v", err)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "x") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if Wrapf(nil, "x %d", 1) != nil {
		t.Error("Wrapf(nil) should be nil")
	}
	got := Wrapf(fmt.Errorf("boom"), "step %d", 2).Error()
	if got != "step 2: boom" {
		t.Errorf("Wrapf = %q", got)
	}
}
