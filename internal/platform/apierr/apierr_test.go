package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFromMapsSentinels(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("file: %w", ErrNotFound), http.StatusNotFound, "not_found"},
		{"invalid", fmt.Errorf("body: %w", ErrInvalidArgument), http.StatusBadRequest, "invalid_argument"},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "internal"},
		{"typed", New(http.StatusPaymentRequired, "ORG_SUBSCRIPTION_REQUIRED", nil), http.StatusPaymentRequired, "ORG_SUBSCRIPTION_REQUIRED"},
	}
	for _, tc := range cases {
		got := From(tc.err)
		if got.Status != tc.status || got.Code != tc.code {
			t.Fatalf("%s: want=%d/%s got=%d/%s", tc.name, tc.status, tc.code, got.Status, got.Code)
		}
	}
}

func TestBadRequestWrapsInvalidArgument(t *testing.T) {
	err := BadRequest("missing_file_id", "file_id is required")
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument in chain")
	}
	if err.Status != http.StatusBadRequest {
		t.Fatalf("status: want=400 got=%d", err.Status)
	}
}

func TestMessageHidesServerCauses(t *testing.T) {
	if got := NotFound("no_pages", "No pages for file_id").Message(); got != "No pages for file_id" {
		t.Fatalf("NotFound message: got=%q", got)
	}
	if got := From(errors.New("pq: connection refused")).Message(); got != "internal server error" {
		t.Fatalf("500 message: got=%q", got)
	}
	if got := New(http.StatusUnauthorized, "invalid_credentials", fmt.Errorf("%w: bad password", ErrUnauthorized)).Message(); got != "bad password" {
		t.Fatalf("sentinel prefix: got=%q", got)
	}
	if got := New(http.StatusConflict, "user_exists", errors.New("username taken")).Message(); got != "username taken" {
		t.Fatalf("typed message: got=%q", got)
	}
}
