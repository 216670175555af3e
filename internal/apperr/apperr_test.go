package apperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestInputCarriesFieldAndLocation(t *testing.T) {
	err := Input("Cannot Post Transaction", "bad qty", "qty")
	if err.Field != "qty" {
		t.Errorf("expected field qty, got %q", err.Field)
	}
	if !strings.HasPrefix(err.Location(), "apperr_test.go:") {
		t.Errorf("expected location in test file, got %q", err.Location())
	}
	if err.Error() != "Cannot Post Transaction: bad qty" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("posting: %w", Query("Error Retrieving Inventory Information", cause))

	if KindOf(err) != KindQuery {
		t.Errorf("expected query kind, got %v", KindOf(err))
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable through the chain")
	}
	if Is(err, KindCanceled) {
		t.Error("query error reported as canceled")
	}
}

func TestKindOfPlainError(t *testing.T) {
	if KindOf(errors.New("x")) != KindQuery {
		t.Error("plain errors should be treated as query failures")
	}
}
