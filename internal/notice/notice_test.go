package notice

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/diewo77/go-backoffice/validation"
)

func TestBannerLifetimes(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	ok := Success("Saved", now)
	if !ok.Visible(now.Add(2 * time.Second)) {
		t.Fatal("success banner should show before 3s")
	}
	if ok.Visible(now.Add(3 * time.Second)) {
		t.Fatal("success banner should clear at 3s")
	}

	bad := Error(errors.New("Error creating invoice: boom"), now)
	if bad.Kind != KindError {
		t.Fatalf("kind = %s", bad.Kind)
	}
	if !bad.Visible(now.Add(4 * time.Second)) {
		t.Fatal("error banner should show before 5s")
	}
	if bad.Visible(now.Add(5 * time.Second)) {
		t.Fatal("error banner should clear at 5s")
	}
}

type blankErr struct{}

func (blankErr) Error() string { return "  " }

func TestMessageFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, FallbackMessage},
		{"blank", blankErr{}, FallbackMessage},
		{"plain", errors.New("Error updating invoice: timeout"), "Error updating invoice: timeout"},
		{"validation", validation.Violations{"title": "required"}, "Please check the form: title: required"},
		{"wrapped validation", fmt.Errorf("save: %w", validation.Violations{"date": "required", "number": "required"}), "Please check the form: date: required, number: required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MessageFor(tt.err); got != tt.want {
				t.Errorf("MessageFor() = %q, want %q", got, tt.want)
			}
		})
	}
}
