//go:build !slvs

package slvs

import "testing"

func TestNewReturnsError(t *testing.T) {
	b, err := New()
	if err == nil {
		t.Fatal("New() error = nil, want non-nil error when slvs tag is not set")
	}
	if b != nil {
		t.Fatal("New() returned non-nil backend, want nil when slvs tag is not set")
	}

	want := "libslvs backend not available: build with -tags=slvs"
	if err.Error() != want {
		t.Errorf("New() error = %q, want %q", err.Error(), want)
	}
}
