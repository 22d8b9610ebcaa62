//go:build !darwin

package permissions

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestEnsureCaptureNoop(t *testing.T) {
	if err := EnsureCapture(zerolog.Nop()); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
