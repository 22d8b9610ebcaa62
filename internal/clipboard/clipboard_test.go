package clipboard

import (
	"context"
	"errors"
	"testing"

	"github.com/atotto/clipboard"
)

func TestCopyRespectsCancelledContext(t *testing.T) {
	if clipboard.Unsupported {
		t.Skip("no clipboard utility available")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := New().Copy(ctx, "hello"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCopyUnsupported(t *testing.T) {
	if !clipboard.Unsupported {
		t.Skip("clipboard available")
	}
	if err := New().Copy(context.Background(), "hello"); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
