// Package clipboard places transcripts on the system clipboard.
package clipboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

var ErrUnsupported = errors.New("clipboard: not supported on this system")

// Copier defines the interface for handing text to the user's clipboard
type Copier interface {
	Copy(ctx context.Context, text string) error
}

type systemCopier struct{}

// New returns a Copier backed by the system clipboard (pbcopy, xclip,
// xsel, wl-copy or the Windows API)
func New() Copier {
	return systemCopier{}
}

func (systemCopier) Copy(ctx context.Context, text string) error {
	if clipboard.Unsupported {
		return ErrUnsupported
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard: write: %w", err)
	}
	return nil
}
