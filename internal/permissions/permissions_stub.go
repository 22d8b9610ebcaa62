//go:build !darwin

package permissions

import "github.com/rs/zerolog"

// EnsureCapture is a no-op on non-macOS platforms.
func EnsureCapture(log zerolog.Logger) error {
	return nil
}
