//go:build !linux

package system

import (
	"context"
	"errors"
)

var errUnsupported = errors.New("console control is only available on linux")

func SetGraphicsMode() error { return errUnsupported }
func RestoreTextMode() error { return errUnsupported }
func writeVT(string) error   { return errUnsupported }

// StartExitOnKey is a no-op outside linux.
func StartExitOnKey(ctx context.Context, l logger, key uint16, onExit func()) {
	if l != nil {
		l.Infof("input", "key exit watcher unavailable on this platform")
	}
}
