//go:build !linux && !darwin

package extract

import (
	"errors"
	"fmt"
	"time"

	"github.com/lzfse-cli/lzfse-cli/internal/engine/archive"
)

func mknod(path string, h *archive.Header) error {
	return fmt.Errorf("failed to create %s %s: %w", h.Type, path, errors.ErrUnsupported)
}

func lchown(string, int, int) error {
	return nil
}

func lchtimes(string, time.Time) error {
	return nil
}
