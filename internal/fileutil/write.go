// Package fileutil writes export files readable only by the current user.
// On Unix this is the 0600 mode bit. On Windows the file additionally gets
// a DACL granting access to the current user alone.
package fileutil

import (
	"fmt"
	"log/slog"
	"os"
)

// PrivatePerm is the mode export files are created with.
const PrivatePerm os.FileMode = 0600

// WritePrivate writes data to path in a single write, creating the file or
// truncating an existing one. An existing file keeps its current mode.
func WritePrivate(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, PrivatePerm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := restrictToCurrentUser(path); err != nil {
		slog.Warn("fileutil: best-effort DACL failed", "path", path, "err", err)
	}
	return nil
}
