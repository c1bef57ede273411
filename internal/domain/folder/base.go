package folder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ganot/feeflow/internal/domain/status"
)

// ValidateBase checks that base exists, is a directory and can be listed.
func ValidateBase(base string) error {
	if strings.TrimSpace(base) == "" {
		return fmt.Errorf("%w: not set", ErrBasePath)
	}
	info, err := os.Stat(base)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s does not exist", ErrBasePath, base)
		}
		return fmt.Errorf("%w: %v", ErrBasePath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrBasePath, base)
	}
	if _, err := os.ReadDir(base); err != nil {
		return fmt.Errorf("%w: %s is not readable: %v", ErrBasePath, base, err)
	}
	return nil
}

// MissingRoots returns the canonical roots that do not exist below base.
func MissingRoots(base string, folders *status.FolderMap) []status.Root {
	var missing []status.Root
	for _, root := range folders.Roots() {
		info, err := os.Stat(filepath.Join(base, string(root)))
		if err != nil || !info.IsDir() {
			missing = append(missing, root)
		}
	}
	return missing
}
