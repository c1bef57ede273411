// Package templates copies the folder set an awarded project receives.
package templates

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ganot/feeflow/internal/domain/folder"
)

// DefaultDirName is the template folder kept inside the active root.
const DefaultDirName = "00 Additional Folders"

// DefaultPatterns selects the subfolders copied on award.
var DefaultPatterns = []string{
	"03 Contract",
	"04 Deliverables",
	"05 Submittals",
	"11 SubContractors",
	"98 Outgoing",
	"99 Temp",
}

// ErrSourceMissing indicates the template source folder does not exist.
var ErrSourceMissing = errors.New("award template folder not found")

// Provisioner copies template subfolders matching Patterns from Source.
type Provisioner struct {
	source   string
	patterns []string
	logger   *slog.Logger
}

// NewProvisioner validates the glob patterns and creates a provisioner.
func NewProvisioner(source string, patterns []string, logger *slog.Logger) (*Provisioner, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid template pattern %q", p)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{
		source:   source,
		patterns: append([]string(nil), patterns...),
		logger:   logger,
	}, nil
}

// ProvisionTemplates copies every matching template folder into targetPath
// and returns the relative paths copied. Folders already present in the
// target are left alone. One failing folder does not stop the others.
func (p *Provisioner) ProvisionTemplates(ctx context.Context, targetPath string) ([]string, error) {
	info, err := os.Stat(p.source)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrSourceMissing, p.source)
	}

	fsys := os.DirFS(p.source)
	selected := make(map[string]struct{})
	for _, pattern := range p.patterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			selected[m] = struct{}{}
		}
	}

	names := make([]string, 0, len(selected))
	for name := range selected {
		names = append(names, name)
	}
	sort.Strings(names)

	var copied []string
	var errs []error
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		src := filepath.Join(p.source, filepath.FromSlash(name))
		srcInfo, err := os.Stat(src)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !srcInfo.IsDir() {
			continue
		}

		dst := filepath.Join(targetPath, filepath.FromSlash(name))
		if _, err := os.Stat(dst); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := folder.CopyTree(src, dst); err != nil {
			p.logger.Warn("template copy failed", "template", name, "target", targetPath, "error", err)
			errs = append(errs, fmt.Errorf("copy %s: %w", name, err))
			continue
		}
		copied = append(copied, name)
	}

	return copied, errors.Join(errs...)
}
