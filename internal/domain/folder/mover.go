package folder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/ganot/feeflow/internal/domain/status"
	"github.com/ganot/feeflow/internal/faults"
)

// TemplateProvisioner copies the award template set into a project folder.
type TemplateProvisioner interface {
	ProvisionTemplates(ctx context.Context, targetPath string) ([]string, error)
}

// MoveResult describes a completed relocation.
type MoveResult struct {
	Number       string      `json:"number"`
	OldPath      string      `json:"old_path"`
	NewPath      string      `json:"new_path"`
	To           status.Root `json:"to"`
	Moved        bool        `json:"moved"`
	Provisioned  []string    `json:"provisioned,omitempty"`
	ProvisionErr string      `json:"provision_error,omitempty"`
}

// Mover relocates project folders between canonical roots.
type Mover struct {
	base        string
	folders     *status.FolderMap
	provisioner TemplateProvisioner
	logger      *slog.Logger
	rename      func(oldPath, newPath string) error
}

// NewMover creates a mover over base. provisioner may be nil.
func NewMover(base string, folders *status.FolderMap, provisioner TemplateProvisioner, logger *slog.Logger) *Mover {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mover{
		base:        filepath.Clean(base),
		folders:     folders,
		provisioner: provisioner,
		logger:      logger,
		rename:      os.Rename,
	}
}

// Move relocates currentPath into target and returns the new location.
// A same-named folder at the destination is never overwritten. Moving into
// the active root provisions the award templates; a provisioning failure is
// reported in the result without failing the move.
func (m *Mover) Move(ctx context.Context, currentPath string, target status.Root) (*MoveResult, error) {
	currentPath = filepath.Clean(currentPath)
	leaf := filepath.Base(currentPath)
	number := LeafPrefix(leaf)

	fail := func(kind error, path string, err error) (*MoveResult, error) {
		return nil, &faults.Error{Kind: kind, Number: number, Step: "move", Path: path, Err: err}
	}

	if !m.folders.IsRoot(string(target)) {
		return fail(ErrUnknownRoot, string(target), nil)
	}

	info, err := os.Stat(currentPath)
	if err != nil {
		return fail(classifyIO(err), currentPath, err)
	}
	if !info.IsDir() {
		return fail(ErrPathNotFound, currentPath, errors.New("not a directory"))
	}

	destDir := filepath.Join(m.base, string(target))
	destInfo, err := os.Stat(destDir)
	if err != nil {
		return fail(classifyIO(err), destDir, err)
	}
	if !destInfo.IsDir() {
		return fail(ErrPathNotFound, destDir, errors.New("not a directory"))
	}

	result := &MoveResult{Number: number, OldPath: currentPath, To: target}
	if filepath.Dir(currentPath) == destDir {
		result.NewPath = currentPath
		return result, nil
	}

	newPath := filepath.Join(destDir, leaf)
	if _, err := os.Lstat(newPath); err == nil {
		return fail(ErrDestinationConflict, newPath, nil)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fail(classifyIO(err), newPath, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := m.rename(currentPath, newPath); err != nil {
		if !errors.Is(err, syscall.EXDEV) {
			return fail(classifyIO(err), currentPath, err)
		}
		if err := m.moveAcrossDevices(currentPath, newPath); err != nil {
			return nil, err
		}
	}
	result.NewPath = newPath
	result.Moved = true

	m.logger.Info("moved project folder", "number", number, "from", currentPath, "to", newPath)

	if target == m.folders.ActiveRoot() && m.provisioner != nil {
		provisioned, err := m.provisioner.ProvisionTemplates(ctx, newPath)
		result.Provisioned = provisioned
		if err != nil {
			result.ProvisionErr = err.Error()
			m.logger.Warn("template provisioning incomplete", "number", number, "path", newPath, "error", err)
		}
	}

	return result, nil
}

// moveAcrossDevices copies then deletes. Whatever the copy managed to write is
// removed again on failure so the source stays the only copy.
func (m *Mover) moveAcrossDevices(src, dst string) error {
	number := LeafPrefix(filepath.Base(src))
	if err := CopyTree(src, dst); err != nil {
		if cleanupErr := os.RemoveAll(dst); cleanupErr != nil {
			m.logger.Error("cleanup after failed copy", "number", number, "path", dst, "error", cleanupErr)
		}
		return &faults.Error{Kind: ErrPartialIO, Number: number, Step: "move:copy", Path: dst, Err: err}
	}
	if err := os.RemoveAll(src); err != nil {
		return &faults.Error{Kind: ErrPartialIO, Number: number, Step: "move:remove-source", Path: src, Err: err}
	}
	return nil
}

func classifyIO(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrPathNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrPermissionDenied
	default:
		return fmt.Errorf("folder io: %w", err)
	}
}
