package folder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/ganot/feeflow/internal/domain/status"
	"github.com/ganot/feeflow/internal/faults"
)

// Location is where a project folder was found.
type Location struct {
	Number string      `json:"number"`
	Root   status.Root `json:"root"`
	Name   string      `json:"name"`
	Path   string      `json:"path"`
}

// Resolver finds project folders below the canonical roots of a base path.
type Resolver struct {
	base    string
	folders *status.FolderMap
}

// NewResolver creates a resolver over base.
func NewResolver(base string, folders *status.FolderMap) *Resolver {
	return &Resolver{base: filepath.Clean(base), folders: folders}
}

// Base returns the base path the resolver searches.
func (r *Resolver) Base() string { return r.base }

// Folders returns the status folder map used to name the roots.
func (r *Resolver) Folders() *status.FolderMap { return r.folders }

// RootPath returns the absolute path of a canonical root.
func (r *Resolver) RootPath(root status.Root) string {
	return filepath.Join(r.base, string(root))
}

// Locate searches every root in priority order for a folder whose leaf prefix
// equals number. More than one match is reported as ambiguous, never resolved.
func (r *Resolver) Locate(ctx context.Context, number string) (Location, error) {
	if _, err := ParseNumber(number); err != nil {
		return Location{}, faults.New(faults.ErrInvalidInput, number, "locate", err)
	}

	var matches []Location
	for _, root := range r.folders.Roots() {
		if err := ctx.Err(); err != nil {
			return Location{}, err
		}
		entries, err := r.readRoot(root)
		if err != nil {
			return Location{}, faults.New(faults.Classify(err), number, "locate", err)
		}
		for _, entry := range entries {
			if !entry.IsDir() || LeafPrefix(entry.Name()) != number {
				continue
			}
			matches = append(matches, Location{
				Number: number,
				Root:   root,
				Name:   entry.Name(),
				Path:   filepath.Join(r.RootPath(root), entry.Name()),
			})
		}
	}

	switch len(matches) {
	case 0:
		return Location{}, &faults.Error{Kind: ErrNotFound, Number: number, Step: "locate", Path: r.base}
	case 1:
		return matches[0], nil
	default:
		return matches[0], &AmbiguousMatchError{Number: number, Matches: matches}
	}
}

// List returns the project folders directly below root, sorted by name.
// Entries that do not start like a project number are skipped.
func (r *Resolver) List(ctx context.Context, root status.Root) ([]Location, error) {
	if !r.folders.IsRoot(string(root)) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRoot, root)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := r.readRoot(root)
	if err != nil {
		return nil, err
	}

	var out []Location
	for _, entry := range entries {
		if !entry.IsDir() || !LooksLikeProject(entry.Name()) {
			continue
		}
		out = append(out, Location{
			Number: LeafPrefix(entry.Name()),
			Root:   root,
			Name:   entry.Name(),
			Path:   filepath.Join(r.RootPath(root), entry.Name()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// readRoot lists a root directory. A missing root is treated as empty.
func (r *Resolver) readRoot(root status.Root) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(r.RootPath(root))
	if err == nil {
		return entries, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if errors.Is(err, fs.ErrPermission) {
		return nil, fmt.Errorf("%w: %v", faults.ErrPermission, err)
	}
	return nil, fmt.Errorf("read root %q: %w", root, err)
}
