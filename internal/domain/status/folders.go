package status

import (
	"fmt"
	"strings"
)

// Root is a canonical status folder directly below the base path.
type Root string

// RootNames names the four canonical roots.
type RootNames struct {
	Inactive  string `yaml:"inactive"`
	RFPs      string `yaml:"rfps"`
	Current   string `yaml:"current"`
	Completed string `yaml:"completed"`
}

// DefaultRootNames returns the folder names used on the shared project drive.
func DefaultRootNames() RootNames {
	return RootNames{
		Inactive:  "00 Inactive",
		RFPs:      "01 RFPs",
		Current:   "11 Current",
		Completed: "99 Completed",
	}
}

// Mapping assigns a project status to a canonical root.
type Mapping struct {
	Status Status
	Root   Root
}

// Resolution is the reverse lookup of a folder. Candidates is authoritative;
// Representative is only the preferred display value.
type Resolution struct {
	Root           Root     `json:"root"`
	Representative Status   `json:"representative"`
	Candidates     []Status `json:"candidates"`
}

// Contains reports whether s is one of the candidate statuses.
func (r Resolution) Contains(s Status) bool {
	for _, c := range r.Candidates {
		if c == s {
			return true
		}
	}
	return false
}

// FolderMap is the single source of the project status to folder relationship.
// Several statuses may share a root; every status has exactly one root.
type FolderMap struct {
	roots    []Root
	active   Root
	byStatus map[Status]Root
	byRoot   map[Root][]Status
}

// NewFolderMap validates and builds a folder map. roots is given in search
// priority order; active is the root an award moves a project into.
func NewFolderMap(roots []Root, active Root, mappings []Mapping) (*FolderMap, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("%w: no roots", ErrInvalidMapping)
	}

	m := &FolderMap{
		roots:    make([]Root, 0, len(roots)),
		active:   active,
		byStatus: make(map[Status]Root, len(mappings)),
		byRoot:   make(map[Root][]Status, len(roots)),
	}
	for _, root := range roots {
		name := strings.TrimSpace(string(root))
		if name == "" || strings.ContainsAny(name, `/\`) {
			return nil, fmt.Errorf("%w: bad root name %q", ErrInvalidMapping, root)
		}
		if _, dup := m.byRoot[root]; dup {
			return nil, fmt.Errorf("%w: duplicate root %q", ErrInvalidMapping, root)
		}
		m.byRoot[root] = nil
		m.roots = append(m.roots, root)
	}
	if _, ok := m.byRoot[active]; !ok {
		return nil, fmt.Errorf("%w: active root %q is not a root", ErrInvalidMapping, active)
	}

	for _, mp := range mappings {
		if !Valid(KindProject, mp.Status) {
			return nil, fmt.Errorf("%w: %q is not a project status", ErrInvalidMapping, mp.Status)
		}
		if _, ok := m.byRoot[mp.Root]; !ok {
			return nil, fmt.Errorf("%w: %q maps to unknown root %q", ErrInvalidMapping, mp.Status, mp.Root)
		}
		if prev, dup := m.byStatus[mp.Status]; dup {
			return nil, fmt.Errorf("%w: %q maps to both %q and %q", ErrInvalidMapping, mp.Status, prev, mp.Root)
		}
		m.byStatus[mp.Status] = mp.Root
		m.byRoot[mp.Root] = append(m.byRoot[mp.Root], mp.Status)
	}

	for _, s := range Statuses(KindProject) {
		if _, ok := m.byStatus[s]; !ok {
			return nil, fmt.Errorf("%w: %q has no root", ErrInvalidMapping, s)
		}
	}
	for _, root := range m.roots {
		if len(m.byRoot[root]) == 0 {
			return nil, fmt.Errorf("%w: root %q represents no status", ErrInvalidMapping, root)
		}
	}

	return m, nil
}

// NewDefaultFolderMap builds the standard mapping over the given root names.
func NewDefaultFolderMap(names RootNames) (*FolderMap, error) {
	inactive := Root(names.Inactive)
	rfps := Root(names.RFPs)
	current := Root(names.Current)
	completed := Root(names.Completed)

	return NewFolderMap(
		[]Root{inactive, rfps, current, completed},
		current,
		[]Mapping{
			{Status: RFP, Root: rfps},
			{Status: Draft, Root: rfps},
			{Status: Active, Root: current},
			{Status: Completed, Root: completed},
			{Status: Cancelled, Root: inactive},
			{Status: Lost, Root: inactive},
			{Status: OnHold, Root: inactive},
		},
	)
}

// DefaultFolderMap returns the standard mapping over the default root names.
func DefaultFolderMap() *FolderMap {
	m, err := NewDefaultFolderMap(DefaultRootNames())
	if err != nil {
		panic(err)
	}
	return m
}

// ResolveFolder returns the canonical root for a project status.
func (m *FolderMap) ResolveFolder(s Status) (Root, error) {
	root, ok := m.byStatus[s]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return root, nil
}

// ResolveStatus returns every status the folder segment may represent.
func (m *FolderMap) ResolveStatus(folder string) (Resolution, error) {
	statuses, ok := m.byRoot[Root(folder)]
	if !ok {
		return Resolution{}, fmt.Errorf("%w: %q", ErrUnknownFolder, folder)
	}
	return Resolution{
		Root:           Root(folder),
		Representative: statuses[0],
		Candidates:     append([]Status(nil), statuses...),
	}, nil
}

// Roots returns the canonical roots in search priority order.
func (m *FolderMap) Roots() []Root {
	return append([]Root(nil), m.roots...)
}

// ActiveRoot returns the root that represents awarded, ongoing work.
func (m *FolderMap) ActiveRoot() Root {
	return m.active
}

// IsRoot reports whether name is one of the canonical roots.
func (m *FolderMap) IsRoot(name string) bool {
	_, ok := m.byRoot[Root(name)]
	return ok
}

// Priority returns the search position of root, or -1 when unknown.
func (m *FolderMap) Priority(root Root) int {
	for i, r := range m.roots {
		if r == root {
			return i
		}
	}
	return -1
}
