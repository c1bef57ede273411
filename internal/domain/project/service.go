package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ganot/feeflow/internal/domain/folder"
	"github.com/ganot/feeflow/internal/domain/status"
	"github.com/ganot/feeflow/internal/repository"
)

// Service creates and reads projects.
type Service struct {
	repo     Repository
	resolver *folder.Resolver
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new project service. The resolver decides where new
// project folders are created.
func NewService(repo Repository, resolver *folder.Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, resolver: resolver, logger: logger, now: time.Now}
}

// CreateRequest defines project creation inputs. A zero Seq allocates the
// next free sequence for Year and Country.
type CreateRequest struct {
	Year      int
	Country   int
	Seq       int
	Name      string
	ShortName string
	Status    status.Status
}

// CreateResult is the created record and its new folder.
type CreateResult struct {
	Project *Project        `json:"project"`
	Folder  folder.Location `json:"folder"`
}

// Create stores a project and creates its folder under the root matching its
// initial status. The folder is created first and removed again if the
// record cannot be stored.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.ShortName = strings.TrimSpace(req.ShortName)
	if req.ShortName == "" {
		req.ShortName = req.Name
	}
	if req.Name == "" || strings.ContainsAny(req.ShortName, `/\`) || strings.HasPrefix(req.ShortName, ".") {
		return nil, fmt.Errorf("%w: name %q", ErrInvalidInput, req.ShortName)
	}
	if req.Status == "" {
		req.Status = status.RFP
	}
	if !status.Valid(status.KindProject, req.Status) {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidInput, req.Status)
	}

	seq := req.Seq
	if seq == 0 {
		next, err := s.NextSequence(ctx, req.Year, req.Country)
		if err != nil {
			return nil, err
		}
		seq = next
	}
	num, err := folder.NewNumber(req.Year, req.Country, seq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	number := num.String()

	if _, err := s.repo.Get(ctx, number); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, number)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("checking project %s: %w", number, err)
	}
	if loc, err := s.resolver.Locate(ctx, number); err == nil || errors.Is(err, folder.ErrAmbiguousMatch) {
		return nil, fmt.Errorf("%w: folder %s exists", ErrAlreadyExists, loc.Path)
	} else if !errors.Is(err, folder.ErrNotFound) {
		return nil, err
	}

	root, err := s.resolver.Folders().ResolveFolder(req.Status)
	if err != nil {
		return nil, err
	}
	name := folder.LeafName(number, req.ShortName)
	path := filepath.Join(s.resolver.RootPath(root), name)
	if err := os.MkdirAll(s.resolver.RootPath(root), 0o755); err != nil {
		return nil, fmt.Errorf("creating root %s: %w", root, err)
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating project folder: %w", err)
	}

	now := s.now().UTC()
	proj := &Project{
		Number:    number,
		Year:      num.Year,
		Country:   num.Country,
		Seq:       num.Seq,
		Name:      req.Name,
		ShortName: req.ShortName,
		Status:    req.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, proj); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			s.logger.Warn("project folder left behind", "number", number, "path", path, "error", rmErr)
		}
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, number)
		}
		return nil, fmt.Errorf("creating project: %w", err)
	}

	s.logger.Info("project created", "number", number, "status", req.Status, "path", path)
	return &CreateResult{
		Project: proj,
		Folder:  folder.Location{Number: number, Root: root, Name: name, Path: path},
	}, nil
}

// NextSequence returns the next free sequence for year and country.
func (s *Service) NextSequence(ctx context.Context, year, country int) (int, error) {
	if _, err := folder.NewNumber(year, country, 1); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	max, err := s.repo.MaxSequence(ctx, year, country)
	if err != nil {
		return 0, fmt.Errorf("reading sequence: %w", err)
	}
	if max >= 99 {
		return 0, fmt.Errorf("%w: %02d-%d", ErrSequenceExhausted, year, country)
	}
	return max + 1, nil
}

// Get fetches a project by canonical number.
func (s *Service) Get(ctx context.Context, number string) (*Project, error) {
	proj, err := s.repo.Get(ctx, number)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, number)
		}
		return nil, fmt.Errorf("getting project: %w", err)
	}
	return proj, nil
}

// List returns projects matching opts.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Project, error) {
	return s.repo.List(ctx, opts)
}
