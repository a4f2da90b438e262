package record

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Repository supplies read-only record collections. Each collection may fail
// independently; callers use FetchSnapshot to collect whatever is readable.
type Repository interface {
	Issues(ctx context.Context) ([]Issue, error)
	Initiatives(ctx context.Context) ([]Initiative, error)
	Teams(ctx context.Context) ([]Team, error)
}

// Well-known record file names inside a workspace records directory.
const (
	IssuesFile      = "issues.yml"
	InitiativesFile = "initiatives.yml"
	TeamsFile       = "teams.yml"
)

// DirRepository reads record collections from YAML files in a directory.
type DirRepository struct {
	Dir string
}

// NewDirRepository returns a repository rooted at the given records directory.
func NewDirRepository(dir string) *DirRepository {
	return &DirRepository{Dir: dir}
}

// Issues loads and validates the issue collection.
func (r *DirRepository) Issues(ctx context.Context) ([]Issue, error) {
	_ = ctx
	path := filepath.Join(r.Dir, IssuesFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read issues: %w", err)
	}
	return ParseIssues(data, path)
}

// Initiatives loads and validates the initiative collection.
func (r *DirRepository) Initiatives(ctx context.Context) ([]Initiative, error) {
	_ = ctx
	path := filepath.Join(r.Dir, InitiativesFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read initiatives: %w", err)
	}
	return ParseInitiatives(data, path)
}

// Teams loads and validates the team collection.
func (r *DirRepository) Teams(ctx context.Context) ([]Team, error) {
	_ = ctx
	path := filepath.Join(r.Dir, TeamsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read teams: %w", err)
	}
	return ParseTeams(data, path)
}

// FetchSnapshot collects all three record collections from the repository.
// A failed collection is logged, left empty, and marked unavailable; it never
// fails the whole fetch, so one unreadable source cannot block unrelated
// analytics.
func FetchSnapshot(ctx context.Context, repo Repository, logger *zap.Logger, now time.Time) (Snapshot, Availability) {
	if logger == nil {
		logger = zap.NewNop()
	}
	snap := Snapshot{FetchedAt: now}
	avail := Availability{}

	if issues, err := repo.Issues(ctx); err != nil {
		avail.Notes = append(avail.Notes, fmt.Sprintf("issues unavailable: %v", err))
		logger.Warn("issues unavailable", zap.Error(err))
	} else {
		snap.Issues = issues
		avail.Issues = true
	}

	if initiatives, err := repo.Initiatives(ctx); err != nil {
		avail.Notes = append(avail.Notes, fmt.Sprintf("initiatives unavailable: %v", err))
		logger.Warn("initiatives unavailable", zap.Error(err))
	} else {
		snap.Initiatives = initiatives
		avail.Initiatives = true
	}

	if teams, err := repo.Teams(ctx); err != nil {
		avail.Notes = append(avail.Notes, fmt.Sprintf("teams unavailable: %v", err))
		logger.Warn("teams unavailable", zap.Error(err))
	} else {
		snap.Teams = teams
		avail.Teams = true
	}

	return snap, avail
}
