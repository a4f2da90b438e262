package record

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type rawIssueDocument struct {
	Kind   string     `yaml:"kind"`
	Issues []rawIssue `yaml:"issues"`
}

type rawIssue struct {
	ID           string   `yaml:"issue_id"`
	Description  string   `yaml:"description"`
	Votes        *int     `yaml:"votes"`
	HeatmapScore *float64 `yaml:"heatmap_score"`
	Department   string   `yaml:"department"`
	Category     string   `yaml:"category"`
	Keywords     []string `yaml:"keywords"`
	ClusterID    string   `yaml:"cluster_id"`
	CreatedAt    string   `yaml:"created_at"`
	ResolvedAt   string   `yaml:"resolved_at"`
}

type rawInitiativeDocument struct {
	Kind        string          `yaml:"kind"`
	Initiatives []rawInitiative `yaml:"initiatives"`
}

type rawInitiative struct {
	ID              string          `yaml:"initiative_id"`
	Title           string          `yaml:"title"`
	Status          string          `yaml:"status"`
	Phase           string          `yaml:"phase"`
	Progress        *float64        `yaml:"progress"`
	Budget          *float64        `yaml:"budget"`
	Spent           *float64        `yaml:"spent"`
	RealizedROI     *float64        `yaml:"realized_roi"`
	ProjectedROI    *float64        `yaml:"projected_roi"`
	TimelineStart   string          `yaml:"timeline_start"`
	TimelineEnd     string          `yaml:"timeline_end"`
	OwnerID         string          `yaml:"owner_id"`
	AddressesIssues []string        `yaml:"addresses_issues"`
	Assignments     []rawAssignment `yaml:"assignments"`
}

type rawAssignment struct {
	TeamID         string   `yaml:"team_id"`
	HoursAllocated *float64 `yaml:"hours_allocated"`
	Role           string   `yaml:"role"`
}

type rawTeamDocument struct {
	Kind  string    `yaml:"kind"`
	Teams []rawTeam `yaml:"teams"`
}

type rawTeam struct {
	ID         string   `yaml:"team_id"`
	Name       string   `yaml:"name"`
	Department string   `yaml:"department"`
	Capacity   *float64 `yaml:"capacity"`
}

// ValidationError captures a single field-specific validation issue.
type ValidationError struct {
	File    string
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.File, e.Field, e.Message)
}

// ValidationErrors aggregates multiple validation problems.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "\n")
}

// ParseIssues unmarshals and validates an issue document.
func ParseIssues(data []byte, source string) ([]Issue, error) {
	var raw rawIssueDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, ValidationErrors{{File: source, Field: "yaml", Message: err.Error()}}
	}
	if raw.Kind != "issues" {
		return nil, ValidationErrors{{File: source, Field: "kind", Message: fmt.Sprintf("expected kind %q, got %q", "issues", raw.Kind)}}
	}

	var errs ValidationErrors
	ids := make(map[string]struct{})
	issues := make([]Issue, 0, len(raw.Issues))

	for idx, ri := range raw.Issues {
		path := fmt.Sprintf("issues[%d]", idx)
		if ri.ID == "" {
			errs = append(errs, ValidationError{File: source, Field: path + ".issue_id", Message: "is required"})
		} else if _, dup := ids[ri.ID]; dup {
			errs = append(errs, ValidationError{File: source, Field: path + ".issue_id", Message: fmt.Sprintf("duplicate issue_id %q", ri.ID)})
		} else {
			ids[ri.ID] = struct{}{}
		}

		issue := Issue{
			ID:          ri.ID,
			Description: ri.Description,
			Department:  strings.TrimSpace(ri.Department),
			Category:    strings.TrimSpace(ri.Category),
			Keywords:    trimAll(ri.Keywords),
			ClusterID:   ri.ClusterID,
		}

		if ri.Votes != nil {
			if *ri.Votes < 0 {
				errs = append(errs, ValidationError{File: source, Field: path + ".votes", Message: "must be >= 0"})
			} else {
				issue.Votes = *ri.Votes
			}
		}
		if ri.HeatmapScore != nil {
			if *ri.HeatmapScore < 0 || *ri.HeatmapScore > 100 {
				errs = append(errs, ValidationError{File: source, Field: path + ".heatmap_score", Message: "must be in [0,100]"})
			} else {
				issue.HeatmapScore = *ri.HeatmapScore
			}
		}
		if ri.CreatedAt != "" {
			t, err := parseTimestamp(ri.CreatedAt)
			if err != nil {
				errs = append(errs, ValidationError{File: source, Field: path + ".created_at", Message: err.Error()})
			} else {
				issue.CreatedAt = t
			}
		}
		if ri.ResolvedAt != "" {
			t, err := parseTimestamp(ri.ResolvedAt)
			if err != nil {
				errs = append(errs, ValidationError{File: source, Field: path + ".resolved_at", Message: err.Error()})
			} else {
				issue.ResolvedAt = &t
			}
		}

		issues = append(issues, issue)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return issues, nil
}

// ParseInitiatives unmarshals and validates an initiative document.
func ParseInitiatives(data []byte, source string) ([]Initiative, error) {
	var raw rawInitiativeDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, ValidationErrors{{File: source, Field: "yaml", Message: err.Error()}}
	}
	if raw.Kind != "initiatives" {
		return nil, ValidationErrors{{File: source, Field: "kind", Message: fmt.Sprintf("expected kind %q, got %q", "initiatives", raw.Kind)}}
	}

	var errs ValidationErrors
	ids := make(map[string]struct{})
	initiatives := make([]Initiative, 0, len(raw.Initiatives))

	for idx, ri := range raw.Initiatives {
		path := fmt.Sprintf("initiatives[%d]", idx)
		if ri.ID == "" {
			errs = append(errs, ValidationError{File: source, Field: path + ".initiative_id", Message: "is required"})
		} else if _, dup := ids[ri.ID]; dup {
			errs = append(errs, ValidationError{File: source, Field: path + ".initiative_id", Message: fmt.Sprintf("duplicate initiative_id %q", ri.ID)})
		} else {
			ids[ri.ID] = struct{}{}
		}

		in := Initiative{
			ID:              ri.ID,
			Title:           ri.Title,
			Status:          Status(ri.Status),
			Phase:           Phase(ri.Phase),
			Budget:          ri.Budget,
			Spent:           ri.Spent,
			RealizedROI:     ri.RealizedROI,
			ProjectedROI:    ri.ProjectedROI,
			OwnerID:         ri.OwnerID,
			AddressesIssues: trimAll(ri.AddressesIssues),
		}

		if !in.Status.IsValid() {
			errs = append(errs, ValidationError{File: source, Field: path + ".status", Message: fmt.Sprintf("unknown status %q", ri.Status)})
		}
		if ri.Phase != "" && !in.Phase.IsValid() {
			errs = append(errs, ValidationError{File: source, Field: path + ".phase", Message: fmt.Sprintf("unknown phase %q", ri.Phase)})
		}
		if ri.Progress != nil {
			if *ri.Progress < 0 || *ri.Progress > 100 {
				errs = append(errs, ValidationError{File: source, Field: path + ".progress", Message: "must be in [0,100]"})
			} else {
				in.Progress = *ri.Progress
			}
		}
		if ri.Budget != nil && *ri.Budget < 0 {
			errs = append(errs, ValidationError{File: source, Field: path + ".budget", Message: "must be >= 0"})
		}
		if ri.TimelineStart != "" {
			t, err := parseTimestamp(ri.TimelineStart)
			if err != nil {
				errs = append(errs, ValidationError{File: source, Field: path + ".timeline_start", Message: err.Error()})
			} else {
				in.TimelineStart = &t
			}
		}
		if ri.TimelineEnd != "" {
			t, err := parseTimestamp(ri.TimelineEnd)
			if err != nil {
				errs = append(errs, ValidationError{File: source, Field: path + ".timeline_end", Message: err.Error()})
			} else {
				in.TimelineEnd = &t
			}
		}

		for aIdx, ra := range ri.Assignments {
			aPath := fmt.Sprintf("%s.assignments[%d]", path, aIdx)
			if ra.TeamID == "" {
				errs = append(errs, ValidationError{File: source, Field: aPath + ".team_id", Message: "is required"})
			}
			hours := 0.0
			if ra.HoursAllocated != nil {
				if *ra.HoursAllocated < 0 {
					errs = append(errs, ValidationError{File: source, Field: aPath + ".hours_allocated", Message: "must be >= 0"})
				} else {
					hours = *ra.HoursAllocated
				}
			}
			in.Assignments = append(in.Assignments, Assignment{
				TeamID:         ra.TeamID,
				InitiativeID:   ri.ID,
				HoursAllocated: hours,
				Role:           ra.Role,
			})
		}

		initiatives = append(initiatives, in)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return initiatives, nil
}

// ParseTeams unmarshals and validates a team document.
func ParseTeams(data []byte, source string) ([]Team, error) {
	var raw rawTeamDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, ValidationErrors{{File: source, Field: "yaml", Message: err.Error()}}
	}
	if raw.Kind != "teams" {
		return nil, ValidationErrors{{File: source, Field: "kind", Message: fmt.Sprintf("expected kind %q, got %q", "teams", raw.Kind)}}
	}

	var errs ValidationErrors
	ids := make(map[string]struct{})
	teams := make([]Team, 0, len(raw.Teams))

	for idx, rt := range raw.Teams {
		path := fmt.Sprintf("teams[%d]", idx)
		if rt.ID == "" {
			errs = append(errs, ValidationError{File: source, Field: path + ".team_id", Message: "is required"})
		} else if _, dup := ids[rt.ID]; dup {
			errs = append(errs, ValidationError{File: source, Field: path + ".team_id", Message: fmt.Sprintf("duplicate team_id %q", rt.ID)})
		} else {
			ids[rt.ID] = struct{}{}
		}

		team := Team{
			ID:         rt.ID,
			Name:       rt.Name,
			Department: strings.TrimSpace(rt.Department),
		}
		if rt.Capacity == nil {
			errs = append(errs, ValidationError{File: source, Field: path + ".capacity", Message: "is required"})
		} else if *rt.Capacity <= 0 {
			errs = append(errs, ValidationError{File: source, Field: path + ".capacity", Message: "must be > 0"})
		} else {
			team.Capacity = *rt.Capacity
		}

		teams = append(teams, team)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return teams, nil
}

// parseTimestamp accepts RFC3339 or plain dates (YYYY-MM-DD), always UTC.
func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q (want RFC3339 or YYYY-MM-DD)", value)
}

func trimAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
