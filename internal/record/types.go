package record

import (
	"time"
)

// Status represents the board state of an initiative.
type Status string

const (
	StatusDefine     Status = "define"
	StatusPrioritize Status = "prioritize"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusDefine, StatusPrioritize, StatusInProgress, StatusDone:
		return true
	default:
		return false
	}
}

// Phase represents the workflow state of an initiative. Phase and Status are
// orthogonal: no pairing between the two is enforced.
type Phase string

const (
	PhaseIdentify Phase = "IDENTIFY"
	PhasePlan     Phase = "PLAN"
	PhaseExecute  Phase = "EXECUTE"
	PhaseAnalyze  Phase = "ANALYZE"
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// IsValid returns true if the phase is a known value.
func (p Phase) IsValid() bool {
	switch p {
	case PhaseIdentify, PhasePlan, PhaseExecute, PhaseAnalyze:
		return true
	default:
		return false
	}
}

// Issue is a single operational issue record. HeatmapScore is a precomputed
// 0-100 priority indicator owned by the upstream tracker.
type Issue struct {
	ID           string
	Description  string
	Votes        int
	HeatmapScore float64
	Department   string
	Category     string
	Keywords     []string
	ClusterID    string
	CreatedAt    time.Time
	ResolvedAt   *time.Time
}

// Resolved reports whether the issue has been closed.
func (i Issue) Resolved() bool {
	return i.ResolvedAt != nil
}

// Assignment allocates a team's hours to an initiative.
type Assignment struct {
	TeamID         string
	InitiativeID   string
	HoursAllocated float64
	Role           string
}

// Initiative is a single strategic initiative record.
type Initiative struct {
	ID              string
	Title           string
	Status          Status
	Phase           Phase
	Progress        float64
	Budget          *float64
	Spent           *float64
	RealizedROI     *float64
	ProjectedROI    *float64
	TimelineStart   *time.Time
	TimelineEnd     *time.Time
	OwnerID         string
	AddressesIssues []string
	Assignments     []Assignment
}

// Active reports whether the initiative is still being worked.
func (in Initiative) Active() bool {
	return in.Status != StatusDone
}

// HasTimeline reports whether the initiative carries a usable timeline.
func (in Initiative) HasTimeline() bool {
	return in.TimelineStart != nil && in.TimelineEnd != nil && in.TimelineEnd.After(*in.TimelineStart)
}

// ExpectedProgressAt returns the linearly interpolated expected progress (0-100)
// for the given instant, clamped to the timeline bounds. The second return is
// false when the initiative has no usable timeline.
func (in Initiative) ExpectedProgressAt(now time.Time) (float64, bool) {
	if !in.HasTimeline() {
		return 0, false
	}
	total := in.TimelineEnd.Sub(*in.TimelineStart)
	elapsed := now.Sub(*in.TimelineStart)
	if elapsed <= 0 {
		return 0, true
	}
	if elapsed >= total {
		return 100, true
	}
	return float64(elapsed) / float64(total) * 100, true
}

// DaysToDeadline returns whole days until the timeline end, negative when the
// deadline has passed. The second return is false without a timeline end.
func (in Initiative) DaysToDeadline(now time.Time) (int, bool) {
	if in.TimelineEnd == nil {
		return 0, false
	}
	return int(in.TimelineEnd.Sub(now).Hours() / 24), true
}

// LeadTeamID returns the team id of the lead assignment, or the first
// assignment when no lead role is present.
func (in Initiative) LeadTeamID() string {
	for _, a := range in.Assignments {
		if a.Role == "lead" {
			return a.TeamID
		}
	}
	if len(in.Assignments) > 0 {
		return in.Assignments[0].TeamID
	}
	return ""
}

// Team is a delivery team with a weekly hour capacity.
type Team struct {
	ID         string
	Name       string
	Department string
	Capacity   float64
}

// Snapshot is an immutable view of the record store taken at a single instant.
// All analytics are pure functions of a snapshot; nothing writes back.
type Snapshot struct {
	Issues      []Issue
	Initiatives []Initiative
	Teams       []Team
	FetchedAt   time.Time
}

// Availability records which collections of a snapshot were actually readable.
// A failed collection leaves its slice empty and its flag false so each
// sub-engine can degrade independently.
type Availability struct {
	Issues      bool
	Initiatives bool
	Teams       bool
	Notes       []string
}

// AllAvailable reports whether every collection was fetched.
func (a Availability) AllAvailable() bool {
	return a.Issues && a.Initiatives && a.Teams
}

// IssueByID returns the issue with the given id, if present.
func (s Snapshot) IssueByID(id string) (Issue, bool) {
	for _, iss := range s.Issues {
		if iss.ID == id {
			return iss, true
		}
	}
	return Issue{}, false
}

// InitiativeByID returns the initiative with the given id, if present.
func (s Snapshot) InitiativeByID(id string) (Initiative, bool) {
	for _, in := range s.Initiatives {
		if in.ID == id {
			return in, true
		}
	}
	return Initiative{}, false
}

// TeamByID returns the team with the given id, if present.
func (s Snapshot) TeamByID(id string) (Team, bool) {
	for _, t := range s.Teams {
		if t.ID == id {
			return t, true
		}
	}
	return Team{}, false
}
