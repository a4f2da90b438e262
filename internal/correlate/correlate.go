// Package correlate finds the issues, initiatives, and candidate root causes
// related to a cluster or an initiative.
package correlate

import (
	"fmt"
	"sort"
	"strings"

	"compass/internal/cluster"
	"compass/internal/record"
)

// EntityType selects what kind of entity a correlation query targets.
type EntityType string

const (
	EntityCluster    EntityType = "cluster"
	EntityInitiative EntityType = "initiative"
)

// IsValid returns true if the entity type is a known value.
func (t EntityType) IsValid() bool {
	return t == EntityCluster || t == EntityInitiative
}

// IssueRef is a lightweight reference to a related issue.
type IssueRef struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// InitiativeRef is a lightweight reference to a related initiative.
type InitiativeRef struct {
	ID     string        `json:"id"`
	Title  string        `json:"title"`
	Status record.Status `json:"status"`
}

// Result is the full correlation output for one entity. All collections are
// empty, never nil-vs-error, when nothing relates.
type Result struct {
	EntityID            string          `json:"entity_id"`
	EntityType          EntityType      `json:"entity_type"`
	RelatedIssues       []IssueRef      `json:"related_issues"`
	RelatedInitiatives  []InitiativeRef `json:"related_initiatives"`
	RootCauses          []string        `json:"root_causes"`
	ContributingFactors []string        `json:"contributing_factors"`
}

// maxRootCauses bounds the frequency-ranked root cause fragments returned.
const maxRootCauses = 3

// Correlate resolves related entities and root-cause candidates for the given
// entity. Unknown ids or entity types produce an empty result, not an error.
func Correlate(snap record.Snapshot, clusters []cluster.Cluster, entityID string, entityType EntityType) Result {
	res := Result{EntityID: entityID, EntityType: entityType}
	if !entityType.IsValid() {
		return res
	}

	switch entityType {
	case EntityCluster:
		correlateCluster(snap, clusters, entityID, &res)
	case EntityInitiative:
		correlateInitiative(snap, entityID, &res)
	}

	res.RootCauses = rootCauses(snap, res.RelatedIssues)
	res.ContributingFactors = contributingFactors(snap, res.RelatedIssues)
	return res
}

func correlateCluster(snap record.Snapshot, clusters []cluster.Cluster, clusterID string, res *Result) {
	var target *cluster.Cluster
	for i := range clusters {
		if clusters[i].ID == clusterID || clusters[i].Label == clusterID {
			target = &clusters[i]
			break
		}
	}
	if target == nil {
		return
	}

	memberSet := make(map[string]struct{}, len(target.IssueIDs))
	for _, id := range target.IssueIDs {
		memberSet[id] = struct{}{}
		if issue, ok := snap.IssueByID(id); ok {
			res.RelatedIssues = append(res.RelatedIssues, IssueRef{ID: issue.ID, Description: issue.Description})
		}
	}

	dominantDept := target.DominantDepartment(snap)
	for _, in := range snap.Initiatives {
		if addressesAny(in, memberSet) || (dominantDept != "" && initiativeDepartment(snap, in) == dominantDept) {
			res.RelatedInitiatives = append(res.RelatedInitiatives, InitiativeRef{ID: in.ID, Title: in.Title, Status: in.Status})
		}
	}
}

func correlateInitiative(snap record.Snapshot, initiativeID string, res *Result) {
	in, ok := snap.InitiativeByID(initiativeID)
	if !ok {
		return
	}

	seen := make(map[string]struct{})
	addIssue := func(issue record.Issue) {
		if _, dup := seen[issue.ID]; dup {
			return
		}
		seen[issue.ID] = struct{}{}
		res.RelatedIssues = append(res.RelatedIssues, IssueRef{ID: issue.ID, Description: issue.Description})
	}

	// Explicitly addressed issues first, in declaration order.
	for _, id := range in.AddressesIssues {
		if issue, ok := snap.IssueByID(id); ok {
			addIssue(issue)
		}
	}

	// Then issues sharing the lead assignment's department.
	dept := initiativeDepartment(snap, in)
	if dept != "" {
		for _, issue := range snap.Issues {
			if issue.Department == dept {
				addIssue(issue)
			}
		}
	}

	addressed := make(map[string]struct{}, len(in.AddressesIssues))
	for _, id := range in.AddressesIssues {
		addressed[id] = struct{}{}
	}
	for _, other := range snap.Initiatives {
		if other.ID == in.ID {
			continue
		}
		if addressesAny(other, addressed) || (dept != "" && initiativeDepartment(snap, other) == dept) {
			res.RelatedInitiatives = append(res.RelatedInitiatives, InitiativeRef{ID: other.ID, Title: other.Title, Status: other.Status})
		}
	}
}

// initiativeDepartment resolves the department of the initiative's lead team.
func initiativeDepartment(snap record.Snapshot, in record.Initiative) string {
	teamID := in.LeadTeamID()
	if teamID == "" {
		return ""
	}
	team, ok := snap.TeamByID(teamID)
	if !ok {
		return ""
	}
	return team.Department
}

func addressesAny(in record.Initiative, ids map[string]struct{}) bool {
	for _, id := range in.AddressesIssues {
		if _, ok := ids[id]; ok {
			return true
		}
	}
	return false
}

// rootCauses ranks the keyword multiset across related issues by frequency
// and renders the top terms as natural-language fragments. Ties keep
// first-seen order so output is deterministic.
func rootCauses(snap record.Snapshot, related []IssueRef) []string {
	counts := make(map[string]int)
	var order []string
	for _, ref := range related {
		issue, ok := snap.IssueByID(ref.ID)
		if !ok {
			continue
		}
		for _, kw := range issue.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			if _, seen := counts[kw]; !seen {
				order = append(order, kw)
			}
			counts[kw]++
		}
	}
	if len(order) == 0 {
		return nil
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > maxRootCauses {
		order = order[:maxRootCauses]
	}

	causes := make([]string, 0, len(order))
	for _, kw := range order {
		if counts[kw] > 1 {
			causes = append(causes, fmt.Sprintf("Recurring theme %q appears across %d related issues", kw, counts[kw]))
		} else {
			causes = append(causes, fmt.Sprintf("Theme %q raised by a related issue", kw))
		}
	}
	return causes
}

// contributingFactors surfaces secondary signals: demand concentration by
// votes and externally scored severity via the heatmap indicator.
func contributingFactors(snap record.Snapshot, related []IssueRef) []string {
	var factors []string

	totalVotes := 0
	hot := 0
	unresolved := 0
	for _, ref := range related {
		issue, ok := snap.IssueByID(ref.ID)
		if !ok {
			continue
		}
		totalVotes += issue.Votes
		if issue.HeatmapScore >= 70 {
			hot++
		}
		if !issue.Resolved() {
			unresolved++
		}
	}

	if totalVotes > 0 {
		factors = append(factors, fmt.Sprintf("Related issues carry %d combined votes", totalVotes))
	}
	if hot > 0 {
		factors = append(factors, fmt.Sprintf("%d related issue(s) score 70+ on the priority heatmap", hot))
	}
	if unresolved > 0 {
		factors = append(factors, fmt.Sprintf("%d related issue(s) remain unresolved", unresolved))
	}
	return factors
}
