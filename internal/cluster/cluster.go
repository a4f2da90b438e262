// Package cluster groups issues into labeled theme clusters by shared
// category, department, or keyword.
package cluster

import (
	"fmt"
	"regexp"
	"strings"

	"compass/internal/record"
)

// DefaultMaxClusters bounds how many clusters a single run surfaces.
const DefaultMaxClusters = 12

// GeneralLabel is the fallback theme for issues matching no discriminator.
const GeneralLabel = "General"

// MinClusterSize is the smallest group that is surfaced as a cluster.
const MinClusterSize = 2

// Cluster is a group of at least two issues sharing a theme.
type Cluster struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	IssueIDs  []string `json:"issue_ids"`
	Rationale string   `json:"rationale"`
}

// keywordPattern matches a whole lowercase alphabetic token of length >= 5.
// Boundaries keep capitalized words and mixed-case fragments out.
var keywordPattern = regexp.MustCompile(`\b[a-z]{5,}\b`)

// Assign groups issues into clusters. The discriminator key for each issue is
// category, then department, then first keyword, then "General". Keys keep
// first-seen order; that ordering is part of the contract, including when the
// result is truncated to maxClusters (encounter order, not size order).
// Groups smaller than MinClusterSize are dropped. Issues already carrying a
// cluster id are re-clustered from scratch; an issue lands in at most one
// cluster per run.
func Assign(issues []record.Issue, maxClusters int) []Cluster {
	if maxClusters <= 0 {
		maxClusters = DefaultMaxClusters
	}
	if len(issues) == 0 {
		return nil
	}

	// Insertion-ordered grouping: the key slice preserves encounter order,
	// the map holds members.
	var order []string
	groups := make(map[string][]string)
	seen := make(map[string]struct{}, len(issues))

	for _, issue := range issues {
		if issue.ID == "" {
			continue
		}
		if _, dup := seen[issue.ID]; dup {
			continue
		}
		seen[issue.ID] = struct{}{}

		key := keyFor(issue)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], issue.ID)
	}

	clusters := make([]Cluster, 0, len(order))
	for _, label := range order {
		members := groups[label]
		if len(members) < MinClusterSize {
			continue
		}
		clusters = append(clusters, Cluster{
			ID:        clusterID(label),
			Label:     label,
			IssueIDs:  members,
			Rationale: fmt.Sprintf("Grouped by shared theme: “%s”. Based on category/department/keywords.", label),
		})
		if len(clusters) == maxClusters {
			break
		}
	}

	if len(clusters) == 0 {
		return nil
	}
	return clusters
}

// keyFor resolves the discriminator for one issue.
func keyFor(issue record.Issue) string {
	if issue.Category != "" {
		return issue.Category
	}
	if issue.Department != "" {
		return issue.Department
	}
	if kw := firstKeyword(issue); kw != "" {
		return kw
	}
	return GeneralLabel
}

// firstKeyword returns keywords[0] when present, otherwise the first
// lowercase alphabetic token of length >= 5 found in the description. The
// description is scanned as written, so "Billing" or "XYZservice" never
// qualifies.
func firstKeyword(issue record.Issue) string {
	if len(issue.Keywords) > 0 {
		return issue.Keywords[0]
	}
	return keywordPattern.FindString(issue.Description)
}

// clusterID derives a stable id from the label so repeated runs over an
// unchanged snapshot produce identical output.
func clusterID(label string) string {
	slug := strings.ToLower(label)
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, slug)
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "general"
	}
	return "cluster-" + slug
}

// DominantDepartment returns the most common department across the cluster's
// member issues, resolved against the snapshot. Empty when no member carries
// a department.
func (c Cluster) DominantDepartment(snap record.Snapshot) string {
	counts := make(map[string]int)
	var order []string
	for _, id := range c.IssueIDs {
		issue, ok := snap.IssueByID(id)
		if !ok || issue.Department == "" {
			continue
		}
		if _, seen := counts[issue.Department]; !seen {
			order = append(order, issue.Department)
		}
		counts[issue.Department]++
	}
	best := ""
	bestCount := 0
	for _, dept := range order {
		if counts[dept] > bestCount {
			best = dept
			bestCount = counts[dept]
		}
	}
	return best
}

// Contains reports whether the cluster includes the given issue id.
func (c Cluster) Contains(issueID string) bool {
	for _, id := range c.IssueIDs {
		if id == issueID {
			return true
		}
	}
	return false
}
