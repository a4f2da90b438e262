package cluster

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compass/internal/record"
)

func TestAssignGroupsByCategory(t *testing.T) {
	issues := []record.Issue{
		{ID: "issue-1", Category: "Delivery"},
		{ID: "issue-2", Category: "Delivery"},
		{ID: "issue-3", Category: "Quality"},
		{ID: "issue-4", Category: "Quality"},
	}

	clusters := Assign(issues, DefaultMaxClusters)
	require.Len(t, clusters, 2)
	assert.Equal(t, "Delivery", clusters[0].Label)
	assert.Equal(t, []string{"issue-1", "issue-2"}, clusters[0].IssueIDs)
	assert.Equal(t, "Quality", clusters[1].Label)
}

func TestAssignDiscriminatorFallbackChain(t *testing.T) {
	issues := []record.Issue{
		// Category wins over department and keywords.
		{ID: "issue-1", Category: "Delivery", Department: "Ops", Keywords: []string{"pipeline"}},
		{ID: "issue-2", Category: "Delivery"},
		// No category: department.
		{ID: "issue-3", Department: "Ops"},
		{ID: "issue-4", Department: "Ops"},
		// No category or department: first keyword.
		{ID: "issue-5", Keywords: []string{"pipeline", "deploys"}},
		{ID: "issue-6", Keywords: []string{"pipeline"}},
		// Nothing but a description: first lowercase token of length >= 5.
		{ID: "issue-7", Description: "The batch export keeps timing out"},
		{ID: "issue-8", Description: "Nightly batch jobs overrun their window"},
	}

	clusters := Assign(issues, DefaultMaxClusters)
	require.Len(t, clusters, 4)
	assert.Equal(t, "Delivery", clusters[0].Label)
	assert.Equal(t, "Ops", clusters[1].Label)
	assert.Equal(t, "pipeline", clusters[2].Label)
	assert.Equal(t, "batch", clusters[3].Label)
}

func TestAssignDropsSingletons(t *testing.T) {
	issues := []record.Issue{
		{ID: "issue-1", Category: "Delivery"},
		{ID: "issue-2", Category: "Delivery"},
		{ID: "issue-3", Category: "Ops"},
	}

	clusters := Assign(issues, DefaultMaxClusters)
	require.Len(t, clusters, 1)
	assert.Equal(t, "Delivery", clusters[0].Label)
	for _, c := range clusters {
		assert.False(t, c.Contains("issue-3"), "singleton must not surface")
	}
}

func TestAssignGeneralFallback(t *testing.T) {
	issues := []record.Issue{
		{ID: "issue-1", Description: "bad"},
		{ID: "issue-2"},
	}

	clusters := Assign(issues, DefaultMaxClusters)
	require.Len(t, clusters, 1)
	assert.Equal(t, GeneralLabel, clusters[0].Label)
	assert.Equal(t, "cluster-general", clusters[0].ID)
}

func TestAssignDescriptionScanSkipsCapitalizedAndEmbeddedWords(t *testing.T) {
	issues := []record.Issue{
		// "XYZservice" and "Restarts" must not qualify; "nightly" does.
		{ID: "issue-1", Description: "XYZservice Restarts nightly without warning"},
		{ID: "issue-2", Description: "The nightly sync job stalls"},
		// All capitalized: nothing qualifies, falls through to General.
		{ID: "issue-3", Description: "Billing Export Broken Again"},
		{ID: "issue-4", Description: "CRM Sync Paused"},
	}

	clusters := Assign(issues, DefaultMaxClusters)
	require.Len(t, clusters, 2)
	assert.Equal(t, "nightly", clusters[0].Label)
	assert.Equal(t, GeneralLabel, clusters[1].Label)
}

func TestAssignTruncatesInEncounterOrder(t *testing.T) {
	var issues []record.Issue
	for i := 0; i < 15; i++ {
		cat := fmt.Sprintf("Theme-%02d", i)
		issues = append(issues,
			record.Issue{ID: fmt.Sprintf("issue-%02d-a", i), Category: cat},
			record.Issue{ID: fmt.Sprintf("issue-%02d-b", i), Category: cat},
		)
	}

	clusters := Assign(issues, DefaultMaxClusters)
	require.Len(t, clusters, DefaultMaxClusters)
	// First-seen themes survive the cut, regardless of size.
	assert.Equal(t, "Theme-00", clusters[0].Label)
	assert.Equal(t, "Theme-11", clusters[11].Label)
}

func TestAssignIgnoresDuplicatesAndBlankIDs(t *testing.T) {
	issues := []record.Issue{
		{ID: "issue-1", Category: "Delivery"},
		{ID: "issue-1", Category: "Delivery"},
		{ID: "", Category: "Delivery"},
		{ID: "issue-2", Category: "Delivery"},
	}

	clusters := Assign(issues, DefaultMaxClusters)
	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"issue-1", "issue-2"}, clusters[0].IssueIDs)
}

func TestAssignDisjointMembership(t *testing.T) {
	issues := []record.Issue{
		{ID: "issue-1", Category: "Delivery", Keywords: []string{"pipeline"}},
		{ID: "issue-2", Category: "Delivery"},
		{ID: "issue-3", Keywords: []string{"pipeline"}},
		{ID: "issue-4", Keywords: []string{"pipeline"}},
	}

	clusters := Assign(issues, DefaultMaxClusters)
	seen := make(map[string]int)
	for _, c := range clusters {
		for _, id := range c.IssueIDs {
			seen[id]++
		}
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "issue %s appears in %d clusters", id, n)
	}
}

func TestAssignIsDeterministic(t *testing.T) {
	issues := []record.Issue{
		{ID: "issue-1", Category: "Delivery"},
		{ID: "issue-2", Category: "Delivery"},
		{ID: "issue-3", Department: "Ops"},
		{ID: "issue-4", Department: "Ops"},
	}

	first := Assign(issues, DefaultMaxClusters)
	second := Assign(issues, DefaultMaxClusters)
	assert.Equal(t, first, second)
}

func TestAssignEmptyInput(t *testing.T) {
	assert.Nil(t, Assign(nil, DefaultMaxClusters))
	assert.Nil(t, Assign([]record.Issue{{ID: "only", Category: "Solo"}}, DefaultMaxClusters))
}

func TestClusterIDSlug(t *testing.T) {
	assert.Equal(t, "cluster-customer-support", clusterID("Customer Support"))
	assert.Equal(t, "cluster-q1-delivery", clusterID("Q1 Delivery!"))
	assert.Equal(t, "cluster-general", clusterID("***"))
}

func TestRationaleNamesTheLabel(t *testing.T) {
	clusters := Assign([]record.Issue{
		{ID: "issue-1", Category: "Delivery"},
		{ID: "issue-2", Category: "Delivery"},
	}, DefaultMaxClusters)
	require.Len(t, clusters, 1)
	assert.Contains(t, clusters[0].Rationale, "Delivery")
	assert.Contains(t, clusters[0].Rationale, "category/department/keywords")
}

func TestDominantDepartment(t *testing.T) {
	snap := record.Snapshot{Issues: []record.Issue{
		{ID: "issue-1", Department: "Engineering"},
		{ID: "issue-2", Department: "Engineering"},
		{ID: "issue-3", Department: "Sales"},
	}}
	c := Cluster{IssueIDs: []string{"issue-1", "issue-2", "issue-3"}}
	assert.Equal(t, "Engineering", c.DominantDepartment(snap))

	empty := Cluster{IssueIDs: []string{"missing"}}
	assert.Equal(t, "", empty.DominantDepartment(snap))
}
