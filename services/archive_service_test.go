package services

import (
	"testing"
	"time"

	"buildcost/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTakeSnapshotDenormalizesCatalogFields(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	list := []models.BuildingElementUsage{
		{
			BuildingElementID: 1,
			Count:             4,
			Element:           &models.BuildingElement{ID: 1, Name: "Exterior wall", Code: 3},
			ProductResults:    []models.ProductResultUsage{{ProductResultID: 100, Count: 2}},
		},
		{BuildingElementID: 2, Count: 1},
	}

	snap := TakeSnapshot(list, now)

	assert.Equal(t, models.SnapshotVersion, snap.Version)
	assert.NotEmpty(t, snap.AuditID)
	assert.Equal(t, now, snap.TakenAt)
	require.Len(t, snap.Elements, 2)

	assert.Equal(t, "Exterior wall", snap.Elements[0].ElementName)
	assert.Equal(t, 3, snap.Elements[0].Code)
	assert.Equal(t, 4.0, snap.Elements[0].Count)
	require.Len(t, snap.Elements[0].ProductResults, 1)
	assert.Equal(t, 100, snap.Elements[0].ProductResults[0].ProductResultID)

	// Dangling catalog references keep their id with empty display fields.
	assert.Empty(t, snap.Elements[1].ElementName)
}

func TestManualConversionAllowed(t *testing.T) {
	assert.NoError(t, ManualConversionAllowed(&models.Project{Status: models.StatusCreated}))

	err := ManualConversionAllowed(&models.Project{Status: models.StatusPending})
	require.Error(t, err)
	assert.True(t, models.IsRuleViolation(err))

	err = ManualConversionAllowed(&models.Project{Status: models.StatusAccepted})
	require.Error(t, err)
	assert.True(t, models.IsRuleViolation(err))

	err = ManualConversionAllowed(&models.Project{Status: models.StatusCreated, IsManual: true})
	require.Error(t, err)
	assert.True(t, models.IsRuleViolation(err))
}

func TestLockProjectRejectsNonLockingStatus(t *testing.T) {
	p := &models.Project{Status: models.StatusCreated}

	err := LockProject(p, models.StatusPending, nil, time.Now())

	require.Error(t, err)
	assert.True(t, models.IsRuleViolation(err))
	assert.Equal(t, models.StatusCreated, p.Status)
}

func TestLockProjectFreezesListsAndPrices(t *testing.T) {
	p := &models.Project{
		Status: models.StatusPending,
		BuildingElements: []models.BuildingElementUsage{
			{BuildingElementID: 1, Count: 2},
		},
		DemolishBuildingElements: []models.BuildingElementUsage{
			{BuildingElementID: 5, Count: 1},
		},
	}
	org := &models.Organization{
		ID:             3,
		Specifications: []models.SpecificationPrice{{ResourceID: 20, PricePerHour: 15}},
		Composites:     []models.CompositePrice{{ResourceID: 30, SquareMeterPrice: 90}},
	}

	err := LockProject(p, models.StatusAccepted, org, time.Now())

	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, p.Status)
	require.NotNil(t, p.BuildSnapshot)
	require.NotNil(t, p.DemolishSnapshot)
	assert.Len(t, p.BuildSnapshot.Elements, 1)
	assert.Len(t, p.DemolishSnapshot.Elements, 1)

	require.Len(t, p.OrgSpecifications, 1)
	assert.Equal(t, 15.0, p.OrgSpecifications[0].PricePerHour)
	require.Len(t, p.OrgComposites, 1)

	// The frozen tables are copies; later directory edits must not leak in.
	org.Specifications[0].PricePerHour = 999
	assert.Equal(t, 15.0, p.OrgSpecifications[0].PricePerHour)
}

func TestLockProjectCompletionKeepsAcceptSnapshots(t *testing.T) {
	p := &models.Project{
		Status:           models.StatusPending,
		BuildingElements: []models.BuildingElementUsage{{BuildingElementID: 1, Count: 2}},
	}
	require.NoError(t, LockProject(p, models.StatusAccepted, nil, time.Now()))
	acceptAudit := p.BuildSnapshot.AuditID

	// Live lists changing after the lock must not affect the archive.
	p.BuildingElements = append(p.BuildingElements, models.BuildingElementUsage{BuildingElementID: 9, Count: 1})

	require.NoError(t, LockProject(p, models.StatusCompleted, nil, time.Now()))

	assert.Equal(t, models.StatusCompleted, p.Status)
	assert.Equal(t, acceptAudit, p.BuildSnapshot.AuditID)
	assert.Len(t, p.BuildSnapshot.Elements, 1)
}

func TestLockProjectNoReverseTransition(t *testing.T) {
	p := &models.Project{Status: models.StatusCompleted}

	err := LockProject(p, models.StatusAccepted, nil, time.Now())

	require.Error(t, err)
	assert.True(t, models.IsRuleViolation(err))
}

func TestMergeQuantityEditsOverridesCountsOnly(t *testing.T) {
	recipe := []models.ProductResultUsage{{ProductResultID: 100, Count: 2}}
	snap := &models.ProjectSnapshot{
		Version: models.SnapshotVersion,
		AuditID: "audit-1",
		TakenAt: time.Now(),
		Elements: []models.ElementSnapshot{
			{BuildingElementID: 1, ElementName: "Wall", Count: 2, ProductResults: recipe},
			{BuildingElementID: 2, ElementName: "Slab", Count: 5},
		},
	}

	merged := MergeQuantityEdits(snap, []models.ElementCountEdit{
		{BuildingElementID: 1, Count: 7},
	}, nil, false)

	assert.Equal(t, "audit-1", merged.AuditID)
	require.Len(t, merged.Elements, 2)

	assert.Equal(t, 7.0, merged.Elements[0].Count)
	assert.Equal(t, recipe, merged.Elements[0].ProductResults)

	// Untouched entries survive in snapshot order.
	assert.Equal(t, 2, merged.Elements[1].BuildingElementID)
	assert.Equal(t, 5.0, merged.Elements[1].Count)
}

func TestMergeQuantityEditsAppendsUnknownWithCatalogRecipe(t *testing.T) {
	snap := &models.ProjectSnapshot{
		Elements: []models.ElementSnapshot{{BuildingElementID: 1, Count: 2}},
	}
	buildRecipe := []models.ProductResultUsage{{ProductResultID: 100, Count: 1}}
	demolishRecipe := []models.ProductResultUsage{{ProductResultID: 200, Count: 1}}
	catalog := map[int]*models.BuildingElement{
		3: {ID: 3, Name: "Partition", Code: 8, ProductResults: buildRecipe, DemolishedProductResults: demolishRecipe},
	}

	merged := MergeQuantityEdits(snap, []models.ElementCountEdit{
		{BuildingElementID: 3, Count: 4},
		{BuildingElementID: 99, Count: 1},
	}, catalog, false)

	require.Len(t, merged.Elements, 2)
	appended := merged.Elements[1]
	assert.Equal(t, 3, appended.BuildingElementID)
	assert.Equal(t, "Partition", appended.ElementName)
	assert.Equal(t, 4.0, appended.Count)
	assert.Equal(t, buildRecipe, appended.ProductResults)

	merged = MergeQuantityEdits(snap, []models.ElementCountEdit{
		{BuildingElementID: 3, Count: 4},
	}, catalog, true)

	require.Len(t, merged.Elements, 2)
	assert.Equal(t, demolishRecipe, merged.Elements[1].ProductResults)
}

func TestMergeQuantityEditsNilSnapshot(t *testing.T) {
	assert.Nil(t, MergeQuantityEdits(nil, nil, nil, false))
}
