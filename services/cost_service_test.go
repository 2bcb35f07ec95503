package services

import (
	"testing"
	"time"

	"buildcost/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func materialResource(id int, name string, price float64) *models.Resource {
	return &models.Resource{ID: id, Name: name, Type: models.ResourceMaterial, Price: price}
}

func workforceResource(id int, name string) *models.Resource {
	return &models.Resource{ID: id, Name: name, Type: models.ResourceWorkforce}
}

func compositeResource(id int, name string) *models.Resource {
	return &models.Resource{ID: id, Name: name, Type: models.ResourceComposite}
}

func usageWithRecipe(elementID int, count float64, resources ...models.ResourceUsage) models.BuildingElementUsage {
	return models.BuildingElementUsage{
		BuildingElementID: elementID,
		Count:             count,
		ProductResults: []models.ProductResultUsage{
			{
				ProductResultID: elementID * 100,
				Count:           1,
				ProductResult: &models.ProductResult{
					ID:        elementID * 100,
					Resources: resources,
				},
			},
		},
	}
}

func TestClassifyResourceScalesCounts(t *testing.T) {
	re := models.ResourceUsage{Count: 2, Resource: materialResource(1, "Concrete", 10)}

	c, ok := ClassifyResource(re, 3, 4)

	require.True(t, ok)
	assert.Equal(t, models.ResourceMaterial, c.Kind)
	assert.Equal(t, 24.0, c.TotalCount)
	assert.Equal(t, 10.0, c.UnitPrice)
}

func TestClassifyResourceKinds(t *testing.T) {
	w, ok := ClassifyResource(models.ResourceUsage{Count: 1, Resource: workforceResource(2, "Mason")}, 1, 1)
	require.True(t, ok)
	assert.Equal(t, models.ResourceWorkforce, w.Kind)
	assert.Zero(t, w.UnitPrice)

	cp, ok := ClassifyResource(models.ResourceUsage{Count: 1, Resource: compositeResource(3, "Panel")}, 1, 1)
	require.True(t, ok)
	assert.Equal(t, models.ResourceComposite, cp.Kind)
	assert.Zero(t, cp.UnitPrice)
}

func TestClassifyResourceSkipsDanglingReference(t *testing.T) {
	_, ok := ClassifyResource(models.ResourceUsage{Count: 5, Resource: nil}, 1, 1)
	assert.False(t, ok)

	_, ok = ClassifyResource(models.ResourceUsage{Count: 5, Resource: &models.Resource{}}, 1, 1)
	assert.False(t, ok)
}

func TestCollectContributionsWalksBuildThenDemolish(t *testing.T) {
	build := []models.BuildingElementUsage{
		usageWithRecipe(1, 2, models.ResourceUsage{Count: 1, Resource: materialResource(10, "Brick", 2)}),
	}
	demolish := []models.BuildingElementUsage{
		usageWithRecipe(2, 1, models.ResourceUsage{Count: 3, Resource: workforceResource(20, "Laborer")}),
	}

	contributions := CollectContributions(build, demolish)

	require.Len(t, contributions, 2)
	assert.Equal(t, 10, contributions[0].ResourceID)
	assert.Equal(t, 20, contributions[1].ResourceID)
}

func TestCollectContributionsSkipsDanglingRecipeLines(t *testing.T) {
	build := []models.BuildingElementUsage{
		{
			BuildingElementID: 1,
			Count:             2,
			ProductResults: []models.ProductResultUsage{
				{ProductResultID: 100, Count: 1, ProductResult: nil},
				{
					ProductResultID: 101,
					Count:           1,
					ProductResult: &models.ProductResult{
						ID: 101,
						Resources: []models.ResourceUsage{
							{Count: 4, Resource: nil},
							{Count: 1, Resource: materialResource(10, "Brick", 2)},
						},
					},
				},
			},
		},
		{BuildingElementID: 2, Count: 9},
	}

	contributions := CollectContributions(build, nil)

	require.Len(t, contributions, 1)
	assert.Equal(t, 10, contributions[0].ResourceID)
	assert.Equal(t, 2.0, contributions[0].TotalCount)
}

func TestTotalMaterialCostIgnoresOrgPricedKinds(t *testing.T) {
	contributions := []Contribution{
		{Kind: models.ResourceMaterial, TotalCount: 3, UnitPrice: 10},
		{Kind: models.ResourceWorkforce, TotalCount: 5},
		{Kind: models.ResourceComposite, TotalCount: 2},
		{Kind: models.ResourceMaterial, TotalCount: 1, UnitPrice: 2.5},
	}

	assert.Equal(t, 32.5, TotalMaterialCost(contributions))
}

func TestAuthoritativeListsSwitchOnLock(t *testing.T) {
	p := &models.Project{
		Status:           models.StatusCreated,
		BuildingElements: []models.BuildingElementUsage{{BuildingElementID: 1, Count: 4}},
		BuildSnapshot: &models.ProjectSnapshot{
			Elements: []models.ElementSnapshot{{BuildingElementID: 1, Count: 9}},
		},
	}

	build, _ := AuthoritativeLists(p)
	require.Len(t, build, 1)
	assert.Equal(t, 4.0, build[0].Count)

	p.Status = models.StatusAccepted
	build, _ = AuthoritativeLists(p)
	require.Len(t, build, 1)
	assert.Equal(t, 9.0, build[0].Count)
}

func TestBuildQuotesSharedMaterialPlusOrgWorkforce(t *testing.T) {
	build := []models.BuildingElementUsage{
		usageWithRecipe(1, 2,
			models.ResourceUsage{Count: 1, Resource: materialResource(10, "Brick", 50)},
			models.ResourceUsage{Count: 3, Resource: workforceResource(20, "Mason")},
		),
	}
	contributions := CollectContributions(build, nil)

	orgs := []models.Organization{
		{
			ID: 1, Name: "Alpha", RoleType: models.RoleContractor,
			Specifications: []models.SpecificationPrice{{ResourceID: 20, PricePerHour: 10}},
		},
		{
			ID: 2, Name: "Beta", RoleType: models.RoleContractor,
			Specifications: []models.SpecificationPrice{{ResourceID: 20, PricePerHour: 20}},
		},
	}

	quotes := BuildQuotes(contributions, orgs)

	require.Len(t, quotes, 2)

	// Material: 2 * 50 = 100 shared by both. Workforce: 6 hours.
	// Alpha: 100 + 60 = 160, +25% = 200. Beta: 100 + 120 = 220, +25% = 275.
	assert.Equal(t, 200.0, quotes[0].Cost)
	assert.Equal(t, "200.00", quotes[0].CostDisplay)
	assert.Equal(t, 275.0, quotes[1].Cost)
}

func TestBuildQuotesIdempotent(t *testing.T) {
	build := []models.BuildingElementUsage{
		usageWithRecipe(1, 3, models.ResourceUsage{Count: 2, Resource: workforceResource(20, "Mason")}),
	}
	contributions := CollectContributions(build, nil)
	orgs := []models.Organization{
		{ID: 1, Name: "Alpha", RoleType: models.RoleContractor,
			Specifications: []models.SpecificationPrice{{ResourceID: 20, PricePerHour: 10}}},
	}

	first := BuildQuotes(contributions, orgs)
	second := BuildQuotes(contributions, orgs)

	assert.Equal(t, first, second)
}

func TestBuildQuotesCompositeRestrictsToFabricators(t *testing.T) {
	build := []models.BuildingElementUsage{
		usageWithRecipe(1, 1,
			models.ResourceUsage{Count: 4, Resource: compositeResource(30, "Wall panel")},
			models.ResourceUsage{Count: 2, Resource: workforceResource(20, "Mason")},
		),
	}
	contributions := CollectContributions(build, nil)

	orgs := []models.Organization{
		{ID: 1, Name: "Contractor Co", RoleType: models.RoleContractor,
			Specifications: []models.SpecificationPrice{{ResourceID: 20, PricePerHour: 10}}},
		{ID: 2, Name: "Fab Co", RoleType: models.RoleFabricator,
			Specifications: []models.SpecificationPrice{{ResourceID: 20, PricePerHour: 10}},
			Composites:     []models.CompositePrice{{ResourceID: 30, SquareMeterPrice: 100}}},
	}

	quotes := BuildQuotes(contributions, orgs)

	require.Len(t, quotes, 1)
	assert.Equal(t, 2, quotes[0].OrganizationID)
	assert.Equal(t, models.RoleFabricator, quotes[0].RoleType)
}

func TestBuildQuotesCompositeSpendFeedsMaterialBaseline(t *testing.T) {
	build := []models.BuildingElementUsage{
		usageWithRecipe(1, 1,
			models.ResourceUsage{Count: 4, Resource: compositeResource(30, "Wall panel")},
		),
	}
	contributions := CollectContributions(build, nil)

	orgs := []models.Organization{
		{ID: 2, Name: "Fab Co", RoleType: models.RoleFabricator,
			Composites: []models.CompositePrice{{ResourceID: 30, SquareMeterPrice: 100}}},
	}

	quotes := BuildQuotes(contributions, orgs)

	// 4 units at 100 land in both the shared material total and the
	// fabricator's composite accumulator: cost 800, +25% = 1000.
	require.Len(t, quotes, 1)
	assert.Equal(t, 1000.0, quotes[0].Cost)
}

func TestBuildQuotesExcludesZeroCostOrganizations(t *testing.T) {
	build := []models.BuildingElementUsage{
		usageWithRecipe(1, 1, models.ResourceUsage{Count: 2, Resource: workforceResource(20, "Mason")}),
	}
	contributions := CollectContributions(build, nil)

	orgs := []models.Organization{
		{ID: 1, Name: "Alpha", RoleType: models.RoleContractor,
			Specifications: []models.SpecificationPrice{{ResourceID: 20, PricePerHour: 10}}},
		{ID: 2, Name: "Beta", RoleType: models.RoleContractor,
			Specifications: []models.SpecificationPrice{{ResourceID: 99, PricePerHour: 10}}},
		{ID: 3, Name: "NoTable", RoleType: models.RoleContractor},
	}

	quotes := BuildQuotes(contributions, orgs)

	require.Len(t, quotes, 1)
	assert.Equal(t, 1, quotes[0].OrganizationID)
}

func TestBuildQuotesFallbackOwnerCollectsNotIncluded(t *testing.T) {
	build := []models.BuildingElementUsage{
		usageWithRecipe(1, 1,
			models.ResourceUsage{Count: 1, Resource: workforceResource(20, "Mason")},
			models.ResourceUsage{Count: 1, Resource: workforceResource(21, "Electrician")},
			models.ResourceUsage{Count: 1, Resource: workforceResource(21, "Electrician")},
		),
	}
	contributions := CollectContributions(build, nil)

	orgs := []models.Organization{
		{ID: 1, Name: "Alpha", RoleType: models.RoleContractor,
			Specifications: []models.SpecificationPrice{{ResourceID: 20, PricePerHour: 10}}},
	}

	quotes := BuildQuotes(contributions, orgs)

	require.Len(t, quotes, 1)
	// The unpriced electrician is attributed to the owner of the table's
	// first entry, deduplicated on repeat occurrence.
	require.Len(t, quotes[0].NotIncludedWorkforces, 1)
	assert.Equal(t, 21, quotes[0].NotIncludedWorkforces[0].ID)
	assert.Equal(t, "Electrician", quotes[0].NotIncludedWorkforces[0].Name)
}

func TestBuildQuotesMarkupRounding(t *testing.T) {
	build := []models.BuildingElementUsage{
		usageWithRecipe(1, 1, models.ResourceUsage{Count: 33.33, Resource: materialResource(10, "Mix", 1)}),
	}
	contributions := CollectContributions(build, nil)

	orgs := []models.Organization{
		{ID: 1, Name: "Alpha", RoleType: models.RoleContractor,
			Specifications: []models.SpecificationPrice{{ResourceID: 20, PricePerHour: 10}}},
	}

	// Pure material cost gives Alpha nothing to quote.
	quotes := BuildQuotes(contributions, orgs)
	assert.Empty(t, quotes)

	// Add one free-priced workforce hour so the quote materializes while the
	// total stays 33.33; 25% of 33.33 rounds to 8.33.
	build[0].ProductResults[0].ProductResult.Resources = append(
		build[0].ProductResults[0].ProductResult.Resources,
		models.ResourceUsage{Count: 1, Resource: workforceResource(20, "Mason")},
	)
	orgs[0].Specifications[0].PricePerHour = 0.0001
	contributions = CollectContributions(build, nil)
	quotes = BuildQuotes(contributions, orgs)

	require.Len(t, quotes, 1)
	assert.Equal(t, 41.66, quotes[0].Cost)
}

func TestNotIncludedForPricingFirstOccurrenceOrder(t *testing.T) {
	contributions := []Contribution{
		{Kind: models.ResourceWorkforce, ResourceID: 21, ResourceName: "Electrician"},
		{Kind: models.ResourceComposite, ResourceID: 30, ResourceName: "Panel"},
		{Kind: models.ResourceWorkforce, ResourceID: 22, ResourceName: "Plumber"},
		{Kind: models.ResourceWorkforce, ResourceID: 21, ResourceName: "Electrician"},
		{Kind: models.ResourceWorkforce, ResourceID: 20, ResourceName: "Mason"},
	}
	specIDs := map[int]bool{20: true}
	compositeIDs := map[int]bool{}

	workforces, composites := NotIncludedForPricing(contributions, specIDs, compositeIDs)

	require.Len(t, workforces, 2)
	assert.Equal(t, 21, workforces[0].ID)
	assert.Equal(t, 22, workforces[1].ID)

	require.Len(t, composites, 1)
	assert.Equal(t, 30, composites[0].ID)
}

func TestSummaryFromSnapshots(t *testing.T) {
	now := time.Now()
	build := TakeSnapshot([]models.BuildingElementUsage{
		{
			BuildingElementID: 1,
			Count:             2,
			ProductResults: []models.ProductResultUsage{
				{
					Count: 3,
					ProductResult: &models.ProductResult{
						Time: 1.5,
						Resources: []models.ResourceUsage{
							{Count: 2, Resource: materialResource(10, "Brick", 5)},
							{Count: 1, Resource: workforceResource(20, "Mason")},
							{Count: 1, Resource: nil},
						},
					},
				},
			},
		},
	}, now)

	summary := SummaryFromSnapshots(build, nil)

	// Time: 3 * 1.5 per element, 2 elements = 9 hours.
	assert.Equal(t, 9.0, summary.ElementTime)
	// Material: 2 * 3 * 2 * 5 = 60; workforce and dangling lines excluded.
	assert.Equal(t, 60.0, summary.MaterialPrice)
}

func TestRecomputesSummaryOnCompletion(t *testing.T) {
	assert.True(t, RecomputesSummaryOnCompletion(models.RoleContractor))
	assert.True(t, RecomputesSummaryOnCompletion(models.RoleFabricator))
	assert.False(t, RecomputesSummaryOnCompletion(models.RoleCustomer))
	assert.False(t, RecomputesSummaryOnCompletion(""))
}
