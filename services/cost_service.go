package services

import (
	"buildcost/models"
	"buildcost/utils"
)

// MarkupPercent is the fixed service markup applied on top of every quote.
const MarkupPercent = 25.0

// Contribution is one classified resource consumption emitted by the element
// walker. UnitPrice is set for material contributions only; workforce and
// composite pricing is organization-specific and resolved by the quote
// engine.
type Contribution struct {
	Kind         string  `json:"kind"`
	ResourceID   int     `json:"resource_id"`
	ResourceName string  `json:"resource_name"`
	TotalCount   float64 `json:"total_count"`
	UnitPrice    float64 `json:"unit_price,omitempty"`
}

// ClassifyResource categorizes a single resolved resource usage and scales
// its count by the enclosing product result and element counts. Usages whose
// resource reference no longer resolves are skipped: they contribute no cost
// and are not reported as missing.
func ClassifyResource(re models.ResourceUsage, productCount, elementCount float64) (Contribution, bool) {
	if re.Resource == nil || re.Resource.ID == 0 {
		return Contribution{}, false
	}

	c := Contribution{
		ResourceID:   re.Resource.ID,
		ResourceName: re.Resource.Name,
		TotalCount:   re.Count * productCount * elementCount,
	}

	switch re.Resource.Type {
	case models.ResourceWorkforce:
		c.Kind = models.ResourceWorkforce
	case models.ResourceComposite:
		c.Kind = models.ResourceComposite
	default:
		// Material and any other catalog type bill at the fixed unit price.
		c.Kind = models.ResourceMaterial
		c.UnitPrice = re.Resource.Price
	}

	return c, true
}

// CollectContributions walks the build list and then the demolish list and
// flattens every element into classified contributions. Traversal order is
// element, product result, resource, each in list order; not-included
// reporting depends on this order (first occurrence wins downstream), so it
// must not be changed.
func CollectContributions(build, demolish []models.BuildingElementUsage) []Contribution {
	contributions := []Contribution{}

	walk := func(list []models.BuildingElementUsage) {
		for _, be := range list {
			if len(be.ProductResults) == 0 {
				continue
			}
			for _, pr := range be.ProductResults {
				if pr.ProductResult == nil {
					continue
				}
				for _, re := range pr.ProductResult.Resources {
					if c, ok := ClassifyResource(re, pr.Count, be.Count); ok {
						contributions = append(contributions, c)
					}
				}
			}
		}
	}

	walk(build)
	walk(demolish)

	return contributions
}

// AuthoritativeLists returns the element lists costs are computed from.
// While a project is editable its live lists are authoritative; once locked
// the archived snapshots are, and exactly one of the two is ever used.
func AuthoritativeLists(p *models.Project) (build, demolish []models.BuildingElementUsage) {
	if !p.Locked() {
		return p.BuildingElements, p.DemolishBuildingElements
	}
	return snapshotUsages(p.BuildSnapshot), snapshotUsages(p.DemolishSnapshot)
}

func snapshotUsages(snap *models.ProjectSnapshot) []models.BuildingElementUsage {
	if snap == nil {
		return nil
	}
	usages := make([]models.BuildingElementUsage, 0, len(snap.Elements))
	for _, el := range snap.Elements {
		usages = append(usages, models.BuildingElementUsage{
			BuildingElementID: el.BuildingElementID,
			Count:             el.Count,
			ProductResults:    el.ProductResults,
		})
	}
	return usages
}

// TotalMaterialCost sums the fixed-priced part of a contribution stream.
// Composite spend is added by the quote engine, not here.
func TotalMaterialCost(contributions []Contribution) float64 {
	total := 0.0
	for _, c := range contributions {
		if c.Kind == models.ResourceMaterial {
			total += c.UnitPrice * c.TotalCount
		}
	}
	return total
}

// orgPrice is one flattened price entry: the owning organization and its
// per-unit price for a resource.
type orgPrice struct {
	OrgID int
	Price float64
}

// orgPriceTable is one organization's resource-id keyed price lookup. first
// remembers the earliest entry inserted; unpriced contributions use it to
// find the owner of the not-included bucket.
type orgPriceTable struct {
	byResource map[int]orgPrice
	first      orgPrice
	hasFirst   bool
}

func newOrgPriceTable() *orgPriceTable {
	return &orgPriceTable{byResource: map[int]orgPrice{}}
}

func (t *orgPriceTable) add(resourceID int, p orgPrice) {
	if !t.hasFirst {
		t.first = p
		t.hasFirst = true
	}
	t.byResource[resourceID] = p
}

// fallbackOwner is the degraded path taken when a contribution has no price
// entry in this table: the owner is read off the first stored entry instead
// of being tracked independently. Inherited behavior, kept deliberately;
// see the open questions in DESIGN.md.
func (t *orgPriceTable) fallbackOwner() (int, bool) {
	if !t.hasFirst {
		return 0, false
	}
	return t.first.OrgID, true
}

type orgAccumulator struct {
	WorkforceCost         float64
	CompositeCost         float64
	NotIncludedWorkforces []models.NotIncludedResource
	NotIncludedComposites []models.NotIncludedResource
	seenWorkforces        map[int]bool
	seenComposites        map[int]bool
}

func newOrgAccumulator() *orgAccumulator {
	return &orgAccumulator{
		NotIncludedWorkforces: []models.NotIncludedResource{},
		NotIncludedComposites: []models.NotIncludedResource{},
		seenWorkforces:        map[int]bool{},
		seenComposites:        map[int]bool{},
	}
}

func (a *orgAccumulator) addNotIncludedWorkforce(r models.NotIncludedResource) {
	if a.seenWorkforces[r.ID] {
		return
	}
	a.seenWorkforces[r.ID] = true
	a.NotIncludedWorkforces = append(a.NotIncludedWorkforces, r)
}

func (a *orgAccumulator) addNotIncludedComposite(r models.NotIncludedResource) {
	if a.seenComposites[r.ID] {
		return
	}
	a.seenComposites[r.ID] = true
	a.NotIncludedComposites = append(a.NotIncludedComposites, r)
}

// BuildQuotes consumes a contribution stream and produces one quote per
// eligible organization. Accumulators are built fresh on every call; running
// the same input twice yields identical output.
//
// Eligibility: if any composite contribution exists only fabricators may
// quote, otherwise fabricators and contractors. An organization needs at
// least one priced specification (or, for fabricators, composite) to
// participate, and only organizations with non-zero workforce or composite
// cost receive a quote.
func BuildQuotes(contributions []Contribution, organizations []models.Organization) []models.Quote {
	withComposite := false
	for _, c := range contributions {
		if c.Kind == models.ResourceComposite {
			withComposite = true
			break
		}
	}

	accumulators := map[int]*orgAccumulator{}
	tables := []*orgPriceTable{}
	for _, org := range organizations {
		hasSpecs := len(org.Specifications) > 0
		hasComposites := org.RoleType == models.RoleFabricator && len(org.Composites) > 0
		if !hasSpecs && !hasComposites {
			continue
		}

		accumulators[org.ID] = newOrgAccumulator()
		table := newOrgPriceTable()
		for _, sp := range org.Specifications {
			table.add(sp.ResourceID, orgPrice{OrgID: org.ID, Price: sp.PricePerHour})
		}
		if org.RoleType == models.RoleFabricator {
			for _, cp := range org.Composites {
				table.add(cp.ResourceID, orgPrice{OrgID: org.ID, Price: cp.SquareMeterPrice})
			}
		}
		tables = append(tables, table)
	}

	materialCost := 0.0
	for _, c := range contributions {
		switch c.Kind {
		case models.ResourceWorkforce:
			for _, table := range tables {
				if p, ok := table.byResource[c.ResourceID]; ok {
					accumulators[p.OrgID].WorkforceCost += p.Price * c.TotalCount
				} else if orgID, ok := table.fallbackOwner(); ok {
					if acc, ok := accumulators[orgID]; ok {
						acc.addNotIncludedWorkforce(models.NotIncludedResource{ID: c.ResourceID, Name: c.ResourceName})
					}
				}
			}
		case models.ResourceComposite:
			for _, table := range tables {
				if p, ok := table.byResource[c.ResourceID]; ok {
					// Composite material is billed to the customer regardless
					// of which fabricator is chosen, so it also feeds the
					// shared material total.
					materialCost += p.Price * c.TotalCount
					accumulators[p.OrgID].CompositeCost += p.Price * c.TotalCount
				} else if orgID, ok := table.fallbackOwner(); ok {
					if acc, ok := accumulators[orgID]; ok {
						acc.addNotIncludedComposite(models.NotIncludedResource{ID: c.ResourceID, Name: c.ResourceName})
					}
				}
			}
		default:
			materialCost += c.UnitPrice * c.TotalCount
		}
	}

	eligibleRoles := map[string]bool{models.RoleFabricator: true}
	if !withComposite {
		eligibleRoles[models.RoleContractor] = true
	}

	quotes := []models.Quote{}
	for _, org := range organizations {
		if !eligibleRoles[org.RoleType] {
			continue
		}
		acc, ok := accumulators[org.ID]
		if !ok || (acc.WorkforceCost == 0 && acc.CompositeCost == 0) {
			continue
		}

		cost := utils.RoundAndFix(acc.WorkforceCost + materialCost + acc.CompositeCost)
		finalCost := utils.RoundAndFix(cost + utils.PercentCalculator(cost, MarkupPercent))

		quote := models.Quote{
			OrganizationID:        org.ID,
			Name:                  org.Name,
			Photo:                 org.Photo,
			RoleType:              org.RoleType,
			Cost:                  finalCost,
			CostDisplay:           utils.MakeDecimal(finalCost),
			NotIncludedWorkforces: acc.NotIncludedWorkforces,
		}
		if org.RoleType == models.RoleFabricator {
			quote.NotIncludedComposites = acc.NotIncludedComposites
		}
		quotes = append(quotes, quote)
	}

	return quotes
}

// NotIncludedForPricing reports, in first-occurrence order, the workforce and
// composite resources of a contribution stream that a single price table does
// not cover. Used for the per-organization gap report.
func NotIncludedForPricing(contributions []Contribution, specIDs, compositeIDs map[int]bool) ([]models.NotIncludedResource, []models.NotIncludedResource) {
	workforces := []models.NotIncludedResource{}
	composites := []models.NotIncludedResource{}
	seenWorkforces := map[int]bool{}
	seenComposites := map[int]bool{}

	for _, c := range contributions {
		switch c.Kind {
		case models.ResourceWorkforce:
			if !specIDs[c.ResourceID] && !seenWorkforces[c.ResourceID] {
				seenWorkforces[c.ResourceID] = true
				workforces = append(workforces, models.NotIncludedResource{ID: c.ResourceID, Name: c.ResourceName})
			}
		case models.ResourceComposite:
			if !compositeIDs[c.ResourceID] && !seenComposites[c.ResourceID] {
				seenComposites[c.ResourceID] = true
				composites = append(composites, models.NotIncludedResource{ID: c.ResourceID, Name: c.ResourceName})
			}
		}
	}

	return workforces, composites
}

// RecomputesSummaryOnCompletion reports whether the completing user's role
// rebuilds the stored summary from the archived snapshots. Performing
// organizations recompute; customers read the value their organization wrote.
func RecomputesSummaryOnCompletion(roleType string) bool {
	return roleType == models.RoleContractor || roleType == models.RoleFabricator
}

// SummaryFromSnapshots computes the completed-project totals from the
// archived recipes: total element labor time and the fixed-price material
// total. Everything that is not workforce bills at its catalog unit price
// here, composites included.
func SummaryFromSnapshots(build, demolish *models.ProjectSnapshot) models.ProjectSummary {
	summary := models.ProjectSummary{}

	tally := func(snap *models.ProjectSnapshot) {
		if snap == nil {
			return
		}
		for _, be := range snap.Elements {
			prTime := 0.0
			for _, pr := range be.ProductResults {
				if pr.ProductResult == nil {
					continue
				}
				prTime += pr.Count * pr.ProductResult.Time
				for _, re := range pr.ProductResult.Resources {
					if re.Resource == nil || re.Resource.ID == 0 {
						continue
					}
					if re.Resource.Type != models.ResourceWorkforce {
						summary.MaterialPrice += re.Count * pr.Count * be.Count * re.Resource.Price
					}
				}
			}
			summary.ElementTime += prTime * be.Count
		}
	}

	tally(build)
	tally(demolish)

	return summary
}
