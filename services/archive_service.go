package services

import (
	"time"

	"buildcost/models"

	"github.com/google/uuid"
)

// TakeSnapshot freezes an element list into a typed snapshot. Element names
// and codes are denormalized into the snapshot so it stays readable after
// catalog entries are soft-deleted.
func TakeSnapshot(list []models.BuildingElementUsage, now time.Time) *models.ProjectSnapshot {
	snap := &models.ProjectSnapshot{
		Version:  models.SnapshotVersion,
		AuditID:  uuid.New().String(),
		TakenAt:  now,
		Elements: make([]models.ElementSnapshot, 0, len(list)),
	}

	for _, be := range list {
		el := models.ElementSnapshot{
			BuildingElementID: be.BuildingElementID,
			Count:             be.Count,
			ProductResults:    be.ProductResults,
		}
		if be.Element != nil {
			el.ElementName = be.Element.Name
			el.Code = be.Element.Code
		}
		snap.Elements = append(snap.Elements, el)
	}

	return snap
}

// ManualConversionAllowed checks the administrative detach rules: only
// created, still planner-driven projects may drop their scene and become
// manual.
func ManualConversionAllowed(p *models.Project) error {
	if p.Status != models.StatusCreated {
		return models.ErrRuleViolation("only created projects can be converted to manual")
	}
	if p.IsManual {
		return models.ErrRuleViolation("project is already manual")
	}
	return nil
}

// LockProject transitions a project into a locked status and freezes its
// live element lists into snapshots. The hired organization's price tables
// are frozen alongside so the gap report keeps working after the directory
// entry changes. Transitions out of a locked status are not modeled.
func LockProject(p *models.Project, status string, org *models.Organization, now time.Time) error {
	if !models.IsLockedStatus(status) {
		return models.ErrRuleViolation("target status does not lock the project")
	}
	if p.Locked() && p.Status != status && status != models.StatusCompleted {
		return models.ErrRuleViolation("locked projects cannot change status")
	}

	// Accepted -> Completed keeps the snapshots taken at accept time.
	if p.BuildSnapshot == nil {
		p.BuildSnapshot = TakeSnapshot(p.BuildingElements, now)
	}
	if p.DemolishSnapshot == nil {
		p.DemolishSnapshot = TakeSnapshot(p.DemolishBuildingElements, now)
	}

	if org != nil {
		p.OrgSpecifications = append([]models.SpecificationPrice{}, org.Specifications...)
		p.OrgComposites = append([]models.CompositePrice{}, org.Composites...)
	}

	p.Status = status
	return nil
}

// MergeQuantityEdits applies quantity-only edits to a frozen snapshot.
// Entries already in the snapshot keep their archived recipe and get the
// submitted count; edits naming elements absent from the snapshot are
// appended with the catalog default recipe (the demolish recipe when merging
// the demolish snapshot). All other snapshot entries are left untouched.
// Only the administrative override path may call this.
func MergeQuantityEdits(snap *models.ProjectSnapshot, edits []models.ElementCountEdit, catalog map[int]*models.BuildingElement, demolish bool) *models.ProjectSnapshot {
	if snap == nil {
		return nil
	}

	merged := &models.ProjectSnapshot{
		Version:  snap.Version,
		AuditID:  snap.AuditID,
		TakenAt:  snap.TakenAt,
		Elements: make([]models.ElementSnapshot, 0, len(snap.Elements)),
	}

	counts := map[int]float64{}
	for _, edit := range edits {
		counts[edit.BuildingElementID] = edit.Count
	}

	existing := map[int]bool{}
	for _, el := range snap.Elements {
		existing[el.BuildingElementID] = true
		if count, ok := counts[el.BuildingElementID]; ok {
			el.Count = count
		}
		merged.Elements = append(merged.Elements, el)
	}

	for _, edit := range edits {
		if existing[edit.BuildingElementID] {
			continue
		}
		element, ok := catalog[edit.BuildingElementID]
		if !ok || element == nil {
			continue
		}
		recipe := element.ProductResults
		if demolish {
			recipe = element.DemolishedProductResults
		}
		merged.Elements = append(merged.Elements, models.ElementSnapshot{
			BuildingElementID: element.ID,
			ElementName:       element.Name,
			Code:              element.Code,
			Count:             edit.Count,
			ProductResults:    recipe,
		})
	}

	return merged
}
