package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"buildcost/models"
	"buildcost/utils"
)

// CreateProject inserts the project row, its element lists and its default
// element map in one transaction and returns the new id.
func CreateProject(db *sql.DB, p *models.Project) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	defaults, err := json.Marshal(p.DefaultBuildingElements)
	if err != nil {
		return 0, fmt.Errorf("failed to encode default elements: %v", err)
	}

	var id int
	err = tx.QueryRow(`
		INSERT INTO projects (user_id, name, code, description, address, status, building_type,
		                      project_type, floors, elevator, parking_provided, parking_rate,
		                      is_manual, planner_key, picture, default_building_elements, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`,
		p.UserID, p.Name, p.Code, p.Description, p.Address, p.Status, p.BuildingType,
		p.ProjectType, p.Floors, p.Elevator, p.ParkingProvided, p.ParkingRate,
		p.IsManual, p.PlannerKey, p.Picture, defaults, time.Now(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert project: %v", err)
	}

	if err := saveElementsTx(tx, id, p.BuildingElements, p.DemolishBuildingElements); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit project: %v", err)
	}
	return id, nil
}

func saveElementsTx(tx *sql.Tx, projectID int, build, demolish []models.BuildingElementUsage) error {
	if _, err := tx.Exec(`DELETE FROM project_elements WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to clear project elements: %v", err)
	}

	insert := func(list []models.BuildingElementUsage, demolished bool) error {
		for i, usage := range list {
			recipe, err := json.Marshal(usage.ProductResults)
			if err != nil {
				return fmt.Errorf("failed to encode element recipe: %v", err)
			}
			_, err = tx.Exec(`
				INSERT INTO project_elements (project_id, building_element_id, count, from_3d, demolished, product_results, position)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				projectID, usage.BuildingElementID, usage.Count, usage.From3D, demolished, recipe, i)
			if err != nil {
				return fmt.Errorf("failed to insert project element: %v", err)
			}
		}
		return nil
	}

	if err := insert(build, false); err != nil {
		return err
	}
	return insert(demolish, true)
}

// SaveProjectElements replaces both live element lists in one transaction.
func SaveProjectElements(db *sql.DB, projectID int, build, demolish []models.BuildingElementUsage) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	if err := saveElementsTx(tx, projectID, build, demolish); err != nil {
		return err
	}
	return tx.Commit()
}

// GetProjectByID loads the full project aggregate: the project row, live
// element lists in stored order, snapshots, frozen organization price tables
// and the default element map.
func GetProjectByID(db *sql.DB, id int) (*models.Project, error) {
	ctx, cancel := utils.GetDefaultQueryContext(nil)
	defer cancel()

	var p models.Project
	var defaults, buildSnap, demolishSnap, orgSpecs, orgComposites []byte

	err := db.QueryRowContext(ctx, `
		SELECT id, user_id, COALESCE(organization_id, 0), name, COALESCE(code, ''), description, address, status,
		       building_type, project_type, floors, elevator, parking_provided, parking_rate,
		       is_manual, deleted, COALESCE(planner_key, ''), COALESCE(picture, ''),
		       material_price, running_cost, default_building_elements,
		       build_snapshot, demolish_snapshot, org_specifications, org_composites, created_at
		FROM projects WHERE id = $1 AND deleted = false`, id,
	).Scan(
		&p.ID, &p.UserID, &p.OrganizationID, &p.Name, &p.Code, &p.Description, &p.Address, &p.Status,
		&p.BuildingType, &p.ProjectType, &p.Floors, &p.Elevator, &p.ParkingProvided, &p.ParkingRate,
		&p.IsManual, &p.Deleted, &p.PlannerKey, &p.Picture,
		&p.MaterialPrice, &p.RunningCost, &defaults,
		&buildSnap, &demolishSnap, &orgSpecs, &orgComposites, &p.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrNotFound(fmt.Sprintf("project %d not found", id))
		}
		return nil, fmt.Errorf("failed to query project: %v", err)
	}

	if err := decodeJSONColumn(defaults, &p.DefaultBuildingElements); err != nil {
		return nil, err
	}
	if err := decodeJSONColumn(buildSnap, &p.BuildSnapshot); err != nil {
		return nil, err
	}
	if err := decodeJSONColumn(demolishSnap, &p.DemolishSnapshot); err != nil {
		return nil, err
	}
	if err := decodeJSONColumn(orgSpecs, &p.OrgSpecifications); err != nil {
		return nil, err
	}
	if err := decodeJSONColumn(orgComposites, &p.OrgComposites); err != nil {
		return nil, err
	}

	build, demolish, err := loadProjectElements(db, id)
	if err != nil {
		return nil, err
	}
	p.BuildingElements = build
	p.DemolishBuildingElements = demolish

	return &p, nil
}

func decodeJSONColumn(raw []byte, dest interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("failed to decode project column: %v", err)
	}
	return nil
}

// loadProjectElements reads both live lists in stored order with catalog
// element details attached. The per-usage recipe comes from the stored JSON,
// not the catalog default, so user overrides survive reloads.
func loadProjectElements(db *sql.DB, projectID int) (build, demolish []models.BuildingElementUsage, err error) {
	rows, err := db.Query(`
		SELECT building_element_id, count, from_3d, demolished, product_results
		FROM project_elements WHERE project_id = $1
		ORDER BY demolished, position`, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query project elements: %v", err)
	}
	defer rows.Close()

	var elementIDs []int
	type row struct {
		usage      models.BuildingElementUsage
		demolished bool
	}
	var all []row
	for rows.Next() {
		var r row
		var recipe []byte
		if err := rows.Scan(&r.usage.BuildingElementID, &r.usage.Count, &r.usage.From3D, &r.demolished, &recipe); err != nil {
			return nil, nil, fmt.Errorf("failed to scan project element: %v", err)
		}
		r.usage.Demolished = r.demolished
		if len(recipe) > 0 {
			if err := json.Unmarshal(recipe, &r.usage.ProductResults); err != nil {
				return nil, nil, fmt.Errorf("failed to decode element recipe: %v", err)
			}
		}
		all = append(all, r)
		elementIDs = append(elementIDs, r.usage.BuildingElementID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	catalog, err := GetBuildingElementsByIDs(db, elementIDs)
	if err != nil {
		return nil, nil, err
	}

	for _, r := range all {
		r.usage.Element = catalog[r.usage.BuildingElementID]
		if r.demolished {
			demolish = append(demolish, r.usage)
		} else {
			build = append(build, r.usage)
		}
	}
	return build, demolish, nil
}

// GetProjectsByUser lists a user's projects without element lists.
func GetProjectsByUser(db *sql.DB, userID int) ([]models.Project, error) {
	rows, err := db.Query(`
		SELECT id, user_id, name, COALESCE(code, ''), description, address, status, building_type, project_type,
		       floors, is_manual, COALESCE(planner_key, ''), COALESCE(picture, ''),
		       material_price, running_cost, created_at
		FROM projects WHERE user_id = $1 AND deleted = false
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user projects: %v", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Code, &p.Description, &p.Address, &p.Status,
			&p.BuildingType, &p.ProjectType, &p.Floors, &p.IsManual, &p.PlannerKey, &p.Picture,
			&p.MaterialPrice, &p.RunningCost, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %v", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// SaveProjectLock persists a lock transition: status, both snapshots and the
// frozen organization price tables, atomically.
func SaveProjectLock(db *sql.DB, p *models.Project) error {
	buildSnap, err := json.Marshal(p.BuildSnapshot)
	if err != nil {
		return fmt.Errorf("failed to encode build snapshot: %v", err)
	}
	demolishSnap, err := json.Marshal(p.DemolishSnapshot)
	if err != nil {
		return fmt.Errorf("failed to encode demolish snapshot: %v", err)
	}
	orgSpecs, err := json.Marshal(p.OrgSpecifications)
	if err != nil {
		return fmt.Errorf("failed to encode frozen specifications: %v", err)
	}
	orgComposites, err := json.Marshal(p.OrgComposites)
	if err != nil {
		return fmt.Errorf("failed to encode frozen composites: %v", err)
	}

	_, err = db.Exec(`
		UPDATE projects
		SET status = $1, organization_id = $2, build_snapshot = $3, demolish_snapshot = $4,
		    org_specifications = $5, org_composites = $6
		WHERE id = $7`,
		p.Status, newNullInt(p.OrganizationID), buildSnap, demolishSnap, orgSpecs, orgComposites, p.ID)
	if err != nil {
		return fmt.Errorf("failed to persist project lock: %v", err)
	}
	return nil
}

func newNullInt(v int) interface{} {
	if v == 0 {
		return nil
	}
	return v
}

// SaveSnapshots rewrites both snapshot columns, used by the administrative
// quantity merge.
func SaveSnapshots(db *sql.DB, projectID int, build, demolish *models.ProjectSnapshot) error {
	buildSnap, err := json.Marshal(build)
	if err != nil {
		return fmt.Errorf("failed to encode build snapshot: %v", err)
	}
	demolishSnap, err := json.Marshal(demolish)
	if err != nil {
		return fmt.Errorf("failed to encode demolish snapshot: %v", err)
	}

	_, err = db.Exec(`UPDATE projects SET build_snapshot = $1, demolish_snapshot = $2 WHERE id = $3`,
		buildSnap, demolishSnap, projectID)
	if err != nil {
		return fmt.Errorf("failed to save snapshots: %v", err)
	}
	return nil
}

// UpdateProjectFields updates the editable metadata of a project.
func UpdateProjectFields(db *sql.DB, p *models.Project) error {
	_, err := db.Exec(`
		UPDATE projects
		SET name = $1, description = $2, address = $3, building_type = $4, project_type = $5,
		    floors = $6, elevator = $7, parking_provided = $8, parking_rate = $9
		WHERE id = $10`,
		p.Name, p.Description, p.Address, p.BuildingType, p.ProjectType,
		p.Floors, p.Elevator, p.ParkingProvided, p.ParkingRate, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %v", err)
	}
	return nil
}

func RenameProject(db *sql.DB, projectID int, name string) error {
	_, err := db.Exec(`UPDATE projects SET name = $1 WHERE id = $2`, name, projectID)
	return err
}

func ChangeProjectPicture(db *sql.DB, projectID int, picture string) error {
	_, err := db.Exec(`UPDATE projects SET picture = $1 WHERE id = $2`, picture, projectID)
	return err
}

func UpdateProjectStatus(db *sql.DB, projectID int, status string) error {
	_, err := db.Exec(`UPDATE projects SET status = $1 WHERE id = $2`, status, projectID)
	return err
}

func SetProjectManual(db *sql.DB, projectID int, manual bool) error {
	_, err := db.Exec(`UPDATE projects SET is_manual = $1 WHERE id = $2`, manual, projectID)
	return err
}

// SetPlannerKey stores the scene key registered on the planner side after the
// project row exists.
func SetPlannerKey(db *sql.DB, projectID int, key string) error {
	_, err := db.Exec(`UPDATE projects SET planner_key = $1 WHERE id = $2`, key, projectID)
	return err
}

// SoftDeleteProject marks a project deleted; rows are never removed.
func SoftDeleteProject(db *sql.DB, projectID int) error {
	_, err := db.Exec(`UPDATE projects SET deleted = true WHERE id = $1`, projectID)
	return err
}

// UpdateRunningCost stores the recomputed material baseline of a project.
func UpdateRunningCost(db *sql.DB, projectID int, materialPrice, runningCost float64) error {
	_, err := db.Exec(`UPDATE projects SET material_price = $1, running_cost = $2 WHERE id = $3`,
		materialPrice, runningCost, projectID)
	return err
}

// ListLiveProjectIDs returns ids of projects whose lists are still
// authoritative, for the periodic cost sweep.
func ListLiveProjectIDs(db *sql.DB) ([]int, error) {
	rows, err := db.Query(`
		SELECT id FROM projects
		WHERE deleted = false AND status IN ($1, $2, $3)`,
		models.StatusWaiting, models.StatusCreated, models.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query live projects: %v", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveProjectSummary upserts the per-project completion summary.
func SaveProjectSummary(db *sql.DB, summary models.ProjectSummary) error {
	_, err := db.Exec(`
		INSERT INTO project_summaries (project_id, element_time, material_price)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id)
		DO UPDATE SET element_time = EXCLUDED.element_time, material_price = EXCLUDED.material_price`,
		summary.ProjectID, summary.ElementTime, summary.MaterialPrice)
	if err != nil {
		return fmt.Errorf("failed to save project summary: %v", err)
	}
	return nil
}

func GetProjectSummary(db *sql.DB, projectID int) (*models.ProjectSummary, error) {
	var summary models.ProjectSummary
	err := db.QueryRow(`SELECT project_id, element_time, material_price FROM project_summaries WHERE project_id = $1`,
		projectID).Scan(&summary.ProjectID, &summary.ElementTime, &summary.MaterialPrice)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrNotFound(fmt.Sprintf("summary for project %d not found", projectID))
		}
		return nil, fmt.Errorf("failed to query project summary: %v", err)
	}
	return &summary, nil
}

// GetActiveOrganizations loads the organization directory with price tables
// in stored order. Table order matters downstream; rows are ordered by their
// explicit position.
func GetActiveOrganizations(db *sql.DB) ([]models.Organization, error) {
	rows, err := db.Query(`
		SELECT id, name, COALESCE(photo, ''), role_type
		FROM organizations WHERE active = true
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query organizations: %v", err)
	}
	defer rows.Close()

	var orgs []models.Organization
	index := map[int]int{}
	for rows.Next() {
		var org models.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.Photo, &org.RoleType); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %v", err)
		}
		index[org.ID] = len(orgs)
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	specRows, err := db.Query(`
		SELECT organization_id, resource_id, price_per_hour
		FROM organization_specifications
		ORDER BY organization_id, position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query organization specifications: %v", err)
	}
	defer specRows.Close()

	for specRows.Next() {
		var orgID int
		var spec models.SpecificationPrice
		if err := specRows.Scan(&orgID, &spec.ResourceID, &spec.PricePerHour); err != nil {
			return nil, fmt.Errorf("failed to scan specification price: %v", err)
		}
		if i, ok := index[orgID]; ok {
			orgs[i].Specifications = append(orgs[i].Specifications, spec)
		}
	}
	if err := specRows.Err(); err != nil {
		return nil, err
	}

	compRows, err := db.Query(`
		SELECT organization_id, resource_id, square_meter_price
		FROM organization_composites
		ORDER BY organization_id, position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query organization composites: %v", err)
	}
	defer compRows.Close()

	for compRows.Next() {
		var orgID int
		var comp models.CompositePrice
		if err := compRows.Scan(&orgID, &comp.ResourceID, &comp.SquareMeterPrice); err != nil {
			return nil, fmt.Errorf("failed to scan composite price: %v", err)
		}
		if i, ok := index[orgID]; ok {
			orgs[i].Composites = append(orgs[i].Composites, comp)
		}
	}
	return orgs, compRows.Err()
}

// GetOrganizationByID loads one organization with its price tables.
func GetOrganizationByID(db *sql.DB, id int) (*models.Organization, error) {
	orgs, err := GetActiveOrganizations(db)
	if err != nil {
		return nil, err
	}
	for i := range orgs {
		if orgs[i].ID == id {
			return &orgs[i], nil
		}
	}
	return nil, models.ErrNotFound(fmt.Sprintf("organization %d not found", id))
}

// CountHiringRequests returns how many open hiring requests reference a
// project. Projects with open requests cannot be deleted.
func CountHiringRequests(db *sql.DB, projectID int) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM hiring_requests WHERE project_id = $1 AND status = 'open'`,
		projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count hiring requests: %v", err)
	}
	return count, nil
}
