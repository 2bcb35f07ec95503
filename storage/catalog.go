package storage

import (
	"database/sql"
	"fmt"

	"buildcost/models"

	"github.com/lib/pq"
)

// GetBuildingElementByID loads a single catalog element with both recipes
// resolved. Returns a not-found error for unknown or deleted elements.
func GetBuildingElementByID(db *sql.DB, id int) (*models.BuildingElement, error) {
	elements, err := GetBuildingElementsByIDs(db, []int{id})
	if err != nil {
		return nil, err
	}
	element, ok := elements[id]
	if !ok {
		return nil, models.ErrNotFound(fmt.Sprintf("building element %d not found", id))
	}
	return element, nil
}

// GetBuildingElementsByIDs loads catalog elements keyed by internal id, with
// default build and demolish recipes fully resolved down to resources.
func GetBuildingElementsByIDs(db *sql.DB, ids []int) (map[int]*models.BuildingElement, error) {
	if len(ids) == 0 {
		return map[int]*models.BuildingElement{}, nil
	}

	query := `SELECT id, name, code, COALESCE(other_element_id, 0), COALESCE(planner_id, '')
	          FROM building_elements WHERE id = ANY($1) AND deleted = false`
	rows, err := db.Query(query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query building elements: %v", err)
	}
	defer rows.Close()

	elements := map[int]*models.BuildingElement{}
	for rows.Next() {
		var element models.BuildingElement
		if err := rows.Scan(&element.ID, &element.Name, &element.Code, &element.OtherElementID, &element.PlannerID); err != nil {
			return nil, fmt.Errorf("failed to scan building element: %v", err)
		}
		elements[element.ID] = &element
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := attachRecipes(db, elements); err != nil {
		return nil, err
	}
	return elements, nil
}

// GetBuildingElementsByPlannerIDs loads catalog elements keyed by the
// external planner identifier. Doors and windows arrive keyed this way.
func GetBuildingElementsByPlannerIDs(db *sql.DB, plannerIDs []string) (map[string]*models.BuildingElement, error) {
	if len(plannerIDs) == 0 {
		return map[string]*models.BuildingElement{}, nil
	}

	query := `SELECT id, name, code, COALESCE(other_element_id, 0), COALESCE(planner_id, '')
	          FROM building_elements WHERE planner_id = ANY($1) AND deleted = false`
	rows, err := db.Query(query, pq.Array(plannerIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query building elements by planner id: %v", err)
	}
	defer rows.Close()

	byID := map[int]*models.BuildingElement{}
	byPlanner := map[string]*models.BuildingElement{}
	for rows.Next() {
		var element models.BuildingElement
		if err := rows.Scan(&element.ID, &element.Name, &element.Code, &element.OtherElementID, &element.PlannerID); err != nil {
			return nil, fmt.Errorf("failed to scan building element: %v", err)
		}
		byID[element.ID] = &element
		byPlanner[element.PlannerID] = &element
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := attachRecipes(db, byID); err != nil {
		return nil, err
	}
	return byPlanner, nil
}

// GetDefaultBuildingElements resolves a role -> catalog id map into loaded
// elements. Unknown ids are skipped.
func GetDefaultBuildingElements(db *sql.DB, roleToID map[string]int) (map[string]*models.BuildingElement, error) {
	ids := make([]int, 0, len(roleToID))
	for _, id := range roleToID {
		ids = append(ids, id)
	}

	byID, err := GetBuildingElementsByIDs(db, ids)
	if err != nil {
		return nil, err
	}

	byRole := map[string]*models.BuildingElement{}
	for role, id := range roleToID {
		if element, ok := byID[id]; ok {
			byRole[role] = element
		}
	}
	return byRole, nil
}

// attachRecipes fills in ProductResults and DemolishedProductResults for
// every element in the map, resolving product results and their resources.
func attachRecipes(db *sql.DB, elements map[int]*models.BuildingElement) error {
	if len(elements) == 0 {
		return nil
	}

	ids := make([]int, 0, len(elements))
	for id := range elements {
		ids = append(ids, id)
	}

	query := `SELECT building_element_id, product_result_id, count, demolished
	          FROM element_product_results WHERE building_element_id = ANY($1)
	          ORDER BY building_element_id, position`
	rows, err := db.Query(query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query element recipes: %v", err)
	}
	defer rows.Close()

	type recipeLine struct {
		elementID int
		usage     models.ProductResultUsage
		demolish  bool
	}

	var lines []recipeLine
	prIDs := map[int]bool{}
	for rows.Next() {
		var line recipeLine
		if err := rows.Scan(&line.elementID, &line.usage.ProductResultID, &line.usage.Count, &line.demolish); err != nil {
			return fmt.Errorf("failed to scan element recipe line: %v", err)
		}
		lines = append(lines, line)
		prIDs[line.usage.ProductResultID] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	results, err := loadProductResults(db, prIDs)
	if err != nil {
		return err
	}

	for _, line := range lines {
		element := elements[line.elementID]
		if element == nil {
			continue
		}
		line.usage.ProductResult = results[line.usage.ProductResultID]
		if line.demolish {
			element.DemolishedProductResults = append(element.DemolishedProductResults, line.usage)
		} else {
			element.ProductResults = append(element.ProductResults, line.usage)
		}
	}

	// Resolve the "other element" back-reference one level deep.
	var otherIDs []int
	for _, element := range elements {
		if element.Code == models.CodeOtherElement && element.OtherElementID != 0 {
			otherIDs = append(otherIDs, element.OtherElementID)
		}
	}
	if len(otherIDs) > 0 {
		others, err := GetBuildingElementsByIDs(db, otherIDs)
		if err != nil {
			return err
		}
		for _, element := range elements {
			if element.Code == models.CodeOtherElement && element.OtherElementID != 0 {
				element.OtherElement = others[element.OtherElementID]
			}
		}
	}

	return nil
}

// loadProductResults loads product results with their resource lines. The
// resource join is a LEFT JOIN on purpose: a recipe line whose resource was
// removed from the catalog still loads, with a nil Resource.
func loadProductResults(db *sql.DB, prIDs map[int]bool) (map[int]*models.ProductResult, error) {
	if len(prIDs) == 0 {
		return map[int]*models.ProductResult{}, nil
	}

	ids := make([]int, 0, len(prIDs))
	for id := range prIDs {
		ids = append(ids, id)
	}

	query := `SELECT id, title, unit, price, time FROM product_results WHERE id = ANY($1)`
	rows, err := db.Query(query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query product results: %v", err)
	}
	defer rows.Close()

	results := map[int]*models.ProductResult{}
	for rows.Next() {
		var pr models.ProductResult
		if err := rows.Scan(&pr.ID, &pr.Title, &pr.Unit, &pr.Price, &pr.Time); err != nil {
			return nil, fmt.Errorf("failed to scan product result: %v", err)
		}
		results[pr.ID] = &pr
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	resQuery := `SELECT prr.product_result_id, prr.resource_id, prr.count,
	                    r.id, r.name, r.type, r.price
	             FROM product_result_resources prr
	             LEFT JOIN resources r ON r.id = prr.resource_id AND r.deleted = false
	             WHERE prr.product_result_id = ANY($1)
	             ORDER BY prr.product_result_id, prr.position`
	resRows, err := db.Query(resQuery, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query product result resources: %v", err)
	}
	defer resRows.Close()

	for resRows.Next() {
		var prID int
		var usage models.ResourceUsage
		var resID sql.NullInt64
		var resName, resType sql.NullString
		var resPrice sql.NullFloat64
		if err := resRows.Scan(&prID, &usage.ResourceID, &usage.Count, &resID, &resName, &resType, &resPrice); err != nil {
			return nil, fmt.Errorf("failed to scan resource line: %v", err)
		}
		if resID.Valid {
			usage.Resource = &models.Resource{
				ID:    int(resID.Int64),
				Name:  resName.String,
				Type:  resType.String,
				Price: resPrice.Float64,
			}
		}
		if pr, ok := results[prID]; ok {
			pr.Resources = append(pr.Resources, usage)
		}
	}
	if err := resRows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// GetProductResultsByIDs loads product results with resolved resource lines,
// keyed by id. Used when a user overrides an element recipe by hand.
func GetProductResultsByIDs(db *sql.DB, ids []int) (map[int]*models.ProductResult, error) {
	set := map[int]bool{}
	for _, id := range ids {
		set[id] = true
	}
	return loadProductResults(db, set)
}

// GetPlannerCatalog loads the static door and window membership tables used
// to partition the planner's doors-and-windows bucket.
func GetPlannerCatalog(db *sql.DB) (models.PlannerCatalog, error) {
	catalog := models.PlannerCatalog{
		DoorIDs:   map[string]bool{},
		WindowIDs: map[string]bool{},
	}

	rows, err := db.Query(`SELECT planner_id, kind FROM planner_catalog`)
	if err != nil {
		return catalog, fmt.Errorf("failed to query planner catalog: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var plannerID, kind string
		if err := rows.Scan(&plannerID, &kind); err != nil {
			return catalog, fmt.Errorf("failed to scan planner catalog row: %v", err)
		}
		switch kind {
		case "door":
			catalog.DoorIDs[plannerID] = true
		case "window":
			catalog.WindowIDs[plannerID] = true
		}
	}
	return catalog, rows.Err()
}

// UpdateElementRecipe replaces an element's default recipe lines for one side.
func UpdateElementRecipe(db *sql.DB, elementID int, recipe []models.ProductResultUsage, demolish bool) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM element_product_results WHERE building_element_id = $1 AND demolished = $2`, elementID, demolish); err != nil {
		return fmt.Errorf("failed to clear element recipe: %v", err)
	}

	for i, line := range recipe {
		_, err := tx.Exec(`INSERT INTO element_product_results (building_element_id, product_result_id, count, demolished, position)
		                   VALUES ($1, $2, $3, $4, $5)`, elementID, line.ProductResultID, line.Count, demolish, i)
		if err != nil {
			return fmt.Errorf("failed to insert element recipe line: %v", err)
		}
	}

	return tx.Commit()
}
