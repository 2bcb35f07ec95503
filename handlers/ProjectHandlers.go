package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"buildcost/models"
	"buildcost/repository"
	"buildcost/services"
	"buildcost/storage"
	"buildcost/utils"

	"github.com/gin-gonic/gin"
)

func currentUser(c *gin.Context) *models.User {
	value, ok := c.Get("user")
	if !ok {
		return nil
	}
	user, _ := value.(*models.User)
	return user
}

// validateProjectFields checks the editable project metadata.
func validateProjectFields(name, description, address, buildingType, projectType string, floors int) error {
	if len(name) < 2 || len(name) > 256 {
		return fmt.Errorf("name must be between 2 and 256 characters")
	}
	if len(description) < 2 || len(description) > 5000 {
		return fmt.Errorf("description must be between 2 and 5000 characters")
	}
	if len(address) < 2 || len(address) > 256 {
		return fmt.Errorf("address must be between 2 and 256 characters")
	}
	if floors < 0 || floors > 1000 {
		return fmt.Errorf("floors must be between 0 and 1000")
	}
	switch buildingType {
	case models.BuildingTypeHouse, models.BuildingTypeApartment, models.BuildingTypeCommercial:
	default:
		return fmt.Errorf("unknown building type %q", buildingType)
	}
	if buildingType == models.BuildingTypeApartment && floors < 1 {
		return fmt.Errorf("apartment projects need at least one floor")
	}
	switch projectType {
	case models.ProjectTypeNew, models.ProjectTypeRenovation:
	default:
		return fmt.Errorf("unknown project type %q", projectType)
	}
	return nil
}

// recomputeRunningCost reruns the cost walk over the authoritative lists and
// stores the material baseline plus the marked up running estimate. Safe to
// call repeatedly; same lists produce the same totals.
func recomputeRunningCost(db *sql.DB, p *models.Project) error {
	build, demolish := services.AuthoritativeLists(p)
	contributions := services.CollectContributions(build, demolish)
	material := utils.RoundAndFix(services.TotalMaterialCost(contributions))
	running := utils.RoundAndFix(material + utils.PercentCalculator(material, services.MarkupPercent))

	p.MaterialPrice = material
	p.RunningCost = running
	return storage.UpdateRunningCost(db, p.ID, material, running)
}

// CreateProjectHandler creates a new project
// @Summary Create project
// @Description Create a new project with default element configuration
// @Tags Projects
// @Accept json
// @Produce json
// @Param request body models.CreateProjectRequest true "Project data"
// @Success 201 {object} models.Project
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /api/projects [post]
func CreateProjectHandler(db *sql.DB, planner *services.PlannerClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}

		var req models.CreateProjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
			return
		}
		if err := validateProjectFields(req.Name, req.Description, req.Address, req.BuildingType, req.ProjectType, req.Floors); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.BuildingType == models.BuildingTypeHouse && req.Elevator {
			c.JSON(http.StatusBadRequest, gin.H{"error": "house projects cannot have an elevator"})
			return
		}
		// An elevator makes no sense below three floors; drop it silently.
		if req.Floors < 3 {
			req.Elevator = false
		}
		if !req.ParkingProvided {
			req.ParkingRate = 0
		}

		var nameCount int
		err := db.QueryRow(`SELECT COUNT(*) FROM projects WHERE user_id = $1 AND name = $2 AND deleted = false`,
			user.ID, req.Name).Scan(&nameCount)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check project name", "details": err.Error()})
			return
		}
		if nameCount > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "a project with this name already exists"})
			return
		}

		address := req.Address
		if req.IsAddressMatches && user.Address != "" {
			address = user.Address
		}

		project := &models.Project{
			UserID:                  user.ID,
			Name:                    req.Name,
			Code:                    repository.GenerateProjectCode(),
			Description:             req.Description,
			Address:                 address,
			Status:                  models.StatusCreated,
			BuildingType:            req.BuildingType,
			ProjectType:             req.ProjectType,
			Floors:                  req.Floors,
			Elevator:                req.Elevator,
			ParkingProvided:         req.ParkingProvided,
			ParkingRate:             req.ParkingRate,
			IsManual:                req.IsManual,
			DefaultBuildingElements: defaultElementConfig(db),
		}

		id, err := storage.CreateProject(db, project)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project", "details": err.Error()})
			return
		}
		project.ID = id

		// The planner scene is auxiliary; a planner outage downgrades the
		// project to manual instead of failing the create.
		if !req.IsManual && planner != nil {
			sceneName := repository.GeneratePlannerSceneName(id, req.Name)
			key, err := planner.CreateScene(c.Request.Context(), sceneName)
			if err != nil {
				log.Printf("[planner] scene create failed, project %d continues as manual: %v", id, err)
				project.IsManual = true
				if err := storage.SetProjectManual(db, id, true); err != nil {
					log.Printf("[planner] failed to mark project %d manual: %v", id, err)
				}
			} else {
				project.PlannerKey = key
				if err := storage.SetPlannerKey(db, id, key); err != nil {
					log.Printf("[planner] failed to store scene key for project %d: %v", id, err)
				}
			}
		}

		storage.RecordActivity(models.ActivityLogGorm{
			ProjectID:  id,
			UserID:     user.ID,
			ActionType: models.LogActionSuccess,
			Message:    "project created",
			IPAddress:  c.ClientIP(),
		})

		c.JSON(http.StatusCreated, project)
	}
}

// defaultElementConfig reads the global default element map (role -> catalog
// id) used to seed new projects.
func defaultElementConfig(db *sql.DB) map[string]int {
	rows, err := db.Query(`SELECT role, building_element_id FROM default_building_elements`)
	if err != nil {
		log.Printf("[projects] failed to load default element config: %v", err)
		return map[string]int{}
	}
	defer rows.Close()

	config := map[string]int{}
	for rows.Next() {
		var role string
		var id int
		if err := rows.Scan(&role, &id); err != nil {
			log.Printf("[projects] failed to scan default element row: %v", err)
			continue
		}
		config[role] = id
	}
	return config
}

// GetProjectHandler returns one project
// @Summary Get project by ID
// @Description Get a project; locked projects answer from their archived snapshots
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} models.Project
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/projects/{id} [get]
func GetProjectHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID"})
			return
		}

		project, err := storage.GetProjectByID(db, id)
		if err != nil {
			if models.IsNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load project", "details": err.Error()})
			return
		}

		// Locked projects report the frozen lists, not the live ones.
		if project.Locked() {
			build, demolish := services.AuthoritativeLists(project)
			project.BuildingElements = attachCatalogDetails(db, build)
			project.DemolishBuildingElements = attachCatalogDetails(db, demolish)
		}

		c.JSON(http.StatusOK, project)
	}
}

// attachCatalogDetails resolves element details for snapshot derived usages,
// expanding "other element" references one level.
func attachCatalogDetails(db *sql.DB, list []models.BuildingElementUsage) []models.BuildingElementUsage {
	var ids []int
	for _, usage := range list {
		if usage.Element == nil {
			ids = append(ids, usage.BuildingElementID)
		}
	}
	if len(ids) == 0 {
		return list
	}
	catalog, err := storage.GetBuildingElementsByIDs(db, ids)
	if err != nil {
		log.Printf("[projects] failed to resolve snapshot elements: %v", err)
		return list
	}
	for i := range list {
		if list[i].Element == nil {
			list[i].Element = catalog[list[i].BuildingElementID]
		}
	}
	return list
}

// mergePlannerScenes folds the planner's scene listing into a local project
// list. Waiting projects whose scene still lives planner-side stay hidden
// until they are opened there, matched projects pick up their scene thumbnail,
// and scenes with no local counterpart are returned for migration.
func mergePlannerScenes(projects []models.Project, scenes []models.PlannerSceneInfo) ([]models.Project, []models.PlannerSceneInfo) {
	byKey := make(map[string]models.PlannerSceneInfo, len(scenes))
	for _, s := range scenes {
		byKey[s.Key] = s
	}

	matched := map[string]bool{}
	kept := make([]models.Project, 0, len(projects))
	for _, p := range projects {
		if p.PlannerKey != "" {
			if scene, ok := byKey[p.PlannerKey]; ok {
				matched[p.PlannerKey] = true
				if p.Status == models.StatusWaiting {
					continue
				}
				if p.Picture == "" && scene.Thumbnail != "" {
					p.Picture = scene.Thumbnail
				}
			}
		}
		kept = append(kept, p)
	}

	var orphans []models.PlannerSceneInfo
	for _, s := range scenes {
		if !matched[s.Key] {
			orphans = append(orphans, s)
		}
	}
	return kept, orphans
}

// ListProjectsHandler returns the caller's projects
// @Summary List projects
// @Description List projects owned by the authenticated user, merged against the planner's scene listing. Scenes created planner-side that have no local project are migrated in as waiting projects; a planner failure leaves the local list untouched.
// @Tags Projects
// @Accept json
// @Produce json
// @Success 200 {array} models.Project
// @Failure 401 {object} models.ErrorResponse
// @Router /api/projects [get]
func ListProjectsHandler(db *sql.DB, planner *services.PlannerClient, mailer *services.EmailService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}

		projects, err := storage.GetProjectsByUser(db, user.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list projects", "details": err.Error()})
			return
		}

		if planner == nil {
			c.JSON(http.StatusOK, projects)
			return
		}

		scenes, err := planner.ListScenes(c.Request.Context())
		if err != nil {
			// The planner is auxiliary data. The local list still answers.
			log.Printf("[projects] planner scene listing failed: %v", err)
			if mailer != nil {
				alert := models.DevAlert{
					Subject: "Planner error on project listing",
					Text:    fmt.Sprintf("<p>User: %d</p><p>Error: %s</p>", user.ID, err.Error()),
				}
				if err := mailer.SendDevAlert(alert); err != nil {
					log.Printf("[projects] dev alert mail failed: %v", err)
				}
			}
			storage.RecordActivity(models.ActivityLogGorm{
				UserID:     user.ID,
				ActionType: models.LogActionPlannerError,
				Message:    "planner scene listing failed: " + err.Error(),
				IPAddress:  c.ClientIP(),
			})
			c.JSON(http.StatusOK, projects)
			return
		}

		merged, orphans := mergePlannerScenes(projects, scenes)
		for _, scene := range orphans {
			address := user.Address
			if address == "" {
				address = "No location set"
			}
			p := &models.Project{
				UserID:                  user.ID,
				Name:                    scene.Name,
				Code:                    repository.GenerateProjectCode(),
				Description:             scene.Name,
				Address:                 address,
				Status:                  models.StatusWaiting,
				BuildingType:            models.BuildingTypeHouse,
				ProjectType:             models.ProjectTypeNew,
				PlannerKey:              scene.Key,
				Picture:                 scene.Thumbnail,
				DefaultBuildingElements: defaultElementConfig(db),
			}
			id, err := storage.CreateProject(db, p)
			if err != nil {
				log.Printf("[projects] failed to migrate planner scene %s: %v", scene.Key, err)
				continue
			}
			p.ID = id
			merged = append(merged, *p)
		}

		c.JSON(http.StatusOK, merged)
	}
}

// UpdateProjectHandler updates project metadata or element lists
// @Summary Update project
// @Description Update project fields, or replace element lists when only_update_elements is set. On locked projects only an administrator may adjust element counts; counts merge into the archived snapshots without touching frozen recipes.
// @Tags Projects
// @Accept json
// @Produce json
// @Param request body models.UpdateProjectRequest true "Update data"
// @Success 200 {object} models.Project
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/projects [put]
func UpdateProjectHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}

		var req models.UpdateProjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
			return
		}

		project, err := storage.GetProjectByID(db, req.ID)
		if err != nil {
			if models.IsNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load project", "details": err.Error()})
			return
		}
		if project.UserID != user.ID && !user.ActAsAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not your project"})
			return
		}

		if project.Locked() {
			if !user.ActAsAdmin {
				c.JSON(http.StatusForbidden, gin.H{"error": "Project is locked"})
				return
			}
			if err := applyLockedElementEdits(db, project, req.BuildingElements, user, c.ClientIP()); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update archived elements", "details": err.Error()})
				return
			}
			c.JSON(http.StatusOK, project)
			return
		}

		if !req.OnlyUpdateElements {
			if err := validateProjectFields(req.Name, req.Description, req.Address, req.BuildingType, req.ProjectType, req.Floors); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if req.Floors < 3 {
				req.Elevator = false
			}
			if !req.ParkingProvided {
				req.ParkingRate = 0
			}
			project.Name = req.Name
			project.Description = req.Description
			project.Address = req.Address
			project.BuildingType = req.BuildingType
			project.ProjectType = req.ProjectType
			project.Floors = req.Floors
			project.Elevator = req.Elevator
			project.ParkingProvided = req.ParkingProvided
			project.ParkingRate = req.ParkingRate
			if err := storage.UpdateProjectFields(db, project); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update project", "details": err.Error()})
				return
			}
		}

		if len(req.BuildingElements) > 0 || req.OnlyUpdateElements {
			if err := rebuildElementLists(db, project, req.BuildingElements); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update elements", "details": err.Error()})
				return
			}
			if err := recomputeRunningCost(db, project); err != nil {
				log.Printf("[projects] cost recompute failed for project %d: %v", project.ID, err)
			}
		}

		c.JSON(http.StatusOK, project)
	}
}

// rebuildElementLists replaces the live lists from submitted entries. A
// submitted element keeps its current recipe override when one exists,
// otherwise it gets the catalog default for its side. Renovation projects
// route demolished entries to the demolish list.
func rebuildElementLists(db *sql.DB, project *models.Project, submitted []models.ElementUpdateRequest) error {
	ids := make([]int, 0, len(submitted))
	for _, entry := range submitted {
		ids = append(ids, entry.ID)
	}
	catalog, err := storage.GetBuildingElementsByIDs(db, ids)
	if err != nil {
		return err
	}

	currentRecipe := map[string][]models.ProductResultUsage{}
	usageKey := func(id int, demolished bool) string {
		return fmt.Sprintf("%d/%t", id, demolished)
	}
	for _, usage := range project.BuildingElements {
		currentRecipe[usageKey(usage.BuildingElementID, false)] = usage.ProductResults
	}
	for _, usage := range project.DemolishBuildingElements {
		currentRecipe[usageKey(usage.BuildingElementID, true)] = usage.ProductResults
	}

	var build, demolish []models.BuildingElementUsage
	for _, entry := range submitted {
		element, ok := catalog[entry.ID]
		if !ok {
			continue
		}
		demolished := project.ProjectType == models.ProjectTypeRenovation && entry.Demolished
		recipe := currentRecipe[usageKey(entry.ID, demolished)]
		if recipe == nil {
			recipe = element.ProductResults
			if demolished {
				recipe = element.DemolishedProductResults
			}
		}
		usage := models.BuildingElementUsage{
			BuildingElementID: element.ID,
			Count:             entry.Count,
			From3D:            entry.From3D,
			Demolished:        demolished,
			Element:           element,
			ProductResults:    recipe,
		}
		if demolished {
			demolish = append(demolish, usage)
		} else {
			build = append(build, usage)
		}
	}

	project.BuildingElements = build
	project.DemolishBuildingElements = demolish
	return storage.SaveProjectElements(db, project.ID, build, demolish)
}

// applyLockedElementEdits merges quantity edits into the archived snapshots.
func applyLockedElementEdits(db *sql.DB, project *models.Project, submitted []models.ElementUpdateRequest, user *models.User, ip string) error {
	var buildEdits, demolishEdits []models.ElementCountEdit
	ids := make([]int, 0, len(submitted))
	for _, entry := range submitted {
		ids = append(ids, entry.ID)
		edit := models.ElementCountEdit{BuildingElementID: entry.ID, Count: entry.Count}
		if project.ProjectType == models.ProjectTypeRenovation && entry.Demolished {
			demolishEdits = append(demolishEdits, edit)
		} else {
			buildEdits = append(buildEdits, edit)
		}
	}

	catalog, err := storage.GetBuildingElementsByIDs(db, ids)
	if err != nil {
		return err
	}

	project.BuildSnapshot = services.MergeQuantityEdits(project.BuildSnapshot, buildEdits, catalog, false)
	project.DemolishSnapshot = services.MergeQuantityEdits(project.DemolishSnapshot, demolishEdits, catalog, true)

	if err := storage.SaveSnapshots(db, project.ID, project.BuildSnapshot, project.DemolishSnapshot); err != nil {
		return err
	}

	storage.RecordActivity(models.ActivityLogGorm{
		ProjectID:  project.ID,
		UserID:     user.ID,
		ActionType: models.LogActionAdminEdit,
		Message:    fmt.Sprintf("archived element counts adjusted (%d entries)", len(submitted)),
		IPAddress:  ip,
	})
	return nil
}

// RenameProjectHandler renames a project
// @Summary Rename project
// @Tags Projects
// @Accept json
// @Produce json
// @Param request body models.RenameProjectRequest true "New name"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /api/projects/rename [put]
func RenameProjectHandler(db *sql.DB, planner *services.PlannerClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RenameProjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
			return
		}
		if len(req.NewName) < 2 || len(req.NewName) > 256 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name must be between 2 and 256 characters"})
			return
		}

		project, err := storage.GetProjectByID(db, req.ProjectID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}

		if err := storage.RenameProject(db, req.ProjectID, req.NewName); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rename project", "details": err.Error()})
			return
		}

		if project.PlannerKey != "" && planner != nil {
			sceneName := repository.GeneratePlannerSceneName(project.ID, req.NewName)
			if err := planner.UpdateSceneName(c.Request.Context(), project.PlannerKey, sceneName); err != nil {
				log.Printf("[planner] scene rename failed for project %d: %v", project.ID, err)
			}
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// deleteBlockedByHiring refuses deletion while active hiring requests exist,
// except for completed projects where lingering requests no longer matter.
func deleteBlockedByHiring(activeRequests int, status string) bool {
	return activeRequests > 0 && status != models.StatusCompleted
}

// DeleteProjectHandler soft deletes a project
// @Summary Delete project
// @Description Soft delete a project. Refused while the project has open hiring requests, unless the project is already completed.
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/projects/{id} [delete]
func DeleteProjectHandler(db *sql.DB, planner *services.PlannerClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID"})
			return
		}

		project, err := storage.GetProjectByID(db, id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}

		count, err := storage.CountHiringRequests(db, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check hiring requests", "details": err.Error()})
			return
		}
		if deleteBlockedByHiring(count, project.Status) {
			c.JSON(http.StatusConflict, gin.H{"error": "Project has open hiring requests"})
			return
		}

		if err := storage.SoftDeleteProject(db, id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete project", "details": err.Error()})
			return
		}

		if project.PlannerKey != "" && planner != nil {
			if err := planner.ArchiveScene(c.Request.Context(), project.PlannerKey); err != nil {
				log.Printf("[planner] scene archive failed for project %d: %v", id, err)
			}
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// ChangePictureHandler updates the project picture
// @Summary Change project picture
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /api/projects/{id}/picture [put]
func ChangePictureHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID"})
			return
		}

		var req struct {
			Picture string `json:"picture" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
			return
		}

		if err := storage.ChangeProjectPicture(db, id, req.Picture); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change picture", "details": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// GetBuildingElementHandler returns one catalog element with recipes
// @Summary Get building element
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path int true "Building element ID"
// @Success 200 {object} models.BuildingElement
// @Failure 404 {object} models.ErrorResponse
// @Router /api/building-elements/{id} [get]
func GetBuildingElementHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid element ID"})
			return
		}

		element, err := storage.GetBuildingElementByID(db, id)
		if err != nil {
			if models.IsNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load element", "details": err.Error()})
			return
		}
		c.JSON(http.StatusOK, element)
	}
}

// UpdateCatalogRecipeHandler replaces a catalog element's default recipe
// @Summary Update catalog element recipe
// @Description Replace the shared catalog default recipe for one side of an element. Admin only; projects keep their stored recipe copies.
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path int true "Building element ID"
// @Param request body models.CatalogRecipeRequest true "New default recipe"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /api/building-elements/{id}/recipe [put]
func UpdateCatalogRecipeHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil || !user.ActAsAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid element ID"})
			return
		}

		var req models.CatalogRecipeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
			return
		}

		if _, err := storage.GetBuildingElementByID(db, id); err != nil {
			if models.IsNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load element", "details": err.Error()})
			return
		}

		recipe := make([]models.ProductResultUsage, 0, len(req.ProductResults))
		for _, line := range req.ProductResults {
			recipe = append(recipe, models.ProductResultUsage{
				ProductResultID: line.ProductResultID,
				Count:           line.Count,
			})
		}

		if err := storage.UpdateElementRecipe(db, id, recipe, req.Demolish); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update recipe", "details": err.Error()})
			return
		}

		storage.RecordActivity(models.ActivityLogGorm{
			UserID:     user.ID,
			ActionType: models.LogActionAdminEdit,
			Message:    fmt.Sprintf("catalog recipe replaced for element %d", id),
			IPAddress:  c.ClientIP(),
		})

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// UpdateElementRecipeHandler overrides or resets a project element's recipe
// @Summary Update element recipe
// @Description Override a project element's billed recipe, or reset it to the catalog default. Not available on locked projects.
// @Tags Projects
// @Accept json
// @Produce json
// @Param request body models.UpdateElementRecipeRequest true "Recipe override"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /api/projects/element-recipe [put]
func UpdateElementRecipeHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.UpdateElementRecipeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
			return
		}

		project, err := storage.GetProjectByID(db, req.ProjectID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}
		if project.Locked() {
			c.JSON(http.StatusForbidden, gin.H{"error": "Project is locked"})
			return
		}

		var recipe []models.ProductResultUsage
		if !req.ResetDefault {
			ids := make([]int, 0, len(req.ProductResults))
			for _, line := range req.ProductResults {
				ids = append(ids, line.ProductResultID)
			}
			results, err := storage.GetProductResultsByIDs(db, ids)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve product results", "details": err.Error()})
				return
			}
			for _, line := range req.ProductResults {
				recipe = append(recipe, models.ProductResultUsage{
					ProductResultID: line.ProductResultID,
					Count:           line.Count,
					ProductResult:   results[line.ProductResultID],
				})
			}
		}

		applied := false
		for i := range project.BuildingElements {
			if project.BuildingElements[i].BuildingElementID != req.ElementID {
				continue
			}
			if req.ResetDefault {
				if project.BuildingElements[i].Element != nil {
					project.BuildingElements[i].ProductResults = project.BuildingElements[i].Element.ProductResults
				}
			} else {
				project.BuildingElements[i].ProductResults = recipe
			}
			applied = true
		}
		for i := range project.DemolishBuildingElements {
			if project.DemolishBuildingElements[i].BuildingElementID != req.ElementID {
				continue
			}
			if req.ResetDefault {
				if project.DemolishBuildingElements[i].Element != nil {
					project.DemolishBuildingElements[i].ProductResults = project.DemolishBuildingElements[i].Element.DemolishedProductResults
				}
			} else {
				project.DemolishBuildingElements[i].ProductResults = recipe
			}
			applied = true
		}
		if !applied {
			c.JSON(http.StatusNotFound, gin.H{"error": "Element not present in project"})
			return
		}

		if err := storage.SaveProjectElements(db, project.ID, project.BuildingElements, project.DemolishBuildingElements); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save recipe", "details": err.Error()})
			return
		}
		if err := recomputeRunningCost(db, project); err != nil {
			log.Printf("[projects] cost recompute failed for project %d: %v", project.ID, err)
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// GetDefaultElementsHandler returns the project's default element map
// @Summary Get default building elements
// @Tags Projects
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} map[string]int
// @Failure 404 {object} models.ErrorResponse
// @Router /api/projects/{id}/default-elements [get]
func GetDefaultElementsHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID"})
			return
		}

		project, err := storage.GetProjectByID(db, id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}
		c.JSON(http.StatusOK, project.DefaultBuildingElements)
	}
}

// SetDefaultElementsHandler replaces the project's default element map
// @Summary Set default building elements
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Param request body models.SetDefaultElementsRequest true "Default elements"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /api/projects/{id}/default-elements [put]
func SetDefaultElementsHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID"})
			return
		}

		var req models.SetDefaultElementsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
			return
		}

		ids := make([]int, 0, len(req.DefaultElements))
		for _, elementID := range req.DefaultElements {
			ids = append(ids, elementID)
		}
		known, err := storage.GetBuildingElementsByIDs(db, ids)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve elements", "details": err.Error()})
			return
		}
		for role, elementID := range req.DefaultElements {
			if known[elementID] == nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown element %d for role %q", elementID, role)})
				return
			}
		}

		encoded, err := json.Marshal(req.DefaultElements)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode default elements"})
			return
		}
		if _, err := db.Exec(`UPDATE projects SET default_building_elements = $1 WHERE id = $2`, encoded, id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save default elements", "details": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// ChangeProjectStatusHandler moves a project through its lifecycle
// @Summary Change project status
// @Description Move a project between statuses. Transitions into accepted freeze the element lists and the hired organization's price tables; there is no transition back out of a locked status.
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} models.Project
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/projects/{id}/status [put]
func ChangeProjectStatusHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID"})
			return
		}

		var req struct {
			Status         string `json:"status" binding:"required"`
			OrganizationID int    `json:"organization_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
			return
		}

		project, err := storage.GetProjectByID(db, id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}

		if models.IsLockedStatus(req.Status) {
			var org *models.Organization
			if req.OrganizationID != 0 {
				org, err = storage.GetOrganizationByID(db, req.OrganizationID)
				if err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": "Organization not found"})
					return
				}
				project.OrganizationID = org.ID
			}
			if err := services.LockProject(project, req.Status, org, time.Now()); err != nil {
				if models.IsRuleViolation(err) {
					c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
					return
				}
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if err := storage.SaveProjectLock(db, project); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to persist lock", "details": err.Error()})
				return
			}
		} else {
			if project.Locked() {
				c.JSON(http.StatusConflict, gin.H{"error": "locked projects cannot change status"})
				return
			}
			switch req.Status {
			case models.StatusWaiting, models.StatusCreated, models.StatusPending:
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
				return
			}
			project.Status = req.Status
			if err := storage.UpdateProjectStatus(db, id, req.Status); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change status", "details": err.Error()})
				return
			}
		}

		c.JSON(http.StatusOK, project)
	}
}
