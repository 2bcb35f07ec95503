package handlers

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"buildcost/models"
	"buildcost/services"
	"buildcost/storage"

	"github.com/gin-gonic/gin"
)

// UpdateFromPlannerHandler pulls the planner scene into the live lists
// @Summary Reconcile project with the planner scene
// @Description Fetch the external planner scene and rebuild the project's live element lists from it. Usages already marked from_3d are carried over verbatim. A planner failure leaves the project untouched and is reported to the operational log and the developer inbox; the call still answers 200.
// @Tags Planner
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} models.Project
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/projects/{id}/planner-sync [post]
func UpdateFromPlannerHandler(db *sql.DB, planner *services.PlannerClient, mailer *services.EmailService) gin.HandlerFunc {
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
		if project.Locked() {
			c.JSON(http.StatusConflict, gin.H{"error": "Project is locked"})
			return
		}
		if project.IsManual || project.PlannerKey == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Project has no planner scene"})
			return
		}

		scene, err := planner.GetSceneByKey(c.Request.Context(), project.PlannerKey)
		if err != nil {
			// The planner is auxiliary data. The project keeps its current
			// lists and the caller is not failed.
			reportPlannerFailure(db, mailer, project, err, c.ClientIP())
			c.JSON(http.StatusOK, project)
			return
		}

		if err := reconcileProject(db, project, scene); err != nil {
			reportPlannerFailure(db, mailer, project, err, c.ClientIP())
			c.JSON(http.StatusOK, project)
			return
		}

		if err := recomputeRunningCost(db, project); err != nil {
			log.Printf("[planner] cost recompute failed for project %d: %v", project.ID, err)
		}

		storage.RecordActivity(models.ActivityLogGorm{
			ProjectID:  project.ID,
			UserID:     project.UserID,
			ActionType: models.LogActionSuccess,
			Message:    "elements reconciled from planner scene",
			IPAddress:  c.ClientIP(),
		})

		c.JSON(http.StatusOK, project)
	}
}

// needsPlannerRefresh reports whether a project's element lists track a
// planner scene and should be re-pulled before quoting.
func needsPlannerRefresh(p *models.Project) bool {
	return !p.IsManual && p.PlannerKey != ""
}

// reconcileProject resolves everything the reconciler needs and swaps in the
// new lists.
func reconcileProject(db *sql.DB, project *models.Project, scene *models.PlannerScene) error {
	var plainIDs []int
	for id := range scene.Build {
		plainIDs = append(plainIDs, id)
	}
	for id := range scene.Demolish {
		plainIDs = append(plainIDs, id)
	}
	byID, err := storage.GetBuildingElementsByIDs(db, plainIDs)
	if err != nil {
		return err
	}

	var plannerIDs []string
	for pid := range scene.BuildDoorsAndWindows {
		plannerIDs = append(plannerIDs, pid)
	}
	for pid := range scene.DemolishDoorsAndWindows {
		plannerIDs = append(plannerIDs, pid)
	}
	byPlannerID, err := storage.GetBuildingElementsByPlannerIDs(db, plannerIDs)
	if err != nil {
		return err
	}

	catalog, err := storage.GetPlannerCatalog(db)
	if err != nil {
		return err
	}

	var windowElement *models.BuildingElement
	if windowID, ok := project.DefaultBuildingElements[models.DefaultElementWindow]; ok {
		windowElement, err = storage.GetBuildingElementByID(db, windowID)
		if err != nil && !models.IsNotFound(err) {
			return err
		}
	}

	var preservedBuild, preservedDemolish []models.BuildingElementUsage
	for _, usage := range project.BuildingElements {
		if usage.From3D {
			preservedBuild = append(preservedBuild, usage)
		}
	}
	for _, usage := range project.DemolishBuildingElements {
		if usage.From3D {
			preservedDemolish = append(preservedDemolish, usage)
		}
	}

	reconciler := services.NewPlannerReconciler(catalog)
	build, demolish := reconciler.Reconcile(services.ReconcileInput{
		Scene:             scene,
		PreservedBuild:    preservedBuild,
		PreservedDemolish: preservedDemolish,
		ByID:              byID,
		ByPlannerID:       byPlannerID,
		WindowElement:     windowElement,
	})

	project.BuildingElements = build
	project.DemolishBuildingElements = demolish
	return storage.SaveProjectElements(db, project.ID, build, demolish)
}

// reportPlannerFailure records a planner problem in the activity log and
// mails the developer inbox. Neither failure path reaches the end user.
func reportPlannerFailure(db *sql.DB, mailer *services.EmailService, project *models.Project, cause error, ip string) {
	log.Printf("[planner] reconciliation failed for project %d: %v", project.ID, cause)

	storage.RecordActivity(models.ActivityLogGorm{
		ProjectID:  project.ID,
		UserID:     project.UserID,
		ActionType: models.LogActionPlannerError,
		Message:    cause.Error(),
		IPAddress:  ip,
	})

	if mailer != nil {
		alert := models.DevAlert{
			Subject: fmt.Sprintf("Planner reconciliation failed for project %d", project.ID),
			Text: fmt.Sprintf("<p>Project: %s (id %d)</p><p>Scene key: %s</p><p>Error: %s</p>",
				project.Name, project.ID, project.PlannerKey, cause.Error()),
		}
		if err := mailer.SendDevAlert(alert); err != nil {
			log.Printf("[planner] dev alert mail failed: %v", err)
		}
	}
}

// Make3DToManualHandler detaches a project from its planner scene
// @Summary Convert project to manual
// @Description Administrator only. Mark every current element usage as from_3d so later edits keep them, archive the planner scene and stop reconciling against it. Allowed only for created projects that are still planner-driven.
// @Tags Planner
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/projects/{id}/to-manual [post]
func Make3DToManualHandler(db *sql.DB, planner *services.PlannerClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil || !user.ActAsAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "Administrator rights required"})
			return
		}

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
		if err := services.ManualConversionAllowed(project); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}

		for i := range project.BuildingElements {
			project.BuildingElements[i].From3D = true
		}
		for i := range project.DemolishBuildingElements {
			project.DemolishBuildingElements[i].From3D = true
		}

		if err := storage.SaveProjectElements(db, project.ID, project.BuildingElements, project.DemolishBuildingElements); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save elements", "details": err.Error()})
			return
		}
		if err := storage.SetProjectManual(db, id, true); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update project", "details": err.Error()})
			return
		}

		if project.PlannerKey != "" {
			if planner != nil {
				if err := planner.ArchiveScene(c.Request.Context(), project.PlannerKey); err != nil {
					log.Printf("[planner] scene archive failed for project %d: %v", id, err)
				}
			}
			if err := storage.SetPlannerKey(db, id, ""); err != nil {
				log.Printf("[planner] failed to clear scene key for project %d: %v", id, err)
			}
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
