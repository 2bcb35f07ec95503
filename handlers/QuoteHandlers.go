package handlers

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"
	"time"

	"buildcost/models"
	"buildcost/services"
	"buildcost/storage"

	"github.com/gin-gonic/gin"
)

// SubmitProjectHandler prices a project against every active organization
// @Summary Submit project for quotes
// @Description Refresh planner-driven projects from their scene, then walk the project's authoritative element lists and produce one quote per organization able to serve it. Projects containing composite work are only offered to fabricators. Organizations with a zero total are left out.
// @Tags Quotes
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {array} models.Quote
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/projects/{id}/submit [post]
func SubmitProjectHandler(db *sql.DB, planner *services.PlannerClient, mailer *services.EmailService) gin.HandlerFunc {
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

		// Planner-driven projects refresh their element lists before quoting
		// so the quotes never price a stale scene. A planner failure is not
		// fatal; the current lists are priced instead.
		if needsPlannerRefresh(project) && planner != nil {
			scene, err := planner.GetSceneByKey(c.Request.Context(), project.PlannerKey)
			if err != nil {
				reportPlannerFailure(db, mailer, project, err, c.ClientIP())
			} else if err := reconcileProject(db, project, scene); err != nil {
				reportPlannerFailure(db, mailer, project, err, c.ClientIP())
			}
		}

		organizations, err := storage.GetActiveOrganizations(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load organizations", "details": err.Error()})
			return
		}

		build, demolish := services.AuthoritativeLists(project)
		contributions := services.CollectContributions(build, demolish)
		quotes := services.BuildQuotes(contributions, organizations)

		if !project.Locked() && project.Status != models.StatusPending {
			if err := storage.UpdateProjectStatus(db, id, models.StatusPending); err != nil {
				log.Printf("[quotes] failed to move project %d to pending: %v", id, err)
			} else {
				project.Status = models.StatusPending
			}
		}

		c.JSON(http.StatusOK, quotes)
	}
}

// NotIncludedResourcesHandler reports the priced-out gap for one organization
// @Summary Not included resources
// @Description List workforce and composite resources the project needs but the organization's price tables do not cover. Only the build list is inspected. For locked projects the price tables frozen at accept time are used instead of the organization directory.
// @Tags Quotes
// @Produce json
// @Param id path int true "Project ID"
// @Param organization_id query int false "Organization ID (ignored for locked projects)"
// @Success 200 {object} models.NotIncludedResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/projects/{id}/not-included [get]
func NotIncludedResourcesHandler(db *sql.DB) gin.HandlerFunc {
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

		var specs []models.SpecificationPrice
		var composites []models.CompositePrice
		if project.Locked() {
			specs = project.OrgSpecifications
			composites = project.OrgComposites
		} else {
			orgID, err := strconv.Atoi(c.DefaultQuery("organization_id", "0"))
			if err != nil || orgID == 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "organization_id is required"})
				return
			}
			org, err := storage.GetOrganizationByID(db, orgID)
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "Organization not found"})
				return
			}
			specs = org.Specifications
			composites = org.Composites
		}

		specIDs := map[int]bool{}
		for _, spec := range specs {
			specIDs[spec.ResourceID] = true
		}
		compositeIDs := map[int]bool{}
		for _, comp := range composites {
			compositeIDs[comp.ResourceID] = true
		}

		// Only the build side feeds this report.
		build, _ := services.AuthoritativeLists(project)
		contributions := services.CollectContributions(build, nil)
		workforces, notComposites := services.NotIncludedForPricing(contributions, specIDs, compositeIDs)

		c.JSON(http.StatusOK, models.NotIncludedResponse{
			NotIncludedWorkforces: workforces,
			NotIncludedComposites: notComposites,
		})
	}
}

// MakeCompletedHandler closes out an accepted project
// @Summary Complete project
// @Description Mark an accepted project completed. Contractors and fabricators recompute the summary (labor time and material total) from the archived snapshots and store it; customers require a hired organization and read the stored summary instead. The customer is notified by mail.
// @Tags Quotes
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} models.ProjectSummary
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/projects/{id}/complete [post]
func MakeCompletedHandler(db *sql.DB, mailer *services.EmailService) gin.HandlerFunc {
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
		if project.Status != models.StatusAccepted {
			c.JSON(http.StatusConflict, gin.H{"error": "only accepted projects can be completed"})
			return
		}

		user := currentUser(c)
		role := ""
		if user != nil {
			role = user.RoleType
		}

		var summary models.ProjectSummary
		if services.RecomputesSummaryOnCompletion(role) {
			summary = services.SummaryFromSnapshots(project.BuildSnapshot, project.DemolishSnapshot)
			summary.ProjectID = project.ID
			if err := storage.SaveProjectSummary(db, summary); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save summary", "details": err.Error()})
				return
			}
		} else {
			// Customers close out against the totals their organization wrote.
			if project.OrganizationID == 0 {
				c.JSON(http.StatusConflict, gin.H{"error": "project has no hired organization"})
				return
			}
			stored, err := storage.GetProjectSummary(db, id)
			if err != nil {
				if models.IsNotFound(err) {
					c.JSON(http.StatusConflict, gin.H{"error": "completion summary has not been recorded yet"})
					return
				}
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load summary", "details": err.Error()})
				return
			}
			summary = *stored
		}

		if err := services.LockProject(project, models.StatusCompleted, nil, time.Now()); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		if err := storage.UpdateProjectStatus(db, id, models.StatusCompleted); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change status", "details": err.Error()})
			return
		}

		if mailer != nil {
			var owner models.User
			err := db.QueryRow(`SELECT id, email, name FROM users WHERE id = $1`, project.UserID).
				Scan(&owner.ID, &owner.Email, &owner.Name)
			if err == nil {
				if err := mailer.SendProjectCompletedEmail(owner, *project, summary); err != nil {
					log.Printf("[quotes] completion mail failed for project %d: %v", id, err)
				}
			}
		}

		storage.RecordActivity(models.ActivityLogGorm{
			ProjectID:  id,
			ActionType: models.LogActionSuccess,
			Message:    "project completed",
			IPAddress:  c.ClientIP(),
		})

		c.JSON(http.StatusOK, summary)
	}
}

// GetProjectSummaryHandler returns the stored completion summary
// @Summary Get project summary
// @Tags Quotes
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} models.ProjectSummary
// @Failure 404 {object} models.ErrorResponse
// @Router /api/projects/{id}/summary [get]
func GetProjectSummaryHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID"})
			return
		}

		summary, err := storage.GetProjectSummary(db, id)
		if err != nil {
			if models.IsNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load summary", "details": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}
