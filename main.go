// @title           BuildCost API
// @version         1.0
// @description     Construction cost aggregation backend - project element lists, per-organization quotes, snapshot archival and planner reconciliation.
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// @schemes http https
package main

import (
	"database/sql"
	"log"
	"os"
	"sync/atomic"
	"time"

	_ "buildcost/docs"
	"buildcost/handlers"
	"buildcost/models"
	"buildcost/services"
	"buildcost/storage"
	"buildcost/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

var cronRunning int32

func CORSConfig() cors.Config {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{
		"http://localhost:8080",
		"http://localhost:3000",
	}
	if origin := os.Getenv("FRONTEND_ORIGIN"); origin != "" {
		corsConfig.AllowOrigins = append(corsConfig.AllowOrigins, origin)
	}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Content-Type", "Content-Length", "Accept-Encoding",
		"Accept", "Origin", "X-Requested-With", "Authorization", "User-Agent",
		"Cache-Control", "Referer",
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "HEAD", "PATCH"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "Authorization", "Content-Type"}
	corsConfig.MaxAge = 12 * time.Hour
	return corsConfig
}

// runCostSweep recomputes the stored running cost of every live project.
// Locked projects are skipped; their totals come from frozen snapshots and
// cannot drift.
func runCostSweep(db *sql.DB) error {
	ids, err := storage.ListLiveProjectIDs(db)
	if err != nil {
		return err
	}

	for _, id := range ids {
		project, err := storage.GetProjectByID(db, id)
		if err != nil {
			log.Printf("[cost-sweep] skipping project %d: %v", id, err)
			continue
		}

		build, demolish := services.AuthoritativeLists(project)
		contributions := services.CollectContributions(build, demolish)
		material := utils.RoundAndFix(services.TotalMaterialCost(contributions))
		running := utils.RoundAndFix(material + utils.PercentCalculator(material, services.MarkupPercent))

		if err := storage.UpdateRunningCost(db, id, material, running); err != nil {
			log.Printf("[cost-sweep] failed to store cost for project %d: %v", id, err)
			storage.RecordActivity(models.ActivityLogGorm{
				ProjectID:  id,
				ActionType: models.LogActionError,
				Message:    "cost sweep store failed: " + err.Error(),
			})
		}
	}
	return nil
}

func main() {
	db := storage.InitDB()
	_ = storage.InitGormDB()

	planner := services.NewPlannerClient()
	mailer := services.NewEmailService()

	c := cron.New(
		cron.WithLogger(cron.VerbosePrintfLogger(log.New(os.Stdout, "cron: ", log.LstdFlags))),
	)

	// Hourly cost sweep over live projects.
	if _, err := c.AddFunc("0 * * * *", func() {
		if !atomic.CompareAndSwapInt32(&cronRunning, 0, 1) {
			log.Println("Previous cost sweep still running. Skipping this run.")
			return
		}
		defer atomic.StoreInt32(&cronRunning, 0)

		if err := runCostSweep(db); err != nil {
			log.Printf("[cost-sweep] sweep failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule cost sweep: %v", err)
	}

	// Daily session cleanup.
	if _, err := c.AddFunc("30 3 * * *", func() {
		if err := storage.CleanupExpiredSessions(db); err != nil {
			log.Printf("[sessions] cleanup failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule session cleanup: %v", err)
	}

	c.Start()

	r := gin.Default()
	r.Use(cors.New(CORSConfig()))

	// ==================== AUTH ====================
	r.POST("/api/login", handlers.LoginHandler(db))
	r.POST("/api/refresh-token", handlers.RefreshTokenHandler(db))
	r.POST("/api/validate-session", handlers.ValidateSession(db))
	r.DELETE("/api/session/:user_id", handlers.DeleteSessionHandler(db))

	// ==================== PROJECTS ====================
	auth := r.Group("/api", handlers.AuthMiddleware(db))
	auth.POST("/projects", handlers.CreateProjectHandler(db, planner))
	auth.GET("/projects", handlers.ListProjectsHandler(db, planner, mailer))
	auth.GET("/projects/:id", handlers.GetProjectHandler(db))
	auth.PUT("/projects", handlers.UpdateProjectHandler(db))
	auth.PUT("/projects/rename", handlers.RenameProjectHandler(db, planner))
	auth.DELETE("/projects/:id", handlers.DeleteProjectHandler(db, planner))
	auth.PUT("/projects/:id/picture", handlers.ChangePictureHandler(db))
	auth.PUT("/projects/:id/status", handlers.ChangeProjectStatusHandler(db))
	auth.GET("/projects/:id/default-elements", handlers.GetDefaultElementsHandler(db))
	auth.PUT("/projects/:id/default-elements", handlers.SetDefaultElementsHandler(db))
	auth.PUT("/projects/element-recipe", handlers.UpdateElementRecipeHandler(db))
	auth.GET("/building-elements/:id", handlers.GetBuildingElementHandler(db))
	auth.PUT("/building-elements/:id/recipe", handlers.UpdateCatalogRecipeHandler(db))

	// ==================== QUOTES ====================
	auth.POST("/projects/:id/submit", handlers.SubmitProjectHandler(db, planner, mailer))
	auth.GET("/projects/:id/not-included", handlers.NotIncludedResourcesHandler(db))
	auth.POST("/projects/:id/complete", handlers.MakeCompletedHandler(db, mailer))
	auth.GET("/projects/:id/summary", handlers.GetProjectSummaryHandler(db))

	// ==================== PLANNER ====================
	auth.POST("/projects/:id/planner-sync", handlers.UpdateFromPlannerHandler(db, planner, mailer))
	auth.POST("/projects/:id/to-manual", handlers.Make3DToManualHandler(db, planner))

	// ==================== EXPORT ====================
	auth.GET("/projects/:id/export", handlers.ExportElementBillXLSX(db))
	auth.GET("/projects/:id/quote-pdf", handlers.GenerateQuotePDF(db))
	auth.GET("/projects/:id/qr", handlers.GenerateProjectQRCode(db))

	// ==================== OPERATIONS ====================
	auth.GET("/activity-logs", handlers.GetActivityLogsHandler())

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
