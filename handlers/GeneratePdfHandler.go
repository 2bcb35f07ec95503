package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"buildcost/models"
	"buildcost/services"
	"buildcost/storage"
	"buildcost/utils"

	"github.com/gin-gonic/gin"
	"github.com/jung-kurt/gofpdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// GenerateQuotePDF godoc
// @Summary      Generate quote summary PDF
// @Description  Render the per-organization quotes for a project into a downloadable PDF.
// @Tags         export
// @Param        id   path  int  true  "Project ID"
// @Success      200  "PDF file"
// @Failure      400  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /api/projects/{id}/quote-pdf [get]
func GenerateQuotePDF(db *sql.DB) gin.HandlerFunc {
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

		organizations, err := storage.GetActiveOrganizations(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load organizations", "details": err.Error()})
			return
		}

		build, demolish := services.AuthoritativeLists(project)
		contributions := services.CollectContributions(build, demolish)
		quotes := services.BuildQuotes(contributions, organizations)
		material := utils.RoundAndFix(services.TotalMaterialCost(contributions))

		titleCaser := cases.Title(language.Und)

		pdf := gofpdf.New("P", "mm", "A4", "")
		pdf.AddPage()

		pdf.SetFont("Arial", "B", 16)
		pdf.Cell(0, 10, "Project Cost Quotes")
		pdf.Ln(12)

		pdf.SetFont("Arial", "", 11)
		pdf.Cell(0, 7, fmt.Sprintf("Project: %s (id %d)", project.Name, project.ID))
		pdf.Ln(6)
		pdf.Cell(0, 7, fmt.Sprintf("Status: %s", titleCaser.String(project.Status)))
		pdf.Ln(6)
		pdf.Cell(0, 7, fmt.Sprintf("Material baseline: %s", utils.MakeDecimal(material)))
		pdf.Ln(6)
		pdf.Cell(0, 7, fmt.Sprintf("Generated: %s", time.Now().Format("2006-01-02 15:04")))
		pdf.Ln(10)

		pdf.SetFont("Arial", "B", 11)
		pdf.SetFillColor(230, 230, 230)
		pdf.CellFormat(70, 8, "Organization", "1", 0, "L", true, 0, "")
		pdf.CellFormat(35, 8, "Role", "1", 0, "L", true, 0, "")
		pdf.CellFormat(35, 8, "Cost", "1", 0, "R", true, 0, "")
		pdf.CellFormat(40, 8, "Missing resources", "1", 0, "R", true, 0, "")
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 10)
		for _, quote := range quotes {
			missing := len(quote.NotIncludedWorkforces) + len(quote.NotIncludedComposites)
			pdf.CellFormat(70, 7, quote.Name, "1", 0, "L", false, 0, "")
			pdf.CellFormat(35, 7, titleCaser.String(quote.RoleType), "1", 0, "L", false, 0, "")
			pdf.CellFormat(35, 7, quote.CostDisplay, "1", 0, "R", false, 0, "")
			pdf.CellFormat(40, 7, strconv.Itoa(missing), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}

		if len(quotes) == 0 {
			pdf.Ln(4)
			pdf.Cell(0, 7, "No organization can serve this project at its current element configuration.")
		}

		c.Header("Content-Type", "application/pdf")
		c.Header("Content-Disposition", fmt.Sprintf("attachment;filename=project_%d_quotes.pdf", project.ID))

		if err := pdf.Output(c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error writing PDF"})
		}
	}
}
