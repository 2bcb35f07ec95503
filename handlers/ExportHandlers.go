package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"

	"buildcost/models"
	"buildcost/services"
	"buildcost/storage"
	"buildcost/utils"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// ExportElementBillXLSX godoc
// @Summary      Export element bill as Excel
// @Description  Export the project's authoritative element lists with every resource contribution line, plus a totals summary sheet.
// @Tags         export
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        id   path  int  true  "Project ID"
// @Success      200  {file}  file  "Excel file"
// @Failure      400  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /api/projects/{id}/export [get]
func ExportElementBillXLSX(db *sql.DB) gin.HandlerFunc {
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

		build, demolish := services.AuthoritativeLists(project)
		contributions := services.CollectContributions(build, demolish)
		material := services.TotalMaterialCost(contributions)

		f := excelize.NewFile()
		defer func() {
			if err := f.Close(); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Error closing Excel file"})
			}
		}()

		summarySheet := "Summary"
		index, err := f.NewSheet(summarySheet)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating summary sheet"})
			return
		}
		f.SetActiveSheet(index)
		f.DeleteSheet("Sheet1")

		f.SetCellValue(summarySheet, "A1", "Project Cost Export")
		f.SetCellValue(summarySheet, "A2", "Project ID")
		f.SetCellValue(summarySheet, "B2", project.ID)
		f.SetCellValue(summarySheet, "A3", "Project Name")
		f.SetCellValue(summarySheet, "B3", project.Name)
		f.SetCellValue(summarySheet, "A4", "Status")
		f.SetCellValue(summarySheet, "B4", project.Status)
		f.SetCellValue(summarySheet, "A5", "Material Total")
		f.SetCellValue(summarySheet, "B5", utils.MakeDecimal(utils.RoundAndFix(material)))
		f.SetCellValue(summarySheet, "A6", "Running Cost")
		f.SetCellValue(summarySheet, "B6", utils.MakeDecimal(project.RunningCost))

		elementsSheet := "Elements"
		if _, err := f.NewSheet(elementsSheet); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating elements sheet"})
			return
		}

		header := []string{"Side", "Element", "Code", "Element Count", "Product Result", "PR Count", "Resource", "Resource Type", "Total Count", "Unit Price"}
		for i, title := range header {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			f.SetCellValue(elementsSheet, cell, title)
		}

		row := 2
		writeSide := func(side string, list []models.BuildingElementUsage) {
			for _, usage := range list {
				elementName := ""
				elementCode := 0
				if usage.Element != nil {
					elementName = usage.Element.Name
					elementCode = usage.Element.Code
				}
				for _, pr := range usage.ProductResults {
					if pr.ProductResult == nil {
						continue
					}
					for _, re := range pr.ProductResult.Resources {
						if re.Resource == nil {
							continue
						}
						total := re.Count * pr.Count * usage.Count
						values := []interface{}{
							side, elementName, elementCode, usage.Count,
							pr.ProductResult.Title, pr.Count,
							re.Resource.Name, re.Resource.Type,
							total, re.Resource.Price,
						}
						for i, value := range values {
							cell, _ := excelize.CoordinatesToCellName(i+1, row)
							f.SetCellValue(elementsSheet, cell, value)
						}
						row++
					}
				}
			}
		}
		writeSide("build", build)
		writeSide("demolish", demolish)

		filename := fmt.Sprintf("project_%d_cost_export.xlsx", project.ID)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment;filename="+filename)

		if err := f.Write(c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error writing Excel file"})
		}
	}
}
