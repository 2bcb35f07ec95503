package handlers

import (
	"database/sql"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"net/http"
	"os"
	"strconv"

	"buildcost/models"
	"buildcost/storage"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/inconsolata"
	"golang.org/x/image/math/fixed"
)

// addLabel draws a text line onto the image at the given position.
// truncateLabel shortens a label to max characters, counting runes so
// multibyte names are never cut mid-character.
func truncateLabel(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func addLabel(img *image.RGBA, x, y int, label string, bold bool) {
	col := color.RGBA{0, 0, 0, 255}
	face := inconsolata.Regular8x16
	if bold {
		face = inconsolata.Bold8x16
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.Int26_6(x * 64),
			Y: fixed.Int26_6(y * 64),
		},
	}
	d.DrawString(label)
}

// GenerateProjectQRCode godoc
// @Summary      Generate project share QR code
// @Description  Render a labeled QR code pointing at the project's share page.
// @Tags         qr
// @Param        id   path      int  true  "Project ID"
// @Success      200  {file}    file  "JPEG image"
// @Failure      400  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /api/projects/{id}/qr [get]
func GenerateProjectQRCode(db *sql.DB) gin.HandlerFunc {
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

		baseURL := os.Getenv("SHARE_BASE_URL")
		if baseURL == "" {
			baseURL = "https://buildcost.local"
		}
		shareURL := fmt.Sprintf("%s/projects/%d", baseURL, project.ID)
		if project.Code != "" {
			shareURL = fmt.Sprintf("%s/p/%s", baseURL, project.Code)
		}

		const qrSize = 256
		qrImg, err := qrcode.New(shareURL, qrcode.Medium)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate QR code"})
			return
		}

		// QR on top, two label lines below.
		const labelHeight = 48
		canvas := image.NewRGBA(image.Rect(0, 0, qrSize, qrSize+labelHeight))
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
		draw.Draw(canvas, image.Rect(0, 0, qrSize, qrSize), qrImg.Image(qrSize), image.Point{}, draw.Over)

		name := truncateLabel(project.Name, 30)
		addLabel(canvas, 8, qrSize+18, name, true)
		addLabel(canvas, 8, qrSize+36, fmt.Sprintf("Project #%d  %s", project.ID, project.Status), false)

		c.Header("Content-Type", "image/jpeg")
		c.Header("Content-Disposition", fmt.Sprintf("inline;filename=project_%d_qr.jpg", project.ID))

		if err := jpeg.Encode(c.Writer, canvas, &jpeg.Options{Quality: 90}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode image"})
		}
	}
}
