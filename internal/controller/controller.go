package controller

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/SpeekeR99/TSP-Kimlova-Savel-Slechta-Vdoviak-Zappe/internal/dto"
	"github.com/SpeekeR99/TSP-Kimlova-Savel-Slechta-Vdoviak-Zappe/internal/scan"
	"github.com/SpeekeR99/TSP-Kimlova-Savel-Slechta-Vdoviak-Zappe/internal/service"
	"github.com/rs/zerolog/log"
)

type Controller struct {
	generatorSvc  service.GeneratorService
	evaluationSvc service.EvaluationService
}

func NewController(genSvc service.GeneratorService, evalSvc service.EvaluationService) *Controller {
	return &Controller{
		generatorSvc:  genSvc,
		evaluationSvc: evalSvc,
	}
}

func (ctrl *Controller) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthcheck", ctrl.HealthcheckHandler)
	router.POST("/get_print_data", ctrl.GeneratePrintDataHandler)
	router.POST("/generate-gf-data", ctrl.GenerateGCPrintDataHandler)
	router.POST("/test_evaluation", ctrl.EvaluateHandler)
}

// HealthcheckHandler godoc
// @Summary Liveness probe
// @Produce json
// @Success 200 {object} map[string]string
// @Router /healthcheck [get]
func (ctrl *Controller) HealthcheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

// GeneratePrintDataHandler godoc
// @Summary Generate bubble sheets from a Moodle question export
// @Description Persists the test and returns a zip with bubble_sheets.pdf and question_papers.pdf
// @Accept json
// @Produce application/zip
// @Param request body dto.GenerateRequest true "Question bank and student roster"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 500 {object} map[string]string "Generation failed"
// @Router /get_print_data [post]
func (ctrl *Controller) GeneratePrintDataHandler(c *gin.Context) {
	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to bind GenerateRequest")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	archive, err := ctrl.generatorSvc.GeneratePrintData(&req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate print data")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	serveZip(c, archive)
}

// GenerateGCPrintDataHandler godoc
// @Summary Generate bubble sheets from a Google Classroom export
// @Accept json
// @Produce application/zip
// @Param request body dto.GCGenerateRequest true "Question export and student roster"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 500 {object} map[string]string "Generation failed"
// @Router /generate-gf-data [post]
func (ctrl *Controller) GenerateGCPrintDataHandler(c *gin.Context) {
	var req dto.GCGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to bind GCGenerateRequest")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	archive, err := ctrl.generatorSvc.GenerateGCPrintData(&req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate GC print data")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	serveZip(c, archive)
}

// EvaluateHandler godoc
// @Summary Evaluate a scanned batch of filled bubble sheets
// @Description Accepts the raw PDF in the request body and returns per-student results with a detection log
// @Accept application/pdf
// @Produce json
// @Success 200 {object} dto.EvaluationResponse
// @Failure 500 {object} map[string]string "Evaluation failed"
// @Router /test_evaluation [post]
func (ctrl *Controller) EvaluateHandler(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusOK, gin.H{"error": "No file part"})
		return
	}

	tmpPath := filepath.Join(os.TempDir(), fmt.Sprintf("scan_%s.pdf", uuid.NewString()))
	if err := os.WriteFile(tmpPath, body, 0o600); err != nil {
		log.Error().Err(err).Msg("Failed to stage uploaded scan")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer os.Remove(tmpPath)

	resp, err := ctrl.evaluationSvc.Evaluate(tmpPath)
	if err != nil {
		// An unreadable fiducial is a user-correctable scan problem, so it is
		// reported in-band instead of as a server error.
		if errors.Is(err, scan.ErrNoIdentifier) {
			c.JSON(http.StatusOK, gin.H{"error": "Error reading the QR codes. Please try again."})
			return
		}
		log.Error().Err(err).Msg("Failed to evaluate scanned batch")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func serveZip(c *gin.Context, archive []byte) {
	c.Header("Content-Disposition", `attachment; filename="pdfs.zip"`)
	c.Data(http.StatusOK, "application/zip", archive)
}
