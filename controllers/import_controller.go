package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"listings-api/dto"
	"listings-api/services"
)

const defaultHistoryLimit = 20

// ImportController maneja la carga de planillas y de logs de chat
type ImportController struct {
	imports services.ImportService
	memos   services.MemoService
	logger  *zap.Logger
}

func NewImportController(imports services.ImportService, memos services.MemoService, logger *zap.Logger) *ImportController {
	return &ImportController{imports: imports, memos: memos, logger: logger}
}

// Import maneja POST /api/imports (archivo multipart, mode, dry_run)
func (ctrl *ImportController) Import(c *gin.Context) {
	// 1. Leer el form
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "a spreadsheet file is required")
		return
	}
	dryRun, err := parseBool(c.PostForm("dry_run"), "dry_run")
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}

	file, err := header.Open()
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	defer file.Close()

	// 2. Llamar al servicio para importar
	report, err := ctrl.imports.Import(c.Request.Context(), dto.ImportRequest{
		FileName: header.Filename,
		Mode:     c.PostForm("mode"),
		DryRun:   dryRun,
	}, file)
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// History maneja GET /api/imports?limit=
func (ctrl *ImportController) History(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "limit must be a number")
			return
		}
		limit = v
	}
	entries, err := ctrl.imports.History(c.Request.Context(), limit)
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Latest maneja GET /api/imports/latest
func (ctrl *ImportController) Latest(c *gin.Context) {
	entry, err := ctrl.imports.Latest(c.Request.Context())
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// ImportMemos maneja POST /api/memos/import (archivo multipart, dry_run)
func (ctrl *ImportController) ImportMemos(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "a chat log file is required")
		return
	}
	dryRun, err := parseBool(c.PostForm("dry_run"), "dry_run")
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}

	file, err := header.Open()
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	defer file.Close()

	report, err := ctrl.memos.Import(c.Request.Context(), header.Filename, file, dryRun)
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
