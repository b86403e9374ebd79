package controllers

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"listings-api/dto"
	"listings-api/services"
)

// ImageController maneja los endpoints de imágenes de los avisos
type ImageController struct {
	service services.ImageService
	logger  *zap.Logger
}

func NewImageController(service services.ImageService, logger *zap.Logger) *ImageController {
	return &ImageController{service: service, logger: logger}
}

// Upload maneja POST /api/listings/:id/images (archivos multipart)
func (ctrl *ImageController) Upload(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	// 1. Leer cada archivo a memoria (el router limita el tamaño del body)
	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "expected a multipart form with files")
		return
	}
	headers := form.File["files"]
	files := make([]dto.UploadedFile, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			respondError(c, ctrl.logger, err)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respondError(c, ctrl.logger, fmt.Errorf("read %s: %w", h.Filename, err))
			return
		}
		files = append(files, dto.UploadedFile{Name: h.Filename, Size: h.Size, Data: data})
	}

	// 2. Llamar al servicio para guardarlas
	resp, err := ctrl.service.Upload(c.Request.Context(), id, files)
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// List maneja GET /api/listings/:id/images
func (ctrl *ImageController) List(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	images, err := ctrl.service.List(c.Request.Context(), id)
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, images)
}

// Serve maneja GET /api/images/:id
func (ctrl *ImageController) Serve(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	streamImage(c, ctrl.service, ctrl.logger, id)
}

func streamImage(c *gin.Context, service services.ImageService, logger *zap.Logger, id uint) {
	image, rc, err := service.Open(c.Request.Context(), id)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, image.Size, image.ContentType, rc, map[string]string{
		"Cache-Control":       "private, max-age=86400",
		"Content-Disposition": "inline; filename*=UTF-8''" + url.PathEscape(image.FileName),
	})
}

// Delete maneja DELETE /api/images/:id
func (ctrl *ImageController) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := ctrl.service.Delete(c.Request.Context(), id); err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "image deleted"})
}

// DeleteAll maneja DELETE /api/listings/:id/images
func (ctrl *ImageController) DeleteAll(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	removed, err := ctrl.service.DeleteAll(c.Request.Context(), id)
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: strconv.Itoa(removed) + " images deleted",
		Data:    gin.H{"deleted": removed},
	})
}

// ImportZip maneja POST /api/images/import-zip (archivo multipart)
func (ctrl *ImageController) ImportZip(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "a zip file is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	defer file.Close()

	report, err := ctrl.service.ImportZip(c.Request.Context(), file, header.Size)
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

