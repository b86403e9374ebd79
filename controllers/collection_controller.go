package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"listings-api/dto"
	"listings-api/services"
)

// CollectionController maneja los endpoints de colecciones y sus links
// públicos
type CollectionController struct {
	service services.CollectionService
	images  services.ImageService
	logger  *zap.Logger
}

func NewCollectionController(service services.CollectionService, images services.ImageService, logger *zap.Logger) *CollectionController {
	return &CollectionController{service: service, images: images, logger: logger}
}

// List maneja GET /api/collections
func (ctrl *CollectionController) List(c *gin.Context) {
	collections, err := ctrl.service.List(c.Request.Context())
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, collections)
}

// Create maneja POST /api/collections
func (ctrl *CollectionController) Create(c *gin.Context) {
	var req dto.CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	collection, err := ctrl.service.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusCreated, collection)
}

// Get maneja GET /api/collections/:id?sort=
func (ctrl *CollectionController) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	detail, err := ctrl.service.Get(c.Request.Context(), id, c.Query("sort"))
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Update maneja PUT /api/collections/:id
func (ctrl *CollectionController) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	collection, err := ctrl.service.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, collection)
}

// Delete maneja DELETE /api/collections/:id
func (ctrl *CollectionController) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := ctrl.service.Delete(c.Request.Context(), id); err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "collection deleted"})
}

// AddItem maneja POST /api/collections/:id/items
// Devuelve 201 si el aviso es nuevo en la colección y 200 si ya estaba
func (ctrl *CollectionController) AddItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := ctrl.service.AddItem(c.Request.Context(), id, req.ListingID)
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	c.JSON(status, result)
}

// RemoveItem maneja DELETE /api/collections/:id/items/:listingId
func (ctrl *CollectionController) RemoveItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	listingID, ok := parseID(c, "listingId")
	if !ok {
		return
	}
	if err := ctrl.service.RemoveItem(c.Request.Context(), id, listingID); err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "listing removed"})
}

// RemoveItems maneja POST /api/collections/:id/items/remove
func (ctrl *CollectionController) RemoveItems(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.RemoveItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	removed, err := ctrl.service.RemoveItems(c.Request.Context(), id, req.ListingIDs)
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "listings removed", Data: gin.H{"removed": removed}})
}

// ClearItems maneja DELETE /api/collections/:id/items
func (ctrl *CollectionController) ClearItems(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	removed, err := ctrl.service.ClearItems(c.Request.Context(), id)
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "collection cleared", Data: gin.H{"removed": removed}})
}

// Reorder maneja PUT /api/collections/:id/order
func (ctrl *CollectionController) Reorder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var items []dto.ReorderItem
	if err := c.ShouldBindJSON(&items); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := ctrl.service.Reorder(c.Request.Context(), id, items); err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "order saved"})
}

// Shared maneja GET /shared/collections/:token (sin autenticación)
func (ctrl *CollectionController) Shared(c *gin.Context) {
	shared, err := ctrl.service.Shared(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, shared)
}

// SharedImage maneja GET /shared/collections/:token/images/:imageId
// Solo sirve imágenes de avisos que están en la colección
func (ctrl *CollectionController) SharedImage(c *gin.Context) {
	imageID, ok := parseID(c, "imageId")
	if !ok {
		return
	}
	if err := ctrl.service.CheckSharedImage(c.Request.Context(), c.Param("token"), imageID); err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	streamImage(c, ctrl.images, ctrl.logger, imageID)
}
