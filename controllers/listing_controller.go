package controllers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"listings-api/domain"
	"listings-api/dto"
	"listings-api/services"
)

// ListingController maneja los endpoints HTTP de avisos
type ListingController struct {
	service services.ListingService
	logger  *zap.Logger
}

func NewListingController(service services.ListingService, logger *zap.Logger) *ListingController {
	return &ListingController{service: service, logger: logger}
}

// Search maneja GET /api/listings
func (ctrl *ListingController) Search(c *gin.Context) {
	// 1. Parsear los query params
	request, err := parseSearchRequest(c.Request.URL.Query())
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}

	// 2. Llamar al servicio (valida y aplica valores por defecto)
	response, err := ctrl.service.Search(c.Request.Context(), *request)
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// parseSearchRequest convierte los query params en un SearchRequest. Un
// número que no se puede parsear es un error de validación
func parseSearchRequest(query url.Values) (*dto.SearchRequest, error) {
	request := &dto.SearchRequest{
		Building:     strings.TrimSpace(query.Get("building")),
		Category:     domain.Category(query.Get("category")),
		PropertyType: strings.TrimSpace(query.Get("property_type")),
		Status:       domain.ListingStatus(query.Get("status")),
		Sort:         query.Get("sort"),
	}

	int64Params := []struct {
		name string
		dst  **int64
	}{
		{"min_deposit", &request.MinDeposit},
		{"max_deposit", &request.MaxDeposit},
		{"min_rent", &request.MinRent},
		{"max_rent", &request.MaxRent},
		{"min_sale", &request.MinSale},
		{"max_sale", &request.MaxSale},
	}
	for _, p := range int64Params {
		raw := query.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(strings.ReplaceAll(raw, ",", ""), 10, 64)
		if err != nil {
			return nil, invalidNumber(p.name, raw)
		}
		*p.dst = &v
	}

	for name, dst := range map[string]**float64{"min_area": &request.MinArea, "max_area": &request.MaxArea} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, invalidNumber(name, raw)
		}
		*dst = &v
	}

	for name, dst := range map[string]*int{"page": &request.Page, "page_size": &request.PageSize} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, invalidNumber(name, raw)
		}
		*dst = v
	}
	return request, nil
}

func invalidNumber(name, raw string) error {
	return &services.ValidationError{Message: fmt.Sprintf("%s: %q is not a number", name, raw)}
}

// Stats maneja GET /api/listings/stats
func (ctrl *ListingController) Stats(c *gin.Context) {
	stats, err := ctrl.service.Stats(c.Request.Context())
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Get maneja GET /api/listings/:id
func (ctrl *ListingController) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	listing, err := ctrl.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// Create maneja POST /api/listings
func (ctrl *ListingController) Create(c *gin.Context) {
	var req dto.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	listing, err := ctrl.service.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.SuccessResponse{Message: "listing created", Data: listing})
}

// QuickEntry maneja POST /api/listings/quick
func (ctrl *ListingController) QuickEntry(c *gin.Context) {
	var req dto.QuickEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	listing, err := ctrl.service.QuickEntry(c.Request.Context(), req)
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.SuccessResponse{Message: "listing created", Data: listing})
}

// Update maneja PUT /api/listings/:id
func (ctrl *ListingController) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	listing, err := ctrl.service.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "listing updated", Data: listing})
}

// Delete maneja DELETE /api/listings/:id
func (ctrl *ListingController) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := ctrl.service.Delete(c.Request.Context(), id); err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "listing deleted"})
}

// DeleteAll maneja DELETE /api/listings?confirm=true
func (ctrl *ListingController) DeleteAll(c *gin.Context) {
	confirm, err := parseBool(c.Query("confirm"), "confirm")
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	resp, err := ctrl.service.DeleteAll(c.Request.Context(), confirm)
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetMemo maneja GET /api/listings/:id/memo
func (ctrl *ListingController) GetMemo(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	memo, err := ctrl.service.GetMemo(c.Request.Context(), id)
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, memo)
}

// UpdateMemo maneja PUT /api/listings/:id/memo
func (ctrl *ListingController) UpdateMemo(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateMemoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	memo, err := ctrl.service.UpdateMemo(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, ctrl.logger, err)
		return
	}
	c.JSON(http.StatusOK, memo)
}
