package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mapslot/territory-engine/internal/application/availability"
	"github.com/mapslot/territory-engine/internal/application/territories"
	"github.com/mapslot/territory-engine/internal/interfaces/http/middleware"
	"github.com/mapslot/territory-engine/pkg/errors"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

// TerritoryHandler serves territory CRUD and availability previews.
type TerritoryHandler struct {
	territories *territories.Service
	previews    *availability.Service
}

// NewTerritoryHandler wires the handler.
func NewTerritoryHandler(t *territories.Service, p *availability.Service) *TerritoryHandler {
	return &TerritoryHandler{territories: t, previews: p}
}

type createTerritoryRequest struct {
	Name     string          `json:"name" binding:"required"`
	Geometry json.RawMessage `json:"geometry" binding:"required"`
}

// Create handles POST /territories.
func (h *TerritoryHandler) Create(c *gin.Context) {
	var req createTerritoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.InvalidParam("invalid request body").WithCause(err))
		return
	}

	ter, err := h.territories.Create(c.Request.Context(), middleware.TenantFrom(c), req.Name, req.Geometry)
	if err != nil {
		respondError(c, err)
		return
	}
	resp, err := toTerritoryResponse(ter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Get handles GET /territories/:id.
func (h *TerritoryHandler) Get(c *gin.Context) {
	ter, err := h.territories.Get(c.Request.Context(), middleware.TenantFrom(c), common.ID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	resp, err := toTerritoryResponse(ter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// List handles GET /territories.
func (h *TerritoryHandler) List(c *gin.Context) {
	page := parsePagination(c)
	list, total, err := h.territories.List(c.Request.Context(), middleware.TenantFrom(c), page)
	if err != nil {
		respondError(c, err)
		return
	}
	items := make([]TerritoryResponse, 0, len(list))
	for _, ter := range list {
		resp, err := toTerritoryResponse(ter)
		if err != nil {
			respondError(c, err)
			return
		}
		items = append(items, resp)
	}
	respondList(c, items, page, total)
}

type renameTerritoryRequest struct {
	Name string `json:"name" binding:"required"`
}

// Rename handles PUT /territories/:id.
func (h *TerritoryHandler) Rename(c *gin.Context) {
	var req renameTerritoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.InvalidParam("invalid request body").WithCause(err))
		return
	}
	ter, err := h.territories.Rename(c.Request.Context(), middleware.TenantFrom(c), common.ID(c.Param("id")), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	resp, err := toTerritoryResponse(ter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type redrawTerritoryRequest struct {
	Geometry json.RawMessage `json:"geometry" binding:"required"`
}

// Redraw handles PUT /territories/:id/geometry.
func (h *TerritoryHandler) Redraw(c *gin.Context) {
	var req redrawTerritoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.InvalidParam("invalid request body").WithCause(err))
		return
	}
	ter, err := h.territories.Redraw(c.Request.Context(), middleware.TenantFrom(c), common.ID(c.Param("id")), req.Geometry)
	if err != nil {
		respondError(c, err)
		return
	}
	resp, err := toTerritoryResponse(ter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Delete handles DELETE /territories/:id.
func (h *TerritoryHandler) Delete(c *gin.Context) {
	err := h.territories.Delete(c.Request.Context(), middleware.TenantFrom(c), common.ID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Preview handles GET /territories/:id/slots/:slot/preview.
func (h *TerritoryHandler) Preview(c *gin.Context) {
	preview, err := h.previews.Preview(
		c.Request.Context(),
		middleware.TenantFrom(c),
		common.ID(c.Param("id")),
		common.Slot(c.Param("slot")),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}
