// Package handlers implements the HTTP resource handlers.
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mapslot/territory-engine/internal/domain/sponsorship"
	"github.com/mapslot/territory-engine/internal/domain/territory"
	"github.com/mapslot/territory-engine/pkg/errors"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError maps an application error to its HTTP status.  Internal
// errors are masked; everything else carries its code and message through.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)
	if errors.IsServerError(code) {
		c.JSON(status, ErrorResponse{
			Code:    errors.CodeInternal.String(),
			Message: "internal server error",
		})
		return
	}

	message := err.Error()
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		message = appErr.Message
	}
	c.JSON(status, ErrorResponse{Code: code.String(), Message: message})
}

// parsePagination reads page and page_size query parameters.
func parsePagination(c *gin.Context) common.Pagination {
	p := common.Pagination{Page: 1, PageSize: 20}
	if v, err := strconv.Atoi(c.Query("page")); err == nil {
		p.Page = v
	}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil {
		p.PageSize = v
	}
	p.Normalize()
	return p
}

// TerritoryResponse is the wire form of a territory, geometry included.
type TerritoryResponse struct {
	ID        common.ID       `json:"id"`
	TenantID  common.TenantID `json:"tenant_id"`
	Name      string          `json:"name"`
	Geometry  json.RawMessage `json:"geometry"`
	AreaKm2   float64         `json:"area_km2"`
	Version   int             `json:"version"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

func toTerritoryResponse(t *territory.Territory) (TerritoryResponse, error) {
	geo, err := t.Geometry.MarshalGeoJSON()
	if err != nil {
		return TerritoryResponse{}, err
	}
	return TerritoryResponse{
		ID:        t.ID,
		TenantID:  t.TenantID,
		Name:      t.Name,
		Geometry:  geo,
		AreaKm2:   t.AreaKm2,
		Version:   t.Version,
		CreatedAt: t.CreatedAt.Format(timeFormat),
		UpdatedAt: t.UpdatedAt.Format(timeFormat),
	}, nil
}

// SponsorshipResponse is the wire form of a sponsorship, geometry included.
type SponsorshipResponse struct {
	ID               common.ID       `json:"id"`
	TenantID         common.TenantID `json:"tenant_id"`
	TerritoryID      common.ID       `json:"territory_id"`
	TerritoryVersion int             `json:"territory_version"`
	Slot             common.Slot     `json:"slot"`
	Geometry         json.RawMessage `json:"geometry"`
	AreaKm2          float64         `json:"area_km2"`
	Price            string          `json:"price"`
	Currency         string          `json:"currency"`
	Status           string          `json:"status"`
	PaymentRef       string          `json:"payment_ref,omitempty"`
	PeriodStart      string          `json:"period_start,omitempty"`
	PeriodEnd        string          `json:"period_end,omitempty"`
	CreatedAt        string          `json:"created_at"`
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

func toSponsorshipResponse(s *sponsorship.Sponsorship) (SponsorshipResponse, error) {
	geo, err := s.Geometry.MarshalGeoJSON()
	if err != nil {
		return SponsorshipResponse{}, err
	}
	resp := SponsorshipResponse{
		ID:               s.ID,
		TenantID:         s.TenantID,
		TerritoryID:      s.TerritoryID,
		TerritoryVersion: s.TerritoryVersion,
		Slot:             s.Slot,
		Geometry:         geo,
		AreaKm2:          s.AreaKm2,
		Price:            s.Price.StringFixed(2),
		Currency:         s.Currency,
		Status:           string(s.Status),
		PaymentRef:       s.PaymentRef,
		CreatedAt:        s.CreatedAt.Format(timeFormat),
	}
	if !s.PeriodStart.IsZero() {
		resp.PeriodStart = s.PeriodStart.Format(timeFormat)
	}
	if !s.PeriodEnd.IsZero() {
		resp.PeriodEnd = s.PeriodEnd.Format(timeFormat)
	}
	return resp, nil
}

// ListResponse wraps paginated collections.
type ListResponse struct {
	Items any   `json:"items"`
	Page  int   `json:"page"`
	Size  int   `json:"page_size"`
	Total int64 `json:"total"`
}

func respondList(c *gin.Context, items any, page common.Pagination, total int64) {
	c.JSON(http.StatusOK, ListResponse{Items: items, Page: page.Page, Size: page.PageSize, Total: total})
}
