package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mapslot/territory-engine/internal/application/allocation"
	"github.com/mapslot/territory-engine/internal/application/subscription"
	"github.com/mapslot/territory-engine/internal/domain/sponsorship"
	"github.com/mapslot/territory-engine/internal/interfaces/http/middleware"
	"github.com/mapslot/territory-engine/pkg/errors"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

// IdempotencyKeyHeader carries the client's reservation idempotency key.
const IdempotencyKeyHeader = "Idempotency-Key"

// SponsorshipHandler serves reservations and the sponsorship lifecycle.
type SponsorshipHandler struct {
	allocator     *allocation.Service
	subscriptions *subscription.Service
	sponsorships  sponsorship.Repository
}

// NewSponsorshipHandler wires the handler.
func NewSponsorshipHandler(a *allocation.Service, s *subscription.Service, repo sponsorship.Repository) *SponsorshipHandler {
	return &SponsorshipHandler{allocator: a, subscriptions: s, sponsorships: repo}
}

// ReserveResponse wraps the committed reservation.
type ReserveResponse struct {
	Sponsorship SponsorshipResponse `json:"sponsorship"`
	Idempotent  bool                `json:"idempotent"`
}

// Reserve handles POST /territories/:id/slots/:slot/reserve.  The entire
// current remainder is reserved; there is no partial-geometry purchase.
func (h *SponsorshipHandler) Reserve(c *gin.Context) {
	key := c.GetHeader(IdempotencyKeyHeader)
	if key == "" {
		respondError(c, errors.New(errors.CodeIdempotencyKeyMissing,
			"missing "+IdempotencyKeyHeader+" header"))
		return
	}

	res, err := h.allocator.Reserve(c.Request.Context(), allocation.ReserveRequest{
		TenantID:       middleware.TenantFrom(c),
		TerritoryID:    common.ID(c.Param("id")),
		Slot:           common.Slot(c.Param("slot")),
		IdempotencyKey: key,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp, err := toSponsorshipResponse(res.Sponsorship)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusCreated
	if res.Idempotent {
		status = http.StatusOK
	}
	c.JSON(status, ReserveResponse{Sponsorship: resp, Idempotent: res.Idempotent})
}

// Get handles GET /sponsorships/:id.
func (h *SponsorshipHandler) Get(c *gin.Context) {
	sp, err := h.sponsorships.GetByID(c.Request.Context(), common.ID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	if sp.TenantID != middleware.TenantFrom(c) {
		respondError(c, errors.New(errors.CodeSponsorshipNotFound, "sponsorship not found"))
		return
	}
	resp, err := toSponsorshipResponse(sp)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// List handles GET /sponsorships.
func (h *SponsorshipHandler) List(c *gin.Context) {
	page := parsePagination(c)
	list, total, err := h.sponsorships.ListByTenant(c.Request.Context(), middleware.TenantFrom(c), page)
	if err != nil {
		respondError(c, err)
		return
	}
	items := make([]SponsorshipResponse, 0, len(list))
	for _, sp := range list {
		resp, err := toSponsorshipResponse(sp)
		if err != nil {
			respondError(c, err)
			return
		}
		items = append(items, resp)
	}
	respondList(c, items, page, total)
}

type cancelRequest struct {
	Immediate bool `json:"immediate"`
}

// Cancel handles POST /sponsorships/:id/cancel.  An empty body defaults to
// cancellation at period end.
func (h *SponsorshipHandler) Cancel(c *gin.Context) {
	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, errors.InvalidParam("invalid request body").WithCause(err))
			return
		}
	}

	sp, err := h.subscriptions.Cancel(c.Request.Context(), middleware.TenantFrom(c), common.ID(c.Param("id")), req.Immediate)
	if err != nil {
		respondError(c, err)
		return
	}
	resp, err := toSponsorshipResponse(sp)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
