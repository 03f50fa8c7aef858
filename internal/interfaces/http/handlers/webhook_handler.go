package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mapslot/territory-engine/internal/application/subscription"
	"github.com/mapslot/territory-engine/pkg/errors"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

// WebhookHandler accepts payment gateway callbacks over HTTP, for
// deployments where the gateway posts directly instead of publishing to the
// payment topic.
type WebhookHandler struct {
	subscriptions *subscription.Service
}

// NewWebhookHandler wires the handler.
func NewWebhookHandler(s *subscription.Service) *WebhookHandler {
	return &WebhookHandler{subscriptions: s}
}

type paymentWebhookRequest struct {
	Type          string    `json:"type" binding:"required"` // payment.confirmed | payment.failed
	SponsorshipID common.ID `json:"sponsorship_id" binding:"required"`
	PaymentRef    string    `json:"payment_ref"`
	Reason        string    `json:"reason"`
}

// Payment handles POST /webhooks/payment.  Gateway retries of an
// already-settled payment get 200 so the gateway stops resending.
func (h *WebhookHandler) Payment(c *gin.Context) {
	var req paymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.InvalidParam("invalid webhook body").WithCause(err))
		return
	}

	var succeeded bool
	switch req.Type {
	case "payment.confirmed":
		succeeded = true
	case "payment.failed":
		succeeded = false
	default:
		respondError(c, errors.InvalidParam("unknown payment event type").
			WithDetail("type="+req.Type))
		return
	}

	ref := req.PaymentRef
	if !succeeded && req.Reason != "" {
		ref = req.Reason
	}

	sp, err := h.subscriptions.ConfirmPayment(c.Request.Context(), req.SponsorshipID, succeeded, ref)
	if err != nil && !errors.IsCode(err, errors.CodePaymentDuplicate) {
		respondError(c, err)
		return
	}

	resp, convErr := toSponsorshipResponse(sp)
	if convErr != nil {
		respondError(c, convErr)
		return
	}
	c.JSON(http.StatusOK, resp)
}
