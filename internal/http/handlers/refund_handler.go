// README: Refund handlers: open, review, decide, list.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kota/internal/http/middleware"
	"kota/internal/modules/order"
	"kota/internal/modules/refund"
	"kota/internal/types"
)

type RefundHandler struct {
	refunds *refund.Service
	orders  *order.Service
}

func NewRefundHandler(refunds *refund.Service, orders *order.Service) *RefundHandler {
	return &RefundHandler{refunds: refunds, orders: orders}
}

type openRefundReq struct {
	OrderID string  `json:"order_id"`
	Amount  float64 `json:"amount"`
	Reason  string  `json:"reason"`
}

func (h *RefundHandler) Open(c *gin.Context) {
	var req openRefundReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	o, err := h.orders.Get(c.Request.Context(), types.ID(req.OrderID))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	r, err := h.refunds.Open(c.Request.Context(), o, req.Amount, req.Reason)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, refundView(r))
}

func (h *RefundHandler) StartReview(c *gin.Context) {
	if middleware.CallerActor(c).Role != types.RoleAdmin {
		writeError(c, http.StatusForbidden, "admin role required")
		return
	}
	r, err := h.refunds.StartReview(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, refundView(r))
}

type decideReq struct {
	Decision       string  `json:"decision"`
	ApprovedAmount float64 `json:"approved_amount"`
	Distribution   *struct {
		FromStore    float64 `json:"from_store"`
		FromDriver   float64 `json:"from_driver"`
		FromPlatform float64 `json:"from_platform"`
	} `json:"distribution"`
	Note string `json:"note"`
}

func (h *RefundHandler) Decide(c *gin.Context) {
	if middleware.CallerActor(c).Role != types.RoleAdmin {
		writeError(c, http.StatusForbidden, "admin role required")
		return
	}
	var req decideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := refund.DecideCommand{
		RefundID:       types.ID(c.Param("id")),
		Decision:       refund.Decision(req.Decision),
		ApprovedAmount: req.ApprovedAmount,
		Note:           req.Note,
	}
	if req.Distribution != nil {
		cmd.Distribution = &refund.Distribution{
			FromStore:    req.Distribution.FromStore,
			FromDriver:   req.Distribution.FromDriver,
			FromPlatform: req.Distribution.FromPlatform,
		}
	}
	r, err := h.refunds.Decide(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, refundView(r))
}

func (h *RefundHandler) ListByOrder(c *gin.Context) {
	list, err := h.refunds.ListByOrder(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	views := make([]gin.H, len(list))
	for i, r := range list {
		views[i] = refundView(r)
	}
	writeJSON(c, http.StatusOK, gin.H{"refunds": views})
}

func refundView(r *refund.Refund) gin.H {
	view := gin.H{
		"id":               r.ID,
		"order_id":         r.OrderID,
		"status":           r.Status,
		"requested_amount": r.RequestedAmount,
		"reason":           r.Reason,
	}
	if r.ApprovedAmount > 0 {
		view["approved_amount"] = r.ApprovedAmount
	}
	if r.Distribution != nil {
		view["distribution"] = r.Distribution
	}
	if r.FailureReason != "" {
		view["failure_reason"] = r.FailureReason
	}
	return view
}
