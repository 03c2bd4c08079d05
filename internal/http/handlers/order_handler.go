// README: Order handlers: create, get, transition, payment initiate/confirm.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kota/internal/http/middleware"
	"kota/internal/modules/order"
	"kota/internal/types"
)

type OrderHandler struct {
	orders     *order.Service
	dispatcher *Dispatcher
}

func NewOrderHandler(svc *order.Service, d *Dispatcher) *OrderHandler {
	return &OrderHandler{orders: svc, dispatcher: d}
}

type createOrderReq struct {
	CustomerID string  `json:"customer_id"`
	StoreID    string  `json:"store_id"`
	Items      []struct {
		ProductID    string  `json:"product_id"`
		Quantity     int     `json:"quantity"`
		ModifierUnit float64 `json:"modifier_unit"`
	} `json:"items"`
	DeliveryFee float64 `json:"delivery_fee"`
	Tip         float64 `json:"tip"`
	Discount    float64 `json:"discount"`
	Currency    string  `json:"currency"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := order.CreateCommand{
		CustomerID:  types.ID(req.CustomerID),
		StoreID:     types.ID(req.StoreID),
		DeliveryFee: req.DeliveryFee,
		Tip:         req.Tip,
		Discount:    req.Discount,
		Currency:    req.Currency,
	}
	for _, it := range req.Items {
		cmd.Items = append(cmd.Items, order.CreateItem{
			ProductID:    types.ID(it.ProductID),
			Quantity:     it.Quantity,
			ModifierUnit: it.ModifierUnit,
		})
	}
	o, err := h.orders.Create(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, orderView(o))
}

func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orderView(o))
}

type transitionReq struct {
	Target  string `json:"target"`
	RiderID string `json:"rider_id"`
	Note    string `json:"note"`
}

func (h *OrderHandler) Transition(c *gin.Context) {
	var req transitionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	o, appended, events, err := h.orders.Transition(c.Request.Context(), order.TransitionCommand{
		OrderID: types.ID(c.Param("id")),
		Target:  order.Status(req.Target),
		Actor:   middleware.CallerActor(c),
		RiderID: types.ID(req.RiderID),
		Note:    req.Note,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	h.dispatcher.Dispatch(c.Request.Context(), o, events)
	writeJSON(c, http.StatusOK, gin.H{
		"order":                  orderView(o),
		"history_entry_appended": appended,
	})
}

func (h *OrderHandler) InitiatePayment(c *gin.Context) {
	res, err := h.orders.InitiatePayment(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"reference":    res.Reference,
		"redirect_url": res.RedirectURL,
	})
}

type confirmPaymentReq struct {
	OrderID   string `json:"order_id"`
	Reference string `json:"reference"`
}

func (h *OrderHandler) ConfirmPayment(c *gin.Context) {
	var req confirmPaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	o, events, err := h.orders.ConfirmPayment(c.Request.Context(), types.ID(req.OrderID), req.Reference)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	h.dispatcher.Dispatch(c.Request.Context(), o, events)
	writeJSON(c, http.StatusOK, orderView(o))
}

func orderView(o *order.Order) gin.H {
	view := gin.H{
		"id":             o.ID,
		"customer_id":    o.CustomerID,
		"store_id":       o.StoreID,
		"status":         o.Status,
		"subtotal":       o.Subtotal,
		"delivery_fee":   o.DeliveryFee,
		"tip":            o.Tip,
		"discount":       o.Discount,
		"total":          o.Total,
		"currency":       o.Currency,
		"payment_status": o.PaymentStatus,
	}
	if o.RiderID != nil {
		view["rider_id"] = *o.RiderID
	}
	if o.Split != nil {
		view["payment_split"] = o.Split
	}
	return view
}
