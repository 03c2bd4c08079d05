// README: Router registration; delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kota/internal/http/handlers"
	"kota/internal/http/middleware"
	"kota/internal/modules/geo"
	"kota/internal/modules/ledger"
	"kota/internal/modules/order"
	"kota/internal/modules/refund"
	"kota/internal/notify"
	"kota/internal/realtime"
	"kota/internal/types"
)

type ServerDeps struct {
	Orders      *order.Service
	Refunds     *refund.Service
	Geo         *geo.Service
	Ledger      *ledger.Store
	Registry    *realtime.Registry
	Broadcaster *realtime.Broadcaster
	Notifier    notify.Sender
}

func NewRouter(deps ServerDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging(), middleware.Actor())

	dispatcher := handlers.NewDispatcher(deps.Broadcaster, deps.Notifier)

	orderHandler := handlers.NewOrderHandler(deps.Orders, dispatcher)
	r.POST("/api/orders", orderHandler.Create)
	r.GET("/api/orders/:id", orderHandler.Get)
	r.POST("/api/orders/:id/transition", orderHandler.Transition)
	r.POST("/api/orders/:id/pay", orderHandler.InitiatePayment)
	r.POST("/api/payments/confirm", orderHandler.ConfirmPayment)

	refundHandler := handlers.NewRefundHandler(deps.Refunds, deps.Orders)
	r.POST("/api/refunds", refundHandler.Open)
	r.POST("/api/refunds/:id/review", refundHandler.StartReview)
	r.POST("/api/refunds/:id/decision", refundHandler.Decide)
	r.GET("/api/orders/:id/refunds", refundHandler.ListByOrder)

	locationHandler := handlers.NewLocationHandler(deps.Geo, deps.Broadcaster)
	r.POST("/api/riders/location", locationHandler.Ping)
	r.GET("/api/riders/:id/location", locationHandler.Get)

	if deps.Ledger != nil {
		r.GET("/api/orders/:id/ledger", ledgerByOrder(deps.Ledger))
	}

	wsHandler := handlers.NewWSHandler(deps.Registry)
	r.GET("/ws", wsHandler.Serve)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	return r
}

func ledgerByOrder(store *ledger.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		postings, err := store.ListByOrder(c.Request.Context(), types.ID(c.Param("id")))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"postings": postings})
	}
}
