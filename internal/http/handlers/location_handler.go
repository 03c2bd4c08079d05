// README: Rider location ping and lookup handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kota/internal/http/middleware"
	"kota/internal/modules/geo"
	"kota/internal/realtime"
	"kota/internal/types"
)

type LocationHandler struct {
	geo         *geo.Service
	broadcaster *realtime.Broadcaster
}

func NewLocationHandler(svc *geo.Service, b *realtime.Broadcaster) *LocationHandler {
	return &LocationHandler{geo: svc, broadcaster: b}
}

type pingReq struct {
	RiderID string  `json:"rider_id"`
	OrderID string  `json:"order_id"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Ping writes the rider's position to the cache and, when tied to an order,
// pushes a location-update to that order's watchers.
func (h *LocationHandler) Ping(c *gin.Context) {
	var req pingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	actor := middleware.CallerActor(c)
	if actor.Role == types.RoleRider && string(actor.ID) != req.RiderID {
		writeError(c, http.StatusForbidden, "riders may only report their own position")
		return
	}
	if err := h.geo.Put(c.Request.Context(), types.ID(req.RiderID), req.Lat, req.Lon); err != nil {
		if err == geo.ErrBadRiderID {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	if req.OrderID != "" {
		h.broadcaster.Publish(types.ID(req.OrderID), "location-update", gin.H{
			"rider_id": req.RiderID,
			"lat":      req.Lat,
			"lon":      req.Lon,
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

func (h *LocationHandler) Get(c *gin.Context) {
	loc, ok, err := h.geo.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		// Expired or never reported: offline for tracking purposes.
		writeJSON(c, http.StatusOK, gin.H{"online": false})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"online":      true,
		"lat":         loc.Position.Lat,
		"lon":         loc.Position.Lng,
		"recorded_at": loc.RecordedAt,
	})
}
