package http

import (
	"errors"
	"net/http"

	"github.com/eshop-platform/inventory-service/internal/repo"
	"github.com/eshop-platform/inventory-service/internal/service"
	"github.com/gin-gonic/gin"
)

func RegisterHandlers(r *gin.Engine, svc *service.ReservationService) {
	v1 := r.Group("/v1")
	{
		v1.POST("/inventory/reserve", reserveHandler(svc))
		v1.POST("/reservations/:id/commit", commitHandler(svc))
		v1.POST("/reservations/:id/release", releaseHandler(svc))
		v1.GET("/stock/:sku", stockHandler(svc))
		v1.POST("/stock/:sku/restock", restockHandler(svc))
	}
}

type reserveReq struct {
	SKUID      string `json:"sku_id" binding:"required"`
	Quantity   int64  `json:"quantity" binding:"required,gt=0"`
	ReservedBy string `json:"reserved_by" binding:"required"`
	TTLSeconds int    `json:"ttl_seconds"`
}

func reserveHandler(svc *service.ReservationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reserveReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		res, err := svc.Reserve(c, service.ReserveRequest{
			SKUID:      req.SKUID,
			Quantity:   req.Quantity,
			ReservedBy: req.ReservedBy,
			TTLSeconds: req.TTLSeconds,
		})
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, service.ErrInvalidRequest) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		if !res.Success {
			c.JSON(http.StatusConflict, res)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

type commitReq struct {
	OrderID string `json:"order_id"`
}

func commitHandler(svc *service.ReservationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req commitReq
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		ok, err := svc.Commit(c, c.Param("id"), req.OrderID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusConflict, gin.H{"committed": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"committed": true})
	}
}

type releaseReq struct {
	Reason string `json:"reason"`
}

func releaseHandler(svc *service.ReservationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req releaseReq
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		ok, err := svc.Release(c, c.Param("id"), req.Reason)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusConflict, gin.H{"released": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"released": true})
	}
}

func stockHandler(svc *service.ReservationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := svc.GetStock(c, c.Param("sku"))
		if err != nil {
			if errors.Is(err, repo.ErrSKUNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "sku not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"skuId":          snap.SKUID,
			"availableStock": snap.Available,
			"reservedStock":  snap.Reserved,
			"totalStock":     snap.Total,
		})
	}
}

type restockReq struct {
	Quantity int64 `json:"quantity" binding:"required,gt=0"`
}

func restockHandler(svc *service.ReservationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req restockReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		snap, err := svc.Restock(c, c.Param("sku"), req.Quantity)
		if err != nil {
			if errors.Is(err, service.ErrInvalidRequest) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}
