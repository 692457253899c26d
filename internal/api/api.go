// Package api exposes the daemon's read-only HTTP surface: current entity
// state over REST and live run results over a websocket.
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"wb-sppmon/internal/models"
)

type Handler struct {
	db  *gorm.DB
	hub *Hub
	log *zap.SugaredLogger
}

// SetupRoutes wires the REST and websocket endpoints onto the router.
func SetupRoutes(r *gin.Engine, db *gorm.DB, hub *Hub, log *zap.SugaredLogger) *Handler {
	h := &Handler{db: db, hub: hub, log: log}

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		v1.GET("/products", h.ListProducts)
		v1.GET("/categories", h.ListCategories)
		v1.GET("/categories/:id/subcategories", h.ListSubcategories)
		v1.GET("/subcategories/:id/slots", h.ListSlots)
		v1.GET("/runs", h.ListRuns)
	}

	r.GET("/ws/runs", hub.Subscribe)
	return h
}

func (h *Handler) ListProducts(c *gin.Context) {
	var products []models.Product
	if err := h.db.Order("article").Find(&products).Error; err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) ListCategories(c *gin.Context) {
	var categories []models.Category
	if err := h.db.Order("id").Find(&categories).Error; err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *Handler) ListSubcategories(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category id"})
		return
	}
	var subs []models.Subcategory
	if err := h.db.Where("category_id = ?", id).Order("id").Find(&subs).Error; err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, subs)
}

func (h *Handler) ListSlots(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subcategory id"})
		return
	}
	var slots []models.PriceSlot
	if err := h.db.Where("subcategory_id = ?", id).Order("price_from").Find(&slots).Error; err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

// ListRuns returns pass summaries, newest runs first, optionally filtered by
// run_id and limited by limit (default 100).
func (h *Handler) ListRuns(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = v
	}

	q := h.db.Order("started_at desc, id desc").Limit(limit)
	if runID := c.Query("run_id"); runID != "" {
		q = q.Where("run_id = ?", runID)
	}
	var summaries []models.RunSummary
	if err := q.Find(&summaries).Error; err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

func (h *Handler) fail(c *gin.Context, err error) {
	h.log.Errorw("query failed", "path", c.Request.URL.Path, "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
