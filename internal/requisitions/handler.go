package requisitions

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "feedmill/pkg/errors"
	"feedmill/pkg/models"
	"feedmill/pkg/uom"
)

type Handler struct {
	Service *Service
}

func RegisterRoutes(router *gin.Engine, s *Service) {
	handler := Handler{Service: s}

	router.GET("/requisitions", handler.ListRequisitions)
	router.POST("/requisitions", handler.CreateRequisition)
	router.GET("/requisitions/:id", handler.GetRequisition)
	router.POST("/requisitions/:id/bays", handler.AssignBays)
	router.POST("/requisitions/:id/dumps", handler.RecordDump)
	router.POST("/requisitions/:id/close", handler.CloseRequisition)
}

func (h *Handler) ListRequisitions(c *gin.Context) {
	c.JSON(http.StatusOK, h.Service.All())
}

type createPayload struct {
	Facility       string                   `json:"facility" binding:"required"`
	Items          []models.RequisitionItem `json:"items" binding:"required"`
	TargetProducts []models.TargetProduct   `json:"target_products"`
}

func (h *Handler) CreateRequisition(c *gin.Context) {
	var payload createPayload
	if err := c.BindJSON(&payload); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	req, err := h.Service.Create(c.Request.Context(), payload.Facility, payload.Items, payload.TargetProducts)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": "Could not create requisition", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (h *Handler) GetRequisition(c *gin.Context) {
	req, err := h.Service.Get(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, req)
}

type assignPayload struct {
	// Item index -> bay id. Every item must appear.
	Assignments map[int]string `json:"assignments" binding:"required"`
}

func (h *Handler) AssignBays(c *gin.Context) {
	var payload assignPayload
	if err := c.BindJSON(&payload); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	req, err := h.Service.AssignBays(c.Request.Context(), c.Param("id"), payload.Assignments)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": "Bay assignment rejected", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, req)
}

type dumpPayload struct {
	ItemIndex   int             `json:"item_index"`
	TargetBinID string          `json:"target_bin_id" binding:"required"`
	Qty         decimal.Decimal `json:"qty"`
	Unit        *string         `json:"uom"`
}

func (h *Handler) RecordDump(c *gin.Context) {
	var payload dumpPayload
	if err := c.BindJSON(&payload); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	var unit *uom.Unit
	if payload.Unit != nil {
		parsed, ok := uom.Parse(*payload.Unit)
		if !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Unrecognized unit of measure", "details": *payload.Unit})
			return
		}
		unit = &parsed
	}

	req, err := h.Service.RecordDump(c.Request.Context(), c.Param("id"), payload.ItemIndex, payload.TargetBinID, payload.Qty, unit)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": "Dump rejected", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, req)
}

type closePayload struct {
	Consumptions []models.ConsumptionEntry `json:"consumptions" binding:"required"`
	ProducedLots []string                  `json:"produced_lots"`
}

func (h *Handler) CloseRequisition(c *gin.Context) {
	var payload closePayload
	if err := c.BindJSON(&payload); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	req, err := h.Service.Close(c.Request.Context(), c.Param("id"), payload.Consumptions, payload.ProducedLots)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": "Closure rejected", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, req)
}
