package lots

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "feedmill/pkg/errors"
)

type Handler struct {
	Service *Service
}

func RegisterRoutes(router *gin.Engine, s *Service) {
	handler := Handler{Service: s}

	router.GET("/lots", handler.ListLots)
	router.GET("/lots/:lotNumber", handler.GetLot)
	router.POST("/lots/generate", handler.GenerateLots)
	router.POST("/lots/:lotNumber/production", handler.RecordProduction)
	router.POST("/lots/:lotNumber/qa", handler.RecordQA)
	router.POST("/lots/:lotNumber/placement", handler.PlaceInBay)
}

func (h *Handler) ListLots(c *gin.Context) {
	c.JSON(http.StatusOK, h.Service.All())
}

func (h *Handler) GetLot(c *gin.Context) {
	lot, err := h.Service.Get(c.Param("lotNumber"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, lot)
}

type generatePayload struct {
	Facility string `json:"facility" binding:"required"`
	Count    int    `json:"count" binding:"required"`
	Date     string `json:"date"` // RFC 3339 date; defaults to today
}

func (h *Handler) GenerateLots(c *gin.Context) {
	var payload generatePayload
	if err := c.BindJSON(&payload); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	date := time.Now().UTC()
	if payload.Date != "" {
		parsed, err := time.Parse("2006-01-02", payload.Date)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD", "details": err.Error()})
			return
		}
		date = parsed
	}

	numbers, err := h.Service.Generate(c.Request.Context(), payload.Facility, date, payload.Count)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": "Could not generate lot numbers", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"lot_numbers": numbers})
}

func (h *Handler) RecordProduction(c *gin.Context) {
	var details ProductionDetails
	if err := c.BindJSON(&details); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	lot, err := h.Service.RecordProductionDetails(c.Request.Context(), c.Param("lotNumber"), details)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": "Could not record production details", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, lot)
}

type qaPayload struct {
	Approved *bool `json:"approved" binding:"required"`
}

func (h *Handler) RecordQA(c *gin.Context) {
	var payload qaPayload
	if err := c.BindJSON(&payload); err != nil || payload.Approved == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	lot, err := h.Service.RecordQAOutcome(c.Request.Context(), c.Param("lotNumber"), *payload.Approved)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": "Could not record QA outcome", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, lot)
}

type placementPayload struct {
	BayID string `json:"bay_id" binding:"required"`
}

func (h *Handler) PlaceInBay(c *gin.Context) {
	var payload placementPayload
	if err := c.BindJSON(&payload); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	lot, err := h.Service.PlaceInBay(c.Request.Context(), c.Param("lotNumber"), payload.BayID)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": "Placement rejected", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, lot)
}
