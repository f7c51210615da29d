package ledger

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"feedmill/pkg/bags"
	apperrors "feedmill/pkg/errors"
	"feedmill/pkg/models"
	"feedmill/pkg/uom"
)

type Handler struct {
	Ledger *Ledger
}

func RegisterRoutes(router *gin.Engine, l *Ledger) {
	handler := Handler{Ledger: l}

	router.GET("/locations", handler.ListLocations)
	router.POST("/locations", handler.CreateLocation)
	router.GET("/locations/:id", handler.GetLocation)
	router.POST("/locations/:id/mutations", handler.MutateLocation)
	router.GET("/locations/:id/bags", handler.LocationBags)
	router.GET("/facilities/:name/locations", handler.LocationsByFacility)
}

func (h *Handler) ListLocations(c *gin.Context) {
	c.JSON(http.StatusOK, h.Ledger.All())
}

func (h *Handler) CreateLocation(c *gin.Context) {
	var loc models.StorageLocation
	if err := c.BindJSON(&loc); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	created, err := h.Ledger.Register(c.Request.Context(), loc)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": "Could not register location", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetLocation(c *gin.Context) {
	loc, err := h.Ledger.Get(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, loc)
}

type mutationPayload struct {
	Quantity  decimal.Decimal `json:"quantity"`
	Operation string          `json:"operation" binding:"required"`
	Material  *string         `json:"material"`
	Grade     *string         `json:"grade"`
	Unit      *string         `json:"uom"`
	Lot       *models.LotRef  `json:"lot"`
}

func (h *Handler) MutateLocation(c *gin.Context) {
	var payload mutationPayload
	if err := c.BindJSON(&payload); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	req := MutationRequest{
		LocationID: c.Param("id"),
		Quantity:   payload.Quantity,
		Operation:  Operation(strings.ToLower(payload.Operation)),
		Lot:        payload.Lot,
	}
	if payload.Material != nil {
		req.Material = models.Set(*payload.Material)
	}
	if payload.Grade != nil {
		req.Grade = models.Set(*payload.Grade)
	}
	if payload.Unit != nil {
		unit, ok := uom.Parse(*payload.Unit)
		if !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Unrecognized unit of measure", "details": *payload.Unit})
			return
		}
		req.Unit = &unit
	}

	loc, err := h.Ledger.Mutate(c.Request.Context(), req)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": "Mutation rejected", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, loc)
}

func (h *Handler) LocationBags(c *gin.Context) {
	loc, err := h.Ledger.Get(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	unit, ok := uom.Parse(loc.UnitOfMeasure)
	if !ok {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Location has no usable unit of measure"})
		return
	}
	grade := ""
	if loc.Grade != nil {
		grade = *loc.Grade
	}
	count, remainder, err := bags.Count(loc.Quantity, unit, grade)
	if err != nil {
		c.AbortWithStatusJSON(apperrors.HTTPStatus(err), gin.H{"error": "Could not derive bag count", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"location_id":  loc.ID,
		"bags":         count,
		"bag_weight":   bags.Weight(grade),
		"remainder_kg": remainder,
	})
}

func (h *Handler) LocationsByFacility(c *gin.Context) {
	kind := models.LocationKind(c.Query("kind"))
	if kind != "" && kind != models.KindBay && kind != models.KindBin {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "kind must be bay or bin"})
		return
	}
	c.JSON(http.StatusOK, h.Ledger.FindByFacility(c.Param("name"), kind))
}
