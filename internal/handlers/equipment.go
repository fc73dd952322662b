package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/deskhive/deskhive/internal/events"
	"github.com/deskhive/deskhive/internal/logging"
	"github.com/deskhive/deskhive/internal/models"
	"github.com/deskhive/deskhive/internal/util"
)

type EquipmentHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
}

func (h *EquipmentHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "equipment_events", fmt.Sprint(event["equipment_id"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish failed", "error", err)
	}
}

func (h *EquipmentHandler) GetEquipment(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var item models.Equipment
	if err := h.DB.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "equipment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, item)
}

func (h *EquipmentHandler) ListEquipment(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.Model(&models.Equipment{}).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var items []models.Equipment
	if err := h.DB.Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"data": items,
		"meta": pageMeta(page, limit, offset, total),
	})
}

type equipmentRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	HourlyRate  float64 `json:"hourly_rate"`
	Stock       uint    `json:"stock"`
}

func (h *EquipmentHandler) CreateEquipment(c echo.Context) error {
	var req equipmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" || req.HourlyRate < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "name and non-negative hourly_rate required")
	}

	item := models.Equipment{
		Name:        req.Name,
		Description: req.Description,
		HourlyRate:  req.HourlyRate,
		Stock:       req.Stock,
	}
	if err := h.DB.Create(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{"type": "equipment_created", "equipment_id": item.ID, "name": item.Name})

	return c.JSON(http.StatusCreated, item)
}

func (h *EquipmentHandler) PatchEquipment(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req equipmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var item models.Equipment
	if err := h.DB.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "equipment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if req.Name != "" {
		item.Name = req.Name
	}
	if req.Description != "" {
		item.Description = req.Description
	}
	if req.HourlyRate != 0 {
		item.HourlyRate = req.HourlyRate
	}
	if req.Stock != 0 {
		item.Stock = req.Stock
	}

	if err := h.DB.Save(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{"type": "equipment_updated", "equipment_id": item.ID, "name": item.Name})

	return c.JSON(http.StatusOK, item)
}

func (h *EquipmentHandler) DeleteEquipment(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.DB.Delete(&models.Equipment{}, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{"type": "equipment_deleted", "equipment_id": id})

	return c.NoContent(http.StatusNoContent)
}
