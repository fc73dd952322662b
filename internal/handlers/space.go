package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/deskhive/deskhive/internal/events"
	"github.com/deskhive/deskhive/internal/logging"
	"github.com/deskhive/deskhive/internal/models"
	"github.com/deskhive/deskhive/internal/service/search"
	"github.com/deskhive/deskhive/internal/storage"
	"github.com/deskhive/deskhive/internal/util"
)

type SpaceHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
	ES       *elasticsearch.Client
	Index    string
	Storage  *storage.Storage
}

func (h *SpaceHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "space_events", fmt.Sprint(event["space_id"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish failed", "error", err)
	}
}

func (h *SpaceHandler) indexSpace(c echo.Context, space *models.Space) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := search.IndexSpace(ctx, h.ES, h.Index, space); err != nil {
		logging.FromContext(c.Request().Context()).Error("es index failed", "space_id", space.ID, "error", err)
	}
}

func (h *SpaceHandler) GetSpace(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var space models.Space
	if err := h.DB.First(&space, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "space not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, space)
}

func (h *SpaceHandler) GetSpaces(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.Model(&models.Space{}).Where("is_active = ?", true).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var items []models.Space
	if err := h.DB.Where("is_active = ?", true).
		Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"data": items,
		"meta": pageMeta(page, limit, offset, total),
	})
}

type spaceRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	Capacity    uint    `json:"capacity"`
	HourlyRate  float64 `json:"hourly_rate"`
	IsActive    *bool   `json:"is_active"`
}

func (h *SpaceHandler) CreateSpace(c echo.Context) error {
	var req spaceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" || req.HourlyRate < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "name and non-negative hourly_rate required")
	}

	space := models.Space{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		Capacity:    req.Capacity,
		HourlyRate:  req.HourlyRate,
		IsActive:    true,
	}
	if req.IsActive != nil {
		space.IsActive = *req.IsActive
	}

	if err := h.DB.Create(&space).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.indexSpace(c, &space)
	h.publish(c, map[string]any{"type": "space_created", "space_id": space.ID, "name": space.Name})

	return c.JSON(http.StatusCreated, space)
}

func (h *SpaceHandler) PatchSpace(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req spaceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var space models.Space
	if err := h.DB.First(&space, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "space not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if req.Name != "" {
		space.Name = req.Name
	}
	if req.Description != "" {
		space.Description = req.Description
	}
	if req.Location != "" {
		space.Location = req.Location
	}
	if req.Capacity != 0 {
		space.Capacity = req.Capacity
	}
	if req.HourlyRate != 0 {
		space.HourlyRate = req.HourlyRate
	}
	if req.IsActive != nil {
		space.IsActive = *req.IsActive
	}

	if err := h.DB.Save(&space).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.indexSpace(c, &space)
	h.publish(c, map[string]any{"type": "space_updated", "space_id": space.ID, "name": space.Name})

	return c.JSON(http.StatusOK, space)
}

func (h *SpaceHandler) DeleteSpace(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.DB.Delete(&models.Space{}, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if h.ES != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		if err := search.DeleteSpace(ctx, h.ES, h.Index, uint(id)); err != nil {
			logging.FromContext(c.Request().Context()).Error("es delete failed", "space_id", id, "error", err)
		}
	}
	h.publish(c, map[string]any{"type": "space_deleted", "space_id": id})

	return c.NoContent(http.StatusNoContent)
}
