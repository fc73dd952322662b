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
	authmw "github.com/deskhive/deskhive/internal/middleware/auth"
	"github.com/deskhive/deskhive/internal/models"
)

type MembershipHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
}

func (h *MembershipHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "membership_events", fmt.Sprint(event["user_id"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish failed", "error", err)
	}
}

func (h *MembershipHandler) ListPlans(c echo.Context) error {
	var plans []models.MembershipPlan
	if err := h.DB.Order("price ASC").Find(&plans).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, plans)
}

type planRequest struct {
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	DurationDays    uint    `json:"duration_days"`
	DiscountPercent uint    `json:"discount_percent"`
}

func (h *MembershipHandler) CreatePlan(c echo.Context) error {
	var req planRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" || req.DurationDays == 0 || req.DiscountPercent > 100 {
		return echo.NewHTTPError(http.StatusBadRequest, "name, duration_days and discount_percent <= 100 required")
	}

	plan := models.MembershipPlan{
		Name:            req.Name,
		Price:           req.Price,
		DurationDays:    req.DurationDays,
		DiscountPercent: req.DiscountPercent,
	}
	if err := h.DB.Create(&plan).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, plan)
}

func (h *MembershipHandler) PatchPlan(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req planRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.DiscountPercent > 100 {
		return echo.NewHTTPError(http.StatusBadRequest, "discount_percent must be <= 100")
	}

	var plan models.MembershipPlan
	if err := h.DB.First(&plan, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "plan not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if req.Name != "" {
		plan.Name = req.Name
	}
	if req.Price != 0 {
		plan.Price = req.Price
	}
	if req.DurationDays != 0 {
		plan.DurationDays = req.DurationDays
	}
	if req.DiscountPercent != 0 {
		plan.DiscountPercent = req.DiscountPercent
	}

	if err := h.DB.Save(&plan).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, plan)
}

func (h *MembershipHandler) DeletePlan(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.DB.Delete(&models.MembershipPlan{}, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// PurchaseMembership starts a new membership for the caller. A still-running
// membership is cut short, one active membership per user.
func (h *MembershipHandler) PurchaseMembership(c echo.Context) error {
	p, err := authmw.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	var req struct {
		PlanID uint `json:"plan_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var plan models.MembershipPlan
	if err := h.DB.First(&plan, req.PlanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "plan not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	now := time.Now().UTC()
	var membership models.Membership
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Membership{}).
			Where("user_id = ? AND ends_at > ?", p.UserID, now).
			Update("ends_at", now).Error; err != nil {
			return err
		}

		membership = models.Membership{
			UserID:   p.UserID,
			PlanID:   plan.ID,
			StartsAt: now,
			EndsAt:   now.AddDate(0, 0, int(plan.DurationDays)),
		}
		return tx.Create(&membership).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":          "membership_purchased",
		"membership_id": membership.ID,
		"user_id":       p.UserID,
		"plan_id":       plan.ID,
	})

	return c.JSON(http.StatusCreated, membership)
}

func (h *MembershipHandler) GetMyMembership(c echo.Context) error {
	p, err := authmw.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	var membership models.Membership
	if err := h.DB.Where("user_id = ? AND ends_at > ?", p.UserID, time.Now().UTC()).
		Order("ends_at DESC").First(&membership).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "no active membership")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var plan models.MembershipPlan
	if err := h.DB.First(&plan, membership.PlanID).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"membership": membership, "plan": plan})
}
