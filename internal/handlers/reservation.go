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
	"github.com/deskhive/deskhive/internal/util"
)

type ReservationHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
}

func (h *ReservationHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "reservation_events", fmt.Sprint(event["user_id"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish failed", "error", err)
	}
}

type reservationRequest struct {
	SpaceID   uint      `json:"space_id"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Equipment []struct {
		EquipmentID uint `json:"equipment_id"`
		Quantity    uint `json:"quantity"`
	} `json:"equipment"`
}

func (h *ReservationHandler) CreateReservation(c echo.Context) error {
	p, err := authmw.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	var req reservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	now := time.Now().UTC()
	if !req.EndsAt.After(req.StartsAt) {
		return echo.NewHTTPError(http.StatusBadRequest, "ends_at must be after starts_at")
	}
	if req.StartsAt.Before(now) {
		return echo.NewHTTPError(http.StatusBadRequest, "starts_at must be in the future")
	}

	var space models.Space
	if err := h.DB.First(&space, req.SpaceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "space not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !space.IsActive {
		return echo.NewHTTPError(http.StatusBadRequest, "space is not available")
	}

	hours := req.EndsAt.Sub(req.StartsAt).Hours()
	total := space.HourlyRate * hours

	var reservation models.Reservation
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		var overlapping int64
		if err := tx.Model(&models.Reservation{}).
			Where("space_id = ? AND status <> ? AND starts_at < ? AND ends_at > ?",
				req.SpaceID, models.ReservationCancelled, req.EndsAt, req.StartsAt).
			Count(&overlapping).Error; err != nil {
			return err
		}
		if overlapping > 0 {
			return echo.NewHTTPError(http.StatusConflict, "space already reserved for this period")
		}

		items := make([]models.ReservationEquipment, 0, len(req.Equipment))
		for _, e := range req.Equipment {
			var eq models.Equipment
			if err := tx.First(&eq, e.EquipmentID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return echo.NewHTTPError(http.StatusBadRequest, "unknown equipment")
				}
				return err
			}
			qty := e.Quantity
			if qty < 1 {
				qty = 1
			}
			if qty > eq.Stock {
				return echo.NewHTTPError(http.StatusBadRequest, "not enough equipment in stock")
			}
			total += eq.HourlyRate * float64(qty) * hours
			items = append(items, models.ReservationEquipment{EquipmentID: eq.ID, Quantity: qty})
		}

		// active membership discounts the total
		var membership models.Membership
		if err := tx.Where("user_id = ? AND ends_at > ?", p.UserID, now).
			Order("ends_at DESC").First(&membership).Error; err == nil {
			var plan models.MembershipPlan
			if err := tx.First(&plan, membership.PlanID).Error; err == nil && plan.DiscountPercent > 0 {
				total = total * float64(100-plan.DiscountPercent) / 100
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		reservation = models.Reservation{
			UserID:    p.UserID,
			SpaceID:   req.SpaceID,
			StartsAt:  req.StartsAt,
			EndsAt:    req.EndsAt,
			Status:    models.ReservationPending,
			Total:     total,
			CreatedAt: now,
			Equipment: items,
		}
		return tx.Create(&reservation).Error
	})
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return httpErr
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":           "reservation_created",
		"reservation_id": reservation.ID,
		"user_id":        p.UserID,
		"space_id":       reservation.SpaceID,
		"total":          reservation.Total,
	})

	return c.JSON(http.StatusCreated, reservation)
}

func (h *ReservationHandler) ListReservations(c echo.Context) error {
	p, err := authmw.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	var items []models.Reservation
	if err := h.DB.Preload("Equipment").
		Where("user_id = ?", p.UserID).Order("starts_at DESC").Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, items)
}

func (h *ReservationHandler) GetReservation(c echo.Context) error {
	p, err := authmw.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var reservation models.Reservation
	if err := h.DB.Preload("Equipment").
		Where("id = ? AND user_id = ?", id, p.UserID).First(&reservation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "reservation not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, reservation)
}

// CancelReservation sets the status to cancelled. Only the owner may cancel
// and only before the reservation starts.
func (h *ReservationHandler) CancelReservation(c echo.Context) error {
	p, err := authmw.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var reservation models.Reservation
	if err := h.DB.Where("id = ? AND user_id = ?", id, p.UserID).First(&reservation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "reservation not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if reservation.Status == models.ReservationCancelled {
		return echo.NewHTTPError(http.StatusBadRequest, "reservation already cancelled")
	}
	if !reservation.StartsAt.After(time.Now().UTC()) {
		return echo.NewHTTPError(http.StatusBadRequest, "reservation already started")
	}

	reservation.Status = models.ReservationCancelled
	if err := h.DB.Save(&reservation).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":           "reservation_cancelled",
		"reservation_id": reservation.ID,
		"user_id":        p.UserID,
	})

	return c.JSON(http.StatusOK, reservation)
}

// ListAllReservations is the staff view over every user's reservations.
func (h *ReservationHandler) ListAllReservations(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.Model(&models.Reservation{}).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var items []models.Reservation
	if err := h.DB.Preload("Equipment").
		Order("starts_at DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"data": items,
		"meta": pageMeta(page, limit, offset, total),
	})
}
