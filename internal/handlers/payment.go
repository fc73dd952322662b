package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/deskhive/deskhive/internal/events"
	"github.com/deskhive/deskhive/internal/logging"
	authmw "github.com/deskhive/deskhive/internal/middleware/auth"
	"github.com/deskhive/deskhive/internal/models"
	"github.com/deskhive/deskhive/internal/util"
)

type PaymentHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
}

func (h *PaymentHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "payment_events", fmt.Sprint(event["user_id"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish failed", "error", err)
	}
}

// CreatePayment records a payment for the caller's pending reservation and
// confirms it. The unique index on reservation_id makes a second payment for
// the same reservation impossible.
func (h *PaymentHandler) CreatePayment(c echo.Context) error {
	p, err := authmw.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	var req struct {
		ReservationID uint   `json:"reservation_id"`
		Method        string `json:"method"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var payment models.Payment
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		var reservation models.Reservation
		if err := tx.Where("id = ? AND user_id = ?", req.ReservationID, p.UserID).
			First(&reservation).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "reservation not found")
			}
			return err
		}
		if reservation.Status != models.ReservationPending {
			return echo.NewHTTPError(http.StatusConflict, "reservation is not awaiting payment")
		}

		var existing int64
		if err := tx.Model(&models.Payment{}).
			Where("reservation_id = ?", reservation.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return echo.NewHTTPError(http.StatusConflict, "reservation already paid")
		}

		payment = models.Payment{
			UserID:        p.UserID,
			ReservationID: reservation.ID,
			Amount:        reservation.Total,
			Method:        req.Method,
			CreatedAt:     time.Now().UTC(),
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		reservation.Status = models.ReservationConfirmed
		return tx.Save(&reservation).Error
	})
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return httpErr
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":           "payment_recorded",
		"payment_id":     payment.ID,
		"reservation_id": payment.ReservationID,
		"user_id":        p.UserID,
		"amount":         payment.Amount,
	})

	return c.JSON(http.StatusCreated, payment)
}

func (h *PaymentHandler) ListPayments(c echo.Context) error {
	p, err := authmw.CurrentPrincipal(c)
	if err != nil {
		return err
	}

	var items []models.Payment
	if err := h.DB.Where("user_id = ?", p.UserID).Order("created_at DESC").Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, items)
}

func (h *PaymentHandler) ListAllPayments(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.Model(&models.Payment{}).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var items []models.Payment
	if err := h.DB.Order("created_at DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"data": items,
		"meta": pageMeta(page, limit, offset, total),
	})
}
