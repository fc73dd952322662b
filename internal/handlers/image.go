package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/deskhive/deskhive/internal/models"
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// PresignSpaceImage hands out a short-lived direct-upload URL for a space
// photo. The DB is not touched until the client confirms the upload.
func (h *SpaceHandler) PresignSpaceImage(c echo.Context) error {
	if h.Storage == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "image storage not configured")
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		ContentType string `json:"content_type"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ext, ok := imageExtensions[req.ContentType]
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unsupported content type")
	}

	var space models.Space
	if err := h.DB.First(&space, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "space not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	key := fmt.Sprintf("spaces/%d/%s%s", space.ID, uuid.NewString(), ext)
	presigned, err := h.Storage.PresignUpload(c.Request().Context(), key, req.ContentType)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, presigned)
}

// ConfirmSpaceImage records the uploaded object as the space image.
func (h *SpaceHandler) ConfirmSpaceImage(c echo.Context) error {
	if h.Storage == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "image storage not configured")
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		ObjectKey string `json:"object_key"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ObjectKey == "" || !strings.HasPrefix(req.ObjectKey, fmt.Sprintf("spaces/%d/", id)) {
		return echo.NewHTTPError(http.StatusBadRequest, "object key does not belong to this space")
	}

	var space models.Space
	if err := h.DB.First(&space, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "space not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	space.ImageURL = h.Storage.PublicURL(req.ObjectKey)
	if err := h.DB.Save(&space).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.indexSpace(c, &space)

	return c.JSON(http.StatusOK, echo.Map{"image_url": space.ImageURL})
}
