package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mindmap-dev/mindmap/internal/services"
	"github.com/mindmap-dev/mindmap/internal/types"
	"github.com/mindmap-dev/mindmap/internal/utils"
)

type SaveConstellationRequest struct {
	UserID            types.FlexibleID `json:"userId"`
	Name              string           `json:"name"`
	ConstellationData json.RawMessage  `json:"constellationData"`
}

type UpdateConstellationRequest struct {
	Name              string          `json:"name"`
	ConstellationData json.RawMessage `json:"constellationData"`
}

func (h *Handler) SaveConstellation(ctx *gin.Context) {
	userID, err := utils.CurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body SaveConstellationRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if body.UserID == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	if body.UserID.Uint() != userID {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "You can only save constellations to your own account"})
		return
	}

	constellation, err := h.Content.SaveConstellation(ctx.Request.Context(), userID, body.Name, body.ConstellationData)

	if err != nil {
		h.contentError(ctx, err, "Failed to save constellation")
		return
	}

	h.Hub.BroadcastRefresh(userID)

	ctx.JSON(http.StatusOK, gin.H{
		"message":         "Constellation saved successfully",
		"constellationId": constellation.ID,
	})
}

func (h *Handler) UpdateConstellation(ctx *gin.Context) {
	userID, err := utils.CurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	id, err := utils.GetIDParam(ctx, "id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid constellation ID"})
		return
	}

	var body UpdateConstellationRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	err = h.Content.UpdateConstellation(ctx.Request.Context(), userID, id, body.Name, body.ConstellationData)

	if err != nil {
		h.contentError(ctx, err, "Failed to update constellation")
		return
	}

	h.Hub.BroadcastRefresh(userID)

	ctx.JSON(http.StatusOK, gin.H{"message": "Constellation updated successfully"})
}

func (h *Handler) ListConstellations(ctx *gin.Context) {
	userID, err := utils.CurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	requested, err := utils.GetIDParam(ctx, "userId")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	if requested != userID {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "You can only view your own constellations"})
		return
	}

	constellations, err := h.Content.ListConstellations(ctx.Request.Context(), userID)

	if err != nil {
		h.contentError(ctx, err, "Failed to retrieve constellations")
		return
	}

	ctx.JSON(http.StatusOK, constellations)
}

func (h *Handler) GetConstellation(ctx *gin.Context) {
	userID, err := utils.CurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	id, err := utils.GetIDParam(ctx, "id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid constellation ID"})
		return
	}

	constellation, err := h.Content.GetConstellation(ctx.Request.Context(), userID, id)

	if err != nil {
		h.contentError(ctx, err, "Failed to retrieve constellation")
		return
	}

	ctx.JSON(http.StatusOK, constellation)
}

func (h *Handler) contentError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrMissingFields):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
	case errors.Is(err, services.ErrInvalidData):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Constellation data must be valid JSON"})
	case errors.Is(err, services.ErrConstellationNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Constellation not found"})
	default:
		h.logger(ctx).WithError(err).Error(fallback)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
