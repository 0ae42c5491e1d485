package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mindmap-dev/mindmap/internal/services"
	"github.com/mindmap-dev/mindmap/internal/types"
	"github.com/mindmap-dev/mindmap/internal/utils"
)

type SubmitReportRequest struct {
	Report string           `json:"report"`
	ID     types.FlexibleID `json:"id"`
}

// SubmitReport answers with {"message": ...} in every case, which is what
// the report form reads.
func (h *Handler) SubmitReport(ctx *gin.Context) {
	userID, err := utils.CurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"message": "User not authenticated"})
		return
	}

	var body SubmitReportRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "Report content and user ID are required."})
		return
	}

	if body.ID == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"message": "Report content and user ID are required."})
		return
	}

	if body.ID.Uint() != userID {
		ctx.JSON(http.StatusForbidden, gin.H{"message": "You can only submit reports for your own account."})
		return
	}

	_, err = h.Content.SubmitReport(ctx.Request.Context(), userID, body.Report)

	if err != nil {
		if errors.Is(err, services.ErrMissingFields) {
			ctx.JSON(http.StatusBadRequest, gin.H{"message": "Report content and user ID are required."})
			return
		}
		h.logger(ctx).WithError(err).Error("Failed to submit report")
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Error submitting the report."})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Report submitted successfully."})
}
