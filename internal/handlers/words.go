package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mindmap-dev/mindmap/internal/services"
)

const maxWordsBody = 1 << 20

// ProcessWords relays the word list to the word service and its answer back
// unchanged.
func (h *Handler) ProcessWords(ctx *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxWordsBody))

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	resp, err := h.Words.Process(ctx.Request.Context(), payload)

	if err != nil {
		if errors.Is(err, services.ErrMissingFields) {
			h.Metrics.RecordWordRequest("missing")
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "No words provided"})
			return
		}
		h.logger(ctx).WithError(err).Error("Error communicating with word service")
		h.Metrics.RecordWordRequest("unavailable")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process words. Ensure the word service is running."})
		return
	}

	h.Metrics.RecordWordRequest("relayed")

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}

	ctx.Data(resp.Status, contentType, resp.Body)
}
