package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/news-similarity/engine/internal/nes"
	"github.com/news-similarity/engine/pkg/logger"
)

type EntityHandler struct {
	nes *nes.NES
}

func NewEntityHandler(n *nes.NES) *EntityHandler {
	return &EntityHandler{nes: n}
}

// HandleSimilarity scores two entity names against each other.
func (h *EntityHandler) HandleSimilarity(c *fiber.Ctx) error {
	a := c.Query("a")
	b := c.Query("b")
	if a == "" || b == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Both a and b entity names are required",
		})
	}

	sim, err := h.nes.Similarity(c.Context(), a, b)
	if err != nil {
		logger.Error("Failed to compute entity similarity",
			zap.String("a", a),
			zap.String("b", b),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute entity similarity",
		})
	}

	return c.JSON(fiber.Map{
		"a":          a,
		"b":          b,
		"similarity": sim,
	})
}
