package handlers

import (
	"math"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/news-similarity/engine/internal/metrics"
	"github.com/news-similarity/engine/internal/similarity"
	"github.com/news-similarity/engine/internal/storage/models"
	"github.com/news-similarity/engine/internal/storage/sqlite"
	"github.com/news-similarity/engine/pkg/logger"
)

type CompareHandler struct {
	engine *similarity.Engine
	db     *sqlite.Client
}

func NewCompareHandler(engine *similarity.Engine, db *sqlite.Client) *CompareHandler {
	return &CompareHandler{
		engine: engine,
		db:     db,
	}
}

type articleRequest struct {
	Feed    string `json:"feed"`
	Index   int    `json:"index"`
	Content string `json:"content"`
}

// HandleCompare runs a full pairwise comparison. Undefined component
// distances serialize as null, never as 0 or 1.
func (h *CompareHandler) HandleCompare(c *fiber.Ctx) error {
	var req struct {
		ArticleA articleRequest `json:"article_a"`
		ArticleB articleRequest `json:"article_b"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.ArticleA.Content == "" || req.ArticleB.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Both article contents are required",
		})
	}

	start := time.Now()

	a := h.engine.NewArticle(req.ArticleA.Feed, req.ArticleA.Index, req.ArticleA.Content)
	b := h.engine.NewArticle(req.ArticleB.Feed, req.ArticleB.Index, req.ArticleB.Content)
	defer a.Release()
	defer b.Release()

	result, err := h.engine.Distance(c.Context(), a, b)
	if err != nil {
		metrics.ComparisonsTotal.WithLabelValues("error").Inc()
		logger.Error("Failed to compare articles", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compare articles",
		})
	}

	elapsed := time.Since(start)
	metrics.ComparisonDuration.Observe(elapsed.Seconds())
	metrics.ComparisonsTotal.WithLabelValues("ok").Inc()

	cmp := &models.Comparison{
		ID:        uuid.New().String(),
		FeedA:     req.ArticleA.Feed,
		IndexA:    req.ArticleA.Index,
		FeedB:     req.ArticleB.Feed,
		IndexB:    req.ArticleB.Index,
		What:      nullable(result.What),
		Who:       nullable(result.Who),
		Where:     nullable(result.Where),
		Distance:  nullable(result.Distance),
		LatencyMS: int(elapsed.Milliseconds()),
		CreatedAt: time.Now(),
	}
	if err := h.db.InsertComparison(cmp); err != nil {
		logger.Warn("Failed to record comparison", zap.Error(err))
	}

	return c.JSON(fiber.Map{
		"id":         cmp.ID,
		"what":       cmp.What,
		"who":        cmp.Who,
		"where":      cmp.Where,
		"distance":   cmp.Distance,
		"latency_ms": cmp.LatencyMS,
	})
}

func (h *CompareHandler) GetHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	comparisons, err := h.db.GetComparisons(limit)
	if err != nil {
		logger.Error("Failed to get comparison history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get history",
		})
	}

	out := make([]fiber.Map, 0, len(comparisons))
	for _, cmp := range comparisons {
		out = append(out, fiber.Map{
			"id":         cmp.ID,
			"feed_a":     cmp.FeedA,
			"index_a":    cmp.IndexA,
			"feed_b":     cmp.FeedB,
			"index_b":    cmp.IndexB,
			"what":       cmp.What,
			"who":        cmp.Who,
			"where":      cmp.Where,
			"distance":   cmp.Distance,
			"created_at": cmp.CreatedAt.Unix(),
		})
	}

	return c.JSON(fiber.Map{"history": out})
}

// nullable maps NaN (undefined comparison) to nil.
func nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
