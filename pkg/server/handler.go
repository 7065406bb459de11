package server

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Aleph-Alpha/screensim/pkg/apperr"
	"github.com/Aleph-Alpha/screensim/pkg/pipeline"
)

// Handler serves the ingest, query and health endpoints.
type Handler struct {
	ingestor  Ingestor
	searcher  Searcher
	readiness *Readiness
	logger    Logger
}

func NewHandler(ingestor Ingestor, searcher Searcher, readiness *Readiness, logger Logger) *Handler {
	return &Handler{
		ingestor:  ingestor,
		searcher:  searcher,
		readiness: readiness,
		logger:    logger,
	}
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *Handler) Ready(c *fiber.Ctx) error {
	if err := h.readiness.Check(c.UserContext()); err != nil {
		h.logger.ErrorWithContext(c.UserContext(), "readiness check failed", err, nil)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *Handler) Ingest(c *fiber.Ctx) error {
	var req ingestRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("cannot parse json")
	}

	res, err := h.ingestor.Ingest(c.UserContext(), req.Source)
	if err != nil {
		return err
	}

	return c.JSON(ingestResponse{
		Processed:          res.Processed,
		EmbeddingModel:     res.EmbeddingModel,
		EmbeddingDimension: res.EmbeddingDimension,
	})
}

func (h *Handler) Similar(c *fiber.Ctx) error {
	var req similarRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("cannot parse json")
	}

	results, err := h.searcher.Similar(c.UserContext(), pipelineRequest(req))
	if err != nil {
		return err
	}
	if results == nil {
		results = []pipeline.SimilarityResult{}
	}
	return c.JSON(similarResponse{Results: results})
}
