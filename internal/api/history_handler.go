package api

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"sensorwatch-go/internal/domain"
	"sensorwatch-go/internal/store"
)

// defaultHistoryLimit caps history responses without an explicit limit.
const defaultHistoryLimit = 100

var errInvalidKind = errors.New("kind must be one of sensor_data, event, alert, status")

// HistoryHandler serves the record archive, which outlives the log window.
type HistoryHandler struct {
	archive store.RecordRepository
	logger  *slog.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(archive store.RecordRepository, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		archive: archive,
		logger:  logger,
	}
}

// List handles GET /v1/history
// Returns archived records matching query parameters.
func (h *HistoryHandler) List(c *fiber.Ctx) error {
	filter, err := parseFilter(c)
	if err != nil {
		return ValidationError(c, err.Error())
	}

	// Parse pagination
	if limit := c.Query("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			filter.Limit = l
		}
	}
	if offset := c.Query("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil && o >= 0 {
			filter.Offset = o
		}
	}

	// Default limit if not specified
	if filter.Limit == 0 {
		filter.Limit = defaultHistoryLimit
	}

	envelopes, err := h.archive.List(c.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list history", "error", err)
		return InternalError(c, "failed to list history")
	}

	return Success(c, envelopes)
}

// parseFilter reads the kind and node_id query parameters.
func parseFilter(c *fiber.Ctx) (domain.RecordFilter, error) {
	filter := domain.RecordFilter{
		NodeID: c.Query("node_id"),
	}

	if kind := c.Query("kind"); kind != "" {
		filter.Kind = domain.Kind(kind)
		if !filter.Kind.IsValid() {
			return filter, fmt.Errorf("%w: %q", errInvalidKind, kind)
		}
	}

	return filter, nil
}
