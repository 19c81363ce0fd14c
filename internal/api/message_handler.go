package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"sensorwatch-go/internal/domain"
	"sensorwatch-go/internal/msglog"
)

// MessageHandler serves the live message log.
type MessageHandler struct {
	log    *msglog.Log
	logger *slog.Logger
}

// NewMessageHandler creates a new message log handler.
func NewMessageHandler(log *msglog.Log, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{
		log:    log,
		logger: logger,
	}
}

// List handles GET /v1/messages
// Returns the log newest first, optionally filtered by kind and node_id.
func (h *MessageHandler) List(c *fiber.Ctx) error {
	filter, err := parseFilter(c)
	if err != nil {
		return ValidationError(c, err.Error())
	}

	envelopes := make([]domain.Envelope, 0, h.log.Len())
	for _, rec := range h.log.Snapshot() {
		env := domain.NewEnvelope(rec)
		if filter.Matches(env) {
			envelopes = append(envelopes, env)
		}
	}

	return Success(c, envelopes)
}

// Clear handles DELETE /v1/messages
// Empties the log. Partial readings and tombstones are kept.
func (h *MessageHandler) Clear(c *fiber.Ctx) error {
	h.log.Clear()
	h.logger.Info("message log cleared")
	return NoContent(c)
}
