package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"sensorwatch-go/internal/command"
	"sensorwatch-go/internal/domain"
)

// Registry is the read side of the event registry.
type Registry interface {
	Current() []domain.RegistryEntry
	Lookup(topic string) (domain.RegistryEntry, bool)
}

// EventHandler handles HTTP requests for event definitions.
// Writes are published to the bus and answered with 202 Accepted: the
// registry reflects them once their echo is processed.
type EventHandler struct {
	registry Registry
	emitter  *command.Emitter
	logger   *slog.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(registry Registry, emitter *command.Emitter, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		registry: registry,
		emitter:  emitter,
		logger:   logger,
	}
}

// commandResponse acknowledges an accepted command.
type commandResponse struct {
	Topic      string            `json:"topic"`
	Name       string            `json:"name"`
	Definition *domain.EventSpec `json:"definition,omitempty"`
}

func accepted(topic string, spec *domain.EventSpec) commandResponse {
	return commandResponse{
		Topic:      topic,
		Name:       domain.EventName(topic),
		Definition: spec,
	}
}

// List handles GET /v1/events
// Returns the live event registry.
func (h *EventHandler) List(c *fiber.Ctx) error {
	return Success(c, h.registry.Current())
}

// Get handles GET /v1/events/:name
// Returns a single live event by name.
func (h *EventHandler) Get(c *fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return BadRequest(c, "name is required")
	}

	entry, ok := h.registry.Lookup(name)
	if !ok {
		return NotFound(c, "event not found")
	}

	return Success(c, entry)
}

// Create handles POST /v1/events
// Publishes a new event definition.
func (h *EventHandler) Create(c *fiber.Ctx) error {
	var req domain.CreateEventRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("failed to parse request body", "error", err)
		return BadRequest(c, "invalid request body")
	}

	topic, err := h.emitter.Create(c.Context(), req.EventSpec, req.Name)
	if err != nil {
		return h.commandError(c, "create", err)
	}

	spec := req.EventSpec
	spec.Normalize()
	return Accepted(c, accepted(topic, &spec))
}

// Update handles PUT /v1/events/:name
// Merges the given fields over the live definition and republishes it.
func (h *EventHandler) Update(c *fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return BadRequest(c, "name is required")
	}

	var changes domain.EventChanges
	if err := c.BodyParser(&changes); err != nil {
		h.logger.Debug("failed to parse request body", "error", err)
		return BadRequest(c, "invalid request body")
	}

	spec, err := h.emitter.Update(c.Context(), name, changes)
	if err != nil {
		return h.commandError(c, "update", err)
	}

	return Accepted(c, accepted(domain.NormalizeTopic(name), &spec))
}

// Toggle handles POST /v1/events/:name/toggle
// Flips the is_active flag of a live event.
func (h *EventHandler) Toggle(c *fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return BadRequest(c, "name is required")
	}

	spec, err := h.emitter.ToggleActive(c.Context(), name)
	if err != nil {
		return h.commandError(c, "toggle", err)
	}

	return Accepted(c, accepted(domain.NormalizeTopic(name), &spec))
}

// Delete handles DELETE /v1/events/:name
// Publishes the delete and hides the event immediately.
func (h *EventHandler) Delete(c *fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return BadRequest(c, "name is required")
	}

	if err := h.emitter.Delete(c.Context(), name); err != nil {
		return h.commandError(c, "delete", err)
	}

	return Accepted(c, accepted(domain.NormalizeTopic(name), nil))
}

// commandError maps emitter errors to responses.
func (h *EventHandler) commandError(c *fiber.Ctx, op string, err error) error {
	var verr *domain.ValidationError

	switch {
	case errors.Is(err, domain.ErrDuplicateEventName):
		return Conflict(c, err.Error())
	case errors.Is(err, domain.ErrEventNotFound):
		return NotFound(c, "event not found")
	case errors.As(err, &verr):
		return ValidationError(c, verr.Err.Error())
	case errors.Is(err, command.ErrPublishFailed):
		return Unavailable(c, "failed to publish to the bus")
	default:
		h.logger.Error("event command failed", "operation", op, "error", err)
		return InternalError(c, "failed to "+op+" event")
	}
}
