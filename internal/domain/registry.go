package domain

import "strings"

// RegistryEntry is one live event definition, keyed by its normalized topic.
type RegistryEntry struct {
	Topic      string          `json:"topic"`
	Name       string          `json:"name"`
	IsActive   bool            `json:"is_active"`
	Definition EventDefinition `json:"definition"`
}

// NewRegistryEntry builds the entry for a definition seen on topic.
func NewRegistryEntry(topic string, def EventDefinition) RegistryEntry {
	return RegistryEntry{
		Topic:      topic,
		Name:       EventName(topic),
		IsActive:   def.IsActive,
		Definition: def,
	}
}

// EventName returns the part of a topic after the event prefix.
func EventName(topic string) string {
	if i := strings.Index(topic, EventTopicPrefix); i >= 0 {
		return topic[i+len(EventTopicPrefix):]
	}
	return topic
}
