package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	memoryqueue "sensorwatch-go/internal/queue/memory"
)

// simulatedNodes publish on the in-memory bus when -simulate is set.
var simulatedNodes = []string{"node1", "node2", "node3"}

// runSimulator plays field-by-field sensor traffic and status heartbeats
// the way nodes publish them, until ctx is canceled.
func runSimulator(ctx context.Context, bus *memoryqueue.Queue, logger *slog.Logger) {
	logger.Info("simulating sensor traffic", "nodes", simulatedNodes)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, node := range simulatedNodes {
				for _, m := range simulatedFields(node, now) {
					if err := bus.Inject(ctx, m.topic, []byte(m.payload)); err != nil {
						logger.Debug("simulator stopped", "error", err)
						return
					}
				}
			}
		}
	}
}

type simulatedMessage struct {
	topic   string
	payload string
}

func simulatedFields(node string, now time.Time) []simulatedMessage {
	lux := rand.Float64() * 1000
	distance := rand.Float64() * 200

	brightness := "Medio"
	switch {
	case lux > 700:
		brightness = "Brillante"
	case lux < 200:
		brightness = "Oscuro"
	}

	proximity := "Medio"
	switch {
	case distance < 30:
		proximity = "Cerca"
	case distance > 120:
		proximity = "Lejos"
	}

	light := fmt.Sprintf("sensors/brightness/%s/", node)
	ultra := fmt.Sprintf("sensors/distance/%s/", node)

	return []simulatedMessage{
		{light + "lux", strconv.FormatFloat(lux, 'f', 2, 64)},
		{light + "als", strconv.Itoa(int(lux * 0.8))},
		{light + "estado", brightness},
		{ultra + "distance_cm", strconv.FormatFloat(distance, 'f', 1, 64)},
		{ultra + "estado", proximity},
		{fmt.Sprintf("status/%s/last_update", node), strconv.FormatInt(now.Unix(), 10)},
	}
}
