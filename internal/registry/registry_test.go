package registry

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"sensorwatch-go/internal/domain"
	"sensorwatch-go/internal/msglog"
	storemem "sensorwatch-go/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func definition(topic string, threshold float64) *domain.EventDefinition {
	return &domain.EventDefinition{
		Meta: domain.NewMeta(topic),
		EventSpec: domain.EventSpec{
			SensorKind:       domain.SensorLight,
			TriggerThreshold: threshold,
			TriggerType:      domain.TriggerAbove,
			IsActive:         true,
			AlertMessage:     "too bright",
		},
	}
}

func TestMaterialize(t *testing.T) {
	// Newest first.
	snapshot := []domain.Record{
		definition("params/event/A", 5),
		&domain.StatusUpdate{Meta: domain.NewMeta("status/n1/last_update"), NodeID: "n1"},
		definition("params/event/B", 2),
		definition("params/event/A", 1),
	}

	tests := []struct {
		name       string
		snapshot   []domain.Record
		tombstones map[string]struct{}
		wantTopics []string
		wantA      float64
	}{
		{
			name:       "first seen per topic wins",
			snapshot:   snapshot,
			wantTopics: []string{"params/event/A", "params/event/B"},
			wantA:      5,
		},
		{
			name:       "tombstone suppresses every copy",
			snapshot:   snapshot,
			tombstones: map[string]struct{}{"params/event/A": {}},
			wantTopics: []string{"params/event/B"},
		},
		{
			name:       "empty log",
			snapshot:   nil,
			wantTopics: []string{},
		},
		{
			name: "bare topic is normalized",
			snapshot: []domain.Record{
				definition("A", 9),
				definition("params/event/A", 1),
			},
			wantTopics: []string{"params/event/A"},
			wantA:      9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Materialize(tt.snapshot, tt.tombstones)
			if len(got) != len(tt.wantTopics) {
				t.Fatalf("Materialize() returned %d entries, want %d: %+v", len(got), len(tt.wantTopics), got)
			}
			for i, topic := range tt.wantTopics {
				if got[i].Topic != topic {
					t.Errorf("entry[%d].Topic = %s, want %s", i, got[i].Topic, topic)
				}
				if topic == "params/event/A" && got[i].Definition.TriggerThreshold != tt.wantA {
					t.Errorf("A threshold = %v, want %v", got[i].Definition.TriggerThreshold, tt.wantA)
				}
			}
		})
	}
}

func TestMaterialize_NameAndActive(t *testing.T) {
	def := definition("params/event/lamp", 3)
	def.IsActive = false

	got := Materialize([]domain.Record{def}, nil)
	if len(got) != 1 {
		t.Fatalf("got %d entries", len(got))
	}
	if got[0].Name != "lamp" {
		t.Errorf("Name = %q, want lamp", got[0].Name)
	}
	if got[0].IsActive {
		t.Error("IsActive should mirror the definition")
	}
}

func TestTombstoneSet(t *testing.T) {
	s := NewTombstoneSet()

	if !s.Add("x") {
		t.Error("first Add should change the set")
	}
	if s.Add("params/event/x") {
		t.Error("Add of the normalized form should be a no-op")
	}
	if !s.Contains("params/event/x") || !s.Contains("x") {
		t.Error("Contains should match both forms")
	}

	snap := s.Snapshot()
	s.Add("y")
	if len(snap) != 1 {
		t.Error("Snapshot must be a copy")
	}
	if got := s.Topics(); len(got) != 2 || got[0] != "params/event/x" {
		t.Errorf("Topics() = %v", got)
	}

	if !s.Remove("x") || s.Contains("x") {
		t.Error("Remove should clear the topic")
	}
}

func TestService_DeleteAndRevive(t *testing.T) {
	log := msglog.New(10)
	svc := NewService(log, nil, testLogger())

	log.Append(definition("params/event/A", 1))
	if _, ok := svc.Lookup("A"); !ok {
		t.Fatal("A should be live")
	}

	svc.MarkDeleted("params/event/A")
	if _, ok := svc.Lookup("A"); ok {
		t.Fatal("A should be hidden after delete")
	}

	// A newer definition stays hidden until something revives the topic.
	log.Append(definition("params/event/A", 2))
	if len(svc.Current()) != 0 {
		t.Fatal("tombstone suppresses log-wide")
	}

	svc.Revive("A")
	entry, ok := svc.Lookup("params/event/A")
	if !ok {
		t.Fatal("A should be live after revive")
	}
	if entry.Definition.TriggerThreshold != 2 {
		t.Errorf("threshold = %v, want newest definition", entry.Definition.TriggerThreshold)
	}
}

func TestService_WatchMirrorsToCache(t *testing.T) {
	log := msglog.New(10)
	cache := storemem.NewRegistryCache()
	svc := NewService(log, cache, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = svc.Watch(ctx)
		close(done)
	}()

	log.Append(definition("params/event/A", 1))
	svc.MarkDeleted("params/event/B")

	deadline := time.Now().Add(2 * time.Second)
	for {
		entries, _ := cache.GetRegistry(ctx)
		tombs, _ := cache.GetTombstones(ctx)
		if len(entries) == 1 && len(tombs) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("cache not updated: entries=%v tombstones=%v", entries, tombs)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	<-done
}

func TestService_StartsWithoutTombstones(t *testing.T) {
	cache := storemem.NewRegistryCache()
	_ = cache.SetTombstones(context.Background(), []string{"params/event/A"})

	log := msglog.New(10)
	svc := NewService(log, cache, testLogger())

	log.Append(definition("params/event/A", 1))
	if len(svc.Current()) != 1 {
		t.Error("tombstones mirrored by an earlier process must not hide A")
	}
	if svc.Tombstones().Contains("params/event/A") {
		t.Error("tombstone set should start empty")
	}
}
