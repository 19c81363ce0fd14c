package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"sensorwatch-go/internal/api"
	"sensorwatch-go/internal/command"
	"sensorwatch-go/internal/config"
	"sensorwatch-go/internal/msglog"
	"sensorwatch-go/internal/notification"
	"sensorwatch-go/internal/processor"
	"sensorwatch-go/internal/queue/memory"
	"sensorwatch-go/internal/registry"
	storemem "sensorwatch-go/internal/store/memory"
)

// stack is the whole service wired over the in-memory bus.
type stack struct {
	server    *api.Server
	bus       *memory.Queue
	log       *msglog.Log
	cache     *storemem.RegistryCache
	processor *processor.Service
	cancel    context.CancelFunc
}

func newStack() *stack {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()

	bus := memory.NewQueue(1000)
	log := msglog.New(cfg.Log.Capacity)
	cache := storemem.NewRegistryCache()
	reg := registry.NewService(log, cache, logger)
	archive := storemem.NewRecordRepository(cfg.Log.ArchiveCapacity)
	emitter := command.NewEmitter(bus, reg, logger)
	proc := processor.NewService(bus, log, reg, archive, notification.NewStubNotifier(logger), logger)

	server := api.NewServer(api.ServerDeps{
		Config:         &cfg.Server,
		Logger:         logger,
		MessageHandler: api.NewMessageHandler(log, logger),
		EventHandler:   api.NewEventHandler(reg, emitter, logger),
		HistoryHandler: api.NewHistoryHandler(archive, logger),
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = proc.Start(ctx) }()
	go func() { _ = reg.Watch(ctx) }()

	return &stack{server: server, bus: bus, log: log, cache: cache, processor: proc, cancel: cancel}
}

func (s *stack) stop() {
	s.cancel()
	_ = s.processor.Stop()
}

// publish injects a message as a remote node would.
func (s *stack) publish(topic, payload string) {
	ExpectWithOffset(1, s.bus.Inject(context.Background(), topic, []byte(payload))).To(Succeed())
}

// call performs an in-process HTTP request and decodes the envelope.
func (s *stack) call(method, path string, body interface{}) (int, api.APIResponse) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.server.App().Test(req, -1)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	var out api.APIResponse
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		ExpectWithOffset(1, json.Unmarshal(raw, &out)).To(Succeed())
	}
	return resp.StatusCode, out
}

// items returns the data array of a list response.
func items(resp api.APIResponse) []map[string]interface{} {
	list, _ := resp.Data.([]interface{})
	out := make([]map[string]interface{}, 0, len(list))
	for _, item := range list {
		out = append(out, item.(map[string]interface{}))
	}
	return out
}

func eventBody(name string) map[string]interface{} {
	return map[string]interface{}{
		"name":              name,
		"sensor_type":       "ultrasonic",
		"trigger_threshold": 25,
		"trigger_type":      "below",
		"is_active":         true,
		"alert_message":     "door open",
		"target_device":     "buzzer",
	}
}

var _ = Describe("Bus Integration Tests", Ordered, func() {
	var s *stack

	BeforeAll(func() {
		s = newStack()
	})

	AfterAll(func() {
		s.stop()
	})

	Describe("Health Check", func() {
		It("should return healthy status", func() {
			status, resp := s.call(http.MethodGet, "/healthz", nil)
			Expect(status).To(Equal(http.StatusOK))
			Expect(resp.Success).To(BeTrue())
		})
	})

	Describe("Sensor traffic", func() {
		It("should combine partial fields into one reading", func() {
			s.publish("sensors/distance/node7/distance_cm", "18.5")
			s.publish("sensors/distance/node7/estado", "Cerca")

			Eventually(func() []map[string]interface{} {
				_, resp := s.call(http.MethodGet, "/v1/messages?kind=sensor_data&node_id=node7", nil)
				return items(resp)
			}).WithTimeout(2 * time.Second).Should(HaveLen(1))

			_, resp := s.call(http.MethodGet, "/v1/messages?kind=sensor_data&node_id=node7", nil)
			reading := items(resp)[0]
			Expect(reading["topic"]).To(Equal("sensors/distance/node7"))
			data := reading["data"].(map[string]interface{})
			Expect(data["ultrasonic"]).To(HaveKeyWithValue("distance_cm", 18.5))
		})

		It("should record status heartbeats and drop non-numeric ones", func() {
			s.publish("status/node7/last_update", "1700000000123")
			s.publish("status/node7/last_update", "later")

			Eventually(func() []map[string]interface{} {
				_, resp := s.call(http.MethodGet, "/v1/messages?kind=status", nil)
				return items(resp)
			}).WithTimeout(2 * time.Second).Should(HaveLen(1))
		})

		It("should archive alerts reported by nodes", func() {
			s.publish("params/event/alert/node7",
				`{"node_id":"node7","msg_type":"alert","timestamp":1700000000,"event":{"sensor_type":"ultrasonic","trigger_threshold":25,"trigger_type":"below","is_active":true,"alert_message":"door open"}}`)

			Eventually(func() []map[string]interface{} {
				_, resp := s.call(http.MethodGet, "/v1/history?kind=alert&node_id=node7", nil)
				return items(resp)
			}).WithTimeout(2 * time.Second).Should(HaveLen(1))
		})
	})

	Describe("Event lifecycle", func() {
		It("should accept a new event and show it once echoed", func() {
			status, resp := s.call(http.MethodPost, "/v1/events", eventBody("door"))
			Expect(status).To(Equal(http.StatusAccepted))
			Expect(resp.Data).To(HaveKeyWithValue("topic", "params/event/door"))

			Eventually(func() int {
				status, _ := s.call(http.MethodGet, "/v1/events/door", nil)
				return status
			}).WithTimeout(2 * time.Second).Should(Equal(http.StatusOK))

			_, resp = s.call(http.MethodGet, "/v1/events/door", nil)
			entry := resp.Data.(map[string]interface{})
			Expect(entry["definition"]).To(Equal(map[string]interface{}{
				"sensor_type":       "ultrasonic",
				"trigger_threshold": float64(25),
				"trigger_type":      "below",
				"is_active":         true,
				"alert_message":     "door open",
				"target_device":     "buzzer",
			}))
		})

		It("should reject a duplicate name", func() {
			status, resp := s.call(http.MethodPost, "/v1/events", eventBody("params/event/door"))
			Expect(status).To(Equal(http.StatusConflict))
			Expect(resp.Error.Code).To(Equal(api.ErrCodeConflict))
		})

		It("should reject an alert message longer than 20 characters", func() {
			body := eventBody("window")
			body["alert_message"] = "window has been opened"
			status, resp := s.call(http.MethodPost, "/v1/events", body)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(resp.Error.Code).To(Equal(api.ErrCodeValidationFailed))
		})

		It("should toggle the active flag", func() {
			status, _ := s.call(http.MethodPost, "/v1/events/door/toggle", nil)
			Expect(status).To(Equal(http.StatusAccepted))

			Eventually(func() interface{} {
				_, resp := s.call(http.MethodGet, "/v1/events/door", nil)
				entry, _ := resp.Data.(map[string]interface{})
				return entry["is_active"]
			}).WithTimeout(2 * time.Second).Should(Equal(false))
		})

		It("should mirror the registry to the cache", func() {
			Eventually(func() int {
				entries, _ := s.cache.GetRegistry(context.Background())
				return len(entries)
			}).WithTimeout(2 * time.Second).Should(Equal(1))
		})

		It("should hide a deleted event immediately", func() {
			status, _ := s.call(http.MethodDelete, "/v1/events/door", nil)
			Expect(status).To(Equal(http.StatusAccepted))

			status, _ = s.call(http.MethodGet, "/v1/events/door", nil)
			Expect(status).To(Equal(http.StatusNotFound))

			Eventually(func() []string {
				tombs, _ := s.cache.GetTombstones(context.Background())
				return tombs
			}).WithTimeout(2 * time.Second).Should(ContainElement("params/event/door"))
		})

		It("should revive an event re-created by another client", func() {
			s.publish("params/event/door",
				`{"msg_type":"event","sensor_type":"light","trigger_threshold":5,"trigger_type":"equal","is_active":true,"alert_message":"lights"}`)

			Eventually(func() int {
				status, _ := s.call(http.MethodGet, "/v1/events/door", nil)
				return status
			}).WithTimeout(2 * time.Second).Should(Equal(http.StatusOK))
		})
	})

	Describe("Message log bounds", func() {
		It("should keep only the newest records up to capacity", func() {
			for i := 0; i < 105; i++ {
				s.publish("status/bulk/last_update", fmt.Sprintf("%d", 1700000000+i))
			}

			Eventually(func() float64 {
				_, resp := s.call(http.MethodGet, "/v1/messages?node_id=bulk", nil)
				list := items(resp)
				if len(list) == 0 {
					return 0
				}
				data := list[0]["data"].(map[string]interface{})
				return data["last_update"].(float64)
			}).WithTimeout(2 * time.Second).Should(Equal(float64(1700000104)))

			_, resp := s.call(http.MethodGet, "/v1/messages", nil)
			Expect(items(resp)).To(HaveLen(100))
		})

		It("should clear the log", func() {
			status, _ := s.call(http.MethodDelete, "/v1/messages", nil)
			Expect(status).To(Equal(http.StatusNoContent))
			Expect(s.log.Len()).To(Equal(0))
		})
	})
})
