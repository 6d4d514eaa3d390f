// Package trace records per-run pipeline events. Events are persisted through
// the store and can optionally be mirrored to a Kafka topic for external
// observability; the mirror is fire-and-forget and never blocks a run.
package trace

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/segmentio/kafka-go"

	"github.com/MajordomoAI/majordomo/internal/store"
)

const detailCapChars = 512

var emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// Redact masks email addresses and caps the detail length so traces never
// retain full message bodies or raw recipient lists.
func Redact(detail string) string {
	out := emailRe.ReplaceAllStringFunc(detail, func(addr string) string {
		at := strings.Index(addr, "@")
		if at <= 1 {
			return "***" + addr[at:]
		}
		return addr[:1] + "***" + addr[at:]
	})
	if len(out) > detailCapChars {
		cut := detailCapChars
		// Back off to a rune boundary so the cap never splits a multi-byte rune.
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut] + "…"
	}
	return out
}

// Recorder writes redacted trace events to the store and mirrors them when a
// mirror is attached.
type Recorder struct {
	store  *store.Store
	mirror *KafkaMirror
}

func NewRecorder(st *store.Store, mirror *KafkaMirror) *Recorder {
	return &Recorder{store: st, mirror: mirror}
}

// Record appends one trace event. Store failures are logged, not surfaced:
// tracing must never fail a run.
func (r *Recorder) Record(ctx context.Context, runID, stage, status, detail string) {
	ev := &store.TraceEvent{
		RunID:  runID,
		Stage:  stage,
		Status: status,
		Detail: Redact(detail),
	}
	if err := r.store.AppendTrace(ev); err != nil {
		slog.Warn("Trace write failed", "run", runID, "stage", stage, "error", err)
	}
	if r.mirror != nil {
		r.mirror.Publish(ev)
	}
}

// KafkaMirror publishes trace events to a Kafka topic from a background
// goroutine so slow brokers cannot stall the pipeline.
type KafkaMirror struct {
	writer *kafka.Writer
	queue  chan *store.TraceEvent
}

// NewKafkaMirror connects a mirror to the given brokers and topic and starts
// its publish loop. Close the returned mirror on shutdown.
func NewKafkaMirror(bootstrap, topic string) *KafkaMirror {
	m := &KafkaMirror{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(bootstrap, ",")...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
		queue: make(chan *store.TraceEvent, 256),
	}
	go m.loop()
	return m
}

// Publish enqueues an event, dropping it when the queue is full.
func (m *KafkaMirror) Publish(ev *store.TraceEvent) {
	select {
	case m.queue <- ev:
	default:
		slog.Debug("Trace mirror queue full, dropping event", "run", ev.RunID, "stage", ev.Stage)
	}
}

func (m *KafkaMirror) loop() {
	for ev := range m.queue {
		value, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = m.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(ev.RunID),
			Value: value,
			Time:  time.Now(),
		})
		cancel()
		if err != nil {
			slog.Debug("Trace mirror publish failed", "run", ev.RunID, "error", err)
		}
	}
}

// Close stops the publish loop and releases the writer.
func (m *KafkaMirror) Close() error {
	close(m.queue)
	return m.writer.Close()
}
