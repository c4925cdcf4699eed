// Package deadletter receives entries the ingestor evicts from a full buffer
// while the lake is unreachable.
package deadletter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"consentlake/internal/logentry"
	"consentlake/internal/platform/kafka/producer"
)

// Producer is the subset of the platform producer used here.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaSink writes one record per evicted entry.
type KafkaSink struct {
	producer Producer
	topic    string
	now      func() time.Time
}

func NewKafkaSink(p Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic, now: time.Now}
}

// Send publishes every entry, keyed by service. It attempts all entries and
// returns the joined failures.
func (k *KafkaSink) Send(ctx context.Context, entries []*logentry.Entry, reason string) error {
	evicted := strconv.FormatInt(k.now().UTC().UnixMilli(), 10)
	var errs []error
	for _, e := range entries {
		value, err := json.Marshal(e)
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal %s entry: %w", e.Service, err))
			continue
		}
		msg := &producer.Message{
			Topic: k.topic,
			Key:   []byte(e.Service),
			Value: value,
			Headers: map[string]string{
				"reason":     reason,
				"service":    string(e.Service),
				"evicted_at": evicted,
			},
		}
		if err := k.producer.Produce(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("dead-letter %s entry: %w", e.Service, err))
		}
	}
	return errors.Join(errs...)
}

// LogSink records evictions in the log only. The entries are lost.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LogSink{logger: logger}
}

func (l *LogSink) Send(ctx context.Context, entries []*logentry.Entry, reason string) error {
	counts := make(map[string]int)
	for _, e := range entries {
		counts[string(e.Service)]++
	}
	l.logger.ErrorContext(ctx, "log entries evicted without dead-letter topic",
		"reason", reason,
		"entries", len(entries),
		"by_service", counts,
	)
	return nil
}
