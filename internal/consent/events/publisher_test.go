package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentlake/internal/consent/models"
	"consentlake/internal/platform/kafka/producer"
)

type recordingProducer struct {
	messages []*producer.Message
	err      error
}

func (r *recordingProducer) Produce(_ context.Context, msg *producer.Message) error {
	r.messages = append(r.messages, msg)
	return r.err
}

func TestPublish(t *testing.T) {
	rec := &recordingProducer{}
	pub := NewPublisher(rec, "consent-events")
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := pub.Publish(context.Background(), models.Event{
		Type:       models.EventConsentRevoked,
		UserID:     "u1",
		Consent:    &models.UserConsent{UserID: "u1", Version: "1.0"},
		OccurredAt: at,
	})
	require.NoError(t, err)
	require.Len(t, rec.messages, 1)

	msg := rec.messages[0]
	assert.Equal(t, "consent-events", msg.Topic)
	assert.Equal(t, "u1", string(msg.Key))
	assert.Equal(t, "consent.revoked", msg.Headers["event_type"])
	assert.Equal(t, "1.0", msg.Headers["consent_version"])

	var decoded models.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, models.EventConsentRevoked, decoded.Type)
	assert.True(t, decoded.OccurredAt.Equal(at))
}

func TestPublishWrapsProducerError(t *testing.T) {
	rec := &recordingProducer{err: errors.New("leader not available")}
	err := NewPublisher(rec, "t").Publish(context.Background(), models.Event{Type: models.EventConsentUpdated, UserID: "u1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish consent.updated")
}
