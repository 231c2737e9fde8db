package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
)

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestMessage_RoundTrip(t *testing.T) {
	event := &cloudevents.WMSCloudEvent{
		SpecVersion:     "1.0",
		Type:            "wms.fulfillment.route-ready",
		Source:          cloudevents.SourceFulfillment,
		Subject:         "route/R1",
		ID:              "evt-1",
		Time:            time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		DataContentType: "application/json",
		Data:            map[string]any{"routeId": "R1"},
		CorrelationID:   "corr-1",
		RouteID:         "R1",
	}

	msg, err := Message(event)
	require.NoError(t, err)

	assert.Equal(t, "route/R1", string(msg.Key))
	assert.Equal(t, "wms.fulfillment.route-ready", headerValue(msg, "ce-type"))
	assert.Equal(t, "R1", headerValue(msg, "ce-wmsrouteid"))
	assert.Empty(t, headerValue(msg, "ce-wmsorderid"))

	parsed, err := ParseMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, event.ID, parsed.ID)
	assert.Equal(t, "corr-1", parsed.CorrelationID)
	assert.Equal(t, "R1", parsed.RouteID)
}

func TestParseMessage_RejectsGarbage(t *testing.T) {
	_, err := ParseMessage(kafka.Message{Value: []byte("not json")})
	assert.Error(t, err)

	_, err = ParseMessage(kafka.Message{Value: []byte(`{"specversion":"1.0"}`)})
	assert.Error(t, err)
}

func TestConsumer_Dispatch(t *testing.T) {
	c := NewConsumer(DefaultConfig(), logging.NewNop(), nil)

	var specific, wildcard int
	c.Subscribe(Topics.FacilityEvents, cloudevents.ShelfConfigured, func(ctx context.Context, e *cloudevents.WMSCloudEvent) error {
		specific++
		return nil
	})
	c.Subscribe(Topics.FacilityEvents, "*", func(ctx context.Context, e *cloudevents.WMSCloudEvent) error {
		wildcard++
		return errors.New("unhandled")
	})

	ctx := context.Background()
	require.NoError(t, c.Dispatch(ctx, Topics.FacilityEvents, &cloudevents.WMSCloudEvent{Type: cloudevents.ShelfConfigured}))
	assert.Error(t, c.Dispatch(ctx, Topics.FacilityEvents, &cloudevents.WMSCloudEvent{Type: "other"}))
	assert.Error(t, c.Dispatch(ctx, "unknown-topic", &cloudevents.WMSCloudEvent{Type: "x"}))

	assert.Equal(t, 1, specific)
	assert.Equal(t, 1, wildcard)
}
