package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMessageBuilderSetsHeadersAndValue(t *testing.T) {
	msg := NewMessage().
		WithKey("booking-1").
		WithValue(testPayload{Name: "conf", Count: 3}).
		WithEventType("booking.confirmed").
		WithSchemaVersion("1").
		WithSource("eventbook-server").
		Build()

	assert.Equal(t, "booking-1", msg.Key)
	assert.Equal(t, "booking.confirmed", msg.GetEventType())

	version, ok := msg.GetHeader(HeaderSchemaVersion)
	require.True(t, ok)
	assert.Equal(t, "1", version)

	source, ok := msg.GetHeader(HeaderSource)
	require.True(t, ok)
	assert.Equal(t, "eventbook-server", source)

	var decoded testPayload
	require.NoError(t, msg.DecodeValue(&decoded))
	assert.Equal(t, "conf", decoded.Name)
	assert.Equal(t, 3, decoded.Count)
}

func TestMessageBuilderGeneratesEventIDAndTimestamp(t *testing.T) {
	first := NewMessage().WithKey("k").Build()
	second := NewMessage().WithKey("k").Build()

	firstID, ok := first.GetHeader(HeaderEventID)
	require.True(t, ok)
	require.NotEmpty(t, firstID)

	secondID, _ := second.GetHeader(HeaderEventID)
	assert.NotEqual(t, firstID, secondID)

	ts, ok := first.GetHeader(HeaderTimestamp)
	require.True(t, ok)
	assert.NotEmpty(t, ts)
}

func TestMessageBuilderKeepsExplicitEventID(t *testing.T) {
	msg := NewMessage().WithHeader(HeaderEventID, "fixed-id").Build()

	id, _ := msg.GetHeader(HeaderEventID)
	assert.Equal(t, "fixed-id", id)
}
