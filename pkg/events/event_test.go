package events_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/loginrisk/pkg/events"
)

type guardRolledBack struct {
	events.BaseEvent
	Reason string `json:"reason"`
}

func TestNewBaseEvent(t *testing.T) {
	before := time.Now().UTC()
	e := events.NewBaseEvent("guard.rolled_back", "rollout", "safety_guard")
	after := time.Now().UTC()

	assert.NotEqual(t, [16]byte{}, [16]byte(e.EventID()))
	assert.Equal(t, "guard.rolled_back", e.EventType())
	assert.Equal(t, "rollout", e.AggregateID())
	assert.Equal(t, "safety_guard", e.AggregateType())
	assert.False(t, e.OccurredAt().Before(before))
	assert.False(t, e.OccurredAt().After(after))
}

func TestNewEnvelope(t *testing.T) {
	e := guardRolledBack{
		BaseEvent: events.NewBaseEvent("guard.rolled_back", "rollout", "safety_guard"),
		Reason:    "v2 weaker above threshold",
	}

	env, err := events.NewEnvelope(e)
	require.NoError(t, err)

	assert.Equal(t, e.EventID(), env.EventID)
	assert.Equal(t, "guard.rolled_back", env.EventType)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "v2 weaker above threshold", payload["reason"])
	assert.Equal(t, "rollout", payload["aggregate_id"])
}

func TestEventCollector(t *testing.T) {
	c := &events.EventCollector{}
	assert.Nil(t, c.ClearEvents())

	c.Record(events.NewBaseEvent("a", "1", "x"), events.NewBaseEvent("b", "1", "x"))
	assert.Equal(t, 2, c.Pending())

	cleared := c.ClearEvents()
	require.Len(t, cleared, 2)
	assert.Equal(t, "a", cleared[0].EventType())
	assert.Zero(t, c.Pending())
}
