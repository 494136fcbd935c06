package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := NewBus(8)

	var got []Event
	unsubscribe, err := bus.Subscribe(func(e Event) { got = append(got, e) })
	require.NoError(t, err)

	bus.Publish(New(KindStaked, 10, map[string]any{"count": 2}))
	require.Len(t, got, 1)
	assert.Equal(t, KindStaked, got[0].Kind)
	assert.NotEmpty(t, got[0].ID)

	unsubscribe()
	bus.Publish(New(KindUnstaked, 11, nil))
	assert.Len(t, got, 1)
	assert.Equal(t, uint64(2), bus.Published())
}

func TestRecentIsBoundedNewestFirst(t *testing.T) {
	bus := NewBus(3)
	for i := int64(1); i <= 5; i++ {
		bus.Publish(New(KindCommitted, i, nil))
	}

	recent := bus.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, int64(5), recent[0].Time)
	assert.Equal(t, int64(3), recent[2].Time)

	assert.Len(t, bus.Recent(2), 2)
}

func TestEventIDsAreUnique(t *testing.T) {
	a := New(KindSold, 0, nil)
	b := New(KindSold, 0, nil)
	assert.NotEqual(t, a.ID, b.ID)
}
