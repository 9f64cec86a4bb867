package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testObserver struct {
	published int
	delivered int
	lastErr   error
}

func (o *testObserver) OnPublish(_ string, _ Event) {
	o.published++
}

func (o *testObserver) OnDelivered(_ string, handlers int, err error, _ time.Duration) {
	o.delivered += handlers
	o.lastErr = err
}

func TestPublishSubscribe(t *testing.T) {
	b := NewBus()
	var got []any
	sub := b.Subscribe(TypeHistoryApplied, func(e Event) error {
		got = append(got, e.Data())
		return nil
	})
	require.True(t, sub.IsActive())

	require.NoError(t, b.Publish(New(TypeHistoryApplied, "editor", HistoryApplied{Entities: []uint32{4}})))
	require.NoError(t, b.Publish(New(TypeSceneLoaded, "scenefile", nil)))

	require.Len(t, got, 1)
	assert.Equal(t, []uint32{4}, got[0].(HistoryApplied).Entities)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus()
	n := 0
	sub := b.Subscribe("x", func(Event) error { n++; return nil })
	_ = b.Publish(New("x", "test", nil))
	b.Unsubscribe(sub)
	b.Unsubscribe(nil)
	_ = b.Publish(New("x", "test", nil))

	assert.Equal(t, 1, n)
	assert.False(t, sub.IsActive())
}

func TestHandlerErrorsJoined(t *testing.T) {
	b := NewBus()
	errA, errB := errors.New("a"), errors.New("b")
	b.Subscribe("x", func(Event) error { return errA })
	b.Subscribe("x", func(Event) error { return errB })

	err := b.PublishBatch(New("x", "test", nil))
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestFiltersDropSilently(t *testing.T) {
	b := NewBus()
	obs := &testObserver{}
	b.AddObserver(obs)
	n := 0
	b.Subscribe("x", func(Event) error { n++; return nil })

	err := b.PublishWithFilters(New("x", "test", nil), func(Event) bool { return false })
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, uint64(1), b.Metrics().DroppedByFilters)
	assert.Zero(t, obs.published)
}

func TestMetricsOnlyWithObservers(t *testing.T) {
	b := NewBus()
	b.Subscribe("e", func(Event) error { return nil })
	_ = b.Publish(New("e", "s", nil))
	assert.Zero(t, b.Metrics().Published)

	obs := &testObserver{}
	b.AddObserver(obs)
	_ = b.Publish(New("e", "s", nil))
	m := b.Metrics()
	assert.Equal(t, uint64(1), m.Published)
	assert.Equal(t, uint64(1), m.DeliveredHandlers)
	assert.Equal(t, uint64(1), m.SubscribersActive)
	assert.Equal(t, 1, obs.published)
	assert.Equal(t, 1, obs.delivered)

	b.RemoveObserver(obs)
	_ = b.Publish(New("e", "s", nil))
	assert.Equal(t, 1, obs.published)
}
