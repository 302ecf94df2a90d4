package eventbus

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/annel0/pixel-canvas/internal/logging"
)

type blockPayload struct {
	ID string `json:"id"`
}

func TestNewEnvelope(t *testing.T) {
	ev, err := NewEnvelope("history", "Undo", blockPayload{ID: "b1"})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, 1, ev.Version)
	assert.JSONEq(t, `{"id":"b1"}`, string(ev.Payload))

	var p blockPayload
	require.NoError(t, ev.Decode(&p))
	assert.Equal(t, "b1", p.ID)

	empty, err := NewEnvelope("editor", "Tick", nil)
	require.NoError(t, err)
	assert.Error(t, empty.Decode(&p))

	_, err = NewEnvelope("editor", "Bad", make(chan int))
	assert.Error(t, err)
}

func TestMemoryBus_SynchronousOrderedDelivery(t *testing.T) {
	bus := NewMemoryBus(nil)
	ctx := context.Background()
	var got []string

	_, err := bus.Subscribe(ctx, Filter{}, func(_ context.Context, ev *Envelope) {
		got = append(got, "all:"+ev.EventType)
	})
	require.NoError(t, err)
	_, err = bus.Subscribe(ctx, Filter{Types: []string{"Undo"}}, func(_ context.Context, ev *Envelope) {
		got = append(got, "undo:"+ev.EventType)
	})
	require.NoError(t, err)
	_, err = bus.Subscribe(ctx, Filter{Sources: []string{"selection"}}, func(_ context.Context, ev *Envelope) {
		got = append(got, "sel:"+ev.EventType)
	})
	require.NoError(t, err)

	for _, ev := range []*Envelope{
		{EventType: "Undo", Source: "history"},
		{EventType: "Lift", Source: "selection"},
	} {
		require.NoError(t, bus.Publish(ctx, ev))
	}

	// Доставка завершена к моменту возврата Publish
	assert.Equal(t, []string{"all:Undo", "undo:Undo", "all:Lift", "sel:Lift"}, got)
	stats := bus.Metrics()
	assert.Equal(t, uint64(2), stats.Published)
	assert.Equal(t, uint64(4), stats.Consumed)
	assert.Equal(t, 0, stats.InFlight)
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus(nil)
	ctx := context.Background()
	calls := 0
	sub, err := bus.Subscribe(ctx, Filter{}, func(context.Context, *Envelope) { calls++ })
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, &Envelope{EventType: "A"}))
	sub.Unsubscribe()
	sub.Unsubscribe()
	require.NoError(t, bus.Publish(ctx, &Envelope{EventType: "A"}))
	assert.Equal(t, 1, calls)
}

func TestMemoryBus_PanickingHandlerIsDropped(t *testing.T) {
	logger, logs := logging.NewObservedLogger("eventbus", logging.DEBUG)
	bus := NewMemoryBus(logger)
	ctx := context.Background()
	after := 0

	_, _ = bus.Subscribe(ctx, Filter{}, func(context.Context, *Envelope) { panic("boom") })
	_, _ = bus.Subscribe(ctx, Filter{}, func(context.Context, *Envelope) { after++ })

	require.NoError(t, bus.Publish(ctx, &Envelope{EventType: "A"}))
	assert.Equal(t, 1, after, "остальные подписчики получают событие")
	assert.Equal(t, uint64(1), bus.Metrics().Dropped)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestMemoryBus_CancelledContexts(t *testing.T) {
	bus := NewMemoryBus(nil)
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, bus.Publish(cancelled, &Envelope{}), context.Canceled)
	assert.Error(t, bus.Publish(context.Background(), nil))

	calls := 0
	_, err := bus.Subscribe(cancelled, Filter{}, func(context.Context, *Envelope) { calls++ })
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), &Envelope{}))
	assert.Equal(t, 0, calls)
	assert.Equal(t, uint64(2), bus.Metrics().Dropped)

	_, err = bus.Subscribe(context.Background(), Filter{}, nil)
	assert.Error(t, err)
}

func TestLoggingListener(t *testing.T) {
	logger, logs := logging.NewObservedLogger("eventbus", logging.DEBUG)
	bus := NewMemoryBus(nil)

	sub, err := StartLoggingListener(bus, logger)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), &Envelope{ID: "x", EventType: "Paste", Source: "selection"}))
	entries := logs.FilterMessageSnippet("Paste").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "src=selection")
}

func TestMetricsExporter_Sync(t *testing.T) {
	bus := NewMemoryBus(nil)
	reg := prometheus.NewRegistry()
	me, err := NewMetricsExporter(bus, reg, "canvas")
	require.NoError(t, err)

	_, _ = bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) {})
	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(context.Background(), &Envelope{}))
	}
	me.Sync()
	me.Sync()
	assert.Equal(t, 3.0, testutil.ToFloat64(me.published))
	assert.Equal(t, 3.0, testutil.ToFloat64(me.consumed))
	assert.Equal(t, 0.0, testutil.ToFloat64(me.inflight))

	me.Start(0)
	me.Stop()
	me.Stop()

	_, err = NewMetricsExporter(bus, reg, "canvas")
	assert.Error(t, err, "повторная регистрация")
}
