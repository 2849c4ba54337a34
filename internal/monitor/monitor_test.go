package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpwatch/rangekeeper/internal/domain"
	"github.com/lpwatch/rangekeeper/internal/notify"
)

type fakePool struct {
	mu        sync.Mutex
	activeBin int32
	price     float64
	positions []domain.Position

	binErr   error
	priceErr error
	listErr  error
}

func (f *fakePool) ListPositions(ctx context.Context, owner string) ([]domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.positions, f.listErr
}

func (f *fakePool) ActiveBin(ctx context.Context) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeBin, f.binErr
}

func (f *fakePool) ReferencePrice(ctx context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.price, f.priceErr
}

type fakeRebalancer struct {
	mu        sync.Mutex
	calls     []string
	activeBin int32
	price     float64
	err       error
}

func (f *fakeRebalancer) Rebalance(ctx context.Context, pos domain.Position, activeBin int32, price float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pos.ID)
	f.activeBin = activeBin
	f.price = price
	return f.err
}

type publishRecorder struct {
	mu       sync.Mutex
	channels []string
	payloads []any
}

func (p *publishRecorder) Publish(ctx context.Context, channel string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, channel)
	p.payloads = append(p.payloads, payload)
	return nil
}

func newTestMonitor(pool *fakePool, reb Rebalancer, alerts *alertRecorder) *Monitor {
	tracker := NewTracker(alerts, testLogger())
	return New(pool, tracker, reb, alerts, nil, nil, "0xowner", "pool-1", time.Minute, testLogger())
}

func TestRunCycleQueryFailureAlertsOnceAndMutatesNothing(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakePool)
	}{
		{"active bin fails", func(p *fakePool) { p.binErr = errors.New("rpc timeout") }},
		{"price fails", func(p *fakePool) { p.priceErr = errors.New("rpc timeout") }},
		{"positions fail", func(p *fakePool) { p.listErr = errors.New("rpc timeout") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := &fakePool{
				activeBin: 115,
				price:     1.0,
				positions: []domain.Position{pos("p1", 100, 110)},
			}
			tt.setup(pool)

			alerts := &alertRecorder{}
			m := newTestMonitor(pool, nil, alerts)

			m.RunCycle(context.Background())

			assert.Equal(t, 1, alerts.count(notify.EventQueryError))
			assert.Len(t, alerts.alerts, 1)

			_, tracked := m.tracker.Status("p1")
			assert.False(t, tracked, "aborted cycle must not record any state")
		})
	}
}

func TestRunCycleTriggersRebalanceOnExit(t *testing.T) {
	pool := &fakePool{
		activeBin: 115,
		price:     2.5,
		positions: []domain.Position{pos("p1", 100, 110)},
	}
	alerts := &alertRecorder{}
	reb := &fakeRebalancer{}
	m := newTestMonitor(pool, reb, alerts)

	ctx := context.Background()

	// First cycle records out-of-range, second fires the exit and hands the
	// position to the rebalancer with the cycle's reference price.
	m.RunCycle(ctx)
	assert.Empty(t, reb.calls)

	m.RunCycle(ctx)
	require.Equal(t, []string{"p1"}, reb.calls)
	assert.Equal(t, int32(115), reb.activeBin)
	assert.Equal(t, 2.5, reb.price)

	// Rebalancer is not re-triggered while the alert stands.
	m.RunCycle(ctx)
	assert.Len(t, reb.calls, 1)
}

func TestRunCycleRebalancerErrorIsNotFatal(t *testing.T) {
	pool := &fakePool{
		activeBin: 115,
		price:     1.0,
		positions: []domain.Position{pos("p1", 100, 110)},
	}
	alerts := &alertRecorder{}
	reb := &fakeRebalancer{err: errors.New("no route")}
	m := newTestMonitor(pool, reb, alerts)

	ctx := context.Background()
	m.RunCycle(ctx)
	m.RunCycle(ctx)
	require.Len(t, reb.calls, 1)

	// The cycle completed: the exit alert went out despite the failure.
	assert.Equal(t, 1, alerts.count(notify.EventRangeExit))
}

func TestRunCyclePublishesBinUpdate(t *testing.T) {
	pool := &fakePool{
		activeBin: 108,
		price:     1.5,
		positions: []domain.Position{pos("p1", 100, 110)},
	}
	alerts := &alertRecorder{}
	pub := &publishRecorder{}
	tracker := NewTracker(alerts, testLogger())
	m := New(pool, tracker, nil, alerts, nil, pub, "0xowner", "pool-1", time.Minute, testLogger())

	m.RunCycle(context.Background())

	require.Equal(t, []string{"bins"}, pub.channels)
	update, ok := pub.payloads[0].(binUpdate)
	require.True(t, ok)
	assert.Equal(t, "pool-1", update.PoolID)
	assert.Equal(t, int32(108), update.ActiveBin)
	assert.Equal(t, 1.5, update.Price)
	assert.False(t, update.Ts.IsZero())

	// An aborted cycle publishes nothing.
	pool.mu.Lock()
	pool.binErr = errors.New("rpc timeout")
	pool.mu.Unlock()
	m.RunCycle(context.Background())
	assert.Len(t, pub.channels, 1)
}

func TestRunCycleForgetsClosedPositions(t *testing.T) {
	pool := &fakePool{
		activeBin: 105,
		price:     1.0,
		positions: []domain.Position{pos("p1", 100, 110), pos("p2", 100, 110)},
	}
	alerts := &alertRecorder{}
	m := newTestMonitor(pool, nil, alerts)

	ctx := context.Background()
	m.RunCycle(ctx)
	_, ok := m.tracker.Status("p2")
	require.True(t, ok)

	pool.mu.Lock()
	pool.positions = pool.positions[:1]
	pool.mu.Unlock()

	m.RunCycle(ctx)
	_, ok = m.tracker.Status("p2")
	assert.False(t, ok, "closed positions drop out of tracking")
}

func TestStatusClassifiesWithoutTouchingTracker(t *testing.T) {
	pool := &fakePool{
		activeBin: 115,
		price:     1.0,
		positions: []domain.Position{
			pos("in", 110, 120),
			pos("below", 120, 130),
			pos("above", 100, 110),
		},
	}
	alerts := &alertRecorder{}
	m := newTestMonitor(pool, nil, alerts)

	views, err := m.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 3)

	assert.True(t, views[0].InRange)
	assert.Equal(t, int32(0), views[0].Distance)

	assert.False(t, views[1].InRange)
	assert.Equal(t, int32(-5), views[1].Distance)

	assert.False(t, views[2].InRange)
	assert.Equal(t, int32(5), views[2].Distance)

	// Status is read-only: nothing got tracked and nothing alerted.
	_, ok := m.tracker.Status("in")
	assert.False(t, ok)
	assert.Empty(t, alerts.alerts)

	// Amounts survive as base-unit strings.
	assert.Equal(t, "100", views[0].AmountX)
	assert.Equal(t, "200", views[0].AmountY)
}

func TestStatusPropagatesQueryErrors(t *testing.T) {
	pool := &fakePool{binErr: errors.New("rpc down")}
	m := newTestMonitor(pool, nil, &alertRecorder{})

	_, err := m.Status(context.Background())
	require.Error(t, err)
}
