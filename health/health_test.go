package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawyersec/uds-tcp-graphql/testutil"
)

func TestMonitorUpdateAndGet(t *testing.T) {
	m := NewMonitor()

	m.UpdateHealthy("store", "reachable")
	status, ok := m.Get("store")
	require.True(t, ok)
	assert.True(t, status.IsHealthy())
	assert.Equal(t, "store", status.Component)
	assert.False(t, status.Timestamp.IsZero())

	_, ok = m.Get("absent")
	assert.False(t, ok)
}

func TestMonitorAggregate(t *testing.T) {
	m := NewMonitor()

	m.UpdateHealthy("store", "ok")
	m.UpdateHealthy("socket", "ok")
	agg := m.AggregateHealth("gateway")
	assert.True(t, agg.IsHealthy())
	assert.Len(t, agg.SubStatuses, 2)

	m.UpdateDegraded("socket", "slow accepts")
	agg = m.AggregateHealth("gateway")
	assert.True(t, agg.IsDegraded())

	m.UpdateUnhealthy("store", "connection refused")
	agg = m.AggregateHealth("gateway")
	assert.True(t, agg.IsUnhealthy())
}

func TestAggregateEmpty(t *testing.T) {
	agg := Aggregate("gateway", nil)
	assert.True(t, agg.IsHealthy())
}

func TestSanitizeMessage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{
			name: "url",
			in:   "dial http://ch.internal:8123 failed",
			want: "dial [URL] failed",
		},
		{
			name: "unix path",
			in:   "connect /tmp/graphql-gateway.sock refused",
			want: "connect [PATH] refused",
		},
		{
			name: "ip and port",
			in:   "dial tcp 10.0.0.3:9000 refused",
			want: "dial tcp [IP][PORT] refused",
		},
		{
			name: "credential",
			in:   "auth failed password=hunter2",
			want: "auth failed [REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeMessage(tt.in))
		})
	}
}

func TestUnhealthyMessageIsSanitized(t *testing.T) {
	status := NewUnhealthy("store", "dial tcp 10.0.0.3:9000 refused")
	assert.NotContains(t, status.Message, "10.0.0.3")
}

func TestStoreCheckerTransitions(t *testing.T) {
	store := testutil.NewMemoryStore()
	monitor := NewMonitor()
	checker := NewStoreChecker(store, monitor, nil, nil, time.Hour, time.Second)

	checker.check(context.Background())
	status, ok := monitor.Get("store")
	require.True(t, ok)
	assert.True(t, status.IsHealthy())

	store.Err = errors.New("dial tcp 10.0.0.3:9000 refused")
	checker.check(context.Background())
	status, _ = monitor.Get("store")
	assert.True(t, status.IsUnhealthy())
	assert.NotContains(t, status.Message, "10.0.0.3")

	store.Err = nil
	checker.check(context.Background())
	status, _ = monitor.Get("store")
	assert.True(t, status.IsHealthy())
}

func TestStoreCheckerRunStopsOnCancel(t *testing.T) {
	store := testutil.NewMemoryStore()
	checker := NewStoreChecker(store, NewMonitor(), nil, nil, time.Millisecond, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("checker did not stop")
	}
}
