package natsclient

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	gonats "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionStatusString(t *testing.T) {
	tests := []struct {
		status ConnectionStatus
		want   string
	}{
		{StatusDisconnected, "disconnected"},
		{StatusConnecting, "connecting"},
		{StatusConnected, "connected"},
		{StatusReconnecting, "reconnecting"},
		{StatusCircuitOpen, "circuit_open"},
		{ConnectionStatus(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", client.URL())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsHealthy())
	assert.EqualValues(t, 0, client.Failures())
}

func TestNewClientOptionValidation(t *testing.T) {
	tests := []struct {
		name string
		opt  ClientOption
	}{
		{"nil logger", WithLogger(nil)},
		{"negative reconnect wait", WithReconnectWait(-time.Second)},
		{"zero ping interval", WithPingInterval(0)},
		{"zero timeout", WithTimeout(0)},
		{"zero drain timeout", WithDrainTimeout(0)},
		{"zero circuit threshold", WithCircuitThreshold(0)},
		{"negative health interval", WithHealthInterval(-time.Second)},
		{"max reconnects below -1", WithMaxReconnects(-2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient("nats://localhost:4222", tt.opt)
			assert.Error(t, err)
		})
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	client, err := NewClient("nats://localhost:4222",
		WithCircuitThreshold(3),
	)
	require.NoError(t, err)

	client.recordFailure()
	client.recordFailure()
	assert.NotEqual(t, StatusCircuitOpen, client.Status())

	client.recordFailure()
	assert.Equal(t, StatusCircuitOpen, client.Status())
	assert.EqualValues(t, 3, client.Failures())
}

func TestCircuitBreakerReset(t *testing.T) {
	client, err := NewClient("nats://localhost:4222",
		WithCircuitThreshold(1),
	)
	require.NoError(t, err)

	client.recordFailure()
	require.Equal(t, StatusCircuitOpen, client.Status())

	client.resetCircuit()
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.EqualValues(t, 0, client.Failures())
}

func TestConnectRejectedWhenCircuitOpen(t *testing.T) {
	client, err := NewClient("nats://localhost:4222",
		WithCircuitThreshold(1),
	)
	require.NoError(t, err)

	client.recordFailure()
	require.Equal(t, StatusCircuitOpen, client.Status())

	err = client.Connect(context.Background())
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestOperationsRequireConnection(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	ctx := context.Background()

	_, err = client.Subscribe(ctx, "test.topic", func(context.Context, []byte) {})
	assert.ErrorIs(t, err, ErrNotConnected)

	err = client.Publish(ctx, "test.topic", []byte("data"))
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.Request(ctx, "test.subject", []byte("data"))
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.RTT()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSubscriptionUnsubscribeNil(t *testing.T) {
	var sub *Subscription
	assert.NoError(t, sub.Unsubscribe())

	sub = &Subscription{topic: "test"}
	assert.Equal(t, "test", sub.Topic())
	assert.NoError(t, sub.Unsubscribe())
}

func TestCloseIsIdempotent(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	ctx := context.Background()
	assert.NoError(t, client.Close(ctx))
	assert.NoError(t, client.Close(ctx))
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tc := NewTestClient(t)
	ctx := context.Background()

	received := make(chan []byte, 1)
	sub, err := tc.Client.Subscribe(ctx, "notify.test", func(_ context.Context, data []byte) {
		received <- data
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, tc.Client.Publish(ctx, "notify.test", []byte(`{"verb":"like"}`)))

	select {
	case data := <-received:
		assert.JSONEq(t, `{"verb":"like"}`, string(data))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tc := NewTestClient(t)
	ctx := context.Background()

	var count atomic.Int32
	sub, err := tc.Client.Subscribe(ctx, "notify.unsub", func(_ context.Context, _ []byte) {
		count.Add(1)
	})
	require.NoError(t, err)

	require.NoError(t, tc.Client.Publish(ctx, "notify.unsub", []byte("one")))
	require.Eventually(t, func() bool {
		return count.Load() == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, sub.Unsubscribe())

	require.NoError(t, tc.Client.Publish(ctx, "notify.unsub", []byte("two")))
	time.Sleep(200 * time.Millisecond)
	assert.EqualValues(t, 1, count.Load())
}

func TestRequestReply(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tc := NewTestClient(t)
	ctx := context.Background()

	conn := tc.GetNativeConnection()
	replySub, err := conn.Subscribe("auth.verify", func(msg *gonats.Msg) {
		_ = msg.Respond([]byte(`{"id":"user-1"}`))
	})
	require.NoError(t, err)
	defer replySub.Unsubscribe()

	reply, err := tc.Client.Request(ctx, "auth.verify", []byte(`{"token":"abc"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"user-1"}`, string(reply))
}
