package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestTopic(t *testing.T) (*pubsub.Topic, *pstest.Server) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "rupat-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "crawl-finished")
	require.NoError(t, err)
	t.Cleanup(topic.Stop)
	return topic, srv
}

func TestPublishSendsJSON(t *testing.T) {
	topic, srv := newTestTopic(t)
	pub := New(topic)

	id, err := pub.Publish(context.Background(), "crawl-finished", map[string]any{"run_id": "r1", "rows": 3})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &payload))
	assert.Equal(t, "r1", payload["run_id"])
	assert.InDelta(t, 3, payload["rows"], 0)
	assert.Equal(t, "crawl-finished", msgs[0].Attributes["topic"])
}

func TestPublishWithoutTopic(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Publish(context.Background(), "t", "x")
	require.ErrorContains(t, err, "not configured")
}

func TestPublishRejectsUnmarshalablePayload(t *testing.T) {
	topic, _ := newTestTopic(t)
	_, err := New(topic).Publish(context.Background(), "t", make(chan int))
	require.ErrorContains(t, err, "marshal payload")
}

func TestNewMessageInjectsTraceContext(t *testing.T) {
	t.Parallel()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	carrier := &pubsubCarrier{attrs: map[string]string{}}
	propagation.TraceContext{}.Inject(ctx, carrier)
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", carrier.Get("traceparent"))
	assert.Contains(t, carrier.Keys(), "traceparent")

	msg, err := newMessage(context.Background(), "", "x")
	require.NoError(t, err)
	assert.NotContains(t, msg.Attributes, "topic")
}
