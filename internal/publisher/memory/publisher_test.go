package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "crawl-finished", map[string]string{"run_id": "a"})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id1)

	id2, err := pub.Publish(context.Background(), "crawl-finished", "payload")
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, map[string]string{"run_id": "a"}, msgs[0].Payload)

	msgs[0].Topic = "modified"
	assert.Equal(t, "crawl-finished", pub.Messages()[0].Topic, "Messages returns a copy")
}

func TestPublisherLast(t *testing.T) {
	t.Parallel()

	pub := New()
	_, ok := pub.Last()
	assert.False(t, ok)

	_, _ = pub.Publish(context.Background(), "a", 1)
	_, _ = pub.Publish(context.Background(), "b", 2)
	last, ok := pub.Last()
	require.True(t, ok)
	assert.Equal(t, "b", last.Topic)
	assert.Equal(t, 2, last.Payload)
}
