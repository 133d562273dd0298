package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "new-courses", map[string]int{"count": 2})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "other", "payload")
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "new-courses", msgs[0].Topic)
	assert.JSONEq(t, `{"count":2}`, string(msgs[0].Data))

	msgs[0].Topic = "modified"
	assert.Equal(t, "new-courses", pub.Messages()[0].Topic)
}

func TestPublisherErrors(t *testing.T) {
	t.Parallel()

	pub := New()
	_, err := pub.Publish(context.Background(), "t", func() {})
	require.Error(t, err)

	pub.Err = errors.New("quota exceeded")
	_, err = pub.Publish(context.Background(), "t", 1)
	require.ErrorContains(t, err, "quota exceeded")
	assert.Empty(t, pub.Messages())
}
