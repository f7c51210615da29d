package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPutGetLastWriteWins(t *testing.T) {
	c := openTestCache(t)

	_, ok, err := c.Get("storage_locations", "RM-01")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put("storage_locations", "RM-01", []byte(`{"v":1}`)))
	require.NoError(t, c.Put("storage_locations", "RM-01", []byte(`{"v":2}`)))

	doc, ok, err := c.Get("storage_locations", "RM-01")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"v":2}`, string(doc))
}

func TestAll(t *testing.T) {
	c := openTestCache(t)
	require.NoError(t, c.Put("storage_locations", "RM-01", []byte(`{"v":1}`)))
	require.NoError(t, c.Put("storage_locations", "RM-02", []byte(`{"v":2}`)))
	require.NoError(t, c.Put("requisitions", "MR-1", []byte(`{}`)))

	docs, err := c.All("storage_locations")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, `{"v":1}`, string(docs["RM-01"]))
}

func TestEnqueueDedupesByMutationID(t *testing.T) {
	c := openTestCache(t)

	op := QueuedOp{
		MutationID: "m-1",
		Action:     ActionUpsert,
		Collection: "storage_locations",
		RecordID:   "RM-01",
		Payload:    []byte(`{}`),
	}
	require.NoError(t, c.Enqueue(op))
	require.NoError(t, c.Enqueue(op)) // replayed enqueue is a no-op

	pending, err := c.Pending(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "m-1", pending[0].MutationID)
	assert.Equal(t, "RM-01", pending[0].RecordID)
}

func TestAckRemovesOp(t *testing.T) {
	c := openTestCache(t)
	require.NoError(t, c.Enqueue(QueuedOp{MutationID: "m-1", Action: ActionUpsert, Collection: "x", RecordID: "1"}))

	pending, err := c.Pending(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, c.Ack(pending[0].Seq))
	pending, err = c.Pending(10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
