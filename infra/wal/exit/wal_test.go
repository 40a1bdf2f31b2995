package exit

import (
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openExit(t *testing.T) *ExitWAL {
	t.Helper()
	w, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func scanAll(t *testing.T, w *ExitWAL, limit int, states ...ExitState) []Entry {
	t.Helper()
	var out []Entry
	require.NoError(t, w.Scan(limit, func(e Entry) error {
		out = append(out, e)
		return nil
	}, states...))
	return out
}

func TestPutNewAndScanInOrder(t *testing.T) {
	w := openExit(t)
	require.NoError(t, w.PutNew(12, [][]byte{[]byte("c"), []byte("d")}))
	require.NoError(t, w.PutNew(3, [][]byte{[]byte("a"), []byte("b")}))

	got := scanAll(t, w, 0, StateNew)
	require.Len(t, got, 4)
	assert.Equal(t, uint64(3), got[0].Seq)
	assert.Equal(t, uint32(1), got[1].Index)
	assert.Equal(t, []byte("b"), got[1].Payload)
	assert.Equal(t, uint64(12), got[2].Seq)

	assert.Len(t, scanAll(t, w, 3, StateNew), 3)
	assert.Empty(t, scanAll(t, w, 0, StateAcked))
}

func TestPutNewKeepsExistingState(t *testing.T) {
	w := openExit(t)
	require.NoError(t, w.PutNew(1, [][]byte{[]byte("x")}))
	require.NoError(t, w.UpdateState(1, 0, StateAcked, 0))

	require.NoError(t, w.PutNew(1, [][]byte{[]byte("x")}))
	e, err := w.Get(1, 0)
	require.NoError(t, err)
	assert.Equal(t, StateAcked, e.Record.State)
	assert.Equal(t, []byte("x"), e.Payload)
}

func TestUpdateStateAndTruncate(t *testing.T) {
	w := openExit(t)
	require.NoError(t, w.PutNew(1, [][]byte{[]byte("a")}))
	require.NoError(t, w.PutNew(2, [][]byte{[]byte("b")}))
	require.NoError(t, w.PutNew(3, [][]byte{[]byte("c")}))

	require.NoError(t, w.UpdateState(1, 0, StateAcked, 0))
	require.NoError(t, w.UpdateState(2, 0, StateFailed, 2))
	require.NoError(t, w.UpdateState(3, 0, StateAcked, 1))

	e, err := w.Get(2, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), e.Record.Retries)
	assert.NotZero(t, e.Record.LastAttempt)
	assert.Equal(t, []byte("b"), e.Payload)

	assert.Len(t, scanAll(t, w, 0, StateNew, StateFailed), 1)

	n, err := w.TruncateAckedUpTo(2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = w.Get(1, 0)
	assert.ErrorIs(t, err, pebble.ErrNotFound)

	counts, err := w.Counts()
	require.NoError(t, err)
	assert.Equal(t, map[ExitState]int{StateFailed: 1, StateAcked: 1}, counts)

	require.NoError(t, w.Delete(3, 0))
	assert.ErrorIs(t, w.UpdateState(3, 0, StateSent, 0), pebble.ErrNotFound)
}
