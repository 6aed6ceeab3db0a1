package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircularBuffer_WriteRead(t *testing.T) {
	buf, err := NewCircularBuffer[int](3)
	require.NoError(t, err)

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Write(2))
	require.NoError(t, buf.Write(3))

	assert.Equal(t, 3, buf.Size())
	assert.True(t, buf.IsFull())

	v, ok := buf.Read()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = buf.Read()
	require.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = buf.Read()
	require.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = buf.Read()
	assert.False(t, ok)
	assert.True(t, buf.IsEmpty())
}

func TestCircularBuffer_DropOldest(t *testing.T) {
	var dropped []string
	buf, err := NewCircularBuffer(2,
		WithOverflowPolicy[string](DropOldest),
		WithDropCallback(func(item string) { dropped = append(dropped, item) }),
	)
	require.NoError(t, err)

	require.NoError(t, buf.Write("a"))
	require.NoError(t, buf.Write("b"))
	require.NoError(t, buf.Write("c"))

	assert.Equal(t, []string{"a"}, dropped)
	assert.Equal(t, int64(1), buf.Stats().Drops())

	v, ok := buf.Read()
	require.True(t, ok)
	assert.Equal(t, "b", v)
}

func TestCircularBuffer_DropNewest(t *testing.T) {
	buf, err := NewCircularBuffer(2, WithOverflowPolicy[string](DropNewest))
	require.NoError(t, err)

	require.NoError(t, buf.Write("a"))
	require.NoError(t, buf.Write("b"))
	require.NoError(t, buf.Write("c")) // dropped

	v, ok := buf.Read()
	require.True(t, ok)
	assert.Equal(t, "a", v)

	v, ok = buf.Read()
	require.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok = buf.Read()
	assert.False(t, ok)
}

func TestCircularBuffer_DropCallbackMayReenter(t *testing.T) {
	var sizes []int
	var buf Buffer[string]
	buf, err := NewCircularBuffer(1,
		WithOverflowPolicy[string](DropOldest),
		WithDropCallback(func(string) { sizes = append(sizes, buf.Size()) }),
	)
	require.NoError(t, err)

	require.NoError(t, buf.Write("a"))
	require.NoError(t, buf.Write("b")) // drops "a", callback reads Size
	assert.Equal(t, []int{1}, sizes)

	buf.Clear() // drops "b", callback reads Size again
	assert.Equal(t, []int{1, 0}, sizes)
}

func TestCircularBuffer_Peek(t *testing.T) {
	buf, err := NewCircularBuffer[int](2)
	require.NoError(t, err)

	_, ok := buf.Peek()
	assert.False(t, ok)

	require.NoError(t, buf.Write(42))

	v, ok := buf.Peek()
	require.True(t, ok)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, buf.Size(), "peek must not consume")
}

func TestCircularBuffer_Clear(t *testing.T) {
	buf, err := NewCircularBuffer[int](4)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, buf.Write(i))
	}

	buf.Clear()
	assert.True(t, buf.IsEmpty())
	assert.Equal(t, int64(0), buf.Stats().CurrentSize())

	// Still writable after clear
	require.NoError(t, buf.Write(99))
	v, ok := buf.Read()
	require.True(t, ok)
	assert.Equal(t, 99, v)
}

func TestCircularBuffer_WriteAfterClose(t *testing.T) {
	buf, err := NewCircularBuffer[int](1)
	require.NoError(t, err)

	require.NoError(t, buf.Close())
	assert.Error(t, buf.Write(1))
}

func TestCircularBuffer_MinimumCapacity(t *testing.T) {
	buf, err := NewCircularBuffer[int](0)
	require.NoError(t, err)
	assert.Equal(t, 1, buf.Capacity())
}

func TestStatistics(t *testing.T) {
	buf, err := NewCircularBuffer[int](2)
	require.NoError(t, err)

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Write(2))
	require.NoError(t, buf.Write(3)) // overflow, drops oldest
	buf.Read()

	stats := buf.Stats()
	assert.Equal(t, int64(3), stats.Writes())
	assert.Equal(t, int64(1), stats.Reads())
	assert.Equal(t, int64(1), stats.Overflows())
	assert.Equal(t, int64(2), stats.MaxSize())
	assert.InDelta(t, 1.0/3.0, stats.DropRate(), 0.001)
}
