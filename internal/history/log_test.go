package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(l *Log[int]) []int {
	var out []int
	for {
		v, ok := l.Pop()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

func TestLogLIFO(t *testing.T) {
	l := New[int](4)
	for i := 1; i <= 3; i++ {
		assert.False(t, l.Push(i))
	}
	require.Equal(t, 3, l.Len())

	top, ok := l.Peek()
	require.True(t, ok)
	assert.Equal(t, 3, top)

	assert.Equal(t, []int{3, 2, 1}, drain(l))
	assert.Equal(t, 0, l.Len())
}

func TestLogEvictsOldest(t *testing.T) {
	l := New[int](3)
	var evicted int
	for i := 1; i <= 5; i++ {
		if l.Push(i) {
			evicted++
		}
	}
	assert.Equal(t, 2, evicted)
	assert.Equal(t, 3, l.Len())

	var seen []int
	l.Each(func(v int) { seen = append(seen, v) })
	assert.Equal(t, []int{3, 4, 5}, seen)

	assert.Equal(t, []int{5, 4, 3}, drain(l))
}

func TestLogPushAfterPopWraps(t *testing.T) {
	l := New[int](2)
	l.Push(1)
	l.Push(2)
	l.Push(3) // evicts 1
	v, _ := l.Pop()
	assert.Equal(t, 3, v)
	l.Push(4)
	assert.Equal(t, []int{4, 2}, drain(l))
}

func TestLogEmptyAndReset(t *testing.T) {
	l := New[string](0)
	assert.Equal(t, DefaultCapacity, l.Cap())

	_, ok := l.Pop()
	assert.False(t, ok)
	_, ok = l.Peek()
	assert.False(t, ok)

	l.Push("a")
	l.Push("b")
	l.Reset()
	assert.Equal(t, 0, l.Len())
	_, ok = l.Pop()
	assert.False(t, ok)
}
