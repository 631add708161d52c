package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireStartsWithSingleReference(t *testing.T) {
	b := Acquire(64)
	assert.Equal(t, int32(1), b.RefCount())
	assert.Equal(t, 0, b.ReadableBytes())
}

func TestWriteGrowsReadableBytes(t *testing.T) {
	b := Acquire(4)
	n, err := b.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, b.ReadableBytes())
	assert.Equal(t, "hello", string(b.Bytes()))
}

func TestRetainDelaysReturnToPool(t *testing.T) {
	b := Acquire(8)
	_, _ = b.Write([]byte("data"))
	b.Retain()

	assert.False(t, b.Release(), "buffer must survive with one reference still outstanding")
	assert.Equal(t, int32(1), b.RefCount())

	assert.True(t, b.Release(), "final release must report success")
	assert.Nil(t, b.data)
}

func TestDoubleReleaseIsReportedNotPanicked(t *testing.T) {
	b := Acquire(8)
	assert.True(t, b.Release())
	assert.NotPanics(t, func() {
		assert.False(t, b.Release())
	})
}

func TestWrapAdoptsExistingSlice(t *testing.T) {
	b := Wrap([]byte("adopted"))
	assert.Equal(t, 7, b.ReadableBytes())
	assert.True(t, b.Release())
}

func TestPoolAcquireHonorsConfiguredCapacity(t *testing.T) {
	p := NewPool(4)
	b := p.Acquire(4)
	assert.Equal(t, int32(1), b.RefCount())
	assert.GreaterOrEqual(t, cap(b.data), 4)
	assert.True(t, b.Release())
}

func TestNewPoolFallsBackToDefaultCapacity(t *testing.T) {
	p := NewPool(0)
	b := p.Acquire(1)
	assert.GreaterOrEqual(t, cap(b.data), 1)
	assert.True(t, b.Release())
}
