package pdmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAllocFree(t *testing.T) {
	p := NewPool(2)
	require.Equal(t, 2, p.Cap())

	h1, err := p.Alloc()
	require.NoError(t, err)
	h2, err := p.Alloc()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)

	_, err = p.Alloc()
	assert.ErrorIs(t, err, ErrPoolExhausted)

	p.Free(h1)
	h3, err := p.Alloc()
	require.NoError(t, err)
	assert.Equal(t, h1, h3)

	p.Free(h3)
	p.Free(h2)
}

func TestPoolFreeNoHandleIsNoop(t *testing.T) {
	p := NewPool(1)
	assert.NotPanics(t, func() { p.Free(NoHandle) })
}

func TestPoolDoubleFreePanics(t *testing.T) {
	p := NewPool(1)
	h := p.MustAlloc()
	p.Free(h)
	assert.Panics(t, func() { p.Free(h) })
}

func TestPoolGetReturnsZeroedMessage(t *testing.T) {
	p := NewPool(1)
	h := p.MustAlloc()
	m := p.Get(h)
	m.SetType(TypeAccept)
	p.Free(h)

	h2 := p.MustAlloc()
	m2 := p.Get(h2)
	assert.Equal(t, Type(0), m2.Type())
}

func TestPoolMustAllocPanicsWhenExhausted(t *testing.T) {
	p := NewPool(0)
	assert.Panics(t, func() { p.MustAlloc() })
}
