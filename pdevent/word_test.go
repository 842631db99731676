package pdevent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitAnyReturnsImmediatelyWhenBitAlreadySet(t *testing.T) {
	w := NewWord()
	w.Add(0b010)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r := w.WaitAny(ctx, 0b111)
	assert.Equal(t, uint32(0b010), r)

	// consumed, a second wait blocks until canceled
	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel2()
	r2 := w.WaitAny(ctx2, 0b111)
	assert.Equal(t, uint32(0), r2)
}

func TestWaitAnyWakesOnAdd(t *testing.T) {
	w := NewWord()
	done := make(chan uint32, 1)
	go func() {
		done <- w.WaitAny(context.Background(), 0b1)
	}()
	time.Sleep(5 * time.Millisecond)
	w.Add(0b1)
	select {
	case r := <-done:
		assert.Equal(t, uint32(0b1), r)
	case <-time.After(time.Second):
		t.Fatal("WaitAny did not wake")
	}
}

func TestWaitAnyMasksIrrelevantBits(t *testing.T) {
	w := NewWord()
	w.Add(0b100)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	r := w.WaitAny(ctx, 0b011)
	assert.Equal(t, uint32(0), r)
	// the unmasked bit is still pending
	assert.Equal(t, uint32(0b100), w.Peek(0b100))
}

func TestWaitAnyTimeoutExpires(t *testing.T) {
	w := NewWord()
	start := time.Now()
	r := w.WaitAnyTimeout(context.Background(), 0b1, 20*time.Millisecond)
	assert.Equal(t, uint32(0), r)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestPeekDoesNotClear(t *testing.T) {
	w := NewWord()
	w.Add(0b1)
	require.Equal(t, uint32(0b1), w.Peek(0b1))
	require.Equal(t, uint32(0b1), w.Peek(0b1))
	assert.Equal(t, uint32(0b1), w.WaitAnyTimeout(context.Background(), 0b1, time.Second))
}

func TestAddIsIdempotentWhileUnconsumed(t *testing.T) {
	w := NewWord()
	w.Add(0b1)
	w.Add(0b1)
	assert.Equal(t, uint32(0b1), w.Peek(0b1))
}
