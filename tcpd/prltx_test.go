package tcpd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxplot/pdsink/pdmsg"
)

func TestPRLTX_SingleInFlight(t *testing.T) {
	s, phy := newTestStack(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.runIntnPoller(ctx)
	go s.runPRLTX(ctx)

	require.Eventually(t, func() bool { return phy.ResetCount() >= 1 }, time.Second, time.Millisecond)

	var m pdmsg.Message
	m.SetType(pdmsg.TypeGetSourceCap)
	m.SetDataObjectCount(0)
	h := s.pool.MustAlloc()
	*s.pool.Get(h) = m

	s.txMailbox <- h
	s.txEvents.Add(evtTXMsgTX)

	require.Eventually(t, func() bool { return len(phy.SentMessages()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, uint8(0), phy.SentMessages()[0].ID())

	phy.DeliverTxSent()

	r := s.peEvents.WaitAnyTimeout(context.Background(), evtPETxDone|evtPETxErr, time.Second)
	assert.Equal(t, evtPETxDone, r)
}

func TestPRLTX_MessageIDIncrementsOnEachSend(t *testing.T) {
	s, phy := newTestStack(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.runIntnPoller(ctx)
	go s.runPRLTX(ctx)
	require.Eventually(t, func() bool { return phy.ResetCount() >= 1 }, time.Second, time.Millisecond)

	send := func() {
		var m pdmsg.Message
		m.SetType(pdmsg.TypeGetSourceCap)
		h := s.pool.MustAlloc()
		*s.pool.Get(h) = m
		s.txMailbox <- h
		s.txEvents.Add(evtTXMsgTX)
		require.Eventually(t, func() bool { return len(phy.SentMessages()) > 0 }, time.Second, time.Millisecond)
		phy.DeliverTxSent()
		s.peEvents.WaitAnyTimeout(context.Background(), evtPETxDone|evtPETxErr, time.Second)
	}

	send()
	first := phy.SentMessages()[len(phy.SentMessages())-1].ID()
	send()
	second := phy.SentMessages()[len(phy.SentMessages())-1].ID()
	assert.Equal(t, first+1, second)
}

func TestPRLTX_ResetZeroesCounter(t *testing.T) {
	s, _ := newTestStack(t)
	s.txMessageIDCounter.Store(5)
	state, h := s.txReset(pdmsg.NoHandle)
	assert.Equal(t, txStateWaitMessage, state)
	assert.Equal(t, pdmsg.NoHandle, h)
	assert.Equal(t, int32(0), s.txMessageIDCounter.Load())
}

func TestPRLTX_RetryFailureReportsErrAndFreesMessage(t *testing.T) {
	s, phy := newTestStack(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.runIntnPoller(ctx)
	go s.runPRLTX(ctx)
	require.Eventually(t, func() bool { return phy.ResetCount() >= 1 }, time.Second, time.Millisecond)

	var m pdmsg.Message
	m.SetType(pdmsg.TypeGetSourceCap)
	h := s.pool.MustAlloc()
	*s.pool.Get(h) = m
	s.txMailbox <- h
	s.txEvents.Add(evtTXMsgTX)

	require.Eventually(t, func() bool { return len(phy.SentMessages()) == 1 }, time.Second, time.Millisecond)
	phy.DeliverRetryFail()

	r := s.peEvents.WaitAnyTimeout(context.Background(), evtPETxDone|evtPETxErr, time.Second)
	assert.Equal(t, evtPETxErr, r)
}
