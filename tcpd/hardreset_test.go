package tcpd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHardReset_RequestedByPolicyEngine(t *testing.T) {
	s, phy := newTestStack(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.runIntnPoller(ctx)
	go s.runHardReset(ctx)

	s.rxMessageID.Store(4)
	s.txMessageIDCounter.Store(4)

	s.hrEvents.Add(evtHRRequest)

	require.Eventually(t, func() bool { return phy.HardResetCount() >= 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(noMessageID), s.rxMessageID.Load())
	assert.Equal(t, int32(0), s.txMessageIDCounter.Load())

	r := s.rxEvents.Peek(evtRXReset)
	assert.Equal(t, evtRXReset, r)
	r = s.txEvents.Peek(evtTXReset)
	assert.Equal(t, evtTXReset, r)

	phy.DeliverHardResetSent()

	r = s.peEvents.WaitAnyTimeout(context.Background(), evtPEHardSent, time.Second)
	assert.Equal(t, evtPEHardSent, r)

	s.hrEvents.Add(evtHRDone)
	require.Eventually(t, func() bool {
		return s.hrEvents.Peek(evtHRRequest|evtHRIHardReset) == 0
	}, time.Second, time.Millisecond)
}

func TestHardReset_IndicatedBySource(t *testing.T) {
	s, phy := newTestStack(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.runIntnPoller(ctx)
	go s.runHardReset(ctx)

	phy.DeliverHardResetReceived()

	r := s.peEvents.WaitAnyTimeout(context.Background(), evtPEReset, time.Second)
	assert.Equal(t, evtPEReset, r)

	// no hard reset was sent, since this one arrived over the wire
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, phy.HardResetCount())

	s.hrEvents.Add(evtHRDone)
}

func TestHardReset_WaitPHYTimesOutWithoutHanging(t *testing.T) {
	s, _ := newTestStack(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	next := s.hrWaitPHY(ctx)
	assert.Equal(t, hrStateHardResetRequested, next)
}
