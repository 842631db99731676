package tcpd

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxplot/pdsink/pdmsg"
	"github.com/oxplot/pdsink/tcphy"
)

// fakeDPM records every callback invocation for assertions and answers
// EvaluateCapabilities by always picking the first PDO offered.
type fakeDPM struct {
	NopDPM
	mu                  sync.Mutex
	evaluateCalls       int
	transitionRequested int
	transitionDefault   int
	notSupported        int
	pick                func(pdos []pdmsg.PDO) pdmsg.RequestDO
}

func (f *fakeDPM) EvaluateCapabilities(pdos []pdmsg.PDO) pdmsg.RequestDO {
	f.mu.Lock()
	f.evaluateCalls++
	f.mu.Unlock()
	if f.pick != nil {
		return f.pick(pdos)
	}
	var rdo pdmsg.RequestDO
	rdo.SetSelectedObjectPosition(1)
	rdo.SetFixedOperatingCurrent(1000)
	rdo.SetFixedMaxOperatingCurrent(1000)
	return rdo
}

func (f *fakeDPM) TransitionRequested() {
	f.mu.Lock()
	f.transitionRequested++
	f.mu.Unlock()
}

func (f *fakeDPM) TransitionDefault() {
	f.mu.Lock()
	f.transitionDefault++
	f.mu.Unlock()
}

func (f *fakeDPM) NotSupportedReceived() {
	f.mu.Lock()
	f.notSupported++
	f.mu.Unlock()
}

func (f *fakeDPM) counts() (evaluate, requested, def, notSupported int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evaluateCalls, f.transitionRequested, f.transitionDefault, f.notSupported
}

func TestPE_FullNegotiationToReady(t *testing.T) {
	s, phy := newTestStack(t)
	dpm := &fakeDPM{}
	s.dpm = dpm

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.runIntnPoller(ctx)
	go s.runPRLRX(ctx)
	go s.runPRLTX(ctx)
	go s.runHardReset(ctx)
	go s.runPolicyEngine(ctx)

	phy.DeliverMessage(sourceCapMessage())

	require.Eventually(t, func() bool {
		return len(phy.SentMessages()) >= 1
	}, time.Second, time.Millisecond, "expected a Request after Source_Capabilities")

	sent := phy.SentMessages()
	require.NotEmpty(t, sent)
	last := sent[len(sent)-1]
	assert.True(t, last.IsData())
	assert.Equal(t, pdmsg.TypeRequest, last.Type())

	// the source acknowledges the Request; wait until PRL-TX has counted it
	// as sent before the source's reply arrives
	phy.DeliverTxSent()
	require.Eventually(t, func() bool {
		return s.txMessageIDCounter.Load() == 1
	}, time.Second, time.Millisecond)

	// simulate the source's Accept then PS_RDY, each with a MessageID
	// distinct from the last so PRL-RX's duplicate filter lets them through
	var accept pdmsg.Message
	accept.SetType(pdmsg.TypeAccept)
	accept.SetID(1)
	phy.DeliverMessage(accept)

	var psReady pdmsg.Message
	psReady.SetType(pdmsg.TypePSReady)
	psReady.SetID(2)

	require.Eventually(t, func() bool {
		phy.DeliverMessage(psReady)
		_, requested, _, _ := dpm.counts()
		return requested >= 1
	}, time.Second, time.Millisecond, "expected TransitionRequested after PS_RDY")
}

func TestPE_HardResetAfterSourceUnresponsive(t *testing.T) {
	s, phy := newTestStack(t)
	s.cfg.NHardResetCount = 0
	dpm := &fakeDPM{}
	s.dpm = dpm

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.runIntnPoller(ctx)
	go s.runPRLRX(ctx)
	go s.runPRLTX(ctx)
	go s.runHardReset(ctx)
	go s.runPolicyEngine(ctx)

	// no Source_Capabilities ever arrives: WaitCap should time out, drive a
	// hard reset, and once the counter is exhausted fall back to
	// SourceUnresponsive without spinning the CPU or hanging.
	require.Eventually(t, func() bool { return phy.HardResetCount() >= 1 }, 2*time.Second, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	cur, err := phy.GetTypeCCurrent()
	require.NoError(t, err)
	assert.Equal(t, tcphy.TypeCCurrentSinkTxOK, cur)
}
