package tcpd

import (
	"context"
	"sync"
	"time"

	"github.com/oxplot/pdsink/pdmsg"
)

// peLocal holds everything the Policy Engine needs to remember between
// states. Unlike rxMessageID/txMessageIDCounter, none of this is touched
// by any other task, so it needs no synchronization — it's local to the
// single goroutine running runPolicyEngine.
type peLocal struct {
	explicitContract bool
	hardResetCounter int
	minPower         bool
	specRev          pdmsg.Revision

	// ppsIndex is the 1-based position of the first PPS APDO in the most
	// recently seen source capabilities, or 8 (out of range) if none.
	ppsIndex uint8
	// lastPPS is the object position of the last request that qualified
	// as PPS, or 8 if the last request wasn't. See DESIGN.md's Open
	// Question 1 decision for why this is computed the way it is.
	lastPPS uint8

	hasLastRequest bool
	lastRequestDO  pdmsg.RequestDO
	// pendingRequest is the DPM's most recent EvaluateCapabilities result,
	// awaiting Accept/Reject in SelectCap.
	pendingRequest pdmsg.RequestDO

	// sourceCapMsg holds a still-owned Source_Capabilities message handle
	// between Ready/WaitCap and EvalCap.
	sourceCapMsg pdmsg.Handle
	pdoBuf       [pdmsg.MaxDataObjects]pdmsg.PDO
	pdoCount     int

	// oldTCCMatch is -1 until the first Type-C-current-only sample, then
	// 0 or 1, so SourceUnresponsive can tell whether two consecutive
	// samples agree.
	oldTCCMatch int8

	ppsTimer *ppsTimer
}

func newPELocal() *peLocal {
	return &peLocal{
		ppsIndex:     8,
		lastPPS:      8,
		sourceCapMsg: pdmsg.NoHandle,
		oldTCCMatch:  -1,
	}
}

// ppsTimer periodically posts evtPEPPSRequest to a Stack's Policy Engine
// while armed, implementing SinkPPSPeriodicTimer from pe_sink_select_cap:
// a PD 3.0 PPS contract must be re-requested at least once every 10s or the
// source may assume the sink walked away and revert to a fixed supply.
type ppsTimer struct {
	mu     sync.Mutex
	timer  *time.Timer
	armed  bool
	stack  *Stack
	period time.Duration
}

func newPPSTimer(s *Stack) *ppsTimer {
	return &ppsTimer{stack: s, period: s.cfg.TSinkPPSPeriodic}
}

func (p *ppsTimer) arm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.armed = true
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.period, p.fire)
}

func (p *ppsTimer) disarm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.armed = false
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *ppsTimer) fire() {
	p.mu.Lock()
	armed := p.armed
	p.mu.Unlock()
	if !armed {
		return
	}
	p.stack.peEvents.Add(evtPEPPSRequest)
	p.mu.Lock()
	if p.armed {
		p.timer = time.AfterFunc(p.period, p.fire)
	}
	p.mu.Unlock()
}

type txOutcome int

const (
	txOutcomeDone txOutcome = iota
	txOutcomeErr
	txOutcomeReset
)

// peSend hands h to PRL-TX and waits for it to report success, failure or
// a reset. PRL-TX owns freeing h in every case except when ctx is canceled
// before the handoff completes.
func (s *Stack) peSend(ctx context.Context, h pdmsg.Handle) txOutcome {
	select {
	case s.txMailbox <- h:
		s.txEvents.Add(evtTXMsgTX)
	case <-ctx.Done():
		s.pool.Free(h)
		return txOutcomeReset
	}
	r := s.peEvents.WaitAny(ctx, evtPETxDone|evtPETxErr|evtPEReset)
	switch {
	case ctx.Err() != nil:
		return txOutcomeReset
	case r&evtPEReset != 0:
		return txOutcomeReset
	case r&evtPETxErr != 0:
		return txOutcomeErr
	default:
		return txOutcomeDone
	}
}

func (s *Stack) newControlMessage(pl *peLocal, t pdmsg.Type) pdmsg.Handle {
	h := s.pool.MustAlloc()
	m := s.pool.Get(h)
	*m = pdmsg.Message{}
	m.SetType(t)
	m.SetDataObjectCount(0)
	m.SetPowerRole(pdmsg.PowerRoleSink)
	m.SetDataRole(pdmsg.DataRoleUFP)
	m.SetRevision(pl.specRev)
	return h
}

func (s *Stack) newDataMessage(pl *peLocal, t pdmsg.Type, objs []uint32) pdmsg.Handle {
	h := s.pool.MustAlloc()
	m := s.pool.Get(h)
	*m = pdmsg.Message{}
	m.SetType(t)
	m.SetDataObjectCount(uint8(len(objs)))
	for i, o := range objs {
		m.Data[i] = o
	}
	m.SetPowerRole(pdmsg.PowerRoleSink)
	m.SetDataRole(pdmsg.DataRoleUFP)
	m.SetRevision(pl.specRev)
	return h
}

// loadPDOsFromSourceCap copies the data objects of pl.sourceCapMsg into
// pl.pdoBuf/pl.pdoCount and recomputes pl.ppsIndex, matching
// pe_sink_eval_cap's PDO scan. It leaves pl.sourceCapMsg owned by the
// caller to free once done with it.
func (s *Stack) loadPDOsFromSourceCap(pl *peLocal) {
	m := s.pool.Get(pl.sourceCapMsg)
	n := int(m.DataObjectCount())
	pl.pdoCount = n
	pl.ppsIndex = 8
	for i := 0; i < n; i++ {
		pdo := pdmsg.PDO(m.Data[i])
		pl.pdoBuf[i] = pdo
		if pl.ppsIndex == 8 && pdo.Type() == pdmsg.PDOTypePPS {
			pl.ppsIndex = uint8(i + 1)
		}
	}
}
