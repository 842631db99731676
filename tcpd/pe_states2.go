package tcpd

import (
	"context"
	"time"

	"github.com/oxplot/pdsink/pdmsg"
)

// peDoSelectCap sends the DPM's chosen request and waits for the source's
// Accept/Reject/Wait, arming the PD 3.0 PPS keep-alive timer whenever the
// request lands on an APDO.
func (s *Stack) peDoSelectCap(ctx context.Context, pl *peLocal) peState {
	h := s.newDataMessage(pl, pdmsg.TypeRequest, []uint32{uint32(pl.pendingRequest)})
	switch s.peSend(ctx, h) {
	case txOutcomeReset:
		return peTransitionDefault
	case txOutcomeErr:
		return peHardReset
	}

	if pl.specRev == pdmsg.Revision30 && pl.pendingRequest.SelectedObjectPosition() >= pl.ppsIndex {
		pl.ppsTimer.arm()
	} else {
		pl.ppsTimer.disarm()
	}

	r := s.peEvents.WaitAnyTimeout(ctx, evtPEMsgRX|evtPEReset, s.cfg.TSenderResponse)
	if ctx.Err() != nil {
		return peSelectCap
	}
	if r&evtPEReset != 0 {
		return peTransitionDefault
	}
	if r == 0 {
		return peHardReset
	}

	h = <-s.peMailbox
	m := s.pool.Get(h)
	switch {
	case !m.IsData() && m.Type() == pdmsg.TypeAccept && m.DataObjectCount() == 0:
		if pl.pendingRequest.SelectedObjectPosition() != pl.lastPPS {
			s.dpm.TransitionStandby()
		}
		pl.minPower = false
		s.pool.Free(h)
		pl.hasLastRequest = true
		pl.lastRequestDO = pl.pendingRequest
		return peTransitionSink
	case !m.IsData() && m.Type() == pdmsg.TypeSoftReset && m.DataObjectCount() == 0:
		s.pool.Free(h)
		return peSoftReset
	case !m.IsData() && (m.Type() == pdmsg.TypeReject || m.Type() == pdmsg.TypeWait) && m.DataObjectCount() == 0:
		waitType := m.Type() == pdmsg.TypeWait
		s.pool.Free(h)
		if !pl.explicitContract {
			return peWaitCap
		}
		pl.minPower = waitType
		return peReady
	default:
		s.pool.Free(h)
		return peSendSoftReset
	}
}

// peDoTransitionSink waits for PS_RDY once the source has accepted a
// request, returning immediately on reset rather than falling through to
// treat the reset event as an unexpected message (see DESIGN.md's Open
// Question 2 decision).
func (s *Stack) peDoTransitionSink(ctx context.Context, pl *peLocal) peState {
	r := s.peEvents.WaitAnyTimeout(ctx, evtPEMsgRX|evtPEReset, s.cfg.TPSTransition)
	if ctx.Err() != nil {
		return peTransitionSink
	}
	if r&evtPEReset != 0 {
		return peTransitionDefault
	}
	if r == 0 {
		return peHardReset
	}

	h := <-s.peMailbox
	m := s.pool.Get(h)
	if !m.IsData() && m.Type() == pdmsg.TypePSReady && m.DataObjectCount() == 0 {
		pl.explicitContract = true
		s.pool.Free(h)
		if !pl.minPower {
			s.dpm.TransitionRequested()
		}
		return peReady
	}
	s.pool.Free(h)
	s.dpm.TransitionDefault()
	return peHardReset
}

// peDoReady is the steady state: a live contract, waiting on whatever
// happens next. minPower shortens the wait to TSinkRequest so a Wait/GotoMin
// contract gets re-requested promptly instead of parked indefinitely.
func (s *Stack) peDoReady(ctx context.Context, pl *peLocal) peState {
	const mask = evtPEMsgRX | evtPEReset | evtPEOverTemp | evtPEGetSourceCap | evtPENewPower | evtPEPPSRequest
	var r uint32
	if pl.minPower {
		r = s.peEvents.WaitAnyTimeout(ctx, mask, s.cfg.TSinkRequest)
	} else {
		r = s.peEvents.WaitAny(ctx, mask)
	}
	if ctx.Err() != nil {
		return peReady
	}

	switch {
	case r&evtPEReset != 0:
		return peTransitionDefault
	case r&evtPEOverTemp != 0:
		return peHardReset
	case r&evtPEGetSourceCap != 0:
		s.txEvents.Add(evtTXStartAMS)
		return peGetSourceCap
	case r&evtPENewPower != 0:
		if pl.sourceCapMsg != pdmsg.NoHandle {
			s.pool.Free(pl.sourceCapMsg)
			pl.sourceCapMsg = pdmsg.NoHandle
		}
		s.txEvents.Add(evtTXStartAMS)
		return peEvalCap
	case r&evtPEPPSRequest != 0:
		s.txEvents.Add(evtTXStartAMS)
		return peSelectCap
	case r == 0:
		return peSelectCap
	}

	h := <-s.peMailbox
	m := s.pool.Get(h)
	t := m.Type()
	n := m.DataObjectCount()

	switch {
	case m.IsData() && t == pdmsg.TypeVendorDefined:
		s.pool.Free(h)
		return peReady
	case !m.IsData() && t == pdmsg.TypePing && n == 0:
		s.pool.Free(h)
		return peReady
	case !m.IsData() && (t == pdmsg.TypeDRSwap || t == pdmsg.TypePRSwap || t == pdmsg.TypeVCONNSwap) && n == 0:
		s.pool.Free(h)
		return peSendNotSupported
	case m.IsData() && (t == pdmsg.TypeRequest || t == pdmsg.TypeSinkCap):
		s.pool.Free(h)
		return peSendNotSupported
	case !m.IsData() && t == pdmsg.TypeGotoMin && n == 0:
		s.pool.Free(h)
		if s.dpm.GivebackEnabled() {
			s.dpm.TransitionMin()
			pl.minPower = true
			return peTransitionSink
		}
		return peSendNotSupported
	case m.IsData() && t == pdmsg.TypeSourceCap && n >= 1:
		pl.sourceCapMsg = h
		return peEvalCap
	case !m.IsData() && t == pdmsg.TypeGetSinkCap && n == 0:
		s.pool.Free(h)
		return peGiveSinkCap
	case !m.IsData() && t == pdmsg.TypeSoftReset && n == 0:
		s.pool.Free(h)
		return peSoftReset
	case pl.specRev == pdmsg.Revision30 && m.IsExtended() && m.ExtendedDataSize() > pdmsg.MaxExtendedMessageLegacyLen:
		s.pool.Free(h)
		return peChunkReceived
	case !m.IsData() && t == pdmsg.TypeNotSupported && n == 0:
		s.pool.Free(h)
		return peNotSupportedReceived
	default:
		s.pool.Free(h)
		return peSendSoftReset
	}
}

func (s *Stack) peDoGetSourceCap(ctx context.Context, pl *peLocal) peState {
	h := s.newControlMessage(pl, pdmsg.TypeGetSourceCap)
	switch s.peSend(ctx, h) {
	case txOutcomeReset:
		return peTransitionDefault
	case txOutcomeErr:
		return peHardReset
	default:
		return peReady
	}
}

func (s *Stack) peDoGiveSinkCap(ctx context.Context, pl *peLocal) peState {
	caps := s.dpm.GetSinkCapability()
	objs := make([]uint32, len(caps))
	for i, c := range caps {
		objs[i] = uint32(c)
	}
	h := s.newDataMessage(pl, pdmsg.TypeSinkCap, objs)
	switch s.peSend(ctx, h) {
	case txOutcomeReset:
		return peTransitionDefault
	case txOutcomeErr:
		return peHardReset
	default:
		return peReady
	}
}

func (s *Stack) peDoHardReset(ctx context.Context, pl *peLocal) peState {
	if pl.hardResetCounter > s.cfg.NHardResetCount {
		return peSourceUnresponsive
	}
	pl.hardResetCounter++
	s.hrEvents.Add(evtHRRequest)
	s.peEvents.WaitAny(ctx, evtPEHardSent)
	if ctx.Err() != nil {
		return peHardReset
	}
	return peTransitionDefault
}

func (s *Stack) peDoTransitionDefault(pl *peLocal) peState {
	pl.explicitContract = false
	s.dpm.TransitionDefault()
	s.hrEvents.Add(evtHRDone)
	return peStartup
}

func (s *Stack) peDoSoftReset(ctx context.Context, pl *peLocal) peState {
	h := s.newControlMessage(pl, pdmsg.TypeAccept)
	switch s.peSend(ctx, h) {
	case txOutcomeReset:
		return peTransitionDefault
	case txOutcomeErr:
		return peHardReset
	default:
		return peWaitCap
	}
}

func (s *Stack) peDoSendSoftReset(ctx context.Context, pl *peLocal) peState {
	h := s.newControlMessage(pl, pdmsg.TypeSoftReset)
	switch s.peSend(ctx, h) {
	case txOutcomeReset:
		return peTransitionDefault
	case txOutcomeErr:
		return peHardReset
	}

	r := s.peEvents.WaitAnyTimeout(ctx, evtPEMsgRX|evtPEReset, s.cfg.TSenderResponse)
	if ctx.Err() != nil {
		return peSendSoftReset
	}
	if r&evtPEReset != 0 {
		return peTransitionDefault
	}
	if r == 0 {
		return peHardReset
	}

	h = <-s.peMailbox
	m := s.pool.Get(h)
	switch {
	case !m.IsData() && m.Type() == pdmsg.TypeAccept && m.DataObjectCount() == 0:
		s.pool.Free(h)
		return peWaitCap
	case !m.IsData() && m.Type() == pdmsg.TypeSoftReset && m.DataObjectCount() == 0:
		s.pool.Free(h)
		return peSoftReset
	default:
		s.pool.Free(h)
		return peHardReset
	}
}

// peDoSendNotSupported reports back Not_Supported (PD 3.0) or Reject (PD
// 2.0, which has no Not_Supported message). A failed send here falls back
// to a soft reset rather than a hard reset, mirroring the original's
// deliberately lighter-weight recovery for this particular message.
func (s *Stack) peDoSendNotSupported(ctx context.Context, pl *peLocal) peState {
	t := pdmsg.TypeReject
	if pl.specRev == pdmsg.Revision30 {
		t = pdmsg.TypeNotSupported
	}
	h := s.newControlMessage(pl, t)
	switch s.peSend(ctx, h) {
	case txOutcomeReset:
		return peTransitionDefault
	case txOutcomeErr:
		return peSendSoftReset
	default:
		return peReady
	}
}

// peDoChunkReceived stalls for TChunkingNotSupported before reporting
// Not_Supported, since this driver never implements extended message
// chunking. Returns immediately on reset for the same reason as
// peDoTransitionSink.
func (s *Stack) peDoChunkReceived(ctx context.Context, pl *peLocal) peState {
	r := s.peEvents.WaitAnyTimeout(ctx, evtPEReset, s.cfg.TChunkingNotSupported)
	if ctx.Err() != nil {
		return peChunkReceived
	}
	if r&evtPEReset != 0 {
		return peTransitionDefault
	}
	return peSendNotSupported
}

func (s *Stack) peDoNotSupportedReceived(pl *peLocal) peState {
	s.dpm.NotSupportedReceived()
	return peReady
}

// peDoSourceUnresponsive is reached once repeated hard resets have all gone
// unanswered. It falls back to polling Type-C current advertisement changes
// via the PHY directly, debounced with a real timer (see DESIGN.md's Open
// Question 3 decision), while still watching for the source to reappear.
func (s *Stack) peDoSourceUnresponsive(ctx context.Context, pl *peLocal) peState {
	for {
		if ctx.Err() != nil {
			return peSourceUnresponsive
		}

		cur, err := s.phy.GetTypeCCurrent()
		if err == nil {
			match := s.dpm.EvaluateTypeCCurrent(cur)
			matchInt := int8(0)
			if match {
				matchInt = 1
			}
			if pl.oldTCCMatch != -1 && pl.oldTCCMatch == matchInt {
				s.dpm.TransitionTypeC(match)
			}
			pl.oldTCCMatch = matchInt
		}

		if r := s.peEvents.Peek(evtPEMsgRX | evtPEReset); r != 0 {
			if r&evtPEReset != 0 {
				s.peEvents.WaitAny(ctx, evtPEReset)
				return peTransitionDefault
			}
			return peDiscovery
		}

		select {
		case <-time.After(s.cfg.TPDDebounce):
		case <-ctx.Done():
			return peSourceUnresponsive
		}
	}
}
