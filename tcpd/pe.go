package tcpd

import (
	"context"

	"github.com/oxplot/pdsink/pdmsg"
)

// peState names every state the Policy Engine can be in, following
// policy_engine.c's pe_sink_* function set (see DESIGN.md for the three
// points where this implementation deliberately corrects behavior the
// original's C control flow got wrong).
type peState int

const (
	peStartup peState = iota
	peDiscovery
	peWaitCap
	peEvalCap
	peSelectCap
	peTransitionSink
	peReady
	peGetSourceCap
	peGiveSinkCap
	peHardReset
	peTransitionDefault
	peSoftReset
	peSendSoftReset
	peSendNotSupported
	peChunkReceived
	peNotSupportedReceived
	peSourceUnresponsive
)

// runPolicyEngine is the largest and most central of the five tasks: it
// negotiates a power contract on startup, keeps it alive, and reacts to
// everything the source, the DPM or the protocol layer report. Grounded on
// policy_engine.c in its entirety.
func (s *Stack) runPolicyEngine(ctx context.Context) {
	pl := newPELocal()
	pl.ppsTimer = newPPSTimer(s)
	state := peStartup
	for ctx.Err() == nil {
		switch state {
		case peStartup:
			state = s.peDoStartup(pl)
		case peDiscovery:
			state = peWaitCap
		case peWaitCap:
			state = s.peDoWaitCap(ctx, pl)
		case peEvalCap:
			state = s.peDoEvalCap(pl)
		case peSelectCap:
			state = s.peDoSelectCap(ctx, pl)
		case peTransitionSink:
			state = s.peDoTransitionSink(ctx, pl)
		case peReady:
			state = s.peDoReady(ctx, pl)
		case peGetSourceCap:
			state = s.peDoGetSourceCap(ctx, pl)
		case peGiveSinkCap:
			state = s.peDoGiveSinkCap(ctx, pl)
		case peHardReset:
			state = s.peDoHardReset(ctx, pl)
		case peTransitionDefault:
			state = s.peDoTransitionDefault(pl)
		case peSoftReset:
			state = s.peDoSoftReset(ctx, pl)
		case peSendSoftReset:
			state = s.peDoSendSoftReset(ctx, pl)
		case peSendNotSupported:
			state = s.peDoSendNotSupported(ctx, pl)
		case peChunkReceived:
			state = s.peDoChunkReceived(ctx, pl)
		case peNotSupportedReceived:
			state = s.peDoNotSupportedReceived(pl)
		case peSourceUnresponsive:
			state = s.peDoSourceUnresponsive(ctx, pl)
		}
	}
}

func (s *Stack) peDoStartup(pl *peLocal) peState {
	pl.explicitContract = false
	s.dpm.PDStart()
	return peDiscovery
}

// peDoWaitCap assumes the sink is bus-powered and VBUS is already present,
// matching Discovery's fold into WaitCap: there is no VBUS-attach event in
// this stack's event vocabulary.
func (s *Stack) peDoWaitCap(ctx context.Context, pl *peLocal) peState {
	r := s.peEvents.WaitAnyTimeout(ctx, evtPEMsgRX|evtPEOverTemp|evtPEReset, s.cfg.TSinkWaitCap)
	if ctx.Err() != nil {
		return peWaitCap
	}
	switch {
	case r&evtPEReset != 0:
		return peTransitionDefault
	case r&evtPEOverTemp != 0:
		return peWaitCap
	case r == 0:
		return peHardReset
	}

	h := <-s.peMailbox
	m := s.pool.Get(h)
	switch {
	case m.IsData() && m.Type() == pdmsg.TypeSourceCap && m.DataObjectCount() >= 1:
		// Spec revision is negotiated once: policy_engine.c's
		// pe_sink_wait_cap only does this while hdr_template is still at
		// its power-on default of 1.0, so a later Source_Capabilities
		// (e.g. after a soft-reset round trip back through WaitCap) never
		// re-negotiates or downgrades an already-bumped revision.
		if pl.specRev == pdmsg.Revision10 {
			if m.Revision() >= pdmsg.Revision30 {
				pl.specRev = pdmsg.Revision30
			} else {
				pl.specRev = pdmsg.Revision20
			}
		}
		pl.sourceCapMsg = h
		return peEvalCap
	case !m.IsData() && m.Type() == pdmsg.TypeSoftReset && m.DataObjectCount() == 0:
		s.pool.Free(h)
		return peSoftReset
	default:
		s.pool.Free(h)
		return peHardReset
	}
}

// peDoEvalCap asks the DPM to pick a request from the most recently seen
// (or, on a re-evaluation trigger with no fresh message, the previously
// cached) source capabilities.
func (s *Stack) peDoEvalCap(pl *peLocal) peState {
	if pl.sourceCapMsg != pdmsg.NoHandle {
		s.loadPDOsFromSourceCap(pl)
		s.pool.Free(pl.sourceCapMsg)
		pl.sourceCapMsg = pdmsg.NoHandle
	}

	if pl.hasLastRequest && pl.lastRequestDO.SelectedObjectPosition() >= pl.ppsIndex {
		pl.lastPPS = pl.lastRequestDO.SelectedObjectPosition()
	} else {
		pl.lastPPS = 8
	}

	pl.pendingRequest = s.dpm.EvaluateCapabilities(pl.pdoBuf[:pl.pdoCount])
	return peSelectCap
}
