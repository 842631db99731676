package tcpd

import "context"

type hrState int

const (
	hrStateResetLayer hrState = iota
	hrStateIndicateHardReset
	hrStateRequestHardReset
	hrStateWaitPHY
	hrStateHardResetRequested
	hrStateWaitPE
	hrStateComplete
)

// runHardReset drives a hard reset from either direction: one requested by
// the Policy Engine (evtHRRequest) or one signaled by the source over the
// wire (evtHRIHardReset). Grounded on hard_reset.c's ResetLayer/
// IndicateHardReset/RequestHardReset/WaitPHY/HardResetRequested/WaitPE/
// Complete states.
func (s *Stack) runHardReset(ctx context.Context) {
	state := hrStateResetLayer
	for ctx.Err() == nil {
		switch state {
		case hrStateResetLayer:
			state = s.hrResetLayer(ctx)
		case hrStateIndicateHardReset:
			state = s.hrIndicateHardReset()
		case hrStateRequestHardReset:
			state = s.hrRequestHardReset()
		case hrStateWaitPHY:
			state = s.hrWaitPHY(ctx)
		case hrStateHardResetRequested:
			state = s.hrHardResetRequested()
		case hrStateWaitPE:
			state = s.hrWaitPE(ctx)
		case hrStateComplete:
			state = hrStateResetLayer
		}
	}
}

func (s *Stack) hrResetLayer(ctx context.Context) hrState {
	r := s.hrEvents.WaitAny(ctx, evtHRRequest|evtHRIHardReset)
	if ctx.Err() != nil {
		return hrStateResetLayer
	}
	s.resetProtocolCounters()
	s.rxEvents.Add(evtRXReset)
	s.txEvents.Add(evtTXReset)
	if r&evtHRRequest != 0 {
		return hrStateRequestHardReset
	}
	return hrStateIndicateHardReset
}

func (s *Stack) hrIndicateHardReset() hrState {
	s.peEvents.Add(evtPEReset)
	return hrStateWaitPE
}

func (s *Stack) hrRequestHardReset() hrState {
	if err := s.phy.SendHardReset(); err != nil {
		s.logf("tcpd: hardreset: SendHardReset: %v", err)
	}
	return hrStateWaitPHY
}

func (s *Stack) hrWaitPHY(ctx context.Context) hrState {
	s.hrEvents.WaitAnyTimeout(ctx, evtHRIHardSent, s.cfg.THardResetComplete)
	return hrStateHardResetRequested
}

func (s *Stack) hrHardResetRequested() hrState {
	s.peEvents.Add(evtPEHardSent)
	return hrStateWaitPE
}

func (s *Stack) hrWaitPE(ctx context.Context) hrState {
	s.hrEvents.WaitAny(ctx, evtHRDone)
	if ctx.Err() != nil {
		return hrStateWaitPE
	}
	return hrStateComplete
}
