package tcpd

import (
	"context"

	"github.com/oxplot/pdsink/pdmsg"
)

// resetProtocolCounters clears the MessageID bookkeeping shared between
// PRL-RX, PRL-TX and Hard Reset. Called from PRL-RX's own Reset state and
// from the Hard Reset task; see DESIGN.md's Open Question 4 for why this
// always clears rxMessageID to the "none" sentinel rather than the
// original firmware's inconsistent zero-on-hard-reset.
func (s *Stack) resetProtocolCounters() {
	s.rxMessageID.Store(noMessageID)
	s.txMessageIDCounter.Store(0)
}

// runPRLRX is the Protocol Layer receiver: it waits for the PHY to signal a
// successfully received message, filters out duplicates by MessageID, and
// forwards anything new to the Policy Engine's mailbox. Grounded on
// protocol_rx.c's WaitPHY/Reset/CheckMessageID/StoreMessageID states.
func (s *Stack) runPRLRX(ctx context.Context) {
	for ctx.Err() == nil {
		s.rxWaitPHY(ctx)
	}
}

// rxWaitPHY blocks for the next inbound message or a protocol reset, then
// runs it through the remaining states before returning to be called again.
func (s *Stack) rxWaitPHY(ctx context.Context) {
	r := s.rxEvents.WaitAny(ctx, evtRXReset|evtRXGoodCRCSent)
	if ctx.Err() != nil {
		return
	}
	if r&evtRXReset != 0 {
		// A bare PRLRX_RESET signal while idle is a no-op: the counter
		// reset and the fan-out to PRL-TX belong to the Reset state
		// reached below on an inbound Soft_Reset, and to Hard Reset's own
		// resetProtocolCounters call. Remain in WaitPHY.
		return
	}

	h := s.pool.MustAlloc()
	m := s.pool.Get(h)
	if err := s.phy.ReadMessage(m); err != nil {
		s.logf("tcpd: prlrx: ReadMessage: %v", err)
		s.pool.Free(h)
		return
	}

	if !m.IsData() && m.Type() == pdmsg.TypeSoftReset {
		s.rxReset(ctx, h)
		return
	}

	s.rxCheckMessageID(ctx, h)
}

// rxReset clears the shared MessageID counters and tells PRL-TX to reset
// too. If carryMsg is a valid handle (a received Soft_Reset), it continues
// on to be delivered to the Policy Engine like any other message once
// counters are cleared.
func (s *Stack) rxReset(ctx context.Context, carryMsg pdmsg.Handle) {
	s.resetProtocolCounters()
	s.txEvents.Add(evtTXReset)
	if carryMsg != pdmsg.NoHandle {
		s.rxCheckMessageID(ctx, carryMsg)
	}
}

// rxCheckMessageID drops h if it duplicates the last stored ID, or if a
// reset has since arrived (RESET dominates ordinary progress, per the
// stack-wide priority rule), otherwise stores its ID and forwards it.
func (s *Stack) rxCheckMessageID(ctx context.Context, h pdmsg.Handle) {
	if s.rxEvents.Peek(evtRXReset) != 0 {
		s.rxEvents.WaitAny(ctx, evtRXReset)
		s.pool.Free(h)
		s.rxReset(ctx, pdmsg.NoHandle)
		return
	}
	id := s.pool.Get(h).ID()
	if s.rxMessageID.Load() == int32(id) {
		s.pool.Free(h)
		return
	}
	s.rxStoreMessageID(ctx, h, id)
}

// rxStoreMessageID records h's ID, tells PRL-TX to discard whatever it may
// be sending (an unrelated inbound message means any AMS PRL-TX thought it
// was in the middle of no longer applies), and delivers h to the Policy
// Engine.
func (s *Stack) rxStoreMessageID(ctx context.Context, h pdmsg.Handle, id uint8) {
	s.txEvents.Add(evtTXDiscard)
	s.rxMessageID.Store(int32(id))
	select {
	case s.peMailbox <- h:
		s.peEvents.Add(evtPEMsgRX)
	case <-ctx.Done():
		s.pool.Free(h)
	}
}
