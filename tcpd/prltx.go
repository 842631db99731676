package tcpd

import (
	"context"
	"time"

	"github.com/oxplot/pdsink/pdmsg"
	"github.com/oxplot/pdsink/tcphy"
)

type txState int

const (
	txStatePHYReset txState = iota
	txStateWaitMessage
	txStateReset
	txStateConstructMessage
	txStateWaitResponse
	txStateMessageSent
	txStateTransmissionError
	txStateDiscardMessage
)

// runPRLTX is the Protocol Layer transmitter: it takes messages the Policy
// Engine wants sent, stamps a MessageID onto them, kicks off the PHY
// transfer and reports success or failure back to the Policy Engine.
// Grounded on protocol_tx.c's PHYReset/WaitMessage/Reset/ConstructMessage/
// WaitResponse/MessageSent/TransmissionError/DiscardMessage states.
//
// MatchMessageID, a distinct state in the original that re-reads the
// GoodCRC frame off the wire to double check its MessageID, is folded into
// WaitResponse here: this driver filters GoodCRC frames out of its receive
// queue entirely (see tcphy/fusb302's GetStatus), so there is nothing left
// to re-read once TxSent fires and the FUSB302's own auto-retry logic has
// already confirmed the acknowledgment matched.
func (s *Stack) runPRLTX(ctx context.Context) {
	state := txStatePHYReset
	msg := pdmsg.NoHandle
	for ctx.Err() == nil {
		switch state {
		case txStatePHYReset:
			state, msg = s.txPHYReset(msg)
		case txStateWaitMessage:
			state, msg = s.txWaitMessage(ctx)
		case txStateReset:
			state, msg = s.txReset(msg)
		case txStateConstructMessage:
			state, msg = s.txConstructMessage(ctx, msg)
		case txStateWaitResponse:
			state, msg = s.txWaitResponse(ctx, msg)
		case txStateMessageSent:
			state, msg = s.txMessageSent(msg)
		case txStateTransmissionError:
			state, msg = s.txTransmissionError(msg)
		case txStateDiscardMessage:
			state, msg = s.txDiscardMessage(msg)
		}
	}
	if msg != pdmsg.NoHandle {
		s.pool.Free(msg)
	}
}

func (s *Stack) txPHYReset(msg pdmsg.Handle) (txState, pdmsg.Handle) {
	if msg != pdmsg.NoHandle {
		s.pool.Free(msg)
		s.peEvents.Add(evtPETxErr)
	}
	if err := s.phy.Reset(); err != nil {
		s.logf("tcpd: prltx: Reset: %v", err)
	}
	return txStateWaitMessage, pdmsg.NoHandle
}

func (s *Stack) txWaitMessage(ctx context.Context) (txState, pdmsg.Handle) {
	r := s.txEvents.WaitAny(ctx, evtTXReset|evtTXDiscard|evtTXMsgTX)
	if ctx.Err() != nil {
		return txStateWaitMessage, pdmsg.NoHandle
	}
	if r&evtTXReset != 0 {
		return txStatePHYReset, pdmsg.NoHandle
	}
	if r&evtTXDiscard != 0 {
		return txStateDiscardMessage, pdmsg.NoHandle
	}
	if r&evtTXMsgTX == 0 {
		return txStateWaitMessage, pdmsg.NoHandle
	}
	h := <-s.txMailbox
	m := s.pool.Get(h)
	if !m.IsData() && m.Type() == pdmsg.TypeSoftReset {
		// A soft reset must carry MessageID 0; route through Reset first
		// to zero the counter before it's stamped.
		return txStateReset, h
	}
	return txStateConstructMessage, h
}

// txReset zeroes the shared tx counter and tells PRL-RX to reset too. If it
// arrived carrying a message (an outgoing Soft_Reset), it proceeds to send
// it; otherwise it was triggered by an external reset event and there's
// nothing to send.
func (s *Stack) txReset(msg pdmsg.Handle) (txState, pdmsg.Handle) {
	s.txMessageIDCounter.Store(0)
	s.rxEvents.Add(evtRXReset)
	if msg == pdmsg.NoHandle {
		return txStateWaitMessage, pdmsg.NoHandle
	}
	return txStateConstructMessage, msg
}

func (s *Stack) txConstructMessage(ctx context.Context, msg pdmsg.Handle) (txState, pdmsg.Handle) {
	if s.txEvents.Peek(evtTXReset) != 0 {
		return txStatePHYReset, msg
	}
	if s.txEvents.Peek(evtTXDiscard) != 0 {
		s.txEvents.WaitAny(ctx, evtTXDiscard)
		return txStateDiscardMessage, msg
	}

	if s.txEvents.Peek(evtTXStartAMS) != 0 {
		s.txEvents.WaitAny(ctx, evtTXStartAMS)
		for {
			if ctx.Err() != nil {
				return txStatePHYReset, msg
			}
			if s.txEvents.Peek(evtTXReset|evtTXDiscard) != 0 {
				return txStateConstructMessage, msg
			}
			cur, err := s.phy.GetTypeCCurrent()
			if err == nil && cur == tcphy.TypeCCurrentSinkTxOK {
				break
			}
			time.Sleep(time.Millisecond)
		}
	}

	m := s.pool.Get(msg)
	m.SetID(uint8(s.txMessageIDCounter.Load() & 0b111))
	if err := s.phy.SendMessage(*m); err != nil {
		s.logf("tcpd: prltx: SendMessage: %v", err)
		return txStateTransmissionError, msg
	}
	return txStateWaitResponse, msg
}

func (s *Stack) txWaitResponse(ctx context.Context, msg pdmsg.Handle) (txState, pdmsg.Handle) {
	r := s.txEvents.WaitAny(ctx, evtTXReset|evtTXDiscard|evtTXSent|evtTXRetryFail)
	if ctx.Err() != nil {
		return txStateWaitResponse, msg
	}
	switch {
	case r&evtTXReset != 0:
		return txStatePHYReset, msg
	case r&evtTXDiscard != 0:
		return txStateDiscardMessage, msg
	case r&evtTXSent != 0:
		return txStateMessageSent, msg
	default: // evtTXRetryFail
		return txStateTransmissionError, msg
	}
}

func (s *Stack) txMessageSent(msg pdmsg.Handle) (txState, pdmsg.Handle) {
	s.txMessageIDCounter.Add(1)
	s.pool.Free(msg)
	s.peEvents.Add(evtPETxDone)
	return txStateWaitMessage, pdmsg.NoHandle
}

func (s *Stack) txTransmissionError(msg pdmsg.Handle) (txState, pdmsg.Handle) {
	s.txMessageIDCounter.Add(1)
	s.pool.Free(msg)
	s.peEvents.Add(evtPETxErr)
	return txStateWaitMessage, pdmsg.NoHandle
}

func (s *Stack) txDiscardMessage(msg pdmsg.Handle) (txState, pdmsg.Handle) {
	if msg != pdmsg.NoHandle {
		s.txMessageIDCounter.Add(1)
	}
	// PHYReset frees the discarded message and reports it to the Policy
	// Engine as a transmission error.
	return txStatePHYReset, msg
}
