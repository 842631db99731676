package tcpd

import (
	"context"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxplot/pdsink/pdmsg"
	"github.com/oxplot/pdsink/tcphy/tcphytest"
)

func newTestStack(t *testing.T) (*Stack, *tcphytest.FakePHY) {
	t.Helper()
	phy := tcphytest.New()
	cfg := DefaultConfig()
	cfg.TSinkWaitCap = 50 * time.Millisecond
	cfg.TSenderResponse = 20 * time.Millisecond
	cfg.TPSTransition = 20 * time.Millisecond
	cfg.THardResetComplete = 5 * time.Millisecond
	cfg.TChunkingNotSupported = 5 * time.Millisecond
	cfg.TPDDebounce = time.Millisecond
	s := New(phy, NopDPM{}, cfg, log.Default())
	return s, phy
}

func sourceCapMessage() pdmsg.Message {
	var m pdmsg.Message
	m.SetType(pdmsg.TypeSourceCap)
	m.SetDataObjectCount(1)
	m.Data[0] = uint32(pdmsg.NewFixedSupplyPDO())
	return m
}

func TestPRLRX_DuplicateFiltered(t *testing.T) {
	s, phy := newTestStack(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.runIntnPoller(ctx)
	go s.runPRLRX(ctx)

	m := sourceCapMessage()
	m.SetID(3)

	phy.DeliverMessage(m)
	s.rxEvents.Add(evtRXGoodCRCSent)

	select {
	case h := <-s.peMailbox:
		got := s.pool.Get(h)
		assert.Equal(t, uint8(3), got.ID())
		s.pool.Free(h)
	case <-time.After(time.Second):
		t.Fatal("first message never reached the PE mailbox")
	}

	// redeliver the same ID: PRL-RX must drop it silently.
	phy.DeliverMessage(m)
	s.rxEvents.Add(evtRXGoodCRCSent)

	select {
	case <-s.peMailbox:
		t.Fatal("duplicate MessageID was forwarded to the Policy Engine")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPRLRX_NewMessageIDForwarded(t *testing.T) {
	s, phy := newTestStack(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.runIntnPoller(ctx)
	go s.runPRLRX(ctx)

	m1 := sourceCapMessage()
	m1.SetID(0)
	phy.DeliverMessage(m1)
	s.rxEvents.Add(evtRXGoodCRCSent)

	require.Eventually(t, func() bool {
		select {
		case h := <-s.peMailbox:
			s.pool.Free(h)
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	m2 := sourceCapMessage()
	m2.SetID(1)
	phy.DeliverMessage(m2)
	s.rxEvents.Add(evtRXGoodCRCSent)

	select {
	case h := <-s.peMailbox:
		got := s.pool.Get(h)
		assert.Equal(t, uint8(1), got.ID())
		s.pool.Free(h)
	case <-time.After(time.Second):
		t.Fatal("new MessageID was not forwarded")
	}
}

func TestPRLRX_ResetClearsMessageID(t *testing.T) {
	s, _ := newTestStack(t)
	s.rxMessageID.Store(5)
	ctx := context.Background()
	s.rxReset(ctx, pdmsg.NoHandle)
	assert.Equal(t, int32(noMessageID), s.rxMessageID.Load())
	assert.Equal(t, int32(0), s.txMessageIDCounter.Load())
}

func TestPRLRX_SoftResetDeliveredAfterReset(t *testing.T) {
	s, phy := newTestStack(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.runIntnPoller(ctx)
	go s.runPRLRX(ctx)

	var m pdmsg.Message
	m.SetType(pdmsg.TypeSoftReset)
	m.SetDataObjectCount(0)
	m.SetID(0)
	phy.DeliverMessage(m)
	s.rxEvents.Add(evtRXGoodCRCSent)

	select {
	case h := <-s.peMailbox:
		got := s.pool.Get(h)
		assert.Equal(t, pdmsg.TypeSoftReset, got.Type())
		s.pool.Free(h)
	case <-time.After(time.Second):
		t.Fatal("soft reset never reached the Policy Engine")
	}
}
