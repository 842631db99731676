// Package tcpd implements the sink-side USB Power Delivery protocol stack:
// the INT_N poller, Protocol Layer RX/TX, Hard Reset and Policy Engine
// tasks, wired together over a fixed-capacity message pool and per-task
// event words instead of the teacher library's single polling loop.
package tcpd

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/oxplot/pdsink/pdevent"
	"github.com/oxplot/pdsink/pdmsg"
	"github.com/oxplot/pdsink/tcphy"
)

// noMessageID is the sentinel value of Stack.rxMessageID meaning "no
// message ID has been stored yet", used both at startup and after every
// protocol or hard reset.
const noMessageID int32 = -1

// Stack owns everything the five cooperating tasks share: the PHY, the DPM,
// the message pool, the two mailboxes and the MessageID bookkeeping that
// crosses task boundaries. One Stack drives one Type-C port; running
// several is just constructing several Stacks.
type Stack struct {
	phy tcphy.PHY
	dpm DPM
	cfg Config
	log *log.Logger

	pool *pdmsg.Pool

	// peMailbox carries messages PRL-RX has accepted, addressed to the
	// Policy Engine. txMailbox carries messages the Policy Engine wants
	// PRL-TX to send.
	peMailbox chan pdmsg.Handle
	txMailbox chan pdmsg.Handle

	rxEvents *pdevent.Word
	txEvents *pdevent.Word
	hrEvents *pdevent.Word
	peEvents *pdevent.Word

	// rxMessageID and txMessageIDCounter are the only pieces of state
	// touched by more than one task (PRL-RX, PRL-TX and Hard Reset all
	// write one or both), so they're atomics rather than task-local
	// fields.
	rxMessageID        atomic.Int32
	txMessageIDCounter atomic.Int32
}

// New constructs a Stack. logger may be nil to disable tracing.
func New(phy tcphy.PHY, dpm DPM, cfg Config, logger *log.Logger) *Stack {
	s := &Stack{
		phy:       phy,
		dpm:       dpm,
		cfg:       cfg,
		log:       logger,
		pool:      pdmsg.NewPool(cfg.MsgPoolSize),
		peMailbox: make(chan pdmsg.Handle, cfg.MailboxDepth),
		txMailbox: make(chan pdmsg.Handle, cfg.MailboxDepth),
		rxEvents:  pdevent.NewWord(),
		txEvents:  pdevent.NewWord(),
		hrEvents:  pdevent.NewWord(),
		peEvents:  pdevent.NewWord(),
	}
	s.rxMessageID.Store(noMessageID)
	return s
}

func (s *Stack) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

// Run starts all five tasks and blocks until ctx is done and every task has
// returned.
func (s *Stack) Run(ctx context.Context) {
	var wg sync.WaitGroup
	tasks := []func(context.Context){
		s.runIntnPoller,
		s.runPRLRX,
		s.runPRLTX,
		s.runHardReset,
		s.runPolicyEngine,
	}
	wg.Add(len(tasks))
	for _, t := range tasks {
		t := t
		go func() {
			defer wg.Done()
			t(ctx)
		}()
	}
	wg.Wait()
}
