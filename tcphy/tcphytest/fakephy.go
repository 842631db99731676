// Package tcphytest provides a fake tcphy.PHY implementation for driving
// the protocol stack in tests without real hardware, in the same spirit as
// go-pn532's BlockingMockTransport: a plain struct with queues an operator
// goroutine pushes into and the stack under test drains.
package tcphytest

import (
	"sync"

	"github.com/oxplot/pdsink/pdmsg"
	"github.com/oxplot/pdsink/tcphy"
)

// FakePHY is a software stand-in for a FUSB302B-class chip. Tests drive it
// by calling DeliverMessage and the other Deliver* methods (DeliverTxSent,
// DeliverRetryFail, DeliverHardResetReceived, DeliverHardResetSent,
// DeliverOverTemp) from a separate goroutine while the stack under test
// runs against it.
type FakePHY struct {
	mu sync.Mutex

	resetCount int
	sent       []pdmsg.Message
	hardResets int

	rxQueue    []pdmsg.Message
	pendStatus tcphy.Status
	intn       bool
	tcCurrent  tcphy.TypeCCurrent

	// SendMessageErr, when non-nil, is returned by the next SendMessage
	// call instead of succeeding.
	SendMessageErr error
}

// New returns a FakePHY with no pending status or received messages.
func New() *FakePHY {
	return &FakePHY{tcCurrent: tcphy.TypeCCurrentSinkTxOK}
}

func (f *FakePHY) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCount++
	return nil
}

// ResetCount returns how many times Reset has been called, for assertions.
func (f *FakePHY) ResetCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resetCount
}

func (f *FakePHY) SendMessage(m pdmsg.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendMessageErr != nil {
		err := f.SendMessageErr
		f.SendMessageErr = nil
		return err
	}
	f.sent = append(f.sent, m)
	return nil
}

// SentMessages returns every message SendMessage has accepted, oldest first.
func (f *FakePHY) SentMessages() []pdmsg.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]pdmsg.Message, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *FakePHY) SendHardReset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hardResets++
	return nil
}

// HardResetCount returns how many times SendHardReset has been called.
func (f *FakePHY) HardResetCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hardResets
}

func (f *FakePHY) ReadMessage(out *pdmsg.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.rxQueue) == 0 {
		return tcphy.ErrRxEmpty
	}
	*out = f.rxQueue[0]
	f.rxQueue = f.rxQueue[1:]
	return nil
}

func (f *FakePHY) GetStatus() (tcphy.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.pendStatus
	f.pendStatus = tcphy.Status{}
	f.intn = false
	return s, nil
}

func (f *FakePHY) GetTypeCCurrent() (tcphy.TypeCCurrent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tcCurrent, nil
}

func (f *FakePHY) IntnAsserted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.intn
}

// SetTypeCCurrent changes what GetTypeCCurrent reports, simulating a change
// in the source's Type-C advertisement.
func (f *FakePHY) SetTypeCCurrent(c tcphy.TypeCCurrent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tcCurrent = c
}

// DeliverMessage queues m to be returned by the next ReadMessage call and
// asserts GoodCRCSent/INT_N so the stack's poller notices it.
func (f *FakePHY) DeliverMessage(m pdmsg.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rxQueue = append(f.rxQueue, m)
	f.pendStatus.GoodCRCSent = true
	f.intn = true
}

// DeliverTxSent asserts TxSent, simulating the source having acknowledged
// the most recently sent message.
func (f *FakePHY) DeliverTxSent() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pendStatus.TxSent = true
	f.intn = true
}

// DeliverRetryFail asserts RetryFailed, simulating exhausted GoodCRC retries.
func (f *FakePHY) DeliverRetryFail() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pendStatus.RetryFailed = true
	f.intn = true
}

// DeliverHardResetReceived asserts HardResetRx.
func (f *FakePHY) DeliverHardResetReceived() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pendStatus.HardResetRx = true
	f.intn = true
}

// DeliverHardResetSent asserts HardResetSent.
func (f *FakePHY) DeliverHardResetSent() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pendStatus.HardResetSent = true
	f.intn = true
}

// DeliverOverTemp asserts OverTemp.
func (f *FakePHY) DeliverOverTemp() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pendStatus.OverTemp = true
	f.intn = true
}

var _ tcphy.PHY = (*FakePHY)(nil)
