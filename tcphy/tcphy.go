// Package tcphy defines the hardware-facing contract the protocol stack in
// package tcpd consumes: reset, message transmission and reception, hard
// reset signaling, status polling and Type-C current advertisement.
//
// This is a lower-level cut than the teacher library's typec.PortController
// (which bundles alerting, transmission and reception behind a single
// blocking Alert/Tx/Rx trio consumed by one polling loop): here the PRL-RX,
// PRL-TX and Hard Reset tasks each own their own wait logic, so the PHY only
// needs to expose the primitives they drive directly.
package tcphy

import (
	"errors"

	"github.com/oxplot/pdsink/pdmsg"
)

// ErrTxFailed is returned by SendMessage or SendHardReset when the PHY
// reports failure to complete a physical layer transfer.
var ErrTxFailed = errors.New("tcphy: transmission failed")

// ErrRxEmpty is returned by ReadMessage when no received message is
// available.
var ErrRxEmpty = errors.New("tcphy: no message available")

// I2C defines a minimum interface to I2C hardware with a single Tx method,
// allowing a single driver implementation to work across many different
// microcontrollers and host platforms. This interface was originally
// defined in TinyGo.
type I2C interface {
	// Tx performs a write and then a read transfer placing the result in r.
	// Passing a nil value for w or r skips the transfer corresponding to
	// write or read, respectively.
	Tx(addr uint16, w, r []byte) error
}

// Pin samples a single GPIO input line, used for the PHY's INT_N interrupt
// request output.
type Pin interface {
	// Get returns true if the line is currently asserted. Implementations
	// translate their chip's active level (INT_N is active-low on the
	// FUSB302B) into this boolean so callers never need to know the
	// polarity.
	Get() (bool, error)
}

// TypeCCurrent is the current advertised by a Type-C source over the CC
// line, before any USB PD contract exists.
type TypeCCurrent uint8

// Type-C current advertisement levels. SinkTxNG and SinkTxOK additionally
// double, on PD 3.0 links, as the "clear to transmit" signal a sink must
// wait for before starting an AMS: NG means "not yet", OK means "go ahead".
// This aliasing mirrors the FUSB302B's own register encoding.
const (
	TypeCCurrentNone TypeCCurrent = iota
	TypeCCurrentDefault
	TypeCCurrentSinkTxNG // 1.5A
	TypeCCurrentSinkTxOK // 3.0A
)

// Status reports which physical-layer events have occurred since the last
// call to GetStatus. It intentionally omits chip bring-up concerns (CC
// polarity, VBUS presence) that a driver handles internally (the FUSB302
// driver in Reset and, for CC polarity, inside GetStatus); nothing above
// this layer needs to know about them.
type Status struct {
	GoodCRCSent   bool // a GoodCRC response was transmitted for a received message
	TxSent        bool // an outgoing message was acknowledged with a GoodCRC
	RetryFailed   bool // an outgoing message exhausted its retries unacknowledged
	HardResetRx   bool // a hard reset signal was received from the source
	HardResetSent bool // a requested hard reset finished transmitting
	OverTemp      bool // the PHY reports an over-temperature condition
}

// PHY is the set of operations the protocol stack needs from a Type-C port
// controller chip. Implementations must be safe for the concurrent access
// pattern the stack uses: SendMessage/ReadMessage/GetStatus/GetTypeCCurrent/
// IntnAsserted may be called from different goroutines than Reset/
// SendHardReset, but never two of these at once for the same instance.
type PHY interface {
	// Reset restores the chip to its power-on operating configuration:
	// clears its FIFOs, re-establishes the sink role and CC polarity, and
	// arms auto-retry. It is safe, and expected, to call repeatedly over
	// the PHY's lifetime (PRL-TX calls it on every discard/reset cycle).
	Reset() error

	// SendMessage begins transmitting m. It returns once the transfer has
	// been handed to the chip's FIFO; it does not wait for GoodCRC or
	// retry exhaustion, which show up later via GetStatus.
	SendMessage(m pdmsg.Message) error

	// SendHardReset begins signaling a hard reset. Like SendMessage it does
	// not block for completion; HardResetSent from GetStatus reports that.
	SendHardReset() error

	// ReadMessage retrieves the oldest received message not yet read into
	// out. It returns ErrRxEmpty if none is available.
	ReadMessage(out *pdmsg.Message) error

	// GetStatus reads and clears the chip's pending interrupt flags.
	GetStatus() (Status, error)

	// GetTypeCCurrent reports the current last advertised by the source
	// over the CC line.
	GetTypeCCurrent() (TypeCCurrent, error)

	// IntnAsserted reports whether the INT_N interrupt request line is
	// currently asserted, i.e. whether GetStatus is worth calling.
	IntnAsserted() bool
}
