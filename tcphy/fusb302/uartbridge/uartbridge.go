// Package uartbridge implements tcphy.I2C and tcphy.Pin over a UART link to
// a bridge microcontroller that exposes a target I2C bus and one GPIO line,
// for boards (like the PD Buddy Sink family) that put the FUSB302B behind a
// USB-serial adapter rather than a bus the host can address natively.
package uartbridge

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Wire framing: the bridge firmware accepts single-byte commands and
// replies with a status byte followed by any read payload.
const (
	cmdI2CTx  = 0x01
	cmdPinGet = 0x02

	statusOK  = 0x00
	statusErr = 0x01
)

// ErrBridge is returned when the bridge microcontroller reports a
// transaction failure.
var ErrBridge = errors.New("uartbridge: bridge reported an error")

// port is the subset of serial.Port that Bridge actually needs, kept
// narrow so tests can supply a fake without wiring a real serial device.
type port interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	Close() error
}

// Bridge is a UART-connected I2C/GPIO bridge, safe for concurrent use by
// multiple goroutines the way tcphy.PHY's contract requires.
type Bridge struct {
	mu   sync.Mutex
	port port
}

// Open opens portName at baud and returns a ready-to-use Bridge. baud must
// match the bridge firmware's configured rate.
func Open(portName string, baud int) (*Bridge, error) {
	p, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("uartbridge: open %s: %w", portName, err)
	}
	if err := p.SetReadTimeout(500 * time.Millisecond); err != nil {
		p.Close()
		return nil, fmt.Errorf("uartbridge: set read timeout: %w", err)
	}
	return &Bridge{port: p}, nil
}

// Close releases the underlying serial port.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.port.Close()
}

// Tx implements tcphy.I2C by framing a single write-then-read transaction
// over the UART link: command byte, target address, write length, write
// payload, read length, followed by the bridge's status byte and, if
// requested, the read payload.
func (b *Bridge) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	frame := make([]byte, 0, 6+len(w))
	frame = append(frame, cmdI2CTx)
	frame = binary.LittleEndian.AppendUint16(frame, addr)
	frame = append(frame, byte(len(w)))
	frame = append(frame, w...)
	frame = append(frame, byte(len(r)))

	if err := b.writeAll(frame); err != nil {
		return err
	}

	status, err := b.readByte()
	if err != nil {
		return err
	}
	if status != statusOK {
		return ErrBridge
	}
	if len(r) == 0 {
		return nil
	}
	return b.readFull(r)
}

// Get implements tcphy.Pin, querying the bridge's single GPIO input line
// (wired to the FUSB302B's INT_N output).
func (b *Bridge) Get() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.writeAll([]byte{cmdPinGet}); err != nil {
		return false, err
	}
	status, err := b.readByte()
	if err != nil {
		return false, err
	}
	if status != statusOK {
		return false, ErrBridge
	}
	level, err := b.readByte()
	if err != nil {
		return false, err
	}
	return level != 0, nil
}

func (b *Bridge) writeAll(p []byte) error {
	for len(p) > 0 {
		n, err := b.port.Write(p)
		if err != nil {
			return fmt.Errorf("uartbridge: write: %w", err)
		}
		p = p[n:]
	}
	return nil
}

func (b *Bridge) readByte() (byte, error) {
	var buf [1]byte
	if err := b.readFull(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (b *Bridge) readFull(p []byte) error {
	for len(p) > 0 {
		n, err := b.port.Read(p)
		if err != nil {
			return fmt.Errorf("uartbridge: read: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("uartbridge: read: %w", errReadTimeout)
		}
		p = p[n:]
	}
	return nil
}

var errReadTimeout = errors.New("timed out")
