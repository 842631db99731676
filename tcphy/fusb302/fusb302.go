// Package fusb302 implements the tcphy.PHY contract for the FUSB302B family
// of USB Type-C port controllers from onsemi.
package fusb302

import (
	"github.com/oxplot/pdsink/pdmsg"
	"github.com/oxplot/pdsink/tcphy"
)

// MPN represents the manufacturer part number, which determines the chip's
// I2C address.
type MPN uint8

// I2CAddress returns the I2C address of the FUSB302.
func (m MPN) I2CAddress() uint8 {
	return uint8(m)
}

// Manufacturer part numbers.
const (
	FUSB302BUCX   MPN = 0b100010
	FUSB302BMPX   MPN = 0b100010
	FUSB302VMPX   MPN = 0b100010
	FUSB302B01MPX MPN = 0b100011
	FUSB302B10MPX MPN = 0b100100
	FUSB302B11MPX MPN = 0b100101
)

const msgQueueSize = 10

// FUSB302 is a tcphy.PHY implementation for the FUSB302B chip family.
type FUSB302 struct {
	port tcphy.I2C
	addr uint16
	intn tcphy.Pin

	// intA is ORed into the INTERRUPTA value read by each GetStatus call
	// and then cleared, mirroring the teacher driver's own intA cache.
	// Nothing else in this driver sets it.
	intA uint8

	// Received messages queued here as quickly as GetStatus notices them;
	// dropped if full rather than blocking a status read.
	msgs chan pdmsg.Message

	buf [pdmsg.MaxMessageBytes + 10]byte
}

// New creates a FUSB302 driver. port must support <=1MHz I2C. intn samples
// the chip's INT_N interrupt request line.
func New(port tcphy.I2C, mpn MPN, intn tcphy.Pin) *FUSB302 {
	return &FUSB302{
		port: port,
		addr: uint16(mpn.I2CAddress()),
		intn: intn,
		msgs: make(chan pdmsg.Message, msgQueueSize),
	}
}

func (f *FUSB302) write(r uint8, d byte) error {
	f.buf[0] = r
	f.buf[1] = d
	return f.port.Tx(f.addr, f.buf[:2], nil)
}

func (f *FUSB302) read(r uint8) (byte, error) {
	f.buf[0] = r
	err := f.port.Tx(f.addr, f.buf[:1], f.buf[1:2])
	return f.buf[1], err
}

func (f *FUSB302) writeMany(r uint8, d []byte) error {
	f.buf[0] = r
	copy(f.buf[1:], d)
	return f.port.Tx(f.addr, f.buf[:len(d)+1], nil)
}

func (f *FUSB302) readMany(r uint8, d []byte) error {
	f.buf[0] = r
	err := f.port.Tx(f.addr, f.buf[:1], f.buf[1:len(d)+1])
	if err == nil {
		copy(d, f.buf[1:len(d)+1])
	}
	return err
}

// Reset restores the chip to its power-on operating configuration. It is
// called both once at stack startup and repeatedly afterwards by PRL-TX's
// PHYReset state. Each call performs a full software reset of the chip and
// restarts CC-orientation autodetection; CC polarity is applied again when
// the resulting TogDone interrupt is handled by GetStatus.
func (f *FUSB302) Reset() error {
	if err := f.write(regReset, regResetSWReset); err != nil {
		return err
	}
	if err := f.write(regControl1, 0b100); err != nil { // flush rx fifo
		return err
	}
FlushReceiveQueue:
	for {
		select {
		case <-f.msgs:
		default:
			break FlushReceiveQueue
		}
	}
	if err := f.write(regPower, regPowerPwrAll); err != nil {
		return err
	}
	if err := f.write(regControl2, 0b00000101); err != nil { // auto-detect CC, sink mode
		return err
	}
	if err := f.write(regControl3, 0b111); err != nil { // auto retry
		return err
	}
	return nil
}

// SendMessage hands m to the chip's TX FIFO and starts transmission. It
// does not wait for GoodCRC or retry exhaustion; PRL-TX observes those via
// GetStatus.
func (f *FUSB302) SendMessage(m pdmsg.Message) error {
	if err := f.write(regControl0, 0b01100100); err != nil { // flush tx fifo
		return err
	}
	buf := make([]byte, 9+pdmsg.MaxMessageBytes)
	copy(buf, []byte{fifoTokenSync1, fifoTokenSync1, fifoTokenSync1, fifoTokenSync2})
	mlen := m.ToBytes(buf[5:])
	buf[4] = fifoTokenPackSym | mlen
	copy(buf[5+mlen:], []byte{fifoTokenJamCRC, fifoTokenEOP, fifoTokenTxOff, fifoTokenTxOn})
	plen := 9 + mlen
	return f.writeMany(regFIFOs, buf[:plen])
}

// SendHardReset begins signaling a hard reset. Completion shows up later as
// HardResetSent in GetStatus.
func (f *FUSB302) SendHardReset() error {
	r, err := f.read(regControl3)
	if err != nil {
		return err
	}
	return f.write(regControl3, r|regControl3SendHardReset)
}

// ReadMessage retrieves the oldest queued received message.
func (f *FUSB302) ReadMessage(out *pdmsg.Message) error {
	select {
	case m := <-f.msgs:
		*out = m
		return nil
	default:
		return tcphy.ErrRxEmpty
	}
}

func (f *FUSB302) rx(m *pdmsg.Message) error {
	reg, err := f.read(regStatus1)
	if err != nil {
		return err
	}
	if reg&regStatus1RxEmpty != 0 {
		return tcphy.ErrRxEmpty
	}

	buf := make([]byte, pdmsg.MaxMessageBytes+4) // +4 for CRC we discard
	if err = f.readMany(regFIFOs, buf[:3]); err != nil {
		return err
	}
	m.Header = uint16(buf[2])<<8 | uint16(buf[1])
	l := m.DataObjectCount()

	if l > 0 {
		if err = f.readMany(regFIFOs, buf[:l*4+4]); err != nil {
			return err
		}
		for i := uint8(0); i < l; i++ {
			s := i * 4
			m.Data[i] = uint32(buf[s]) | uint32(buf[s+1])<<8 | uint32(buf[s+2])<<16 | uint32(buf[s+3])<<24
		}
	} else if err = f.readMany(regFIFOs, buf[:4]); err != nil {
		return err
	}
	return nil
}

// GetStatus reads and clears the chip's pending interrupt flags, feeding
// received messages into the internal queue and applying CC-polarity setup
// when TogDone fires. It is meant to be called from the INT_N poller task
// once IntnAsserted reports the line is low.
func (f *FUSB302) GetStatus() (tcphy.Status, error) {
	var st tcphy.Status
	regs := make([]byte, 7)
	if err := f.readMany(regStatus0A, regs); err != nil {
		return st, err
	}
	status0A, status1A, intA, _, status1, intT := regs[0], regs[1], regs[2], regs[4], regs[5], regs[6]
	intA |= f.intA
	f.intA = 0

	if intA&regInterruptASoftReset != 0 && status0A&regStatus0ARxSoftReset != 0 {
		st.HardResetRx = false // soft reset surfaces as a normal received message, not a PHY event
	}
	if intA&regInterruptAHardReset != 0 && status0A&regStatus0ARxHardReset != 0 {
		st.HardResetRx = true
	}
	if intA&regInterruptATxSuccess != 0 {
		st.TxSent = true
	}
	if intA&regInterruptARetryFail != 0 {
		st.RetryFailed = true
	}
	if intA&regInterruptAHardSent != 0 {
		st.HardResetSent = true
	}
	if intA&regInterruptAOCPTemp != 0 && status1&regStatus1OverTemp != 0 {
		st.OverTemp = true
	}

	// Set CC polarity once autodetection settles. This is chip bring-up,
	// invisible above this layer, exactly as fusb_setup/int_n.c split it
	// in the original firmware.
	if intA&regInterruptATogDone != 0 {
		if err := f.write(regControl2, 0); err != nil { // turn off autodetect
			return st, err
		}
		var pol, meas uint8
		switch (status1A >> regStatus1ATogSSPos) & regStatus1ATogSSMask {
		case regStatus1ATogSSSnk1:
			pol, meas = regSwitches1TxCC1En, regSwitches0MeasCC1
		case regStatus1ATogSSSnk2:
			pol, meas = regSwitches1TxCC2En, regSwitches0MeasCC2
		default:
			return st, tcphy.ErrTxFailed
		}
		if err := f.write(regSwitches1, regSwitches1SpecRev1|regSwitches1AutoGCRC|pol); err != nil {
			return st, err
		}
		if err := f.write(regSwitches0, meas|regSwitches0CC1PdEn|regSwitches0CC2PdEn); err != nil {
			return st, err
		}
	}

	if intT&regInterruptCRCChk != 0 {
		st.GoodCRCSent = true
		for {
			var msg pdmsg.Message
			if err := f.rx(&msg); err != nil {
				if err == tcphy.ErrRxEmpty {
					break
				}
				return st, err
			}
			if !msg.IsData() && msg.Type() == pdmsg.TypeGoodCRC {
				continue
			}
			select {
			case f.msgs <- msg:
			default:
			}
		}
	}

	return st, nil
}

// GetTypeCCurrent reports the current advertised by the source over CC,
// sampled from the last TogDone measurement.
func (f *FUSB302) GetTypeCCurrent() (tcphy.TypeCCurrent, error) {
	status0, err := f.read(regStatus0)
	if err != nil {
		return tcphy.TypeCCurrentNone, err
	}
	switch status0 & 0b11 {
	case 1:
		return tcphy.TypeCCurrentDefault, nil
	case 2:
		return tcphy.TypeCCurrentSinkTxNG, nil
	case 3:
		return tcphy.TypeCCurrentSinkTxOK, nil
	default:
		return tcphy.TypeCCurrentNone, nil
	}
}

// IntnAsserted reports whether the chip's INT_N line is asserted.
func (f *FUSB302) IntnAsserted() bool {
	if f.intn == nil {
		return true
	}
	asserted, err := f.intn.Get()
	return err == nil && asserted
}

const (
	regSwitches0        = 0x02
	regSwitches0MeasCC2 = 1 << 3
	regSwitches0MeasCC1 = 1 << 2
	regSwitches0CC2PdEn = 1 << 1
	regSwitches0CC1PdEn = 1 << 0

	regSwitches1         = 0x03
	regSwitches1SpecRev1 = 1 << 6
	regSwitches1AutoGCRC = 1 << 2
	regSwitches1TxCC2En  = 1 << 1
	regSwitches1TxCC1En  = 1 << 0

	regControl0 = 0x06
	regControl1 = 0x07
	regControl2 = 0x08

	regControl3              = 0x09
	regControl3SendHardReset = 1 << 6

	regPower       = 0x0B
	regPowerPwrAll = 0xF

	regReset        = 0x0C
	regResetSWReset = 1 << 0

	regStatus0A            = 0x3C
	regStatus0ARxSoftReset = 1 << 1
	regStatus0ARxHardReset = 1 << 0

	regStatus1A = 0x3D

	regStatus1ATogSSSnk1 = 0b101
	regStatus1ATogSSSnk2 = 0b110
	regStatus1ATogSSPos  = 3
	regStatus1ATogSSMask = 0x7

	regInterruptA          = 0x3E
	regInterruptATogDone   = 1 << 6
	regInterruptARetryFail = 1 << 4
	regInterruptAHardSent  = 1 << 3
	regInterruptATxSuccess = 1 << 2
	regInterruptASoftReset = 1 << 1
	regInterruptAHardReset = 1 << 0
	regInterruptAOCPTemp   = 1 << 5

	regStatus0 = 0x40

	regStatus1        = 0x41
	regStatus1RxEmpty = 1 << 5
	regStatus1OverTemp = 1 << 6

	regInterrupt       = 0x42
	regInterruptCRCChk = 1 << 4

	regFIFOs = 0x43

	fifoTokenTxOn    = 0xA1
	fifoTokenSync1   = 0x12
	fifoTokenSync2   = 0x13
	fifoTokenPackSym = 0x80
	fifoTokenJamCRC  = 0xFF
	fifoTokenEOP     = 0x14
	fifoTokenTxOff   = 0xFE
)
