package uartbridge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort is an in-memory stand-in for the subset of serial.Port Bridge
// uses, in the same spirit as ZaparooProject-go-pn532's mock transport.
type fakePort struct {
	written []byte
	reply   []byte
	readErr error
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.written = append(f.written, p...)
	return len(p), nil
}

func (f *fakePort) Read(p []byte) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	if len(f.reply) == 0 {
		return 0, nil
	}
	n := copy(p, f.reply)
	f.reply = f.reply[n:]
	return n, nil
}

func (f *fakePort) Close() error { return nil }

func TestBridgeTxFramesWriteAndReadRequest(t *testing.T) {
	fp := &fakePort{reply: []byte{statusOK, 0xAB, 0xCD}}
	b := &Bridge{port: fp}

	r := make([]byte, 2)
	err := b.Tx(0x22, []byte{0x01}, r)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAB, 0xCD}, r)

	assert.Equal(t, byte(cmdI2CTx), fp.written[0])
	assert.Equal(t, byte(1), fp.written[3]) // write length
	assert.Equal(t, byte(0x01), fp.written[4])
	assert.Equal(t, byte(2), fp.written[5]) // read length
}

func TestBridgeTxNoReadPayload(t *testing.T) {
	fp := &fakePort{reply: []byte{statusOK}}
	b := &Bridge{port: fp}

	err := b.Tx(0x22, []byte{0x02, 0x03}, nil)
	require.NoError(t, err)
}

func TestBridgeTxReportsBridgeError(t *testing.T) {
	fp := &fakePort{reply: []byte{statusErr}}
	b := &Bridge{port: fp}

	err := b.Tx(0x22, nil, nil)
	assert.ErrorIs(t, err, ErrBridge)
}

func TestBridgeTxPropagatesReadFailure(t *testing.T) {
	fp := &fakePort{readErr: errors.New("device gone")}
	b := &Bridge{port: fp}

	err := b.Tx(0x22, nil, nil)
	assert.Error(t, err)
}

func TestBridgeGetReadsPinLevel(t *testing.T) {
	fp := &fakePort{reply: []byte{statusOK, 1}}
	b := &Bridge{port: fp}

	level, err := b.Get()
	require.NoError(t, err)
	assert.True(t, level)
	assert.Equal(t, byte(cmdPinGet), fp.written[0])
}

func TestBridgeGetLowLevel(t *testing.T) {
	fp := &fakePort{reply: []byte{statusOK, 0}}
	b := &Bridge{port: fp}

	level, err := b.Get()
	require.NoError(t, err)
	assert.False(t, level)
}
