package pdmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtendedDataSize(t *testing.T) {
	var m Message
	m.SetExtended(true)
	m.Data[0] = 0x1234 & 0x1ff
	assert.Equal(t, uint16(0x1234&0x1ff), m.ExtendedDataSize())
}

func TestRequestDOGiveBackFlag(t *testing.T) {
	var r RequestDO
	assert.False(t, r.GiveBackFlag())
	r.SetGiveBackFlag(true)
	assert.True(t, r.GiveBackFlag())
	// unrelated bits must be untouched
	r.SetCapabilityMismatch(true)
	assert.True(t, r.GiveBackFlag())
	assert.True(t, r.CapabilityMismatch())
	r.SetGiveBackFlag(false)
	assert.False(t, r.GiveBackFlag())
	assert.True(t, r.CapabilityMismatch())
}

func TestPDOTypePPSDetection(t *testing.T) {
	pps := NewPPSPDO()
	assert.Equal(t, PDOTypePPS, PDO(pps).Type())

	fixed := NewFixedSupplyPDO()
	assert.Equal(t, PDOTypeFixedSupply, PDO(fixed).Type())
}

func TestControlMessageIsNotData(t *testing.T) {
	var m Message
	m.SetType(TypeSoftReset)
	m.SetDataObjectCount(0)
	assert.False(t, m.IsData())
	assert.Equal(t, TypeSoftReset, m.Type())
}

func TestDataMessageIsData(t *testing.T) {
	var m Message
	m.SetType(TypeSourceCap)
	m.SetDataObjectCount(2)
	assert.True(t, m.IsData())
	assert.Equal(t, uint8(2), m.DataObjectCount())
}
