//go:build tinygo

package main

import (
	"machine"

	"github.com/oxplot/pdsink/tcphy"
)

// machinePin adapts a TinyGo machine.Pin, active-low per the FUSB302B's
// INT_N output, to tcphy.Pin.
type machinePin struct {
	p machine.Pin
}

func (m machinePin) Get() (bool, error) {
	return !m.p.Get(), nil
}

func getPHYDeps() (tcphy.I2C, tcphy.Pin) {
	i2c := machine.I2C1
	i2c.Configure(machine.I2CConfig{
		Frequency: 1000000,
		SDA:       machine.GPIO2,
		SCL:       machine.GPIO3,
	})

	intn := machine.GPIO17
	intn.Configure(machine.PinConfig{Mode: machine.PinInputPullup})

	return i2c, machinePin{p: intn}
}
