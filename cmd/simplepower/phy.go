//go:build !tinygo

package main

import (
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/oxplot/pdsink/tcphy"
)

const busNumber = "1"
const intnPinName = "GPIO17"

// hostPin adapts a periph.io gpio.PinIn, active-low per the FUSB302B's INT_N
// output, to tcphy.Pin.
type hostPin struct {
	p gpio.PinIn
}

func (h hostPin) Get() (bool, error) {
	return h.p.Read() == gpio.Low, nil
}

func getPHYDeps() (tcphy.I2C, tcphy.Pin) {
	if _, err := host.Init(); err != nil {
		panic(err)
	}
	b, err := i2creg.Open(busNumber)
	if err != nil {
		panic(err)
	}
	b.SetSpeed(1000000)

	pin := gpioreg.ByName(intnPinName)
	if pin == nil {
		panic("simplepower: INT_N pin " + intnPinName + " not found")
	}
	if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		panic(err)
	}
	return b, hostPin{p: pin}
}
