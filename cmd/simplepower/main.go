// Simplepower negotiates a constant voltage at a fixed current with the
// power source and reports every power transition to the terminal.
//
// To configure, edit the policy below.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/oxplot/pdsink/pdmsg"
	"github.com/oxplot/pdsink/tcdpm"
	"github.com/oxplot/pdsink/tcpd"
	"github.com/oxplot/pdsink/tcphy/fusb302"
)

const mpn = fusb302.FUSB302BMPX

var policy = tcdpm.CVPolicy{
	MinVoltage: 6000,
	MaxVoltage: 7000,
	Current:    1000,
}

// loggingDPM reports every power transition to stdout on top of the
// capability selection tcdpm.Simple already provides.
type loggingDPM struct {
	tcdpm.Simple
}

func (l loggingDPM) TransitionRequested() {
	fmt.Print("Power is on\r\n")
	l.Simple.TransitionRequested()
}

func (l loggingDPM) TransitionDefault() {
	fmt.Print("Power is off\r\n")
	l.Simple.TransitionDefault()
}

func main() {
	fmt.Print("starting up\r\n")

	i2c, intn := getPHYDeps()
	phy := fusb302.New(i2c, mpn, intn)

	dpm := loggingDPM{Simple: tcdpm.Simple{
		Policy: tcdpm.NewLogger(os.Stdout, "\r\n", &policy),
		SinkCapabilities: []pdmsg.PDO{
			func() pdmsg.PDO {
				p := pdmsg.NewFixedSupplyPDO()
				p.SetVoltage(5000)
				p.SetMaxCurrent(1000)
				return pdmsg.PDO(p)
			}(),
		},
	}}

	s := tcpd.New(phy, dpm, tcpd.DefaultConfig(), log.Default())
	s.Run(context.Background())
}
