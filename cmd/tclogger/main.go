// Tclogger prints power profiles of the connected power source to the
// terminal, without accepting any of them.
package main

import (
	"context"
	"log"
	"os"

	"github.com/oxplot/pdsink/tcdpm"
	"github.com/oxplot/pdsink/tcpd"
	"github.com/oxplot/pdsink/tcphy/fusb302"
)

const mpn = fusb302.FUSB302BMPX

func main() {
	i2c, intn := getPHYDeps()
	phy := fusb302.New(i2c, mpn, intn)

	dpm := tcdpm.Simple{
		Policy: tcdpm.NewLogger(os.Stdout, "\r\n", nil),
	}

	s := tcpd.New(phy, dpm, tcpd.DefaultConfig(), log.Default())
	s.Run(context.Background())
}
