package tcpd

import (
	"context"
	"time"
)

// intnPollInterval is how often the poller checks the INT_N line when it
// isn't asserted. INT_N is level-triggered and stays asserted until the
// interrupt registers are read, so a short poll is enough to bound latency
// without needing a real GPIO interrupt callback.
const intnPollInterval = time.Millisecond

// runIntnPoller is the lightest of the five tasks: it watches the PHY's
// INT_N line and, once asserted, reads and fans out the chip's pending
// status bits to whichever task cares about each one. Grounded on int_n.c,
// which does exactly this dispatch and nothing else.
func (s *Stack) runIntnPoller(ctx context.Context) {
	ticker := time.NewTicker(intnPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !s.phy.IntnAsserted() {
			continue
		}
		st, err := s.phy.GetStatus()
		if err != nil {
			s.logf("tcpd: intn poller: GetStatus: %v", err)
			continue
		}
		if st.GoodCRCSent {
			s.rxEvents.Add(evtRXGoodCRCSent)
		}
		if st.TxSent {
			s.txEvents.Add(evtTXSent)
		}
		if st.RetryFailed {
			s.txEvents.Add(evtTXRetryFail)
		}
		if st.HardResetRx {
			s.hrEvents.Add(evtHRIHardReset)
		}
		if st.HardResetSent {
			s.hrEvents.Add(evtHRIHardSent)
		}
		if st.OverTemp {
			s.peEvents.Add(evtPEOverTemp)
		}
	}
}
