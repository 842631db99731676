package tcpd

import (
	"github.com/oxplot/pdsink/pdmsg"
	"github.com/oxplot/pdsink/tcphy"
)

// DPM is the Device Policy Manager the Policy Engine consults for every
// decision that depends on product-specific policy: which capability to
// request, whether GiveBack is offered, how to react to a source that never
// completes negotiation. It generalizes the teacher library's single
// CapabilityEvaluator callback into the full set pdb_dpm.h defines; each
// method below corresponds to one of that header's callbacks.
//
// Implementations that don't care about a given callback can embed
// NopDPM and override only the ones they need.
type DPM interface {
	// EvaluateCapabilities picks a request for one of the source's
	// advertised PDOs, or pdmsg.EmptyRequestDO to reject all of them.
	EvaluateCapabilities(pdos []pdmsg.PDO) pdmsg.RequestDO

	// GetSinkCapability returns this device's own sink capabilities, sent
	// in response to Get_Sink_Cap.
	GetSinkCapability() []pdmsg.PDO

	// GivebackEnabled reports whether this sink supports GotoMin.
	GivebackEnabled() bool

	// EvaluateTypeCCurrent reports whether cur, sampled with no PD contract
	// established, is acceptable on its own.
	EvaluateTypeCCurrent(cur tcphy.TypeCCurrent) bool

	// PDStart is called each time the Policy Engine enters its Startup
	// state: at first start and again after every hard reset.
	PDStart()

	// NotSupportedReceived is called when the source sends Not_Supported
	// while a contract is in place. A Reject of a request does not call it.
	NotSupportedReceived()

	// TransitionDefault is called when a hard reset returns power to the
	// default (5V/900mA-or-less) configuration.
	TransitionDefault()

	// TransitionMin is called when a GotoMin has been accepted and power
	// should drop to the minimum current of the current contract.
	TransitionMin()

	// TransitionStandby is called just before transitioning to a newly
	// accepted, different power level, so the DPM can put the load into a
	// safe state during the transition.
	TransitionStandby()

	// TransitionRequested is called once PS_RDY confirms the requested
	// power level is available.
	TransitionRequested()

	// TransitionTypeC is called when, with no PD source present, two
	// consecutive Type-C current samples agree on whether cur (the most
	// recent EvaluateTypeCCurrent result) is acceptable.
	TransitionTypeC(match bool)
}

// NopDPM implements every DPM method as a no-op, for embedding in DPM
// implementations that only care about a subset of callbacks.
type NopDPM struct{}

func (NopDPM) EvaluateCapabilities(pdos []pdmsg.PDO) pdmsg.RequestDO { return pdmsg.EmptyRequestDO }
func (NopDPM) GetSinkCapability() []pdmsg.PDO                        { return nil }
func (NopDPM) GivebackEnabled() bool                                 { return false }
func (NopDPM) EvaluateTypeCCurrent(tcphy.TypeCCurrent) bool          { return false }
func (NopDPM) PDStart()                                              {}
func (NopDPM) NotSupportedReceived()                                 {}
func (NopDPM) TransitionDefault()                                    {}
func (NopDPM) TransitionMin()                                        {}
func (NopDPM) TransitionStandby()                                    {}
func (NopDPM) TransitionRequested()                                  {}
func (NopDPM) TransitionTypeC(bool)                                  {}
