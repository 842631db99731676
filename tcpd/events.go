package tcpd

// Each task owns its own pdevent.Word, so bit positions are only meaningful
// within a task's own constant block; there's no need for a single global
// enumeration the way a single-loop design (like the teacher's tcpe.Run)
// would want.

// PRL-RX events.
const (
	evtRXReset uint32 = 1 << iota
	evtRXGoodCRCSent
)

// PRL-TX events. evtTXStartAMS is set by the Policy Engine to gate a PD 3.0
// collision-avoidance wait in ConstructMessage.
const (
	evtTXReset uint32 = 1 << iota
	evtTXDiscard
	evtTXMsgTX
	evtTXSent
	evtTXRetryFail
	evtTXStartAMS
)

// Hard Reset task events.
const (
	evtHRReset uint32 = 1 << iota
	evtHRIHardReset
	evtHRIHardSent
	evtHRDone
	// evtHRRequest, set by the Policy Engine, distinguishes "we're sending
	// a hard reset" from "we're reacting to one requested of us".
	evtHRRequest
)

// Policy Engine events.
const (
	evtPEMsgRX uint32 = 1 << iota
	evtPETxDone
	evtPETxErr
	evtPEReset
	evtPEHardSent
	evtPEOverTemp
	evtPEGetSourceCap
	evtPENewPower
	evtPEPPSRequest
)
