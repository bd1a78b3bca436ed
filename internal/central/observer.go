package central

import "github.com/srg/blemap/internal/device"

// Result is the outcome of one full discovery cycle.
type Result struct {
	Handle          device.ConnHandle
	Address         string
	Service         device.ServiceRecord
	Characteristics []device.CharacteristicRecord
}

// Observer receives what the session reports. Calls arrive on the dispatch
// goroutine and must not block.
type Observer interface {
	// DiscoveryComplete fires exactly once per successful discovery cycle.
	DiscoveryComplete(res Result)
	// Failure reports every surfaced error except stale callbacks.
	Failure(err error)
	// PhaseChanged reports the new overall phase after a transition.
	PhaseChanged(p Phase)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnDiscoveryComplete func(Result)
	OnFailure           func(error)
	OnPhaseChanged      func(Phase)
}

func (o ObserverFuncs) DiscoveryComplete(res Result) {
	if o.OnDiscoveryComplete != nil {
		o.OnDiscoveryComplete(res)
	}
}

func (o ObserverFuncs) Failure(err error) {
	if o.OnFailure != nil {
		o.OnFailure(err)
	}
}

func (o ObserverFuncs) PhaseChanged(p Phase) {
	if o.OnPhaseChanged != nil {
		o.OnPhaseChanged(p)
	}
}
