package flow

import (
	"time"

	"gatekeeper/internal/types"
)

// Kind classifies how an admissible device event is handled.
type Kind int

const (
	Suppress Kind = iota // already resolved or bypassed; no action, no notification
	Allow                // static lease; enforcement already permits it, never notify
	AutoApprove          // blacklist mode, unlisted device; write approval, informational notice
	RequestApproval      // ask the operator, arm the auto-deny timer
)

var KindTextMap = map[Kind]string{
	Suppress:        "suppress",
	Allow:           "allow",
	AutoApprove:     "auto_approve",
	RequestApproval: "request_approval",
}

// Snapshot is the membership view of a single MAC at evaluation time.
type Snapshot struct {
	Bypass      bool
	Static      bool
	Approved    bool
	Denied      bool
	Blacklisted bool
}

// Decision carries the timing parameters the coordinator executes with.
type Decision struct {
	Kind          Kind
	ApproveTTL    time.Duration
	AutoDenyAfter time.Duration
	DenyTTL       time.Duration
	Informational bool
}

// Evaluate is the policy engine: a pure function of the snapshot and mode.
// Precedence is fixed: bypass > static > denied > approved > mode handling.
// No side effects here; the caller executes the decision.
func Evaluate(snap Snapshot, mode types.Mode, d types.Durations) Decision {
	switch {
	case snap.Bypass:
		return Decision{Kind: Suppress}
	case snap.Static:
		return Decision{Kind: Allow}
	case snap.Denied:
		return Decision{Kind: Suppress}
	case snap.Approved:
		return Decision{Kind: Suppress}
	}

	if mode == types.ModeBlacklist {
		if snap.Blacklisted {
			return requestApproval(d)
		}
		return Decision{
			Kind:          AutoApprove,
			ApproveTTL:    d.AutoApprove,
			Informational: true,
		}
	}
	return requestApproval(d)
}

func requestApproval(d types.Durations) Decision {
	return Decision{
		Kind:          RequestApproval,
		ApproveTTL:    d.ApproveTTL,
		AutoDenyAfter: d.AutoDeny,
		DenyTTL:       d.DenyTTL,
	}
}
