package types

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// EventAction classifies a device-seen event from the lease bridge.
type EventAction string

const (
	ActionAdd    EventAction = "add"
	ActionRenew  EventAction = "renew"
	ActionRemove EventAction = "remove"
)

// ParseEventAction accepts both the canonical action names and the dnsmasq
// script aliases ("old" for a renewed lease, "del" for a released one).
func ParseEventAction(s string) (EventAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add":
		return ActionAdd, nil
	case "renew", "old":
		return ActionRenew, nil
	case "remove", "del":
		return ActionRemove, nil
	}
	return "", Err(ErrValidation, nil, "unknown event action %q", s)
}

// DeviceEvent is a transient device sighting. Raw carries the original bridge
// payload for filter-expression evaluation; it is never persisted.
type DeviceEvent struct {
	Action   EventAction    `json:"action"`
	MAC      string         `json:"mac"`
	IP       string         `json:"ip,omitempty"`
	Hostname string         `json:"hostname,omitempty"`
	Raw      map[string]any `json:"-"`
}

// NormalizeMAC canonicalizes a hardware address to the lower-case colon form.
// Returns ErrValidation for anything net.ParseMAC rejects.
func NormalizeMAC(s string) (string, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(s))
	if err != nil {
		return "", Err(ErrValidation, err, "malformed MAC %q", s)
	}
	return strings.ToLower(hw.String()), nil
}

// Set names the TTL-capable membership sets the enforcement layer consults.
type Set string

const (
	SetStatic    Set = "static"
	SetApproved  Set = "approved"
	SetDenied    Set = "denied"
	SetBlacklist Set = "blacklist"
)

// Membership is one entry of a set listing. Remaining is zero for entries
// without an expiry (static, blacklist).
type Membership struct {
	MAC       string        `json:"mac"`
	Remaining time.Duration `json:"remaining"`
}

// Mode selects how unknown devices are treated.
type Mode string

const (
	// ModeNormal requires approval for every unknown device.
	ModeNormal Mode = "normal"
	// ModeBlacklist auto-approves unknown devices and requires approval only
	// for explicitly listed ones.
	ModeBlacklist Mode = "blacklist"
)

// PolicyConfig is the durable policy state. It is the source of truth for the
// blacklist and static lists; the store's copies are derived caches rebuilt on
// sync. Static is sourced externally and read-only to the engine.
type PolicyConfig struct {
	Mode      Mode     `yaml:"mode" json:"mode"`
	Blacklist []string `yaml:"blacklist" json:"blacklist"`
	Static    []string `yaml:"static" json:"static"`
}

func (p PolicyConfig) InBlacklist(mac string) bool {
	for _, m := range p.Blacklist {
		if m == mac {
			return true
		}
	}
	return false
}

func (p PolicyConfig) Validate() error {
	switch p.Mode {
	case ModeNormal, ModeBlacklist:
	default:
		return fmt.Errorf("mode must be %q or %q", ModeNormal, ModeBlacklist)
	}
	for _, m := range append(append([]string{}, p.Blacklist...), p.Static...) {
		if _, err := NormalizeMAC(m); err != nil {
			return err
		}
	}
	return nil
}

// Update is the tagged union of inbound chat input: a text command or a
// button callback. Exactly one of Text / Callback is set.
type Update struct {
	Text     string
	Callback *Callback
}

// Callback is a pressed approval button, paired with the message it came from
// so the message can be edited in place.
type Callback struct {
	Action    string // "approve" or "deny"
	MAC       string
	MessageID int64
}

// Button is one inline choice attached to an approval message.
type Button struct {
	Label string
	Data  string
}
