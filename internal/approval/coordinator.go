// Package approval tracks in-flight approval requests and their resolution:
// operator button presses, and the auto-deny timer racing them.
package approval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/flow"
	"gatekeeper/internal/ports"
	"gatekeeper/internal/types"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const (
	nameCacheTTL   = 24 * time.Hour
	resolveTimeout = 10 * time.Second
)

// MemberOps is the slice of the member service the coordinator needs.
// Declared here so tests can substitute a minimal fake.
type MemberOps interface {
	Approve(ctx context.Context, mac string, ttl time.Duration) error
	Deny(ctx context.Context, mac string, ttl time.Duration) error
	Contains(ctx context.Context, set types.Set, mac string) (bool, error)
}

// Pending is one in-flight approval request. At most one exists per MAC.
type Pending struct {
	MAC        string
	MessageID  int64
	CreatedAt  time.Time
	Deadline   time.Time
	ApproveTTL time.Duration
	DenyTTL    time.Duration
}

// Coordinator executes admission decisions: writes memberships, sends and
// edits chat messages, and arms detached auto-deny timers that re-validate
// state before acting.
type Coordinator struct {
	members  MemberOps
	notifier ports.Notifier
	auditLog ports.AuditLog
	feed     ports.Publisher
	feedARN  string

	mu      sync.Mutex
	pending map[string]*Pending

	names *flow.TTL[string, string]
}

func New(m MemberOps, notifier ports.Notifier, auditLog ports.AuditLog) *Coordinator {
	return &Coordinator{
		members:  m,
		notifier: notifier,
		auditLog: auditLog,
		pending:  make(map[string]*Pending),
		names:    flow.NewTTL[string, string](),
	}
}

// WithFeed mirrors admission outcomes to an SNS topic. Optional.
func (c *Coordinator) WithFeed(pub ports.Publisher, arn string) *Coordinator {
	c.feed = pub
	c.feedARN = arn
	return c
}

// Execute carries out a policy decision for an admissible event. Allow and
// Suppress are terminal no-ops by contract; AutoApprove writes the membership
// and sends an informational notice; RequestApproval opens a pending request
// and arms the auto-deny timer.
func (c *Coordinator) Execute(ctx context.Context, mac string, ev types.DeviceEvent, dec flow.Decision) error {
	if ev.Hostname != "" {
		c.names.Set(mac, ev.Hostname, nameCacheTTL)
	}
	switch dec.Kind {
	case flow.Suppress, flow.Allow:
		return nil
	case flow.AutoApprove:
		return c.autoApprove(ctx, mac, ev, dec)
	case flow.RequestApproval:
		return c.requestApproval(ctx, mac, ev, dec)
	}
	return types.Err(types.ErrValidation, nil, "unknown decision kind %d", dec.Kind)
}

func (c *Coordinator) autoApprove(ctx context.Context, mac string, ev types.DeviceEvent, dec flow.Decision) error {
	if err := c.members.Approve(ctx, mac, dec.ApproveTTL); err != nil {
		return err
	}
	text := fmt.Sprintf("Device %s auto-approved for %s.", describe(mac, ev.Hostname, ev.IP), fmtDuration(dec.ApproveTTL))
	if _, err := c.notifier.SendMessage(ctx, text, nil); err != nil {
		log.WithError(err).WithField("mac", mac).Error("failed to send auto-approve notice")
	}
	c.record(ctx, mac, types.OutcomeAutoAllowed, types.ViaPolicy, ev)
	return nil
}

func (c *Coordinator) requestApproval(ctx context.Context, mac string, ev types.DeviceEvent, dec flow.Decision) error {
	now := flow.Now()

	// Duplicate guard: the rate limiter covers the common case, this covers
	// the window it misses. The entry is inserted before the send so the slot
	// is reserved while the message is in flight; it carries the full decision
	// timings already, because a callback can race the send (the button exists
	// at the chat service before our HTTP response is parsed) and must resolve
	// with the real TTLs.
	c.mu.Lock()
	if _, exists := c.pending[mac]; exists {
		c.mu.Unlock()
		log.WithField("mac", mac).Debug("approval already pending, suppressing duplicate")
		return nil
	}
	c.pending[mac] = &Pending{
		MAC:        mac,
		CreatedAt:  now,
		Deadline:   now.Add(dec.AutoDenyAfter),
		ApproveTTL: dec.ApproveTTL,
		DenyTTL:    dec.DenyTTL,
	}
	c.mu.Unlock()

	text := fmt.Sprintf("New device %s requests access. Approve within %s or it will be denied.",
		describe(mac, ev.Hostname, ev.IP), fmtDuration(dec.AutoDenyAfter))
	buttons := []types.Button{
		{Label: "Approve", Data: "approve_" + mac},
		{Label: "Deny", Data: "deny_" + mac},
	}
	msgID, err := c.notifier.SendMessage(ctx, text, buttons)
	if err != nil {
		c.mu.Lock()
		delete(c.pending, mac)
		c.mu.Unlock()
		return types.Err(types.ErrChannelAccess, err, "send approval request for %s", mac)
	}

	// The request may have been resolved while the send was in flight; in that
	// case the slot is gone and must stay gone. Only a still-pending entry
	// learns its message id and gets the auto-deny timer armed.
	c.mu.Lock()
	if p, ok := c.pending[mac]; ok {
		p.MessageID = msgID
		time.AfterFunc(dec.AutoDenyAfter, func() {
			c.fireAutoDeny(mac, msgID, dec.DenyTTL)
		})
	}
	c.mu.Unlock()
	return nil
}

// Resolve handles an operator button press. A MAC with no pending request is
// reported as already handled, not an error.
func (c *Coordinator) Resolve(ctx context.Context, action, mac string, messageID int64) (string, error) {
	c.mu.Lock()
	p, ok := c.pending[mac]
	if ok {
		delete(c.pending, mac)
	}
	c.mu.Unlock()
	if !ok {
		return fmt.Sprintf("%s was already handled.", mac), nil
	}

	// Edit the message the callback came from; fall back to the one recorded
	// at request time.
	if messageID == 0 {
		messageID = p.MessageID
	}
	name, _ := c.names.Get(mac)
	switch action {
	case "approve":
		if err := c.members.Approve(ctx, mac, p.ApproveTTL); err != nil {
			c.restore(p)
			return "", err
		}
		c.edit(ctx, messageID, fmt.Sprintf("Approved %s for %s.", describe(mac, name, ""), fmtDuration(p.ApproveTTL)))
		c.record(ctx, mac, types.OutcomeApproved, types.ViaOperator, types.DeviceEvent{MAC: mac, Hostname: name})
	case "deny":
		if err := c.members.Deny(ctx, mac, p.DenyTTL); err != nil {
			c.restore(p)
			return "", err
		}
		c.edit(ctx, messageID, fmt.Sprintf("Denied %s for %s.", describe(mac, name, ""), fmtDuration(p.DenyTTL)))
		c.record(ctx, mac, types.OutcomeDenied, types.ViaOperator, types.DeviceEvent{MAC: mac, Hostname: name})
	default:
		c.restore(p)
		return "", types.Err(types.ErrValidation, nil, "unknown callback action %q", action)
	}
	return "", nil
}

// fireAutoDeny runs when the approval deadline passes. Cancellation is
// cooperative: the timer cannot be stopped reliably, so it re-validates state
// before acting. An approval that won the race must never be overwritten.
func (c *Coordinator) fireAutoDeny(mac string, messageID int64, denyTTL time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	c.mu.Lock()
	p, ok := c.pending[mac]
	if !ok || p.MessageID != messageID {
		// Resolved manually, or superseded by a newer request.
		c.mu.Unlock()
		return
	}
	delete(c.pending, mac)
	c.mu.Unlock()

	approved, err := c.members.Contains(ctx, types.SetApproved, mac)
	if err != nil {
		log.WithError(err).WithField("mac", mac).Error("auto-deny revalidation failed; leaving state untouched")
		return
	}
	if approved {
		return
	}

	if err := c.members.Deny(ctx, mac, denyTTL); err != nil {
		log.WithError(err).WithField("mac", mac).Error("auto-deny write failed")
		return
	}
	name, _ := c.names.Get(mac)
	c.edit(ctx, messageID, fmt.Sprintf("No response; denied %s for %s.", describe(mac, name, ""), fmtDuration(denyTTL)))
	c.record(ctx, mac, types.OutcomeAutoDenied, types.ViaTimer, types.DeviceEvent{MAC: mac, Hostname: name})
}

// restore puts a pending request back after a failed resolution so the
// operator can retry. The auto-deny timer for it is still armed.
func (c *Coordinator) restore(p *Pending) {
	c.mu.Lock()
	if _, ok := c.pending[p.MAC]; !ok {
		c.pending[p.MAC] = p
	}
	c.mu.Unlock()
}

// HasPending reports whether an approval is in flight for mac.
func (c *Coordinator) HasPending(mac string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[mac]
	return ok
}

// DisplayName returns the cached hostname for a MAC, if one was seen recently.
func (c *Coordinator) DisplayName(mac string) (string, bool) {
	return c.names.Get(mac)
}

func (c *Coordinator) edit(ctx context.Context, messageID int64, text string) {
	if err := c.notifier.EditMessage(ctx, messageID, text); err != nil {
		log.WithError(err).WithField("message_id", messageID).Error("failed to edit approval message")
	}
}

func (c *Coordinator) record(ctx context.Context, mac, outcome, via string, ev types.DeviceEvent) {
	rec := types.AuditRecord{
		At:      flow.EpochTime(),
		MAC:     mac,
		Outcome: outcome,
		Via:     via,
	}
	if encoded, err := audit.EncodePayload(ev); err == nil {
		rec.Payload = encoded
	}
	if c.auditLog != nil {
		if err := c.auditLog.Append(ctx, rec); err != nil {
			log.WithError(err).WithField("mac", mac).Warn("audit append failed")
		}
	}
	if c.feed != nil && c.feedARN != "" {
		b, err := json.Marshal(rec)
		if err == nil {
			if err := c.feed.PublishRaw(ctx, c.feedARN, b); err != nil {
				log.WithError(err).Warn("feed publish failed")
			}
		}
	}
}

func describe(mac, hostname, ip string) string {
	s := mac
	if hostname != "" {
		s += " (" + hostname + ")"
	}
	if ip != "" {
		s += " at " + ip
	}
	return s
}

func fmtDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}
