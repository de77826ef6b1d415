// Package command interprets the administrative chat surface: text commands
// and approval-button callbacks.
package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"gatekeeper/internal/approval"
	"gatekeeper/internal/members"
	"gatekeeper/internal/ports"
	"gatekeeper/internal/types"

	log "github.com/sirupsen/logrus"
)

const helpText = `Commands:
STATUS            list approved devices
DSTATUS           list denied devices
EXTEND <id>       extend an approved device from the last STATUS
REVOKE <id>       revoke an approved device from the last STATUS
DEXTEND <id>      extend a denied device from the last DSTATUS
DREVOKE <id>      lift a denial from the last DSTATUS
SYNC [static|blacklist|all]
ENABLE / DISABLE  turn filtering on / off (bypass)
BL_ON / BL_OFF    blacklist mode on / off
BL_STATUS         show blacklist
BL_ADD <mac> / BL_REMOVE <mac> / BL_CLEAR
HISTORY [n]       recent admission outcomes`

// Processor owns the durable PolicyConfig and turns operator input into
// store and policy mutations. Every recognized command yields exactly one
// reply; unrecognized input is ignored.
type Processor struct {
	members  *members.Service
	policy   ports.PolicyStore
	coord    *approval.Coordinator
	auditLog ports.AuditLog
	dur      types.Durations

	mu  sync.Mutex
	cfg types.PolicyConfig
	ids *IDTable
}

func NewProcessor(m *members.Service, policy ports.PolicyStore, coord *approval.Coordinator,
	auditLog ports.AuditLog, cfg types.PolicyConfig, dur types.Durations) *Processor {
	return &Processor{
		members:  m,
		policy:   policy,
		coord:    coord,
		auditLog: auditLog,
		dur:      dur,
		cfg:      cfg,
		ids:      NewIDTable(),
	}
}

// Mode returns the current policy mode for the event path.
func (p *Processor) Mode() types.Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.Mode
}

// Policy returns a copy of the current policy.
func (p *Processor) Policy() types.PolicyConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := p.cfg
	cp.Blacklist = append([]string(nil), p.cfg.Blacklist...)
	cp.Static = append([]string(nil), p.cfg.Static...)
	return cp
}

// Handle processes one inbound update. The returned reply is empty when the
// input was unrecognized or the feedback already happened in place (edited
// approval message).
func (p *Processor) Handle(ctx context.Context, up types.Update) string {
	if up.Callback != nil {
		return p.handleCallback(ctx, up.Callback)
	}
	fields := strings.Fields(up.Text)
	if len(fields) == 0 {
		return ""
	}
	cmd := strings.ToUpper(strings.TrimPrefix(fields[0], "/"))
	args := fields[1:]

	p.mu.Lock()
	defer p.mu.Unlock()

	switch cmd {
	case "HELP":
		return helpText
	case "STATUS":
		return p.listing(ctx, types.SetApproved)
	case "DSTATUS":
		return p.listing(ctx, types.SetDenied)
	case "EXTEND":
		return p.extend(ctx, types.SetApproved, args, p.dur.ApproveTTL)
	case "DEXTEND":
		return p.extend(ctx, types.SetDenied, args, p.dur.DenyTTL)
	case "REVOKE":
		return p.revoke(ctx, types.SetApproved, args)
	case "DREVOKE":
		return p.revoke(ctx, types.SetDenied, args)
	case "SYNC":
		return p.sync(ctx, args)
	case "ENABLE":
		if err := p.members.SetBypass(ctx, false); err != nil {
			return "Failed to enable filtering: store unreachable."
		}
		return "Filtering enabled."
	case "DISABLE":
		if err := p.members.SetBypass(ctx, true); err != nil {
			return "Failed to disable filtering: store unreachable."
		}
		return "Filtering disabled (bypass on)."
	case "BL_ON":
		return p.setMode(ctx, types.ModeBlacklist)
	case "BL_OFF":
		return p.setMode(ctx, types.ModeNormal)
	case "BL_STATUS":
		return p.blacklistStatus()
	case "BL_ADD":
		return p.blacklistAdd(ctx, args)
	case "BL_REMOVE":
		return p.blacklistRemove(ctx, args)
	case "BL_CLEAR":
		return p.blacklistClear(ctx)
	case "HISTORY":
		return p.history(ctx, args)
	}
	// Unrecognized commands are ignored, not answered.
	return ""
}

func (p *Processor) handleCallback(ctx context.Context, cb *types.Callback) string {
	mac, err := types.NormalizeMAC(cb.MAC)
	if err != nil {
		log.WithField("data", cb.MAC).Warn("callback with malformed MAC ignored")
		return ""
	}
	reply, err := p.coord.Resolve(ctx, cb.Action, mac, cb.MessageID)
	if err != nil {
		log.WithError(err).WithField("mac", mac).Error("callback resolution failed")
		return fmt.Sprintf("Failed to %s %s, try again.", cb.Action, mac)
	}
	return reply
}

func (p *Processor) listing(ctx context.Context, set types.Set) string {
	entries, err := p.members.List(ctx, set)
	if err != nil {
		return fmt.Sprintf("Failed to list %s: store unreachable.", set)
	}

	bypass, err := p.members.Bypass(ctx)
	if err != nil {
		return "Failed to read filtering state: store unreachable."
	}

	macs := make([]string, 0, len(entries))
	var b strings.Builder
	fmt.Fprintf(&b, "Mode: %s | Filtering: %s\n", p.cfg.Mode, onOff(!bypass))
	if len(entries) == 0 {
		fmt.Fprintf(&b, "No %s devices.", set)
	} else {
		fmt.Fprintf(&b, "%s devices:\n", capitalize(string(set)))
		for i, e := range entries {
			macs = append(macs, e.MAC)
			line := fmt.Sprintf("%d. %s", i+1, e.MAC)
			if name, ok := p.coord.DisplayName(e.MAC); ok {
				line += " (" + name + ")"
			}
			if e.Remaining > 0 {
				line += ", " + e.Remaining.Round(time.Second).String() + " left"
			}
			b.WriteString(line + "\n")
		}
	}
	p.ids.Replace(set, macs)
	return strings.TrimRight(b.String(), "\n")
}

func (p *Processor) extend(ctx context.Context, set types.Set, args []string, delta time.Duration) string {
	id, ok := parseID(args)
	if !ok {
		return "Give a numeric id from the last listing."
	}
	mac, err := p.ids.Resolve(set, id)
	if err != nil {
		return fmt.Sprintf("No entry %d in the last listing.", id)
	}
	next, err := p.members.Extend(ctx, set, mac, delta)
	switch {
	case errors.Is(err, types.ErrExpired):
		return fmt.Sprintf("%s already expired.", mac)
	case errors.Is(err, types.ErrValidation):
		return fmt.Sprintf("%s has no expiry to extend.", mac)
	case err != nil:
		return fmt.Sprintf("Failed to extend %s: store unreachable.", mac)
	}
	return fmt.Sprintf("Extended %s, %s left.", mac, next.Round(time.Second))
}

func (p *Processor) revoke(ctx context.Context, set types.Set, args []string) string {
	id, ok := parseID(args)
	if !ok {
		return "Give a numeric id from the last listing."
	}
	mac, err := p.ids.Resolve(set, id)
	if err != nil {
		return fmt.Sprintf("No entry %d in the last listing.", id)
	}
	if err := p.members.Remove(ctx, set, mac); err != nil {
		return fmt.Sprintf("Failed to remove %s: store unreachable.", mac)
	}
	return fmt.Sprintf("Removed %s from %s.", mac, set)
}

func (p *Processor) sync(ctx context.Context, args []string) string {
	target := "all"
	if len(args) > 0 {
		target = strings.ToLower(args[0])
	}
	var parts []string
	if target == "static" || target == "all" {
		n, err := p.members.Reconcile(ctx, types.SetStatic, p.cfg.Static)
		parts = append(parts, syncResult("static", n, err))
	}
	if target == "blacklist" || target == "all" {
		n, err := p.members.Reconcile(ctx, types.SetBlacklist, p.cfg.Blacklist)
		parts = append(parts, syncResult("blacklist", n, err))
	}
	if len(parts) == 0 {
		return "Usage: SYNC [static|blacklist|all]."
	}
	return "Synced " + strings.Join(parts, ", ") + "."
}

func (p *Processor) setMode(ctx context.Context, mode types.Mode) string {
	p.cfg.Mode = mode
	if err := p.policy.Save(ctx, p.cfg); err != nil {
		return "Failed to persist policy; mode unchanged on disk."
	}
	if mode == types.ModeBlacklist {
		// Rebuild the store's blacklist cache so evaluation sees the full list.
		if _, err := p.members.Reconcile(ctx, types.SetBlacklist, p.cfg.Blacklist); err != nil {
			return fmt.Sprintf("Blacklist mode on, but store sync failed (%d entries may be stale); run SYNC blacklist.", len(p.cfg.Blacklist))
		}
		return fmt.Sprintf("Blacklist mode on (%d entries).", len(p.cfg.Blacklist))
	}
	return "Blacklist mode off."
}

func (p *Processor) blacklistStatus() string {
	if len(p.cfg.Blacklist) == 0 {
		return fmt.Sprintf("Mode: %s. Blacklist is empty.", p.cfg.Mode)
	}
	return fmt.Sprintf("Mode: %s. Blacklist:\n%s", p.cfg.Mode, strings.Join(p.cfg.Blacklist, "\n"))
}

func (p *Processor) blacklistAdd(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: BL_ADD <mac>."
	}
	mac, err := types.NormalizeMAC(args[0])
	if err != nil {
		return fmt.Sprintf("Not a valid MAC: %s.", args[0])
	}
	if p.cfg.InBlacklist(mac) {
		return fmt.Sprintf("%s is already blacklisted.", mac)
	}
	p.cfg.Blacklist = append(p.cfg.Blacklist, mac)
	if err := p.policy.Save(ctx, p.cfg); err != nil {
		p.cfg.Blacklist = p.cfg.Blacklist[:len(p.cfg.Blacklist)-1]
		return "Failed to persist policy; nothing changed."
	}
	// Config is the source of truth; a failed mirror is reported, not rolled
	// back, and correctable with SYNC blacklist.
	if err := p.members.Add(ctx, types.SetBlacklist, mac, 0); err != nil {
		return fmt.Sprintf("Blacklisted %s, but store sync failed; run SYNC blacklist.", mac)
	}
	return fmt.Sprintf("Blacklisted %s.", mac)
}

func (p *Processor) blacklistRemove(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: BL_REMOVE <mac>."
	}
	mac, err := types.NormalizeMAC(args[0])
	if err != nil {
		return fmt.Sprintf("Not a valid MAC: %s.", args[0])
	}
	idx := -1
	for i, m := range p.cfg.Blacklist {
		if m == mac {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Sprintf("%s is not blacklisted.", mac)
	}
	prev := p.cfg.Blacklist
	p.cfg.Blacklist = append(append([]string(nil), prev[:idx]...), prev[idx+1:]...)
	if err := p.policy.Save(ctx, p.cfg); err != nil {
		p.cfg.Blacklist = prev
		return "Failed to persist policy; nothing changed."
	}
	if err := p.members.Remove(ctx, types.SetBlacklist, mac); err != nil {
		return fmt.Sprintf("Removed %s from the blacklist, but store sync failed; run SYNC blacklist.", mac)
	}
	return fmt.Sprintf("Removed %s from the blacklist.", mac)
}

func (p *Processor) blacklistClear(ctx context.Context) string {
	prev := p.cfg.Blacklist
	p.cfg.Blacklist = nil
	if err := p.policy.Save(ctx, p.cfg); err != nil {
		p.cfg.Blacklist = prev
		return "Failed to persist policy; nothing changed."
	}
	if err := p.members.Flush(ctx, types.SetBlacklist); err != nil {
		return "Blacklist cleared, but store sync failed; run SYNC blacklist."
	}
	return "Blacklist cleared."
}

func (p *Processor) history(ctx context.Context, args []string) string {
	if p.auditLog == nil {
		return "No audit log configured."
	}
	n := 10
	if len(args) > 0 {
		if v, err := strconv.Atoi(args[0]); err == nil && v > 0 {
			n = v
		}
	}
	recs, err := p.auditLog.Recent(ctx, n)
	if err != nil {
		return "Failed to read history: store unreachable."
	}
	if len(recs) == 0 {
		return "No admission history yet."
	}
	var b strings.Builder
	for _, r := range recs {
		fmt.Fprintf(&b, "%s %s via %s\n", r.MAC, r.Outcome, r.Via)
	}
	return strings.TrimRight(b.String(), "\n")
}

func parseID(args []string) (int, bool) {
	if len(args) != 1 {
		return 0, false
	}
	id, err := strconv.Atoi(args[0])
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

func syncResult(set string, n int, err error) string {
	if err != nil {
		return set + " (failed)"
	}
	return fmt.Sprintf("%s (%d)", set, n)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
