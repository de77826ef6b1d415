package flow

import (
	"gatekeeper/internal/types"
)

// Fresh MAC in normal mode asks the operator with the standard timings.
func (s *FlowTestSuite) TestEvaluateFreshNormalMode() {
	dec := Evaluate(Snapshot{}, types.ModeNormal, testDurations)
	s.Equal(RequestApproval, dec.Kind)
	s.Equal(testDurations.ApproveTTL, dec.ApproveTTL)
	s.Equal(testDurations.AutoDeny, dec.AutoDenyAfter)
	s.Equal(testDurations.DenyTTL, dec.DenyTTL)
	s.False(dec.Informational)
}

// Unlisted MAC in blacklist mode is approved automatically for a day.
func (s *FlowTestSuite) TestEvaluateBlacklistModeUnlisted() {
	dec := Evaluate(Snapshot{}, types.ModeBlacklist, testDurations)
	s.Equal(AutoApprove, dec.Kind)
	s.Equal(testDurations.AutoApprove, dec.ApproveTTL)
	s.True(dec.Informational)
}

// Listed MAC in blacklist mode goes through the same approval as normal mode.
func (s *FlowTestSuite) TestEvaluateBlacklistModeListed() {
	dec := Evaluate(Snapshot{Blacklisted: true}, types.ModeBlacklist, testDurations)
	s.Equal(RequestApproval, dec.Kind)
	s.Equal(testDurations.ApproveTTL, dec.ApproveTTL)
	s.Equal(testDurations.AutoDeny, dec.AutoDenyAfter)
	s.Equal(testDurations.DenyTTL, dec.DenyTTL)
}

// Static membership wins in both modes and never notifies.
func (s *FlowTestSuite) TestEvaluateStaticAlwaysAllows() {
	for _, mode := range []types.Mode{types.ModeNormal, types.ModeBlacklist} {
		dec := Evaluate(Snapshot{Static: true, Blacklisted: true}, mode, testDurations)
		s.Equal(Allow, dec.Kind)
	}
}

func (s *FlowTestSuite) TestEvaluatePrecedence() {
	// Bypass beats everything.
	dec := Evaluate(Snapshot{Bypass: true, Static: true, Denied: true}, types.ModeNormal, testDurations)
	s.Equal(Suppress, dec.Kind)

	// Denied and approved both suppress re-notification.
	s.Equal(Suppress, Evaluate(Snapshot{Denied: true}, types.ModeNormal, testDurations).Kind)
	s.Equal(Suppress, Evaluate(Snapshot{Approved: true}, types.ModeNormal, testDurations).Kind)
	s.Equal(Suppress, Evaluate(Snapshot{Approved: true}, types.ModeBlacklist, testDurations).Kind)
}

// Toggling the mode back and forth with an unchanged blacklist reproduces
// identical decisions for a fixed set of snapshots.
func (s *FlowTestSuite) TestEvaluateModeRoundTrip() {
	snaps := []Snapshot{
		{},
		{Static: true},
		{Approved: true},
		{Denied: true},
		{Blacklisted: true},
		{Blacklisted: true, Approved: true},
	}
	before := make([]Decision, len(snaps))
	for i, snap := range snaps {
		before[i] = Evaluate(snap, types.ModeNormal, testDurations)
	}
	for _, snap := range snaps {
		_ = Evaluate(snap, types.ModeBlacklist, testDurations)
	}
	for i, snap := range snaps {
		s.Equal(before[i], Evaluate(snap, types.ModeNormal, testDurations))
	}
}
