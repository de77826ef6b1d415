package flow

import (
	"errors"
	"time"

	"gatekeeper/internal/types"
)

func (s *FlowTestSuite) newIngestor(cfg types.EngineConfig) *Ingestor {
	if cfg.RateWindowSeconds == 0 {
		cfg.RateWindowSeconds = 60
	}
	g, err := NewIngestor(cfg)
	s.Require().NoError(err)
	return g
}

func event(action types.EventAction, mac string) types.DeviceEvent {
	return types.DeviceEvent{Action: action, MAC: mac, IP: "10.0.0.7", Hostname: "printer"}
}

func (s *FlowTestSuite) TestAdmitNormalizesMAC() {
	g := s.newIngestor(types.EngineConfig{})
	mac, ok, err := g.Admit(event(types.ActionAdd, "AA-BB-CC-DD-EE-FF"))
	s.NoError(err)
	s.True(ok)
	s.Equal("aa:bb:cc:dd:ee:ff", mac)
}

func (s *FlowTestSuite) TestAdmitRejectsMalformedMAC() {
	g := s.newIngestor(types.EngineConfig{})
	_, ok, err := g.Admit(event(types.ActionAdd, "not-a-mac"))
	s.False(ok)
	s.True(errors.Is(err, types.ErrValidation))
}

// Two admissible events inside the window produce one policy evaluation.
func (s *FlowTestSuite) TestAdmitRateLimitsRepeats() {
	g := s.newIngestor(types.EngineConfig{})
	_, ok, err := g.Admit(event(types.ActionAdd, "aa:bb:cc:dd:ee:ff"))
	s.NoError(err)
	s.True(ok)

	s.advance(30 * time.Second)
	_, ok, err = g.Admit(event(types.ActionAdd, "aa:bb:cc:dd:ee:ff"))
	s.NoError(err)
	s.False(ok)

	// A different device is unaffected.
	_, ok, err = g.Admit(event(types.ActionAdd, "11:22:33:44:55:66"))
	s.NoError(err)
	s.True(ok)

	// Past the window the original one is admissible again.
	s.advance(31 * time.Second)
	_, ok, err = g.Admit(event(types.ActionAdd, "aa:bb:cc:dd:ee:ff"))
	s.NoError(err)
	s.True(ok)
}

func (s *FlowTestSuite) TestAdmitIgnoresRemovals() {
	g := s.newIngestor(types.EngineConfig{})
	_, ok, err := g.Admit(event(types.ActionRemove, "aa:bb:cc:dd:ee:ff"))
	s.NoError(err)
	s.False(ok)
}

func (s *FlowTestSuite) TestAdmitRenewPolicy() {
	// Default: renewals are ignored.
	g := s.newIngestor(types.EngineConfig{})
	_, ok, err := g.Admit(event(types.ActionRenew, "aa:bb:cc:dd:ee:ff"))
	s.NoError(err)
	s.False(ok)

	// With renew_as_new, a renewal is a fresh sighting.
	g = s.newIngestor(types.EngineConfig{RenewAsNew: true})
	_, ok, err = g.Admit(event(types.ActionRenew, "aa:bb:cc:dd:ee:ff"))
	s.NoError(err)
	s.True(ok)
}

func (s *FlowTestSuite) TestAdmitIgnoreExpr() {
	g := s.newIngestor(types.EngineConfig{IgnoreExpr: "interface == 'guest'"})

	ev := event(types.ActionAdd, "aa:bb:cc:dd:ee:ff")
	ev.Raw = map[string]any{"interface": "guest"}
	_, ok, err := g.Admit(ev)
	s.NoError(err)
	s.False(ok)

	ev.Raw = map[string]any{"interface": "lan"}
	_, ok, err = g.Admit(ev)
	s.NoError(err)
	s.True(ok)
}

func (s *FlowTestSuite) TestNewIngestorRejectsBadExpr() {
	_, err := NewIngestor(types.EngineConfig{IgnoreExpr: "not ]]] valid"})
	s.Error(err)
	s.True(errors.Is(err, types.ErrConfiguration))
}
