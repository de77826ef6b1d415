package flow

import (
	"testing"
	"time"

	"gatekeeper/internal/types"

	"github.com/stretchr/testify/suite"
)

var testDurations = types.Durations{
	RateWindow:  60 * time.Second,
	ApproveTTL:  30 * time.Minute,
	AutoDeny:    5 * time.Minute,
	DenyTTL:     30 * time.Minute,
	AutoApprove: 24 * time.Hour,
}

type FlowTestSuite struct {
	suite.Suite

	now time.Time
}

func TestFlowTestSuite(t *testing.T) {
	suite.Run(t, new(FlowTestSuite))
}

func (s *FlowTestSuite) SetupTest() {
	s.now = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	SetTimeNowFn(func() time.Time { return s.now })
}

func (s *FlowTestSuite) TearDownTest() {
	RestoreTimeNow()
}

func (s *FlowTestSuite) advance(d time.Duration) {
	s.now = s.now.Add(d)
}
