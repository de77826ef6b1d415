package types

import (
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// EngineConfig drives the behavior of the admission engine. It is loaded from
// a YAML file at startup; the Telegram credentials are mandatory — the process
// refuses to start without a channel to deliver approvals to.
// IntakeToken guards the device-event HTTP intake; an empty token disables the
// check (trusted network deployments).
// RenewAsNew controls whether lease renewals re-enter the decision pipeline
// like fresh sightings. Default is false: renewals are ignored.
// IgnoreExpr is an optional JMESPath expression evaluated against the raw
// bridge payload; events for which it yields true are dropped before any
// bookkeeping.
type EngineConfig struct {
	ListenPort  int    `yaml:"listen_port"`
	IntakeToken string `yaml:"intake_token"`

	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`

	PolicyFile string `yaml:"policy_file"`

	RenewAsNew bool   `yaml:"renew_as_new"`
	IgnoreExpr string `yaml:"ignore_expr"`

	RateWindowSeconds int `yaml:"rate_window_seconds"`
	ApproveTTLMinutes int `yaml:"approve_ttl_minutes"`
	AutoDenyMinutes   int `yaml:"auto_deny_minutes"`
	DenyTTLMinutes    int `yaml:"deny_ttl_minutes"`
	AutoApproveHours  int `yaml:"auto_approve_hours"`

	// FeedTopicARN, when set, mirrors informational admission outcomes to an
	// SNS topic for external consumers. Optional.
	FeedTopicARN string `yaml:"feed_topic_arn"`
}

const (
	DefaultListenPort        = 8099
	DefaultPolicyFile        = "policy.yml"
	DefaultRateWindowSeconds = 60
	DefaultApproveTTLMinutes = 30
	DefaultAutoDenyMinutes   = 5
	DefaultDenyTTLMinutes    = 30
	DefaultAutoApproveHours  = 24
)

// Durations bundles the decision timing parameters in time.Duration form.
type Durations struct {
	RateWindow  time.Duration
	ApproveTTL  time.Duration
	AutoDeny    time.Duration
	DenyTTL     time.Duration
	AutoApprove time.Duration
}

func (c EngineConfig) Durations() Durations {
	return Durations{
		RateWindow:  time.Duration(c.RateWindowSeconds) * time.Second,
		ApproveTTL:  time.Duration(c.ApproveTTLMinutes) * time.Minute,
		AutoDeny:    time.Duration(c.AutoDenyMinutes) * time.Minute,
		DenyTTL:     time.Duration(c.DenyTTLMinutes) * time.Minute,
		AutoApprove: time.Duration(c.AutoApproveHours) * time.Hour,
	}
}

func (c *EngineConfig) applyDefaults() {
	if c.ListenPort == 0 {
		c.ListenPort = DefaultListenPort
	}
	if c.PolicyFile == "" {
		c.PolicyFile = DefaultPolicyFile
	}
	if c.RateWindowSeconds == 0 {
		c.RateWindowSeconds = DefaultRateWindowSeconds
	}
	if c.ApproveTTLMinutes == 0 {
		c.ApproveTTLMinutes = DefaultApproveTTLMinutes
	}
	if c.AutoDenyMinutes == 0 {
		c.AutoDenyMinutes = DefaultAutoDenyMinutes
	}
	if c.DenyTTLMinutes == 0 {
		c.DenyTTLMinutes = DefaultDenyTTLMinutes
	}
	if c.AutoApproveHours == 0 {
		c.AutoApproveHours = DefaultAutoApproveHours
	}
}

func (c EngineConfig) Validate() error {
	if c.TelegramToken == "" {
		return Err(ErrConfiguration, nil, "telegram_token is required")
	}
	if c.TelegramChatID == 0 {
		return Err(ErrConfiguration, nil, "telegram_chat_id is required")
	}
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		return Err(ErrConfiguration, nil, "listen_port out of range: %d", c.ListenPort)
	}
	if c.RateWindowSeconds < 0 || c.ApproveTTLMinutes < 0 || c.AutoDenyMinutes < 0 ||
		c.DenyTTLMinutes < 0 || c.AutoApproveHours < 0 {
		return Err(ErrConfiguration, nil, "timing parameters must be non-negative")
	}
	if c.AutoDenyMinutes > c.ApproveTTLMinutes {
		return Err(ErrConfiguration, nil, "auto_deny_minutes must not exceed approve_ttl_minutes")
	}
	return nil
}

// LoadEngineConfig reads the YAML config, fills defaults and validates.
func LoadEngineConfig(path string) (EngineConfig, error) {
	var cfg EngineConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, Err(ErrConfiguration, err, "read config %s", path)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, Err(ErrConfiguration, err, "parse config %s", path)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
