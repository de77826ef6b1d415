package types

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMAC(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
	}{
		{"aa:bb:cc:dd:ee:ff", "aa:bb:cc:dd:ee:ff"},
		{"AA:BB:CC:DD:EE:FF", "aa:bb:cc:dd:ee:ff"},
		{"AA-BB-CC-DD-EE-FF", "aa:bb:cc:dd:ee:ff"},
		{"  aa:bb:cc:dd:ee:ff  ", "aa:bb:cc:dd:ee:ff"},
	} {
		got, err := NormalizeMAC(tc.in)
		assert.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	for _, in := range []string{"", "nope", "aa:bb:cc:dd:ee", "zz:bb:cc:dd:ee:ff"} {
		_, err := NormalizeMAC(in)
		assert.True(t, errors.Is(err, ErrValidation), in)
	}
}

func TestParseEventAction(t *testing.T) {
	for in, want := range map[string]EventAction{
		"add":    ActionAdd,
		"ADD":    ActionAdd,
		"renew":  ActionRenew,
		"old":    ActionRenew,
		"remove": ActionRemove,
		"del":    ActionRemove,
	} {
		got, err := ParseEventAction(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseEventAction("explode")
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestPolicyConfigValidate(t *testing.T) {
	assert.NoError(t, PolicyConfig{Mode: ModeNormal}.Validate())
	assert.NoError(t, PolicyConfig{Mode: ModeBlacklist, Blacklist: []string{"aa:bb:cc:dd:ee:ff"}}.Validate())
	assert.Error(t, PolicyConfig{Mode: "strict"}.Validate())
	assert.Error(t, PolicyConfig{Mode: ModeNormal, Static: []string{"garbage"}}.Validate())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gatekeeper.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadEngineConfigDefaults(t *testing.T) {
	path := writeConfig(t, "telegram_token: \"t0ken\"\ntelegram_chat_id: 42\n")
	cfg, err := LoadEngineConfig(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultListenPort, cfg.ListenPort)
	assert.Equal(t, DefaultPolicyFile, cfg.PolicyFile)
	assert.False(t, cfg.RenewAsNew)

	d := cfg.Durations()
	assert.Equal(t, "1m0s", d.RateWindow.String())
	assert.Equal(t, "30m0s", d.ApproveTTL.String())
	assert.Equal(t, "5m0s", d.AutoDeny.String())
	assert.Equal(t, "30m0s", d.DenyTTL.String())
	assert.Equal(t, "24h0m0s", d.AutoApprove.String())
}

func TestLoadEngineConfigRejectsMissingChannel(t *testing.T) {
	path := writeConfig(t, "listen_port: 9000\n")
	_, err := LoadEngineConfig(path)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestLoadEngineConfigRejectsBadTimings(t *testing.T) {
	path := writeConfig(t, `
telegram_token: t0ken
telegram_chat_id: 42
approve_ttl_minutes: 10
auto_deny_minutes: 20
`)
	_, err := LoadEngineConfig(path)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestLoadEngineConfigMissingFile(t *testing.T) {
	_, err := LoadEngineConfig(filepath.Join(t.TempDir(), "absent.yml"))
	assert.True(t, errors.Is(err, ErrConfiguration))
}
