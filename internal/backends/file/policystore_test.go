package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gatekeeper/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yml")
	store := NewPolicyStore(path)

	cfg, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.ModeNormal, cfg.Mode)
	assert.Empty(t, cfg.Blacklist)

	// The default is persisted so the file exists from now on.
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yml")
	store := NewPolicyStore(path)
	ctx := context.Background()

	in := types.PolicyConfig{
		Mode:      types.ModeBlacklist,
		Blacklist: []string{"aa:bb:cc:dd:ee:ff"},
		Static:    []string{"11:11:11:11:11:11"},
	}
	require.NoError(t, store.Save(ctx, in))

	out, err := NewPolicyStore(path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLoadRejectsInvalidPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yml")
	require.NoError(t, os.WriteFile(path, []byte("mode: strict\n"), 0o600))

	_, err := NewPolicyStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestLoadDefaultsEmptyMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yml")
	require.NoError(t, os.WriteFile(path, []byte("blacklist: [aa:bb:cc:dd:ee:ff]\n"), 0o600))

	cfg, err := NewPolicyStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.ModeNormal, cfg.Mode)
	assert.Equal(t, []string{"aa:bb:cc:dd:ee:ff"}, cfg.Blacklist)
}
