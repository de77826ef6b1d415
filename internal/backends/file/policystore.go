// Package file persists PolicyConfig as a YAML document on disk.
package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"gatekeeper/internal/types"

	"github.com/goccy/go-yaml"
)

// PolicyStore writes the policy atomically (temp file + rename) on every
// mutating command so a crash never leaves a half-written policy behind.
type PolicyStore struct {
	path string
	mu   sync.Mutex
}

func NewPolicyStore(path string) *PolicyStore {
	return &PolicyStore{path: path}
}

// Load returns the stored policy. A missing file yields the default policy
// (normal mode, empty lists), persisted immediately so the file exists from
// the first run on.
func (s *PolicyStore) Load(ctx context.Context) (types.PolicyConfig, error) {
	s.mu.Lock()
	b, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if err != nil {
		if !os.IsNotExist(err) {
			return types.PolicyConfig{}, types.Err(types.ErrStoreAccess, err, "read policy %s", s.path)
		}
		cfg := types.PolicyConfig{Mode: types.ModeNormal}
		if err := s.Save(ctx, cfg); err != nil {
			return types.PolicyConfig{}, err
		}
		return cfg, nil
	}
	var cfg types.PolicyConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return types.PolicyConfig{}, types.Err(types.ErrStoreAccess, err, "parse policy %s", s.path)
	}
	if cfg.Mode == "" {
		cfg.Mode = types.ModeNormal
	}
	if err := cfg.Validate(); err != nil {
		return types.PolicyConfig{}, types.Err(types.ErrValidation, err, "policy %s", s.path)
	}
	return cfg, nil
}

func (s *PolicyStore) Save(_ context.Context, cfg types.PolicyConfig) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return types.Err(types.ErrStoreAccess, err, "encode policy")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".policy-*")
	if err != nil {
		return types.Err(types.ErrStoreAccess, err, "write policy %s", s.path)
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return types.Err(types.ErrStoreAccess, err, "write policy %s", s.path)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return types.Err(types.ErrStoreAccess, err, "write policy %s", s.path)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return types.Err(types.ErrStoreAccess, err, "replace policy %s", s.path)
	}
	return nil
}
