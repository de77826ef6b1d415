package memory

import (
	"context"
	"sync"

	"gatekeeper/internal/types"
)

// PolicyStore holds the policy in memory. Tests only; nothing survives a
// restart.
type PolicyStore struct {
	mu  sync.Mutex
	cfg types.PolicyConfig
}

func NewPolicyStore(cfg types.PolicyConfig) *PolicyStore {
	return &PolicyStore{cfg: cfg}
}

func (s *PolicyStore) Load(_ context.Context) (types.PolicyConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, nil
}

func (s *PolicyStore) Save(_ context.Context, cfg types.PolicyConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	return nil
}
