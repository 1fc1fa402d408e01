package config

import (
	"errors"
	"sync"
)

// PolicyConfig holds the rate limit applied to every client. It can be
// replaced at runtime through the admin API.
type PolicyConfig struct {
	DefaultRateLimit float64 `json:"default_rate"`
	DefaultBurst     int     `json:"default_burst"`
}

func (p PolicyConfig) Validate() error {
	if p.DefaultRateLimit <= 0 {
		return errors.New("default_rate must be positive")
	}
	if p.DefaultBurst <= 0 {
		return errors.New("default_burst must be positive")
	}
	return nil
}

// DynamicConfigManager manages thread-safe config updates
type DynamicConfigManager struct {
	mu     sync.RWMutex
	policy PolicyConfig
}

func NewDynamicConfigManager(initial PolicyConfig) *DynamicConfigManager {
	return &DynamicConfigManager{policy: initial}
}

func (m *DynamicConfigManager) GetPolicy() PolicyConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.policy
}

func (m *DynamicConfigManager) UpdatePolicy(newPolicy PolicyConfig) error {
	if err := newPolicy.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policy = newPolicy
	return nil
}
