package pool

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

var (
	// ErrPoolNotFound 名称未登记
	ErrPoolNotFound = errors.New("pool: not registered")
	// ErrPoolAlreadyExists 同名池已登记
	ErrPoolAlreadyExists = errors.New("pool: already registered")
)

// Manager 按名称管理多个池，负责统一关闭。
type Manager struct {
	mu     sync.RWMutex
	pools  map[string]*Pool
	closed bool
}

// NewManager 创建池管理器。
func NewManager() *Manager {
	return &Manager{pools: make(map[string]*Pool)}
}

// Register 创建并登记一个池，name 默认为类型名。
func (m *Manager) Register(typ Type, config *Config) (*Pool, error) {
	name := string(typ)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrPoolClosed
	}
	if _, ok := m.pools[name]; ok {
		return nil, ErrPoolAlreadyExists
	}

	p, err := NewPool(name, typ, config)
	if err != nil {
		return nil, err
	}
	m.pools[name] = p
	return p, nil
}

// Get 按名称查找池。
func (m *Manager) Get(name string) (*Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pools[name]
	if !ok {
		return nil, ErrPoolNotFound
	}
	return p, nil
}

// Stats 返回所有池的统计，按名称排序。
func (m *Manager) Stats() []Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Stats, 0, len(m.pools))
	for _, p := range m.pools {
		out = append(out, p.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ReleaseAllTimeout 关闭所有池，每个池最多等待 timeout。
func (m *Manager) ReleaseAllTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	for name, p := range m.pools {
		if err := p.ReleaseTimeout(timeout); err != nil {
			logger.Warnw("pool did not drain in time", "pool", name, "error", err.Error())
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
