// Package pool 基于 ants 提供有界的 goroutine 池，供索引任务使用。
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

var (
	// ErrPoolClosed 池或管理器已释放，不再接受任务
	ErrPoolClosed = errors.New("pool: released")
	// ErrPoolOverload 所有 worker 忙碌且等待位已用尽
	ErrPoolOverload = errors.New("pool: overloaded")
	// ErrInvalidPoolConfig 配置未通过 Validate
	ErrInvalidPoolConfig = errors.New("pool: invalid config")
)

// Type 池用途。
type Type string

const (
	// IndexingPool 文档/URL 索引任务池
	IndexingPool Type = "indexing"
	// BackgroundPool 后台任务池（批量调度、清理等）
	BackgroundPool Type = "background"
)

// Config 池配置。
type Config struct {
	// Capacity 最大并发 goroutine 数，必须大于 0
	Capacity int `json:"capacity" mapstructure:"capacity"`
	// ExpiryDuration goroutine 空闲过期时间
	ExpiryDuration time.Duration `json:"expiry_duration" mapstructure:"expiry_duration"`
	// PreAlloc 是否预分配 worker 队列
	PreAlloc bool `json:"pre_alloc" mapstructure:"pre_alloc"`
	// Nonblocking 为 true 时池满立即返回 ErrPoolOverload
	Nonblocking bool `json:"nonblocking" mapstructure:"nonblocking"`
	// MaxBlockingTasks 阻塞模式下最多等待的提交数，0 表示不限
	MaxBlockingTasks int `json:"max_blocking_tasks" mapstructure:"max_blocking_tasks"`
	// PanicHandler 任务 panic 时调用，nil 时记录日志
	PanicHandler func(interface{}) `json:"-" mapstructure:"-"`
}

// IndexingPoolConfig 索引池默认配置：并发受限于向量服务吞吐，
// 提交方在队列满时阻塞，超过 MaxBlockingTasks 则拒绝。
func IndexingPoolConfig() *Config {
	return &Config{
		Capacity:         4,
		ExpiryDuration:   60 * time.Second,
		Nonblocking:      false,
		MaxBlockingTasks: 256,
	}
}

// BackgroundPoolConfig 后台任务池默认配置。
func BackgroundPoolConfig() *Config {
	return &Config{
		Capacity:         16,
		ExpiryDuration:   60 * time.Second,
		Nonblocking:      true,
		MaxBlockingTasks: 0,
	}
}

// Validate 校验配置。
func (c *Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidPoolConfig, c.Capacity)
	}
	if c.MaxBlockingTasks < 0 {
		return fmt.Errorf("%w: max_blocking_tasks must not be negative", ErrInvalidPoolConfig)
	}
	return nil
}

// Pool 对 ants.Pool 的包装，附带统计与关闭语义。
type Pool struct {
	name   string
	typ    Type
	pool   *ants.Pool
	config *Config

	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	panics    atomic.Int64
	waitNs    atomic.Int64

	closed   atomic.Bool
	closedMu sync.Mutex
}

// Stats 池统计快照。
type Stats struct {
	Name      string        `json:"name"`
	Type      Type          `json:"type"`
	Capacity  int           `json:"capacity"`
	Running   int           `json:"running"`
	Waiting   int           `json:"waiting"`
	Submitted int64         `json:"submitted"`
	Completed int64         `json:"completed"`
	Rejected  int64         `json:"rejected"`
	Panics    int64         `json:"panics"`
	AvgWait   time.Duration `json:"avg_wait"`
}

// NewPool 创建池。
func NewPool(name string, typ Type, config *Config) (*Pool, error) {
	if config == nil {
		config = IndexingPoolConfig()
		if typ == BackgroundPool {
			config = BackgroundPoolConfig()
		}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{
		name:   name,
		typ:    typ,
		config: config,
	}

	pool, err := ants.NewPool(config.Capacity, p.antsOptions()...)
	if err != nil {
		return nil, fmt.Errorf("创建 ants 池失败: %w", err)
	}
	p.pool = pool

	logger.Infow("Worker pool created",
		"name", name,
		"type", typ,
		"capacity", config.Capacity,
		"nonblocking", config.Nonblocking,
	)
	return p, nil
}

func (p *Pool) antsOptions() []ants.Option {
	handler := p.config.PanicHandler
	if handler == nil {
		handler = func(v interface{}) {
			logger.Errorw("Worker panic recovered", "pool", p.name, "panic", v)
		}
	}
	return []ants.Option{
		ants.WithExpiryDuration(p.config.ExpiryDuration),
		ants.WithPreAlloc(p.config.PreAlloc),
		ants.WithNonblocking(p.config.Nonblocking),
		ants.WithMaxBlockingTasks(p.config.MaxBlockingTasks),
		ants.WithPanicHandler(func(v interface{}) {
			p.panics.Add(1)
			handler(v)
		}),
	}
}

// Name 返回池名称
func (p *Pool) Name() string { return p.name }

// Type 返回池类型
func (p *Pool) Type() Type { return p.typ }

// Cap 返回池容量
func (p *Pool) Cap() int { return p.pool.Cap() }

// Running 返回正在运行的 worker 数
func (p *Pool) Running() int { return p.pool.Running() }

// Waiting 返回阻塞等待提交的任务数
func (p *Pool) Waiting() int { return p.pool.Waiting() }

// Submit 提交任务。池满且不可再等待时返回 ErrPoolOverload。
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	start := time.Now()
	err := p.pool.Submit(func() {
		p.waitNs.Add(int64(time.Since(start)))
		task()
		p.completed.Add(1)
	})
	if err != nil {
		switch {
		case errors.Is(err, ants.ErrPoolOverload):
			p.rejected.Add(1)
			return ErrPoolOverload
		case errors.Is(err, ants.ErrPoolClosed):
			return ErrPoolClosed
		}
		return err
	}
	p.submitted.Add(1)
	return nil
}

// SubmitWithContext 提交任务；若任务开始执行前 ctx 已取消则跳过。
func (p *Pool) SubmitWithContext(ctx context.Context, task func(ctx context.Context)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.Submit(func() {
		if ctx.Err() != nil {
			return
		}
		task(ctx)
	})
}

// Release 立即关闭池，不等待运行中的任务。
func (p *Pool) Release() {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Swap(true) {
		return
	}
	p.pool.Release()
	logger.Infow("Worker pool released", "name", p.name)
}

// ReleaseTimeout 关闭池并等待运行中的任务完成，最多等待 timeout。
func (p *Pool) ReleaseTimeout(timeout time.Duration) error {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Swap(true) {
		return nil
	}
	err := p.pool.ReleaseTimeout(timeout)
	logger.Infow("Worker pool released", "name", p.name, "graceful", err == nil)
	return err
}

// Tune 动态调整容量。
func (p *Pool) Tune(size int) {
	if size <= 0 {
		return
	}
	p.pool.Tune(size)
	logger.Infow("Worker pool tuned", "name", p.name, "new_capacity", size)
}

// Stats 返回统计快照。
func (p *Pool) Stats() Stats {
	s := Stats{
		Name:      p.name,
		Type:      p.typ,
		Capacity:  p.pool.Cap(),
		Running:   p.pool.Running(),
		Waiting:   p.pool.Waiting(),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Rejected:  p.rejected.Load(),
		Panics:    p.panics.Load(),
	}
	if started := s.Completed + s.Panics; started > 0 {
		s.AvgWait = time.Duration(p.waitNs.Load() / started)
	}
	return s
}
