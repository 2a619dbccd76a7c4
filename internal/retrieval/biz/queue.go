package biz

import (
	"context"
	"sync"

	"github.com/kart-io/logger"

	"github.com/kart-io/retrieval-x/internal/model"
	"github.com/kart-io/retrieval-x/internal/retrieval/metrics"
	ctxlog "github.com/kart-io/retrieval-x/pkg/infra/logger"
	"github.com/kart-io/retrieval-x/pkg/infra/pool"
	"github.com/kart-io/retrieval-x/pkg/infra/tracing"
	apierrors "github.com/kart-io/retrieval-x/pkg/utils/errors"
)

// DefaultQueueSize 后台索引请求缓冲区大小
const DefaultQueueSize = 1024

type indexRequest struct {
	ctx  context.Context
	user string
	typ  model.SourceType
	id   string
}

// IndexQueue 后台索引队列：有界缓冲区 + 工作池。Enqueue 立即返回，
// 缓冲区满时拒绝请求，条目保持未索引状态，可由批量索引补齐。
type IndexQueue struct {
	indexer  *Indexer
	pool     *pool.Pool
	metrics  *metrics.Metrics
	requests chan indexRequest

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewIndexQueue 创建队列并启动分发协程。
func NewIndexQueue(ix *Indexer, p *pool.Pool, size int, m *metrics.Metrics) *IndexQueue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	q := &IndexQueue{
		indexer:  ix,
		pool:     p,
		metrics:  m,
		requests: make(chan indexRequest, size),
		done:     make(chan struct{}),
	}
	go q.dispatch()
	return q
}

// Enqueue 提交后台索引请求。任务与请求上下文脱离，不会被取消。
func (q *IndexQueue) Enqueue(ctx context.Context, user string, t model.SourceType, id string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return apierrors.ErrQueueFull.WithMessage("indexing queue is closed")
	}
	req := indexRequest{ctx: ctxlog.CopyFields(tracing.Detach(ctx), ctx), user: user, typ: t, id: id}
	select {
	case q.requests <- req:
		return nil
	default:
		q.metrics.QueueRejected()
		logger.Warnw("Indexing queue full, request dropped", "source_type", t, "source_id", id)
		return apierrors.ErrQueueFull
	}
}

// Len 返回等待分发的请求数。
func (q *IndexQueue) Len() int { return len(q.requests) }

// Cap 返回缓冲区容量。
func (q *IndexQueue) Cap() int { return cap(q.requests) }

// dispatch 将请求交给工作池；池满时阻塞，形成背压。
func (q *IndexQueue) dispatch() {
	defer close(q.done)
	for req := range q.requests {
		err := q.pool.Submit(func() {
			if _, err := q.indexer.IndexSource(req.ctx, req.user, req.typ, req.id); err != nil {
				ctxlog.GetLogger(req.ctx).Warnw("Background indexing failed",
					"user_id", req.user, "source_type", req.typ, "source_id", req.id, "error", err.Error())
			}
		})
		if err != nil {
			q.metrics.QueueRejected()
			logger.Errorw("Failed to submit indexing task",
				"source_type", req.typ, "source_id", req.id, "error", err.Error())
		}
	}
}

// Close 停止接收请求，并等待缓冲区中的请求全部交给工作池。
func (q *IndexQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.requests)
	q.mu.Unlock()

	<-q.done
}
