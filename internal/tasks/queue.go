// Package tasks фоновые побочные эффекты запроса: уведомления, realtime-события
package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storefront/internal/logging"
	"storefront/internal/metrics"
)

type task struct {
	ctx  context.Context
	name string
	fn   func(ctx context.Context) error
}

// Queue фиксированный пул воркеров с буфером задач. Задача отбрасывается, только когда буфер полон.
type Queue struct {
	tasks   chan task
	g       errgroup.Group
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
}

func NewQueue(workers, backlog int, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if backlog < 0 {
		backlog = 0
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &Queue{
		tasks:   make(chan task, backlog),
		timeout: timeout,
		logger:  logger,
		metrics: m,
	}
	for i := 0; i < workers; i++ {
		q.g.Go(q.work)
	}
	return q
}

func (q *Queue) work() error {
	for t := range q.tasks {
		q.run(t)
	}
	return nil
}

func (q *Queue) run(t task) {
	runCtx, cancel := context.WithTimeout(t.ctx, q.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logging.Error(runCtx, q.logger, "Task panicked", zap.String("task", t.name), zap.Any("panic", r))
		}
	}()

	if err := t.fn(runCtx); err != nil {
		logging.Warn(runCtx, q.logger, "Task failed", zap.String("task", t.name), zap.Error(err))
	}
}

// Enqueue запускает fn вне жизненного цикла запроса: отмена ctx задачу не прерывает,
// но значения контекста (трасса) сохраняются. Возвращает false, если задача отброшена.
func (q *Queue) Enqueue(ctx context.Context, name string, fn func(ctx context.Context) error) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	ok := false
	if !q.closed {
		select {
		case q.tasks <- task{ctx: context.WithoutCancel(ctx), name: name, fn: fn}:
			ok = true
		default:
		}
	}
	if !ok {
		if q.metrics != nil {
			q.metrics.TasksDropped.Inc()
		}
		logging.Warn(ctx, q.logger, "Task queue full, dropping task", zap.String("task", name))
	}
	return ok
}

// Wait закрывает очередь, дожидается разбора буфера и выполняющихся задач; вызывается при остановке
func (q *Queue) Wait() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()
	_ = q.g.Wait()
}
