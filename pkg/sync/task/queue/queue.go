package queue

import (
	"container/list"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

var ErrLimitReached = errors.New("reached limit of max processed jobs")

// Queue is a bounded task queue processed by a goroutine pool.
type Queue struct {
	goPool *ants.Pool
	limit  int

	mutex sync.Mutex
	queue *list.List
}

func New(cfg Config) (*Queue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	p, err := ants.NewPool(cfg.GoPoolSize, ants.WithPreAlloc(true), ants.WithExpiryDuration(cfg.MaxIdleTime), ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	return &Queue{
		queue:  list.New(),
		goPool: p,
		limit:  cfg.Size,
	}, nil
}

func (q *Queue) appendQueue(tasks []func()) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.queue.Len()+len(tasks) > q.limit {
		return ErrLimitReached
	}
	for _, t := range tasks {
		q.queue.PushBack(t)
	}
	return nil
}

func (q *Queue) popQueue() func() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.queue.Len() == 0 {
		return nil
	}
	return q.queue.Remove(q.queue.Front()).(func())
}

// Submit appends the tasks and schedules a worker to execute them in order.
// When every worker is busy the tasks are picked up by a running worker.
func (q *Queue) Submit(tasks ...func()) error {
	if err := q.appendQueue(tasks); err != nil {
		return err
	}
	err := q.goPool.Submit(func() {
		for {
			task := q.popQueue()
			if task == nil {
				return
			}
			task()
		}
	})
	if err != nil && !errors.Is(err, ants.ErrPoolOverload) {
		return err
	}
	return nil
}

// Release closes the pool and drops the tasks that were not started yet.
func (q *Queue) Release() {
	q.goPool.Release()
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.queue.Init()
}
