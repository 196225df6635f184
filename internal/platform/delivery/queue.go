package delivery

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ngsanogo/keneyapp/internal/core"
	"github.com/ngsanogo/keneyapp/internal/domain/subscription"
)

// Job carries everything one delivery needs: a snapshot of the matched
// subscription, the canonical resource, the mutation kind, and the first
// attempt record.
type Job struct {
	Sub      *subscription.Subscription
	Resource core.Resource
	Mutation core.MutationKind
	Attempt  *Attempt
}

// Queue is the message-passing boundary between the event publisher and
// the delivery workers. Jobs are partitioned by tenant so one slow
// subscriber cannot starve another tenant's deliveries; within a tenant,
// each job runs in its own goroutine, so deliveries across subscriptions
// proceed in parallel while the attempts of a single job stay strictly
// sequential.
type Queue struct {
	ingress chan Job
	size    int
	run     func(ctx context.Context, job Job)
	logger  zerolog.Logger

	mu      sync.Mutex
	tenants map[string]chan Job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueue creates a queue with the given per-channel buffer size. run is
// invoked once per job, typically Worker.Run.
func NewQueue(size int, run func(ctx context.Context, job Job), logger zerolog.Logger) *Queue {
	if size <= 0 {
		size = 256
	}
	return &Queue{
		ingress: make(chan Job, size),
		size:    size,
		run:     run,
		logger:  logger,
		tenants: make(map[string]chan Job),
	}
}

// Start launches the dispatcher. It returns immediately; workers stop when
// ctx is cancelled and Stop is called.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.wg.Add(1)
	go q.dispatch()
}

// Enqueue hands a job to the dispatcher without blocking. It reports false
// when the queue is saturated; the caller records the failure on the
// attempt instead of stalling the mutation path.
func (q *Queue) Enqueue(job Job) bool {
	select {
	case q.ingress <- job:
		return true
	default:
		return false
	}
}

// Stop closes the queue and waits for in-flight deliveries to finish or be
// cancelled.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	close(q.ingress)
	q.wg.Wait()
}

func (q *Queue) dispatch() {
	defer q.wg.Done()
	for job := range q.ingress {
		q.tenantChannel(job.Sub.TenantID) <- job
	}
	q.mu.Lock()
	for _, ch := range q.tenants {
		close(ch)
	}
	q.mu.Unlock()
}

// tenantChannel lazily creates the per-tenant channel and its worker.
func (q *Queue) tenantChannel(tenantID string) chan Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.tenants[tenantID]
	if !ok {
		ch = make(chan Job, q.size)
		q.tenants[tenantID] = ch
		q.wg.Add(1)
		go q.drainTenant(tenantID, ch)
	}
	return ch
}

func (q *Queue) drainTenant(tenantID string, ch chan Job) {
	defer q.wg.Done()
	for job := range ch {
		q.wg.Add(1)
		go func(job Job) {
			defer q.wg.Done()
			q.run(q.ctx, job)
		}(job)
	}
	q.logger.Debug().Str("tenant", tenantID).Msg("tenant delivery channel drained")
}
