package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/vibelog/backend/internal/logger"
)

// Follow-up task types.
const (
	TaskTranslate = "vibelog:translate"
	TaskIndex     = "vibelog:index"
)

// Task is one unit of follow-up work for a vibelog.
type Task struct {
	Type      string `json:"type"`
	VibelogID string `json:"vibelog_id"`
}

// Dispatcher hands follow-up work off without blocking the request.
type Dispatcher interface {
	Dispatch(ctx context.Context, task Task) error
}

// TaskRunner executes follow-up tasks.
type TaskRunner interface {
	Run(ctx context.Context, task Task) error
}

// JobRunner routes tasks to the translator and the indexer.
type JobRunner struct {
	translator *Translator
	indexer    *Indexer
}

func NewJobRunner(translator *Translator, indexer *Indexer) *JobRunner {
	return &JobRunner{translator: translator, indexer: indexer}
}

func (r *JobRunner) Run(ctx context.Context, task Task) error {
	ctx = logger.SetVibelogID(ctx, task.VibelogID)
	switch task.Type {
	case TaskTranslate:
		return r.translator.TranslateVibelog(ctx, task.VibelogID)
	case TaskIndex:
		return r.indexer.IndexVibelog(ctx, task.VibelogID)
	default:
		return fmt.Errorf("unknown task type %q", task.Type)
	}
}

// InlineDispatcher runs each task on its own goroutine, detached from the
// request. Failures are logged and dropped.
type InlineDispatcher struct {
	runner  TaskRunner
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewInlineDispatcher(runner TaskRunner, timeout time.Duration) *InlineDispatcher {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &InlineDispatcher{runner: runner, timeout: timeout}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, task Task) error {
	jobCtx := logger.SetJobID(context.WithoutCancel(ctx), uuid.NewString())
	jobCtx = logger.SetComponent(jobCtx, "inline-jobs")
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		runCtx, cancel := context.WithTimeout(jobCtx, d.timeout)
		defer cancel()

		start := time.Now()
		err := d.runner.Run(runCtx, task)
		entry := logger.With(logger.Fields{logger.FieldVibelogID: task.VibelogID}).WithDuration(time.Since(start).Milliseconds())
		if err != nil {
			entry.Error(runCtx, "Follow-up task %s failed: %v", task.Type, err)
			return
		}
		entry.Info(runCtx, "Follow-up task %s finished", task.Type)
	}()
	return nil
}

// Wait blocks until every dispatched task has returned.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}

// AsynqDispatcher enqueues tasks on Redis for cmd/worker. Delivery is
// at-least-once, retried up to maxRetry times.
type AsynqDispatcher struct {
	client   *asynq.Client
	queue    string
	maxRetry int
	timeout  time.Duration
}

func NewAsynqDispatcher(client *asynq.Client, queue string, maxRetry int, timeout time.Duration) *AsynqDispatcher {
	return &AsynqDispatcher{client: client, queue: queue, maxRetry: maxRetry, timeout: timeout}
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, task Task) error {
	at, err := NewAsynqTask(task)
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.Queue(d.queue), asynq.MaxRetry(d.maxRetry)}
	if d.timeout > 0 {
		opts = append(opts, asynq.Timeout(d.timeout))
	}
	info, err := d.client.EnqueueContext(ctx, at, opts...)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", task.Type, err)
	}
	logger.CtxDebug(ctx, "Enqueued %s as %s", task.Type, info.ID)
	return nil
}

// NewAsynqTask encodes task for the queue.
func NewAsynqTask(task Task) (*asynq.Task, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task: %w", err)
	}
	return asynq.NewTask(task.Type, payload), nil
}

// NewAsynqMux serves both task types with runner.
func NewAsynqMux(runner TaskRunner) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	handle := func(ctx context.Context, t *asynq.Task) error {
		var task Task
		if err := json.Unmarshal(t.Payload(), &task); err != nil {
			return fmt.Errorf("bad payload for %s: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		task.Type = t.Type()
		ctx = logger.SetComponent(ctx, "worker")
		if id, ok := asynq.GetTaskID(ctx); ok {
			ctx = logger.SetJobID(ctx, id)
		}
		return runner.Run(ctx, task)
	}
	mux.HandleFunc(TaskTranslate, handle)
	mux.HandleFunc(TaskIndex, handle)
	return mux
}

// DispatchAll sends every task and logs failures. Dispatch errors never
// fail the request that produced the vibelog.
func DispatchAll(ctx context.Context, d Dispatcher, tasks ...Task) {
	if d == nil {
		return
	}
	for _, t := range tasks {
		if err := d.Dispatch(ctx, t); err != nil {
			logger.CtxError(ctx, "Failed to dispatch %s for %s: %v", t.Type, t.VibelogID, err)
		}
	}
}
