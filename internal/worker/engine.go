package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/crosslister/dispatch-be/internal/jobstore"
	"github.com/crosslister/dispatch-be/shared/rabbitmq"
	"github.com/google/uuid"
)

// Store is the slice of the job store contract the engine needs.
type Store interface {
	Get(ctx context.Context, jobID string) (*jobstore.Job, error)
	Transition(ctx context.Context, jobIDs []string, from, to jobstore.Status, errMsg string) ([]string, error)
	RecordAttempt(ctx context.Context, jobID string, attempt int, errMsg string) error
	MarkTerminal(ctx context.Context, jobID string, status jobstore.Status, outcome jobstore.Outcome) error
}

// JobMessage is the queue message that triggers server-side execution. Only
// the id travels on the wire; the job row is the source of truth.
type JobMessage struct {
	JobID       string `json:"job_id"`
	DeliveryTag uint64 `json:"-"`
}

// RetryableError wraps transient executor failures that should be retried
// with backoff.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError marks err as worth another attempt.
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err carries a RetryableError anywhere in its
// chain.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Config holds engine configuration.
type Config struct {
	Logger        *slog.Logger
	Store         Store
	RabbitClient  *rabbitmq.Client
	Executors     *Registry
	Concurrency   int
	PrefetchCount int
	MaxAttempts   int
	BackoffBase   time.Duration
	JobTimeout    time.Duration
}

// Engine drains worker-target jobs from RabbitMQ with a goroutine pool,
// executing each with retry and exponential backoff.
type Engine struct {
	logger        *slog.Logger
	store         Store
	rabbitClient  *rabbitmq.Client
	executors     *Registry
	concurrency   int
	prefetchCount int
	maxAttempts   int
	backoffBase   time.Duration
	jobTimeout    time.Duration

	workerID string
	jobsChan chan *JobMessage
	wg       sync.WaitGroup
	stopChan chan struct{}
}

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = 5 * time.Second
)

// NewEngine creates a queue engine.
func NewEngine(cfg *Config) *Engine {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	backoffBase := cfg.BackoffBase
	if backoffBase <= 0 {
		backoffBase = defaultBackoffBase
	}

	return &Engine{
		logger:        cfg.Logger,
		store:         cfg.Store,
		rabbitClient:  cfg.RabbitClient,
		executors:     cfg.Executors,
		concurrency:   cfg.Concurrency,
		prefetchCount: cfg.PrefetchCount,
		maxAttempts:   maxAttempts,
		backoffBase:   backoffBase,
		jobTimeout:    cfg.JobTimeout,
		workerID:      "worker-" + uuid.New().String()[:8],
		jobsChan:      make(chan *JobMessage),
		stopChan:      make(chan struct{}),
	}
}

// Start consumes job messages and processes them until ctx is canceled.
func (e *Engine) Start(ctx context.Context) error {
	e.logger.Info("Starting queue engine",
		slog.String("worker_id", e.workerID),
		slog.Int("concurrency", e.concurrency),
		slog.Int("max_attempts", e.maxAttempts),
		slog.Duration("backoff_base", e.backoffBase),
	)

	deliveries, err := e.setupConsumer()
	if err != nil {
		return err
	}

	e.spawnPool(ctx)
	go e.dispatch(ctx, deliveries)

	<-ctx.Done()
	e.logger.Info("Queue engine context canceled, stopping...")
	return nil
}

// Stop waits for in-flight jobs to finish.
func (e *Engine) Stop() {
	e.logger.Info("Stopping queue engine...")
	close(e.stopChan)
	e.wg.Wait()
	e.logger.Info("Queue engine stopped")
}

// spawnPool starts the worker goroutines.
func (e *Engine) spawnPool(ctx context.Context) {
	for i := 0; i < e.concurrency; i++ {
		e.wg.Add(1)
		go e.workerLoop(ctx, i)
	}

	e.logger.Info("Worker pool spawned",
		slog.Int("worker_count", e.concurrency),
	)
}

// workerLoop drains the jobs channel and ACKs/NACKs based on the processing
// outcome. Only transient infrastructure errors requeue the message; job
// failures reach a terminal status in the store and are ACKed.
func (e *Engine) workerLoop(ctx context.Context, workerNum int) {
	defer e.wg.Done()

	for {
		select {
		case <-e.stopChan:
			return

		case <-ctx.Done():
			return

		case msg, ok := <-e.jobsChan:
			if !ok {
				return
			}

			err := e.processJob(ctx, msg)

			channel := e.rabbitClient.GetChannel()
			if channel == nil {
				e.logger.Error("No RabbitMQ channel for ACK/NACK",
					slog.String("job_id", msg.JobID),
					slog.Int("worker_num", workerNum),
				)
				continue
			}

			if err != nil {
				requeue := IsRetryable(err)
				e.logger.Error("Job processing failed",
					slog.String("job_id", msg.JobID),
					slog.Bool("requeue", requeue),
					slog.String("error", err.Error()),
				)
				if nackErr := channel.Nack(msg.DeliveryTag, false, requeue); nackErr != nil {
					e.logger.Error("Failed to NACK message",
						slog.String("job_id", msg.JobID),
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			if ackErr := channel.Ack(msg.DeliveryTag, false); ackErr != nil {
				e.logger.Error("Failed to ACK message",
					slog.String("job_id", msg.JobID),
					slog.String("error", ackErr.Error()),
				)
			}
		}
	}
}
