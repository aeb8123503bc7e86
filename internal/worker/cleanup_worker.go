package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"sharelink/config"
	"sharelink/internal/mq"
	"sharelink/internal/storage"
	"sharelink/internal/task"
	"sharelink/utils"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type dlqMessage struct {
	task.CleanupMessage
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

type retryPublisher interface {
	PublishRetry(ctx context.Context, body []byte, delay time.Duration) error
	PublishDLQ(ctx context.Context, body []byte) error
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

type cleanupHandler struct {
	blobs       storage.Store
	publisher   retryPublisher
	limiter     *rate.Limiter
	maxRetry    int
	retryDelays []time.Duration
}

func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if burst <= 0 {
		burst = 1
	}
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// RunCleanupWorker consumes cleanup messages until ctx is done.
func RunCleanupWorker(ctx context.Context, cfg *config.Config, blobs storage.Store) error {
	client, err := mq.Dial(cfg.RabbitMQURL)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.DeclareTopology(); err != nil {
		return err
	}
	prefetch := max(cfg.RabbitMQPrefetch, 1)
	if err := client.Channel.Qos(prefetch, 0, false); err != nil {
		return err
	}
	deliveries, err := client.Channel.Consume(mq.QueueCleanup, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	h := &cleanupHandler{
		blobs:       blobs,
		publisher:   client,
		limiter:     newLimiter(cfg.CleanupRate, cfg.CleanupBurst),
		maxRetry:    cfg.CleanupRetryMax,
		retryDelays: cfg.CleanupRetryDelays,
	}

	utils.Log.Info("cleanup worker started", zap.String("queue", mq.QueueCleanup), zap.Int("prefetch", prefetch))
	return consume(ctx, deliveries, h, cfg.CleanupWorkerConcurrency)
}

// consume runs up to concurrency handlers at once and returns only after every
// handler it started has acked or nacked its delivery.
func consume(ctx context.Context, deliveries <-chan amqp.Delivery, h *cleanupHandler, concurrency int) error {
	sem := make(chan struct{}, max(concurrency, 1))
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("cleanup worker: delivery channel closed")
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				_ = delivery.Nack(false, true)
				return nil
			}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer wg.Done()
				defer func() { <-sem }()
				h.handle(ctx, d.Body, d)
			}(delivery)
		}
	}
}

func (h *cleanupHandler) handle(ctx context.Context, body []byte, ack acknowledger) {
	var msg task.CleanupMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		utils.Log.Warn("cleanup worker: invalid message", zap.Error(err))
		_ = ack.Ack(false)
		return
	}

	if err := h.limiter.Wait(ctx); err != nil {
		_ = ack.Nack(false, true)
		return
	}

	remaining, err := task.ProcessCleanup(ctx, h.blobs, &msg)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			_ = ack.Nack(false, true)
			return
		}
		msg.Keys = remaining
		if err := h.scheduleRetry(ctx, msg, err); err != nil {
			utils.Log.Warn("cleanup worker: retry schedule failed", zap.String("id", msg.ID), zap.Error(err))
			_ = ack.Nack(false, true)
			return
		}
	} else {
		utils.Log.Info("cleanup done", zap.String("id", msg.ID), zap.Int("keys", len(msg.Keys)))
	}
	_ = ack.Ack(false)
}

func (h *cleanupHandler) scheduleRetry(ctx context.Context, msg task.CleanupMessage, procErr error) error {
	next := msg.Attempt + 1
	if h.maxRetry <= 0 || next > h.maxRetry {
		return h.deadLetter(ctx, msg, procErr)
	}
	delay := pickRetryDelay(next, h.retryDelays)
	msg.Attempt = next
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	utils.Log.Info("cleanup retry scheduled",
		zap.String("id", msg.ID),
		zap.Int("attempt", next),
		zap.Duration("delay", delay),
		zap.Error(procErr),
	)
	return h.publisher.PublishRetry(ctx, body, delay)
}

func (h *cleanupHandler) deadLetter(ctx context.Context, msg task.CleanupMessage, procErr error) error {
	body, err := json.Marshal(dlqMessage{
		CleanupMessage: msg,
		Error:          procErr.Error(),
		FailedAt:       time.Now(),
	})
	if err != nil {
		return err
	}
	utils.Log.Error("cleanup gave up", zap.String("id", msg.ID), zap.Strings("keys", msg.Keys), zap.Error(procErr))
	return h.publisher.PublishDLQ(ctx, body)
}

func pickRetryDelay(attempt int, delays []time.Duration) time.Duration {
	if len(delays) == 0 {
		return 0
	}
	index := max(attempt-1, 0)
	if index >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[index]
}
