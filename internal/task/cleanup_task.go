package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sharelink/internal/storage"
	"sharelink/utils"

	"go.uber.org/zap"
)

// CleanupMessage asks the worker to delete blobs that no link references.
type CleanupMessage struct {
	ID        string    `json:"id"`
	Keys      []string  `json:"keys"`
	Reason    string    `json:"reason"`
	Attempt   int       `json:"attempt"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskPublisher is the queue side of QueueCleaner.
type TaskPublisher interface {
	PublishTask(ctx context.Context, body []byte) error
}

// QueueCleaner hands orphaned keys to the cleanup worker. When the broker is unreachable
// it deletes them inline instead.
type QueueCleaner struct {
	publisher TaskPublisher
	blobs     storage.Store
}

func NewQueueCleaner(publisher TaskPublisher, blobs storage.Store) *QueueCleaner {
	return &QueueCleaner{publisher: publisher, blobs: blobs}
}

func NewCleanupMessage(keys []string, reason string) CleanupMessage {
	return CleanupMessage{
		ID:        utils.GetToken(),
		Keys:      keys,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
}

func (q *QueueCleaner) Cleanup(ctx context.Context, keys []string, reason string) error {
	if len(keys) == 0 {
		return nil
	}
	msg := NewCleanupMessage(keys, reason)
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	err = q.publisher.PublishTask(ctx, body)
	if err == nil {
		utils.Log.Info("cleanup enqueued", zap.String("id", msg.ID), zap.Int("keys", len(keys)), zap.String("reason", reason))
		return nil
	}
	utils.Log.Warn("cleanup enqueue failed, deleting inline", zap.String("id", msg.ID), zap.Error(err))
	if _, inlineErr := ProcessCleanup(ctx, q.blobs, &msg); inlineErr != nil {
		return errors.Join(fmt.Errorf("enqueue: %w", err), inlineErr)
	}
	return nil
}

// ProcessCleanup deletes every key of msg. It returns the keys that could not be deleted.
func ProcessCleanup(ctx context.Context, blobs storage.Store, msg *CleanupMessage) ([]string, error) {
	var remaining []string
	var errs []error
	for i, key := range msg.Keys {
		if err := ctx.Err(); err != nil {
			return append(remaining, msg.Keys[i:]...), err
		}
		if err := blobs.RemoveObject(ctx, key); err != nil {
			remaining = append(remaining, key)
			errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
		}
	}
	return remaining, errors.Join(errs...)
}
