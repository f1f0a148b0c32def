package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/teamsync/backend/internal/config"
	"github.com/teamsync/backend/pkg/logger"
)

const (
	TaskTypeBroadcast = "notification:broadcast"
)

// BroadcastTask is a system notification waiting to be fanned out.
// An empty RecipientIDs means every active user.
type BroadcastTask struct {
	Title        string `json:"title"`
	Message      string `json:"message"`
	RecipientIDs []uint `json:"recipient_ids,omitempty"`
	SenderID     uint   `json:"sender_id,omitempty"`
}

// BroadcastProcessor writes the notifications of one task.
type BroadcastProcessor func(context.Context, *BroadcastTask) error

// TaskQueue defines the interface for background notification fan-out
type TaskQueue interface {
	// Enqueue adds a task to the queue
	Enqueue(task *BroadcastTask) error
	// IsAsync returns true if queue processes tasks asynchronously
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

var (
	globalTaskQueue TaskQueue
	taskQueueOnce   sync.Once
)

// InitTaskQueue initializes the global task queue based on config
func InitTaskQueue(cfg *config.Config) TaskQueue {
	taskQueueOnce.Do(func() {
		if cfg.Redis.Enabled {
			queue, err := NewAsyncQueue(&cfg.Redis)
			if err != nil {
				logger.Warn().Err(err).Msg("redis unavailable, falling back to sync task queue")
				globalTaskQueue = NewSyncQueue()
			} else {
				logger.Info().Str("addr", cfg.Redis.Addr).Msg("async task queue initialized")
				globalTaskQueue = queue
			}
		} else {
			logger.Info().Msg("sync task queue initialized (redis disabled)")
			globalTaskQueue = NewSyncQueue()
		}
	})
	return globalTaskQueue
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

// NewAsyncQueue creates a new Redis-based async queue
func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	opt := redisOpt(cfg)
	client := asynq.NewClient(opt)

	// Ping through the inspector before accepting work.
	inspector := asynq.NewInspector(opt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func (q *AsyncQueue) Enqueue(task *BroadcastTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	info, err := q.client.Enqueue(asynq.NewTask(TaskTypeBroadcast, payload),
		asynq.Queue("default"),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}

	logger.Info().Str("task_id", info.ID).Str("queue", info.Queue).Msg("broadcast enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue implements TaskQueue in-process when Redis is not configured.
type SyncQueue struct {
	mu        sync.RWMutex
	processor BroadcastProcessor
	wg        sync.WaitGroup
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

// SetProcessor sets the function that handles enqueued tasks.
func (q *SyncQueue) SetProcessor(processor BroadcastProcessor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processor = processor
}

// Enqueue runs the task on its own goroutine so the caller is not blocked.
func (q *SyncQueue) Enqueue(task *BroadcastTask) error {
	q.mu.RLock()
	processor := q.processor
	q.mu.RUnlock()

	if processor == nil {
		logger.Warn().Str("title", task.Title).Msg("no broadcast processor set, task dropped")
		return nil
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := processor(context.Background(), task); err != nil {
			logger.Error().Err(err).Str("title", task.Title).Msg("broadcast failed")
		}
	}()

	return nil
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

// Close waits for in-flight tasks.
func (q *SyncQueue) Close() error {
	q.wg.Wait()
	return nil
}
