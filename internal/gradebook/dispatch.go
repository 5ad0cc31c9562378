package gradebook

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// Dispatcher hands a side-effect job to whatever runs it in the background.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *SideEffectJob) error
}

// Publisher is the message broker surface QueueDispatcher needs.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

const SideEffectRoutingKey = "grading.side_effects"

type QueueDispatcher struct {
	publisher Publisher
}

func NewQueueDispatcher(publisher Publisher) *QueueDispatcher {
	return &QueueDispatcher{publisher: publisher}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, job *SideEffectJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode side effect job: %w", err)
	}
	if err := d.publisher.Publish(ctx, SideEffectRoutingKey, body); err != nil {
		return fmt.Errorf("publish side effect job %s: %w", job.ID, err)
	}
	return nil
}

// GoroutineDispatcher runs jobs in-process. Used when no broker is configured.
type GoroutineDispatcher struct {
	manager *SideEffectManager
	timeout time.Duration
}

func NewGoroutineDispatcher(manager *SideEffectManager, timeout time.Duration) *GoroutineDispatcher {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &GoroutineDispatcher{manager: manager, timeout: timeout}
}

func (d *GoroutineDispatcher) Dispatch(_ context.Context, job *SideEffectJob) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.manager.Process(ctx, job); err != nil {
			log.Printf("[gradebook] background side effects: %v", err)
		}
	}()
	return nil
}
