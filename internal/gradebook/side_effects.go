package gradebook

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edu-vault/backend/internal/metrics"
	"github.com/edu-vault/backend/internal/models"
)

// SideEffectJob is the unit of work handed to the background worker.
type SideEffectJob struct {
	ID         string                  `json:"id"`
	Target     Target                  `json:"target"`
	Result     models.EvaluationResult `json:"result"`
	EnqueuedAt time.Time               `json:"enqueued_at"`
}

// TxRunner runs fn inside a single transaction, committing when it returns nil.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(Store) error) error
}

// GradingGuard is the per-(user, topic) grading mode flag.
type GradingGuard interface {
	// EnterGradingMode sets the flag and reports whether this call set it.
	EnterGradingMode(ctx context.Context, userID, topicID int64) (bool, error)
	ExitGradingMode(ctx context.Context, userID, topicID int64) error
}

type SideEffectManager struct {
	tx    TxRunner
	guard GradingGuard

	mu        sync.RWMutex
	observers []Observer
}

// NewSideEffectManager registers the attempt, question set and mastery
// observers, plus the learning history observer when recorder is non-nil.
func NewSideEffectManager(tx TxRunner, guard GradingGuard, recorder HistoryRecorder) *SideEffectManager {
	m := &SideEffectManager{tx: tx, guard: guard}
	m.Register(UserAttemptObserver{})
	m.Register(QuestionSetObserver{})
	m.Register(TopicMasteryObserver{})
	if recorder != nil {
		m.Register(NewLearningHistoryObserver(recorder))
	}
	return m
}

// Register adds an observer unless one with the same name is present.
func (m *SideEffectManager) Register(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.observers {
		if existing.Name() == o.Name() {
			return
		}
	}
	m.observers = append(m.observers, o)
}

func (m *SideEffectManager) Unregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, o := range m.observers {
		if o.Name() == name {
			m.observers = append(m.observers[:i], m.observers[i+1:]...)
			return
		}
	}
}

func (m *SideEffectManager) snapshot() []Observer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Observer, len(m.observers))
	copy(out, m.observers)
	return out
}

// Process notifies every observer concurrently inside one transaction and
// waits for all of them. The grading flag is cleared once the batch has
// finished, whether or not it succeeded, even when ctx is already done.
func (m *SideEffectManager) Process(ctx context.Context, job *SideEffectJob) error {
	observers := m.snapshot()

	err := m.tx.WithinTx(ctx, func(store Store) error {
		g, gctx := errgroup.WithContext(ctx)
		for _, o := range observers {
			o := o
			g.Go(func() error {
				start := time.Now()
				err := o.Notify(gctx, store, job)
				metrics.ObserveSideEffect(o.Name(), time.Since(start), err)
				if err != nil {
					log.Printf("[gradebook] observer %s failed for user %d topic %d: %v",
						o.Name(), job.Target.UserID, job.Target.TopicID, err)
					return fmt.Errorf("observer %s: %w", o.Name(), err)
				}
				return nil
			})
		}
		return g.Wait()
	})

	if exitErr := exitGradingMode(ctx, m.guard, job.Target); exitErr != nil {
		log.Printf("[gradebook] clearing grading mode for user %d topic %d: %v",
			job.Target.UserID, job.Target.TopicID, exitErr)
		if err == nil {
			err = exitErr
		}
	}

	if err != nil {
		log.Printf("[gradebook] side effects for job %s failed: %v", job.ID, err)
		return fmt.Errorf("%w: job %s: %w", models.ErrProcessingFailed, job.ID, err)
	}
	return nil
}

// releaseTimeout bounds the flag release once the caller's context is gone.
const releaseTimeout = 5 * time.Second

// exitGradingMode clears the flag on a context that keeps ctx's values but
// not its cancellation.
func exitGradingMode(ctx context.Context, guard GradingGuard, target Target) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	return guard.ExitGradingMode(ctx, target.UserID, target.TopicID)
}

// HandleMessage decodes a queued job and processes it.
func (m *SideEffectManager) HandleMessage(ctx context.Context, body []byte) error {
	var job SideEffectJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("%w: decode side effect job: %v", models.ErrValidation, err)
	}
	return m.Process(ctx, &job)
}
