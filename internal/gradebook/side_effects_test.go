package gradebook

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/edu-vault/backend/internal/models"
	"github.com/edu-vault/backend/internal/rules"
)

type fakeStore struct {
	mu         sync.Mutex
	advanced   []models.LearningMode
	descs      []models.AttemptDescription
	replaced   int
	nextSet    []string
	mastery    []models.TopicMastery
	failSetErr error
}

func (s *fakeStore) AdvanceAttempt(ctx context.Context, userID, topicID int64, mode models.LearningMode, desc models.AttemptDescription) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanced = append(s.advanced, mode)
	s.descs = append(s.descs, desc)
	return "v2.0.0", nil
}

func (s *fakeStore) ReplaceQuestionSet(ctx context.Context, userID, topicID int64, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSetErr != nil {
		return s.failSetErr
	}
	s.replaced++
	s.nextSet = ids
	return nil
}

func (s *fakeStore) SaveTopicMastery(ctx context.Context, m models.TopicMastery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mastery = append(s.mastery, m)
	return nil
}

type fakeTx struct {
	store      *fakeStore
	committed  bool
	rolledBack bool
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(Store) error) error {
	if err := fn(f.store); err != nil {
		f.rolledBack = true
		return err
	}
	f.committed = true
	return nil
}

type fakeGuard struct {
	mu      sync.Mutex
	grading bool
	exits   int
	err     error
}

func (g *fakeGuard) EnterGradingMode(ctx context.Context, userID, topicID int64) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return false, g.err
	}
	if g.grading {
		return false, nil
	}
	g.grading = true
	return true, nil
}

// ExitGradingMode fails on a done context the way a database call would.
func (g *fakeGuard) ExitGradingMode(ctx context.Context, userID, topicID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.grading = false
	g.exits++
	return nil
}

type fakeRecorder struct {
	mu        sync.Mutex
	summaries []models.EvaluationSummary
}

func (r *fakeRecorder) RecordEvaluation(ctx context.Context, userID int64, blockID string, s models.EvaluationSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, s)
	return nil
}

// blockingObserver waits until every observer in the batch has started.
type blockingObserver struct {
	name    string
	started *sync.WaitGroup
}

func (b blockingObserver) Name() string { return b.name }

func (b blockingObserver) Notify(ctx context.Context, _ Store, _ *SideEffectJob) error {
	b.started.Done()
	done := make(chan struct{})
	go func() {
		b.started.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(2 * time.Second):
		return errors.New("observers did not run concurrently")
	}
}

// untilDoneObserver holds the batch open until its context ends.
type untilDoneObserver struct{}

func (untilDoneObserver) Name() string { return "until_done" }

func (untilDoneObserver) Notify(ctx context.Context, _ Store, _ *SideEffectJob) error {
	<-ctx.Done()
	return ctx.Err()
}

func failedJob() *SideEffectJob {
	return &SideEffectJob{
		ID:     "job-1",
		Target: Target{UserID: 7, TopicID: 11, BlockID: "block-v1:x", Mode: models.ModeNormal},
		Result: models.EvaluationResult{
			Status: StatusSuccess,
			Passed: false,
			NextMode: models.NextMode{
				ModeName:     models.ModeReinforcement,
				Guidance:     "To advance, correctly answer at least 3 out of 3 questions.",
				ModeGuidance: "Focus on completing questions in areas where you had difficulty.",
			},
			PerformanceStats: &models.PerformanceStats{FailedDifficulties: []models.Difficulty{models.DifficultyHard}},
		},
	}
}

func TestProcessNotifiesAllObservers(t *testing.T) {
	store := &fakeStore{}
	tx := &fakeTx{store: store}
	guard := &fakeGuard{grading: true}
	recorder := &fakeRecorder{}
	m := NewSideEffectManager(tx, guard, recorder)

	if err := m.Process(context.Background(), failedJob()); err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if !tx.committed {
		t.Error("transaction not committed")
	}
	if len(store.advanced) != 1 || store.advanced[0] != models.ModeReinforcement {
		t.Errorf("advanced = %v, want [reinforcement]", store.advanced)
	}
	if store.descs[0].Status != "Not Started" {
		t.Errorf("description status = %q, want Not Started", store.descs[0].Status)
	}
	if store.replaced != 1 || len(store.nextSet) != 0 {
		t.Errorf("question set replaced %d times with %v, want emptied once", store.replaced, store.nextSet)
	}
	if len(store.mastery) != 1 || store.mastery[0].PointsEarned != 66 {
		t.Errorf("mastery = %+v, want 66 points", store.mastery)
	}
	if len(recorder.summaries) != 1 || recorder.summaries[0].NextMode != models.ModeReinforcement {
		t.Errorf("history summaries = %+v", recorder.summaries)
	}
	if guard.grading || guard.exits != 1 {
		t.Errorf("grading=%v exits=%d, want flag cleared once", guard.grading, guard.exits)
	}
}

func TestProcessRunsObserversConcurrently(t *testing.T) {
	var started sync.WaitGroup
	started.Add(3)

	m := &SideEffectManager{tx: &fakeTx{store: &fakeStore{}}, guard: &fakeGuard{}}
	for _, name := range []string{"a", "b", "c"} {
		m.Register(blockingObserver{name: name, started: &started})
	}

	if err := m.Process(context.Background(), failedJob()); err != nil {
		t.Fatalf("Process error: %v", err)
	}
}

func TestProcessFailureWrapsAndClearsFlag(t *testing.T) {
	boom := errors.New("constraint violation")
	store := &fakeStore{failSetErr: boom}
	tx := &fakeTx{store: store}
	guard := &fakeGuard{grading: true}
	m := NewSideEffectManager(tx, guard, nil)

	err := m.Process(context.Background(), failedJob())
	if !errors.Is(err, models.ErrProcessingFailed) {
		t.Errorf("Process error = %v, want ErrProcessingFailed", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Process error = %v, want wrapped %v", err, boom)
	}
	if !tx.rolledBack {
		t.Error("transaction not rolled back")
	}
	if guard.grading {
		t.Error("grading flag left set after failure")
	}
}

func TestProcessClearsFlagAfterJobDeadline(t *testing.T) {
	guard := &fakeGuard{grading: true}
	m := &SideEffectManager{tx: &fakeTx{store: &fakeStore{}}, guard: guard}
	m.Register(untilDoneObserver{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.Process(ctx, failedJob())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Process error = %v, want DeadlineExceeded", err)
	}
	if guard.grading || guard.exits != 1 {
		t.Errorf("grading=%v exits=%d, want flag cleared once after the deadline", guard.grading, guard.exits)
	}
}

func TestQuestionSetObserverUsesRecommendations(t *testing.T) {
	tests := []struct {
		name string
		rec  *models.Recommendation
		want []string
	}{
		{"no recommendation empties the set", nil, nil},
		{
			"stored questions become the next set",
			&models.Recommendation{Questions: []models.Question{{ID: "65f0aa"}, {ID: "65f0bb"}}},
			[]string{"65f0aa", "65f0bb"},
		},
		{
			"unsaved questions are skipped",
			&models.Recommendation{Questions: []models.Question{{ID: "65f0aa"}, {Text: "unsaved"}}},
			[]string{"65f0aa"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			job := failedJob()
			job.Result.AIRecommendation = tt.rec
			if err := (QuestionSetObserver{}).Notify(context.Background(), store, job); err != nil {
				t.Fatalf("Notify error: %v", err)
			}
			if len(store.nextSet) != len(tt.want) {
				t.Fatalf("next set = %v, want %v", store.nextSet, tt.want)
			}
			for i := range tt.want {
				if store.nextSet[i] != tt.want[i] {
					t.Errorf("next set = %v, want %v", store.nextSet, tt.want)
				}
			}
		})
	}
}

func TestRecommendedSetSurvivesQueue(t *testing.T) {
	job := failedJob()
	job.Result.AIRecommendation = &models.Recommendation{Questions: []models.Question{{ID: "65f0aa"}}}
	body, err := json.Marshal(job)
	if err != nil {
		t.Fatal(err)
	}

	store := &fakeStore{}
	m := NewSideEffectManager(&fakeTx{store: store}, &fakeGuard{}, nil)
	if err := m.HandleMessage(context.Background(), body); err != nil {
		t.Fatalf("HandleMessage error: %v", err)
	}
	if len(store.nextSet) != 1 || store.nextSet[0] != "65f0aa" {
		t.Errorf("next set = %v, want [65f0aa]", store.nextSet)
	}
}

func TestRegisterIgnoresDuplicateNames(t *testing.T) {
	m := NewSideEffectManager(&fakeTx{store: &fakeStore{}}, &fakeGuard{}, &fakeRecorder{})
	m.Register(UserAttemptObserver{})
	if n := len(m.snapshot()); n != 4 {
		t.Errorf("observer count = %d, want 4", n)
	}
	m.Unregister("learning_history")
	if n := len(m.snapshot()); n != 3 {
		t.Errorf("observer count after unregister = %d, want 3", n)
	}
}

func TestHandleMessageDecodesJob(t *testing.T) {
	store := &fakeStore{}
	m := NewSideEffectManager(&fakeTx{store: store}, &fakeGuard{}, nil)

	body, err := json.Marshal(failedJob())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.HandleMessage(context.Background(), body); err != nil {
		t.Fatalf("HandleMessage error: %v", err)
	}
	if store.replaced != 1 {
		t.Errorf("question set replaced %d times, want 1", store.replaced)
	}

	if err := m.HandleMessage(context.Background(), []byte("{not json")); !errors.Is(err, models.ErrValidation) {
		t.Errorf("HandleMessage(bad) error = %v, want ErrValidation", err)
	}
}

type recordingDispatcher struct {
	jobs []*SideEffectJob
	err  error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, job *SideEffectJob) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

type memoryCache struct {
	saved map[int64]*models.EvaluationResult
}

func (c *memoryCache) SaveEvaluation(ctx context.Context, userID, topicID int64, r *models.EvaluationResult) error {
	if c.saved == nil {
		c.saved = map[int64]*models.EvaluationResult{}
	}
	c.saved[topicID] = r
	return nil
}

func TestEvaluateAndProcessDispatchesOnce(t *testing.T) {
	guard := &fakeGuard{}
	disp := &recordingDispatcher{}
	cache := &memoryCache{}
	pm := NewProgressManager(rules.NewRegistry(), guard, disp, cache)
	target := Target{UserID: 1, TopicID: 2, Mode: models.ModeNormal}

	firstSrc := &splitSource{report: report(models.DifficultyHard)}
	first, err := pm.EvaluateAndProcess(context.Background(), target, firstSrc)
	if err != nil {
		t.Fatal(err)
	}
	secondSrc := &splitSource{report: report(models.DifficultyHard)}
	second, err := pm.EvaluateAndProcess(context.Background(), target, secondSrc)
	if err != nil {
		t.Fatal(err)
	}

	if len(disp.jobs) != 1 {
		t.Fatalf("dispatched %d jobs, want 1", len(disp.jobs))
	}
	if disp.jobs[0].ID == "" {
		t.Error("job ID is empty")
	}
	if firstSrc.full != 1 || firstSrc.readOnly != 0 {
		t.Errorf("first pass: full=%d read-only=%d, want 1 and 0", firstSrc.full, firstSrc.readOnly)
	}
	if secondSrc.full != 0 || secondSrc.readOnly != 1 {
		t.Errorf("second pass: full=%d read-only=%d, want 0 and 1", secondSrc.full, secondSrc.readOnly)
	}
	if first.NextMode.ModeName != second.NextMode.ModeName {
		t.Errorf("short-circuited result next mode = %s, want %s", second.NextMode.ModeName, first.NextMode.ModeName)
	}
	if cache.saved[2] != first {
		t.Error("cached evaluation is not the dispatched one")
	}
}

func TestEvaluateAndProcessShortCircuitWithPlainSource(t *testing.T) {
	guard := &fakeGuard{grading: true}
	disp := &recordingDispatcher{}
	src := &fakeSource{report: report()}
	pm := NewProgressManager(rules.NewRegistry(), guard, disp, nil)

	result, err := pm.EvaluateAndProcess(context.Background(), Target{UserID: 1, TopicID: 2, Mode: models.ModeNormal}, src)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Passed || src.calls != 1 {
		t.Errorf("passed=%v calls=%d, want a passing grade from one call", result.Passed, src.calls)
	}
	if len(disp.jobs) != 0 || !guard.grading {
		t.Errorf("jobs=%d grading=%v, want no dispatch and the flag untouched", len(disp.jobs), guard.grading)
	}
}

func TestEvaluateAndProcessReleasesFlag(t *testing.T) {
	tests := []struct {
		name    string
		source  *fakeSource
		disp    func(cancel context.CancelFunc) Dispatcher
		wantErr error
	}{
		{
			name:    "failed evaluation",
			source:  &fakeSource{err: models.ErrValidation},
			disp:    func(context.CancelFunc) Dispatcher { return &recordingDispatcher{} },
			wantErr: models.ErrValidation,
		},
		{
			name:    "failed dispatch",
			source:  &fakeSource{report: report()},
			disp:    func(context.CancelFunc) Dispatcher { return &recordingDispatcher{err: errors.New("broker unreachable")} },
			wantErr: models.ErrProcessingFailed,
		},
		{
			name:   "failed dispatch after the request ended",
			source: &fakeSource{report: report()},
			disp: func(cancel context.CancelFunc) Dispatcher {
				return cancellingDispatcher{cancel: cancel}
			},
			wantErr: models.ErrProcessingFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			guard := &fakeGuard{}
			pm := NewProgressManager(rules.NewRegistry(), guard, tt.disp(cancel), nil)

			_, err := pm.EvaluateAndProcess(ctx, Target{UserID: 1, TopicID: 2, Mode: models.ModeNormal}, tt.source)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if guard.grading || guard.exits != 1 {
				t.Errorf("grading=%v exits=%d, want flag released once", guard.grading, guard.exits)
			}
		})
	}
}

// splitSource counts full and read-only grades separately.
type splitSource struct {
	report   *models.PerformanceReport
	full     int
	readOnly int
}

func (s *splitSource) Evaluate(ctx context.Context, mode models.LearningMode) (*models.PerformanceReport, error) {
	s.full++
	return s.report, nil
}

func (s *splitSource) EvaluateReadOnly(ctx context.Context, mode models.LearningMode) (*models.PerformanceReport, error) {
	s.readOnly++
	return s.report, nil
}

// cancellingDispatcher ends the caller's context and then fails.
type cancellingDispatcher struct {
	cancel context.CancelFunc
}

func (d cancellingDispatcher) Dispatch(ctx context.Context, job *SideEffectJob) error {
	d.cancel()
	return context.Canceled
}

func TestQueueDispatcherPublishesJSON(t *testing.T) {
	pub := &capturePublisher{}
	d := NewQueueDispatcher(pub)
	if err := d.Dispatch(context.Background(), failedJob()); err != nil {
		t.Fatal(err)
	}
	if pub.key != SideEffectRoutingKey {
		t.Errorf("routing key = %q, want %q", pub.key, SideEffectRoutingKey)
	}
	var job SideEffectJob
	if err := json.Unmarshal(pub.body, &job); err != nil {
		t.Fatalf("published body is not a job: %v", err)
	}
	if job.Target.TopicID != 11 {
		t.Errorf("TopicID = %d, want 11", job.Target.TopicID)
	}
}

type capturePublisher struct {
	key  string
	body []byte
}

func (p *capturePublisher) Publish(ctx context.Context, key string, body []byte) error {
	p.key = key
	p.body = body
	return nil
}
