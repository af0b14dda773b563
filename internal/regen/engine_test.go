package regen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/eweinhaus/VideoGen-sub002/internal/domain"
	"github.com/eweinhaus/VideoGen-sub002/internal/infra"
	"github.com/eweinhaus/VideoGen-sub002/internal/pipeline"
	"github.com/eweinhaus/VideoGen-sub002/internal/providers/media"
	"github.com/eweinhaus/VideoGen-sub002/internal/providers/prompt"
	"github.com/eweinhaus/VideoGen-sub002/internal/queue"
)

// memRepo backs every repository interface with maps, mirroring the SQL
// store's conflict and not-found behavior.
type memRepo struct {
	mu       sync.Mutex
	jobs     map[string]*domain.Job
	stages   map[string]*domain.StageRecord
	versions map[string][]domain.ClipVersion
	events   []domain.RegenerationEvent
	locks    map[string]*domain.RegenLock
}

func newMemRepo() *memRepo {
	return &memRepo{
		jobs:     make(map[string]*domain.Job),
		stages:   make(map[string]*domain.StageRecord),
		versions: make(map[string][]domain.ClipVersion),
		locks:    make(map[string]*domain.RegenLock),
	}
}

func lockKey(jobID string, clipIndex int) string {
	return fmt.Sprintf("%s/%d", jobID, clipIndex)
}

func (m *memRepo) Create(ctx context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *memRepo) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (m *memRepo) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = status
	return nil
}

func (m *memRepo) SetProgress(ctx context.Context, jobID string, progress int, stage *domain.StageName, remainingSeconds *int) error {
	return nil
}

func (m *memRepo) AddCost(ctx context.Context, jobID string, delta float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.TotalCost += delta
	return nil
}

func (m *memRepo) SetResult(ctx context.Context, jobID string, videoURL string, duration float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.VideoURL = videoURL
	job.Duration = duration
	return nil
}

func (m *memRepo) Start(ctx context.Context, jobID string, stage domain.StageName) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages[jobID+"/"+string(stage)] = &domain.StageRecord{JobID: jobID, Stage: stage, Status: domain.StageStatusProcessing}
	return nil
}

func (m *memRepo) Complete(ctx context.Context, jobID string, stage domain.StageName, metadata []byte, cost float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages[jobID+"/"+string(stage)] = &domain.StageRecord{
		JobID:    jobID,
		Stage:    stage,
		Status:   domain.StageStatusCompleted,
		Metadata: metadata,
		Cost:     cost,
	}
	return nil
}

func (m *memRepo) Fail(ctx context.Context, jobID string, stage domain.StageName, message string) error {
	return nil
}

func (m *memRepo) Get(ctx context.Context, jobID string, stage domain.StageName) (*domain.StageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.stages[jobID+"/"+string(stage)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (m *memRepo) ListByJob(ctx context.Context, jobID string) ([]domain.StageRecord, error) {
	return nil, nil
}

func (m *memRepo) Append(ctx context.Context, v *domain.ClipVersion) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := lockKey(v.JobID, v.ClipIndex)
	list := m.versions[key]
	next := 1
	for i := range list {
		if list[i].VersionNumber >= next {
			next = list[i].VersionNumber + 1
		}
		list[i].IsCurrent = false
	}
	stored := *v
	stored.VersionNumber = next
	stored.IsCurrent = true
	m.versions[key] = append(list, stored)
	return next, nil
}

func (m *memRepo) SetCurrent(ctx context.Context, jobID string, clipIndex, versionNumber int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.versions[lockKey(jobID, clipIndex)]
	found := false
	for i := range list {
		if list[i].VersionNumber == versionNumber {
			found = true
		}
	}
	if !found {
		return domain.ErrNotFound
	}
	for i := range list {
		list[i].IsCurrent = list[i].VersionNumber == versionNumber
	}
	return nil
}

func (m *memRepo) Current(ctx context.Context, jobID string, clipIndex int) (*domain.ClipVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.versions[lockKey(jobID, clipIndex)] {
		if v.IsCurrent {
			copied := v
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memRepo) ListByClip(ctx context.Context, jobID string, clipIndex int) ([]domain.ClipVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.versions[lockKey(jobID, clipIndex)]
	out := make([]domain.ClipVersion, len(list))
	copy(out, list)
	return out, nil
}

func (m *memRepo) ListCurrentByJob(ctx context.Context, jobID string) ([]domain.ClipVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ClipVersion
	for _, list := range m.versions {
		for _, v := range list {
			if v.JobID == jobID && v.IsCurrent {
				out = append(out, v)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClipIndex < out[j].ClipIndex })
	return out, nil
}

func (m *memRepo) AppendEvent(ctx context.Context, ev *domain.RegenerationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *ev
	stored.CreatedAt = time.Now()
	m.events = append(m.events, stored)
	return nil
}

func (m *memRepo) TotalCost(ctx context.Context, jobID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total float64
	for _, ev := range m.events {
		if ev.JobID == jobID && ev.Success {
			total += ev.Cost
		}
	}
	return total, nil
}

func (m *memRepo) Stats(ctx context.Context) (*domain.RegenerationStats, error) {
	return &domain.RegenerationStats{}, nil
}

func (m *memRepo) AcquireLock(ctx context.Context, lock *domain.RegenLock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := lockKey(lock.JobID, lock.ClipIndex)
	if _, held := m.locks[key]; held {
		return fmt.Errorf("%w: regeneration already in flight for clip %d", domain.ErrConflict, lock.ClipIndex)
	}
	copied := *lock
	m.locks[key] = &copied
	return nil
}

func (m *memRepo) UpdateLockState(ctx context.Context, jobID string, clipIndex int, state domain.RegenState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[lockKey(jobID, clipIndex)]
	if !ok {
		return domain.ErrNotFound
	}
	lock.State = state
	return nil
}

func (m *memRepo) ReleaseLock(ctx context.Context, jobID string, clipIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, lockKey(jobID, clipIndex))
	return nil
}

func (m *memRepo) ActiveLocks(ctx context.Context, jobID string) ([]domain.RegenLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RegenLock
	for _, lock := range m.locks {
		if lock.JobID == jobID {
			out = append(out, *lock)
		}
	}
	return out, nil
}

func (m *memRepo) lockHeld(jobID string, clipIndex int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, held := m.locks[lockKey(jobID, clipIndex)]
	return held
}

type capturePub struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *capturePub) Publish(ctx context.Context, ev domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *capturePub) byType(typ domain.EventType) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Event
	for _, ev := range p.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type fakeEnqueuer struct {
	mu         sync.Mutex
	regens     []queue.RegeneratePayload
	recomposes []queue.RecomposePayload
	// 1-based regeneration call that fails; zero never fails.
	failOn int
	calls  int
}

func (f *fakeEnqueuer) EnqueueRegeneration(ctx context.Context, p queue.RegeneratePayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn > 0 && f.calls == f.failOn {
		return errors.New("queue unavailable")
	}
	f.regens = append(f.regens, p)
	return nil
}

func (f *fakeEnqueuer) EnqueueRecompose(ctx context.Context, p queue.RecomposePayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recomposes = append(f.recomposes, p)
	return nil
}

type fakeModifier struct {
	result *prompt.ModifyResult
	err    error
	calls  int
}

func (f *fakeModifier) ModifyPrompt(ctx context.Context, req prompt.ModifyRequest) (*prompt.ModifyResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// recordingClips captures each ClipRequest and optionally fails the first
// failFirst calls with a transient error.
type recordingClips struct {
	inner     media.ClipGenerator
	mu        sync.Mutex
	requests  []media.ClipRequest
	failFirst int
}

func (r *recordingClips) GenerateClip(ctx context.Context, req media.ClipRequest) (*media.ClipAsset, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	calls := len(r.requests)
	r.mu.Unlock()
	if calls <= r.failFirst {
		return nil, media.Transient(errors.New("provider overloaded"))
	}
	return r.inner.GenerateClip(ctx, req)
}

type fixture struct {
	repo     *memRepo
	pub      *capturePub
	tasks    *fakeEnqueuer
	modifier *fakeModifier
	clips    *recordingClips
	engine   *Engine
}

const fixtureJob = "job-1"

// newFixture builds a completed six-clip job with version 1 per clip.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemRepo()
	pub := &capturePub{}
	tasks := &fakeEnqueuer{}
	modifier := &fakeModifier{result: &prompt.ModifyResult{Prompt: "patched prompt", Temperature: 0.4}}

	synth := &media.Synthetic{Latency: 0, ClipSeconds: 5}
	clips := &recordingClips{inner: synth}
	timeouts := media.Timeouts{
		Audio: time.Second, Scene: time.Second, Image: time.Second,
		Prompt: time.Second, Clip: time.Second, Compose: time.Second,
	}
	gateway := media.NewGateway(synth, synth, synth, synth, clips, synth, timeouts)
	orch := pipeline.NewOrchestrator(repo, repo, repo, gateway, pub, zerolog.Nop())
	orch.ClipRetries = 0

	cfg := &infra.Config{JobBudget: 25, BatchDiscount: 0.15, ClipMaxRetries: 2}
	engine := NewEngine(repo, repo, repo, repo, modifier, gateway, orch, tasks, pub, zerolog.Nop(), cfg)

	ctx := context.Background()
	_ = repo.Create(ctx, &domain.Job{
		ID:          fixtureJob,
		Status:      domain.JobStatusCompleted,
		Prompt:      "neon city",
		SongURL:     "https://cdn.example.com/songs/demo.mp3",
		VideoModel:  "standard",
		AspectRatio: "16:9",
		TotalCost:   1.0,
		VideoURL:    "https://cdn.example.com/jobs/job-1/final-original.mp4",
	})

	plan := domain.ScenePlan{Scenes: sixScenes()}
	raw, _ := json.Marshal(plan)
	_ = repo.Complete(ctx, fixtureJob, domain.StageScenePlanner, raw, 0.02)
	composed, _ := json.Marshal(domain.Composition{VideoURL: "https://cdn.example.com/jobs/job-1/final-original.mp4", Duration: 30, Cost: 0.10})
	_ = repo.Complete(ctx, fixtureJob, domain.StageComposer, composed, 0.10)

	for i := 0; i < 6; i++ {
		if _, err := repo.Append(ctx, &domain.ClipVersion{
			JobID:     fixtureJob,
			ClipIndex: i,
			VideoURL:  fmt.Sprintf("https://cdn.example.com/jobs/job-1/clips/%d-v1.mp4", i),
			Prompt:    fmt.Sprintf("scene %d prompt", i),
			Seed:      int64(1000 + i),
			Duration:  5,
			Cost:      0.40,
		}); err != nil {
			t.Fatalf("seed version: %v", err)
		}
	}

	return &fixture{repo: repo, pub: pub, tasks: tasks, modifier: modifier, clips: clips, engine: engine}
}

func TestRegenerateTemplateMatchSkipsLLM(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.engine.Regenerate(ctx, fixtureJob, []int{2}, "make it nighttime", nil)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if !res.TemplateMatched || res.TemplateID != "nighttime" {
		t.Fatalf("result = %+v, want nighttime template match", res)
	}
	if res.EstimatedCost != clipGenerationCost {
		t.Fatalf("estimate = %v, want %v (no LLM fee)", res.EstimatedCost, clipGenerationCost)
	}
	if len(f.tasks.regens) != 1 || f.tasks.regens[0].TemplateID != "nighttime" {
		t.Fatalf("enqueued = %+v", f.tasks.regens)
	}

	if err := f.engine.Execute(ctx, f.tasks.regens[0]); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if f.modifier.calls != 0 {
		t.Fatalf("LLM called %d times on the template path", f.modifier.calls)
	}

	current, err := f.repo.Current(ctx, fixtureJob, 2)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if current.VersionNumber != 2 || !current.IsCurrent {
		t.Fatalf("current = %+v, want version 2 current", current)
	}
	if !strings.Contains(current.Prompt, "nighttime") {
		t.Fatalf("prompt %q missing template modifier", current.Prompt)
	}

	job, _ := f.repo.GetByID(ctx, fixtureJob)
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("job status = %s, want completed after recomposition", job.Status)
	}
	if job.VideoURL == "https://cdn.example.com/jobs/job-1/final-original.mp4" {
		t.Fatal("final video must be refreshed by recomposition")
	}
	if f.repo.lockHeld(fixtureJob, 2) {
		t.Fatal("lock must be released on success")
	}
	if len(f.pub.byType(domain.EventRecompositionComplete)) != 1 {
		t.Fatal("missing recomposition_complete event")
	}

	// Ledger and job total reconcile: one successful event, cost added once.
	ledgerTotal, _ := f.repo.TotalCost(ctx, fixtureJob)
	if ledgerTotal != clipGenerationCost {
		t.Fatalf("ledger total = %v, want %v", ledgerTotal, clipGenerationCost)
	}
	wantJobTotal := 1.0 + clipGenerationCost + 0.10
	if diff := job.TotalCost - wantJobTotal; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("job total = %v, want %v", job.TotalCost, wantJobTotal)
	}
}

func TestRegenerateConflictBeforeAnyProviderCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.repo.AcquireLock(ctx, &domain.RegenLock{JobID: fixtureJob, ClipIndex: 2, State: domain.RegenStateGenerating}); err != nil {
		t.Fatalf("seed lock: %v", err)
	}

	_, err := f.engine.Regenerate(ctx, fixtureJob, []int{2}, "make it nighttime", nil)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if len(f.tasks.regens) != 0 {
		t.Fatal("conflicting request must not enqueue work")
	}
	if len(f.clips.requests) != 0 {
		t.Fatal("conflicting request must not reach the provider")
	}
}

func TestRegenerateMultiClipRollsBackLocksOnConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Hold the second target; the first target's lock must be rolled back.
	if err := f.repo.AcquireLock(ctx, &domain.RegenLock{JobID: fixtureJob, ClipIndex: 3, State: domain.RegenStateGenerating}); err != nil {
		t.Fatalf("seed lock: %v", err)
	}

	_, err := f.engine.Regenerate(ctx, fixtureJob, nil, "make clips 2 and 4 darker", nil)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if f.repo.lockHeld(fixtureJob, 1) {
		t.Fatal("partially acquired lock must be rolled back")
	}
}

func TestRegenerateMultiClipAppliesBatchDiscount(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.Regenerate(context.Background(), fixtureJob, nil, "make clips 2 and 4 darker", nil)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if len(res.Targets) != 2 || res.Targets[0] != 1 || res.Targets[1] != 3 {
		t.Fatalf("targets = %v, want [1 3]", res.Targets)
	}
	want := 2 * clipGenerationCost * 0.85
	if diff := res.EstimatedCost - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("estimate = %v, want %v", res.EstimatedCost, want)
	}
	if len(f.tasks.regens) != 2 {
		t.Fatalf("enqueued = %d tasks, want 2", len(f.tasks.regens))
	}
}

func TestRegenerateEnqueueFailureReleasesRemainingLocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.tasks.failOn = 2

	_, err := f.engine.Regenerate(ctx, fixtureJob, []int{0, 1, 2}, "make it darker", nil)
	if err == nil {
		t.Fatal("expected the enqueue failure to surface")
	}
	// Clip 0's task made it onto the queue and releases its own lock when it
	// runs; the targets that never got a task must be released right away.
	if f.repo.lockHeld(fixtureJob, 1) || f.repo.lockHeld(fixtureJob, 2) {
		t.Fatal("locks for unqueued targets must be released")
	}
	if !f.repo.lockHeld(fixtureJob, 0) {
		t.Fatal("queued target keeps its lock until its task settles")
	}

	failed := f.pub.byType(domain.EventRegenerationFailed)
	if len(failed) != 2 {
		t.Fatalf("regeneration_failed events = %d, want one per unqueued target", len(failed))
	}
	for _, ev := range failed {
		if ev.Data["retryable"].(bool) != true {
			t.Fatalf("regeneration_failed %+v must be retryable", ev.Data)
		}
	}

	if len(f.tasks.regens) != 1 || f.tasks.regens[0].ClipIndex != 0 {
		t.Fatalf("enqueued = %+v, want only clip 0", f.tasks.regens)
	}
	if err := f.engine.Execute(ctx, f.tasks.regens[0]); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if f.repo.lockHeld(fixtureJob, 0) {
		t.Fatal("executed task must release its lock")
	}
}

func TestRegenerateDeduplicatesExplicitTargets(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.Regenerate(context.Background(), fixtureJob, []int{2, 2}, "make it nighttime", nil)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if len(res.Targets) != 1 || res.Targets[0] != 2 {
		t.Fatalf("targets = %v, want [2]", res.Targets)
	}
	if len(f.tasks.regens) != 1 {
		t.Fatalf("enqueued = %d tasks, want 1", len(f.tasks.regens))
	}
	if res.EstimatedCost != clipGenerationCost {
		t.Fatalf("estimate = %v, duplicates must not inflate the quote", res.EstimatedCost)
	}

	res, err = f.engine.Regenerate(context.Background(), fixtureJob, []int{3, 1, 3}, "make it nighttime", nil)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if len(res.Targets) != 2 || res.Targets[0] != 1 || res.Targets[1] != 3 {
		t.Fatalf("targets = %v, want deduplicated ascending [1 3]", res.Targets)
	}
}

func TestRegenerateBudgetExceeded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.repo.AddCost(ctx, fixtureJob, 23.9) // total now 24.9 of a 25 budget

	_, err := f.engine.Regenerate(ctx, fixtureJob, []int{2}, "make it nighttime", nil)
	if !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Fatalf("err = %v, want budget exceeded", err)
	}
	if f.repo.lockHeld(fixtureJob, 2) {
		t.Fatal("budget rejection must not leave a lock behind")
	}
}

func TestExecuteLLMPathReusesSeedAndRetries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.clips.failFirst = 1

	res, err := f.engine.Regenerate(ctx, fixtureJob, []int{2}, "keep everything the same but fix the background", nil)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if res.TemplateMatched {
		t.Fatal("free-form instruction must take the LLM path")
	}

	if err := f.engine.Execute(ctx, f.tasks.regens[0]); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if f.modifier.calls != 1 {
		t.Fatalf("LLM calls = %d, want 1", f.modifier.calls)
	}

	// Temperature 0.4 < 0.5: the original clip seed is reused.
	if len(f.clips.requests) != 2 {
		t.Fatalf("provider calls = %d, want 2 (one transient failure, one success)", len(f.clips.requests))
	}
	for _, req := range f.clips.requests {
		if req.Seed != 1002 {
			t.Fatalf("seed = %d, want original 1002 reused", req.Seed)
		}
		if req.Prompt != "patched prompt" {
			t.Fatalf("prompt = %q, want the LLM rewrite", req.Prompt)
		}
	}

	retries := f.pub.byType(domain.EventVideoGenerationRetry)
	if len(retries) != 1 || retries[0].Data["retry_count"].(int) != 1 {
		t.Fatalf("retry events = %+v, want one with retry_count=1", retries)
	}
	if len(f.pub.byType(domain.EventRegenerationPromptModified)) != 1 {
		t.Fatal("missing regeneration_prompt_modified event")
	}
}

func TestExecuteFailureKeepsVersionAndReleasesLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.clips.failFirst = 10 // transient every attempt, exhausting retries
	f.engine.ClipRetries = 0

	if _, err := f.engine.Regenerate(ctx, fixtureJob, []int{2}, "make it nighttime", nil); err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if err := f.engine.Execute(ctx, f.tasks.regens[0]); err == nil {
		t.Fatal("expected generation failure")
	}

	current, _ := f.repo.Current(ctx, fixtureJob, 2)
	if current.VersionNumber != 1 {
		t.Fatalf("current version = %d, want 1 untouched", current.VersionNumber)
	}
	if f.repo.lockHeld(fixtureJob, 2) {
		t.Fatal("lock must be released on failure")
	}

	var failed int
	for _, ev := range f.repo.events {
		if !ev.Success {
			failed++
			if ev.Cost != 0 {
				t.Fatalf("failed ledger event carries cost %v", ev.Cost)
			}
		}
	}
	if failed != 1 {
		t.Fatalf("failed ledger events = %d, want 1", failed)
	}
	events := f.pub.byType(domain.EventRegenerationFailed)
	if len(events) != 1 || events[0].Data["retryable"].(bool) != true {
		t.Fatalf("regeneration_failed events = %+v, want one retryable", events)
	}

	job, _ := f.repo.GetByID(ctx, fixtureJob)
	if job.TotalCost != 1.0 {
		t.Fatalf("job total = %v, failed regeneration must not add cost", job.TotalCost)
	}
}

func TestRevertFlipsCurrentWithoutNewVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A prior regeneration left clip 2 at version 2.
	if _, err := f.repo.Append(ctx, &domain.ClipVersion{
		JobID:     fixtureJob,
		ClipIndex: 2,
		VideoURL:  "https://cdn.example.com/jobs/job-1/clips/2-v2.mp4",
		Prompt:    "scene 2 prompt, nighttime",
		Seed:      2002,
		Duration:  5,
	}); err != nil {
		t.Fatalf("seed v2: %v", err)
	}

	if err := f.engine.Revert(ctx, fixtureJob, 2, 1); err != nil {
		t.Fatalf("Revert: %v", err)
	}

	current, _ := f.repo.Current(ctx, fixtureJob, 2)
	if current.VersionNumber != 1 {
		t.Fatalf("current = v%d, want v1", current.VersionNumber)
	}
	all, _ := f.repo.ListByClip(ctx, fixtureJob, 2)
	if len(all) != 2 {
		t.Fatalf("versions = %d, revert must not create a new row", len(all))
	}
	if len(f.tasks.recomposes) != 1 || f.tasks.recomposes[0].ClipIndex == nil || *f.tasks.recomposes[0].ClipIndex != 2 {
		t.Fatalf("recompose tasks = %+v", f.tasks.recomposes)
	}

	if err := f.engine.ExecuteRecompose(ctx, f.tasks.recomposes[0]); err != nil {
		t.Fatalf("ExecuteRecompose: %v", err)
	}
	if f.repo.lockHeld(fixtureJob, 2) {
		t.Fatal("lock must be released after recomposition")
	}
	job, _ := f.repo.GetByID(ctx, fixtureJob)
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("job status = %s, want completed", job.Status)
	}
	if len(f.pub.byType(domain.EventRecompositionComplete)) != 1 {
		t.Fatal("missing recomposition_complete event")
	}
}

func TestRevertUnknownVersion(t *testing.T) {
	f := newFixture(t)
	err := f.engine.Revert(context.Background(), fixtureJob, 2, 9)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	if f.repo.lockHeld(fixtureJob, 2) {
		t.Fatal("failed revert must release its lock")
	}
}

func TestPreviewIsPureRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	preview, err := f.engine.Preview(ctx, fixtureJob, "make clips 2 and 4 darker")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(preview.Targets) != 2 || preview.Targets[0] != 1 || preview.Targets[1] != 3 {
		t.Fatalf("targets = %v, want [1 3]", preview.Targets)
	}
	if len(preview.Clips) != 2 {
		t.Fatalf("clips = %+v", preview.Clips)
	}
	if !preview.TemplateMatched || preview.TemplateID != "darker" {
		t.Fatalf("preview = %+v, want darker template", preview)
	}

	if len(f.tasks.regens) != 0 || len(f.tasks.recomposes) != 0 {
		t.Fatal("preview must not enqueue work")
	}
	if f.repo.lockHeld(fixtureJob, 1) || f.repo.lockHeld(fixtureJob, 3) {
		t.Fatal("preview must not take locks")
	}
	if len(f.pub.events) != 0 {
		t.Fatal("preview must not publish events")
	}
}
