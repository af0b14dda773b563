package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/eweinhaus/VideoGen-sub002/internal/domain"
	"github.com/eweinhaus/VideoGen-sub002/internal/queue"
)

type jobStore struct {
	jobs     map[string]*domain.Job
	stages   []domain.StageRecord
	versions []domain.ClipVersion
}

func (s *jobStore) Create(ctx context.Context, job *domain.Job) error {
	if s.jobs == nil {
		s.jobs = make(map[string]*domain.Job)
	}
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *jobStore) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
	}
	copied := *job
	return &copied, nil
}

func (s *jobStore) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus) error {
	return nil
}

func (s *jobStore) SetProgress(ctx context.Context, jobID string, progress int, stage *domain.StageName, remainingSeconds *int) error {
	return nil
}

func (s *jobStore) AddCost(ctx context.Context, jobID string, delta float64) error { return nil }

func (s *jobStore) SetResult(ctx context.Context, jobID string, videoURL string, duration float64) error {
	return nil
}

func (s *jobStore) Start(ctx context.Context, jobID string, stage domain.StageName) error { return nil }

func (s *jobStore) Complete(ctx context.Context, jobID string, stage domain.StageName, metadata []byte, cost float64) error {
	return nil
}

func (s *jobStore) Fail(ctx context.Context, jobID string, stage domain.StageName, message string) error {
	return nil
}

func (s *jobStore) Get(ctx context.Context, jobID string, stage domain.StageName) (*domain.StageRecord, error) {
	return nil, domain.ErrNotFound
}

func (s *jobStore) ListByJob(ctx context.Context, jobID string) ([]domain.StageRecord, error) {
	return s.stages, nil
}

func (s *jobStore) Append(ctx context.Context, v *domain.ClipVersion) (int, error) { return 0, nil }

func (s *jobStore) SetCurrent(ctx context.Context, jobID string, clipIndex, versionNumber int) error {
	return nil
}

func (s *jobStore) Current(ctx context.Context, jobID string, clipIndex int) (*domain.ClipVersion, error) {
	return nil, domain.ErrNotFound
}

func (s *jobStore) ListByClip(ctx context.Context, jobID string, clipIndex int) ([]domain.ClipVersion, error) {
	return s.versions, nil
}

func (s *jobStore) ListCurrentByJob(ctx context.Context, jobID string) ([]domain.ClipVersion, error) {
	return nil, nil
}

type stubEnqueuer struct {
	payloads []queue.PipelinePayload
	err      error
}

func (s *stubEnqueuer) EnqueuePipelineRun(ctx context.Context, p queue.PipelinePayload) error {
	if s.err != nil {
		return s.err
	}
	s.payloads = append(s.payloads, p)
	return nil
}

func newTestApp(store *jobStore, tasks *stubEnqueuer) *App {
	return &App{
		Jobs:     store,
		Stages:   store,
		Versions: store,
		Tasks:    tasks,
		Logger:   zerolog.Nop(),
	}
}

func routeCtx(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestJobCreateQueuesPipelineRun(t *testing.T) {
	store := &jobStore{}
	tasks := &stubEnqueuer{}
	app := newTestApp(store, tasks)

	body := `{"prompt":"neon city","song_url":"https://cdn.example.com/songs/a.mp3"}`
	req := httptest.NewRequest("POST", "/v1/jobs", strings.NewReader(body))
	rr := httptest.NewRecorder()
	app.JobCreate(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (%s)", rr.Code, rr.Body.String())
	}
	var resp jobCreateResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID == "" || resp.Status != "queued" {
		t.Fatalf("response = %+v", resp)
	}
	if len(tasks.payloads) != 1 || tasks.payloads[0].JobID != resp.JobID {
		t.Fatalf("enqueued = %+v", tasks.payloads)
	}
	if _, ok := store.jobs[resp.JobID]; !ok {
		t.Fatal("job row not created")
	}
}

func TestJobCreateRejectsMissingFields(t *testing.T) {
	app := newTestApp(&jobStore{}, &stubEnqueuer{})

	req := httptest.NewRequest("POST", "/v1/jobs", strings.NewReader(`{"prompt":"no song"}`))
	rr := httptest.NewRecorder()
	app.JobCreate(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	var resp map[string]any
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp["retryable"] != false {
		t.Fatalf("retryable = %v, want false", resp["retryable"])
	}
}

func TestJobGetNotFound(t *testing.T) {
	app := newTestApp(&jobStore{}, &stubEnqueuer{})

	req := routeCtx(httptest.NewRequest("GET", "/v1/jobs/missing", nil), map[string]string{"job_id": "missing"})
	rr := httptest.NewRecorder()
	app.JobGet(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestJobGetIncludesStages(t *testing.T) {
	store := &jobStore{}
	stage := domain.StageScenePlanner
	_ = store.Create(context.Background(), &domain.Job{ID: "job-1", Status: domain.JobStatusProcessing, Progress: 33, CurrentStage: &stage})
	store.stages = []domain.StageRecord{
		{JobID: "job-1", Stage: domain.StageAudioParser, Status: domain.StageStatusCompleted, Cost: 0.05},
		{JobID: "job-1", Stage: domain.StageScenePlanner, Status: domain.StageStatusProcessing},
	}
	app := newTestApp(store, &stubEnqueuer{})

	req := routeCtx(httptest.NewRequest("GET", "/v1/jobs/job-1", nil), map[string]string{"job_id": "job-1"})
	rr := httptest.NewRecorder()
	app.JobGet(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp struct {
		Status string     `json:"status"`
		Stages []stageDTO `json:"stages"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "processing" || len(resp.Stages) != 2 {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Stages[0].Stage != "audio_parser" || resp.Stages[0].Status != "completed" {
		t.Fatalf("first stage = %+v", resp.Stages[0])
	}
}

func TestClipVersionsRejectsBadIndex(t *testing.T) {
	store := &jobStore{}
	_ = store.Create(context.Background(), &domain.Job{ID: "job-1", Status: domain.JobStatusCompleted})
	app := newTestApp(store, &stubEnqueuer{})

	req := routeCtx(httptest.NewRequest("GET", "/v1/jobs/job-1/clips/abc/versions", nil),
		map[string]string{"job_id": "job-1", "clip_index": "abc"})
	rr := httptest.NewRecorder()
	app.ClipVersions(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestFailMapsDomainErrors(t *testing.T) {
	app := newTestApp(&jobStore{}, &stubEnqueuer{})
	cases := []struct {
		err       error
		status    int
		retryable bool
	}{
		{fmt.Errorf("%w: bad", domain.ErrValidation), http.StatusBadRequest, false},
		{fmt.Errorf("%w: over", domain.ErrBudgetExceeded), http.StatusPaymentRequired, false},
		{fmt.Errorf("%w: nope", domain.ErrUnauthorized), http.StatusForbidden, false},
		{fmt.Errorf("%w: gone", domain.ErrNotFound), http.StatusNotFound, false},
		{fmt.Errorf("%w: busy", domain.ErrConflict), http.StatusConflict, true},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		app.fail(rr, tc.err)
		if rr.Code != tc.status {
			t.Fatalf("fail(%v) status = %d, want %d", tc.err, rr.Code, tc.status)
		}
		var resp map[string]any
		_ = json.NewDecoder(rr.Body).Decode(&resp)
		if resp["retryable"] != tc.retryable {
			t.Fatalf("fail(%v) retryable = %v, want %v", tc.err, resp["retryable"], tc.retryable)
		}
	}
}
