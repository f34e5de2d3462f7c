package consultation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medconsult/internal/metrics"
	"medconsult/internal/progress"
	"medconsult/internal/resilience"
)

type stubASR struct {
	text string
	err  error
}

func (s *stubASR) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	return s.text, s.err
}

type stubMedical struct {
	resp  *MedicalResponse
	err   error
	calls int
}

func (s *stubMedical) Analyze(ctx context.Context, symptoms *Symptoms, patient *Patient) (*MedicalResponse, error) {
	s.calls++
	return s.resp, s.err
}

func (s *stubMedical) Name() string { return "stub-model" }

type stubTTS struct {
	audio []byte
	err   error
}

func (s *stubTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return s.audio, s.err
}

type stubReport struct {
	mu    sync.Mutex
	sent  []*Consultation
	ready chan struct{}
}

func newStubReport() *stubReport {
	return &stubReport{ready: make(chan struct{}, 1)}
}

func (s *stubReport) SendEmergencyReport(ctx context.Context, c *Consultation) error {
	s.mu.Lock()
	s.sent = append(s.sent, c)
	s.mu.Unlock()
	s.ready <- struct{}{}
	return nil
}

func (s *stubReport) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type memoryRepo struct {
	mu    sync.Mutex
	saved map[uuid.UUID]*Consultation
	order []uuid.UUID
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{saved: make(map[uuid.UUID]*Consultation)}
}

func (r *memoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.saved[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (r *memoryRepo) Save(ctx context.Context, c *Consultation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.saved[c.ID]; !ok {
		r.order = append(r.order, c.ID)
	}
	r.saved[c.ID] = c
	return nil
}

func (r *memoryRepo) ListRecent(ctx context.Context, limit int) ([]*Consultation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Consultation
	for i := len(r.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.saved[r.order[i]])
	}
	return out, nil
}

func fastRetry() resilience.WrapperConfig {
	cfg := resilience.DefaultWrapperConfig()
	cfg.Retry = resilience.RetryConfig{
		MaxAttempts:    2,
		BaseDelay:      time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0,
	}
	return cfg
}

func testRegistry() *resilience.Registry {
	reg := resilience.NewRegistry()
	reg.Register(ServiceASR, fastRetry())
	reg.Register(ServiceMedical, fastRetry())
	reg.Register(ServiceTTS, fastRetry())
	return reg
}

func okResponse(t *testing.T) *MedicalResponse {
	t.Helper()
	resp, err := NewMedicalResponse("Likely a viral infection. Rest and fluids.", 0.8, UrgencyLow, "stub-model")
	require.NoError(t, err)
	return resp
}

func newTestService(t *testing.T, p ServiceParams) *Service {
	t.Helper()
	if p.Resilience == nil {
		p.Resilience = testRegistry()
	}
	if p.Fallback == nil {
		p.Fallback = &stubMedical{resp: mustFallbackResponse(t)}
	}
	if p.Tracker == nil {
		p.Tracker = progress.NewTracker(nil, zap.NewNop())
	}
	p.Metrics = metrics.New(prometheus.NewRegistry())
	p.Logger = zap.NewNop()
	return NewService(p)
}

func mustFallbackResponse(t *testing.T) *MedicalResponse {
	t.Helper()
	resp, err := NewMedicalResponse("Basic guidance only.", 0.3, UrgencyMedium, "keyword_fallback")
	require.NoError(t, err)
	return resp
}

func TestProcessText_HappyPath(t *testing.T) {
	repo := newMemoryRepo()
	medical := &stubMedical{resp: okResponse(t)}
	svc := newTestService(t, ServiceParams{
		Repo:    repo,
		Medical: medical,
	})

	c, err := svc.ProcessText(context.Background(), "mild cough for two days", nil, "")
	require.NoError(t, err)

	assert.Equal(t, 1, medical.calls)
	require.NotNil(t, c.Response)
	assert.Equal(t, "stub-model", c.Response.ModelUsed)
	assert.False(t, c.CompletedAt.IsZero())

	stored, err := repo.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, stored.ID)
}

func TestProcessText_EmptySymptoms(t *testing.T) {
	svc := newTestService(t, ServiceParams{Medical: &stubMedical{resp: okResponse(t)}})

	_, err := svc.ProcessText(context.Background(), "   ", nil, "")
	assert.Error(t, err)
}

func TestProcessText_FallsBackWhenModelFails(t *testing.T) {
	medical := &stubMedical{err: errors.New("model down")}
	fallback := &stubMedical{resp: mustFallbackResponse(t)}
	svc := newTestService(t, ServiceParams{
		Medical:  medical,
		Fallback: fallback,
	})

	c, err := svc.ProcessText(context.Background(), "headache since morning", nil, "")
	require.NoError(t, err)

	assert.Equal(t, 1, fallback.calls)
	assert.Equal(t, "keyword_fallback", c.Response.ModelUsed)
}

func TestProcessText_EmergencyEscalation(t *testing.T) {
	emergency, err := NewMedicalResponse("Possible cardiac event.", 0.9, UrgencyCritical, "stub-model")
	require.NoError(t, err)

	report := newStubReport()
	svc := newTestService(t, ServiceParams{
		Medical: &stubMedical{resp: emergency},
		Report:  report,
	})

	_, err = svc.ProcessText(context.Background(), "crushing chest pain", nil, "")
	require.NoError(t, err)

	select {
	case <-report.ready:
	case <-time.After(2 * time.Second):
		t.Fatal("emergency report was not sent")
	}
	assert.Equal(t, 1, report.count())
}

func TestProcessText_NoEscalationForLowUrgency(t *testing.T) {
	report := newStubReport()
	svc := newTestService(t, ServiceParams{
		Medical: &stubMedical{resp: okResponse(t)},
		Report:  report,
	})

	_, err := svc.ProcessText(context.Background(), "mild cough", nil, "")
	require.NoError(t, err)

	select {
	case <-report.ready:
		t.Fatal("unexpected emergency report")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestProcessVoice_SetsTranscription(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(t, ServiceParams{
		Repo:    repo,
		ASR:     &stubASR{text: "I have a sore throat"},
		Medical: &stubMedical{resp: okResponse(t)},
	})

	c, err := svc.ProcessVoice(context.Background(), []byte("audio"), "voice.wav", nil, "")
	require.NoError(t, err)

	assert.Equal(t, "I have a sore throat", c.Transcription)
	assert.Equal(t, "I have a sore throat", c.Symptoms)

	stored, err := repo.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "I have a sore throat", stored.Transcription)
}

func TestProcessVoice_TranscriptionFailure(t *testing.T) {
	svc := newTestService(t, ServiceParams{
		ASR:     &stubASR{err: errors.New("asr down")},
		Medical: &stubMedical{resp: okResponse(t)},
	})

	_, err := svc.ProcessVoice(context.Background(), []byte("audio"), "voice.wav", nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transcription unavailable")
}

func TestSynthesizeSpeech(t *testing.T) {
	svc := newTestService(t, ServiceParams{
		Medical: &stubMedical{resp: okResponse(t)},
		TTS:     &stubTTS{audio: []byte("wav-bytes")},
	})

	audio, err := svc.SynthesizeSpeech(context.Background(), "rest and fluids")
	require.NoError(t, err)
	assert.Equal(t, []byte("wav-bytes"), audio)
}

func TestSynthesizeSpeech_Failure(t *testing.T) {
	svc := newTestService(t, ServiceParams{
		Medical: &stubMedical{resp: okResponse(t)},
		TTS:     &stubTTS{err: errors.New("tts down")},
	})

	_, err := svc.SynthesizeSpeech(context.Background(), "rest and fluids")
	assert.Error(t, err)
}

func TestGetByID_NilRepository(t *testing.T) {
	svc := newTestService(t, ServiceParams{Medical: &stubMedical{resp: okResponse(t)}})

	_, err := svc.GetByID(context.Background(), uuid.New())
	assert.Error(t, err)
}

type stageRecorder struct {
	stages []progress.Stage
}

func (r *stageRecorder) PublishProgress(u progress.Update) {
	r.stages = append(r.stages, u.Stage)
}

func TestProcessText_ReportsStages(t *testing.T) {
	recorder := &stageRecorder{}
	svc := newTestService(t, ServiceParams{
		Medical: &stubMedical{resp: okResponse(t)},
		Tracker: progress.NewTracker(recorder, zap.NewNop()),
	})

	_, err := svc.ProcessText(context.Background(), "mild cough", nil, "")
	require.NoError(t, err)

	assert.Equal(t, []progress.Stage{
		progress.StageInitializing,
		progress.StageAnalyzingSymptoms,
		progress.StageCheckingMedicalDatabase,
		progress.StageGeneratingQuestions,
		progress.StageGeneratingRecommendations,
		progress.StageFinalizingAssessment,
		progress.StageComplete,
	}, recorder.stages)
}

func TestProcessText_CallerOwnedSession(t *testing.T) {
	recorder := &stageRecorder{}
	svc := newTestService(t, ServiceParams{
		Medical: &stubMedical{resp: okResponse(t)},
		Tracker: progress.NewTracker(recorder, zap.NewNop()),
	})

	_, err := svc.ProcessText(context.Background(), "mild cough", nil, "enhanced-req-1")
	require.NoError(t, err)

	// The session stays open for the caller's extra stages.
	require.NotEmpty(t, recorder.stages)
	assert.Equal(t, progress.StageFinalizingAssessment, recorder.stages[len(recorder.stages)-1])

	svc.AdvanceStage("enhanced-req-1", progress.StageFindingMedications)
	svc.FinishProgress("enhanced-req-1")

	last := recorder.stages[len(recorder.stages)-2:]
	assert.Equal(t, []progress.Stage{progress.StageFindingMedications, progress.StageComplete}, last)
}

func TestListRecent(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(t, ServiceParams{
		Repo:    repo,
		Medical: &stubMedical{resp: okResponse(t)},
	})

	first, err := svc.ProcessText(context.Background(), "mild cough", nil, "")
	require.NoError(t, err)
	second, err := svc.ProcessText(context.Background(), "sore throat", nil, "")
	require.NoError(t, err)

	list, err := svc.ListRecent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)

	list, err = svc.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestListRecent_NilRepository(t *testing.T) {
	svc := newTestService(t, ServiceParams{Medical: &stubMedical{resp: okResponse(t)}})

	_, err := svc.ListRecent(context.Background(), 5)
	assert.Error(t, err)
}

func TestAnalyzeSymptoms_UsesModel(t *testing.T) {
	medical := &stubMedical{resp: okResponse(t)}
	svc := newTestService(t, ServiceParams{Medical: medical})

	symptoms, err := ParseSymptoms("persistent cough")
	require.NoError(t, err)

	resp := svc.AnalyzeSymptoms(context.Background(), symptoms, nil)
	require.NotNil(t, resp)
	assert.Equal(t, "stub-model", resp.ModelUsed)
	assert.Equal(t, 1, medical.calls)
}
