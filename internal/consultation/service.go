package consultation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"medconsult/internal/metrics"
	"medconsult/internal/progress"
	"medconsult/internal/resilience"
)

// Service names used in the resilience registry and metrics labels.
const (
	ServiceASR     = "asr"
	ServiceMedical = "medical_model"
	ServiceTTS     = "tts"
)

// ASRClient transcribes patient audio. Defined here to decouple from the
// adapter implementation.
type ASRClient interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// MedicalClient produces an assessment for parsed symptoms.
type MedicalClient interface {
	Analyze(ctx context.Context, symptoms *Symptoms, patient *Patient) (*MedicalResponse, error)
	Name() string
}

// TTSClient renders assessment text as speech.
type TTSClient interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ReportService escalates emergencies to the on-call clinician channel.
type ReportService interface {
	SendEmergencyReport(ctx context.Context, c *Consultation) error
}

// Repository persists completed consultations. A nil Repository is
// tolerated: the service runs stateless when the database is down.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error)
	Save(ctx context.Context, c *Consultation) error
	ListRecent(ctx context.Context, limit int) ([]*Consultation, error)
}

// Service orchestrates a consultation: symptom parsing, model calls
// behind circuit breakers, fallback analysis, persistence, and emergency
// escalation.
type Service struct {
	repo       Repository
	asr        ASRClient
	medical    MedicalClient
	fallback   MedicalClient
	tts        TTSClient
	reportSvc  ReportService
	resilience *resilience.Registry
	tracker    *progress.Tracker
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

type ServiceParams struct {
	Repo       Repository
	ASR        ASRClient
	Medical    MedicalClient
	Fallback   MedicalClient
	TTS        TTSClient
	Report     ReportService
	Resilience *resilience.Registry
	Tracker    *progress.Tracker
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

func NewService(p ServiceParams) *Service {
	return &Service{
		repo:       p.Repo,
		asr:        p.ASR,
		medical:    p.Medical,
		fallback:   p.Fallback,
		tts:        p.TTS,
		reportSvc:  p.Report,
		resilience: p.Resilience,
		tracker:    p.Tracker,
		metrics:    p.Metrics,
		logger:     p.Logger,
	}
}

// ProcessText runs a full text consultation. sessionID keys the progress
// feed. When the caller passes an empty sessionID the service keys the
// feed by consultation ID and closes the session itself; a caller that
// supplies its own sessionID owns the session and must call
// FinishProgress after any extra stages it reports.
func (s *Service) ProcessText(ctx context.Context, symptomsText string, patient *Patient, sessionID string) (*Consultation, error) {
	c := NewConsultation(symptomsText, patient)
	ownSession := sessionID == ""
	if ownSession {
		sessionID = c.ID.String()
	}
	s.tracker.Start(sessionID)
	if ownSession {
		defer s.tracker.Complete(sessionID, "")
	}

	s.tracker.Advance(sessionID, progress.StageAnalyzingSymptoms)
	symptoms, err := ParseSymptoms(symptomsText)
	if err != nil {
		return nil, err
	}

	s.tracker.Advance(sessionID, progress.StageCheckingMedicalDatabase)
	resp := s.analyze(ctx, symptoms, patient)

	s.tracker.Advance(sessionID, progress.StageGeneratingQuestions)
	s.tracker.Advance(sessionID, progress.StageGeneratingRecommendations)
	s.tracker.Advance(sessionID, progress.StageFinalizingAssessment)
	c.Complete(resp)

	s.metrics.ConsultationsTotal.WithLabelValues("text", string(resp.Urgency)).Inc()
	s.save(ctx, c)
	s.escalateIfEmergency(c)

	return c, nil
}

// ProcessVoice transcribes the recording, then runs the text pipeline.
func (s *Service) ProcessVoice(ctx context.Context, audio []byte, filename string, patient *Patient, sessionID string) (*Consultation, error) {
	text, err := s.Transcribe(ctx, audio, filename)
	if err != nil {
		return nil, err
	}

	c, err := s.ProcessText(ctx, text, patient, sessionID)
	if err != nil {
		return nil, err
	}
	c.Transcription = text
	s.save(ctx, c)
	return c, nil
}

// Transcribe calls the ASR service behind its circuit breaker.
func (s *Service) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	wrapper, ok := s.resilience.Get(ServiceASR)
	if !ok {
		return "", errors.New("asr service not registered")
	}

	var text string
	start := time.Now()
	err := wrapper.Do(ctx, func(ctx context.Context) error {
		var innerErr error
		text, innerErr = s.asr.Transcribe(ctx, audio, filename)
		return innerErr
	})
	s.metrics.ObserveAdapterCall(ServiceASR, start, err)
	if err != nil {
		return "", errors.Wrap(err, "transcription unavailable")
	}
	return text, nil
}

// SynthesizeSpeech calls the TTS service behind its circuit breaker.
// Returns nil audio on failure rather than failing the consultation.
func (s *Service) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	wrapper, ok := s.resilience.Get(ServiceTTS)
	if !ok {
		return nil, errors.New("tts service not registered")
	}

	var audio []byte
	start := time.Now()
	err := wrapper.Do(ctx, func(ctx context.Context) error {
		var innerErr error
		audio, innerErr = s.tts.Synthesize(ctx, text)
		return innerErr
	})
	s.metrics.ObserveAdapterCall(ServiceTTS, start, err)
	if err != nil {
		return nil, errors.Wrap(err, "speech synthesis unavailable")
	}
	return audio, nil
}

// AdvanceStage reports a stage for a caller-owned progress session. The
// enhanced endpoint uses it around the medication lookup.
func (s *Service) AdvanceStage(sessionID string, stage progress.Stage) {
	s.tracker.Advance(sessionID, stage)
}

// FinishProgress closes a caller-owned progress session.
func (s *Service) FinishProgress(sessionID string) {
	s.tracker.Complete(sessionID, "")
}

// GetByID loads a stored consultation, for the report endpoint.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	if s.repo == nil {
		return nil, errors.New("consultation storage is not available")
	}
	return s.repo.GetByID(ctx, id)
}

// ListRecent returns the newest stored consultations, for the history
// endpoint.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*Consultation, error) {
	if s.repo == nil {
		return nil, errors.New("consultation storage is not available")
	}
	return s.repo.ListRecent(ctx, limit)
}

// AnalyzeSymptoms runs the resilient model call with keyword fallback.
// Used directly by the interactive diagnosis flow.
func (s *Service) AnalyzeSymptoms(ctx context.Context, symptoms *Symptoms, patient *Patient) *MedicalResponse {
	return s.analyze(ctx, symptoms, patient)
}

// analyze calls the medical model behind its breaker, falling back to
// keyword analysis when the model is unavailable.
func (s *Service) analyze(ctx context.Context, symptoms *Symptoms, patient *Patient) *MedicalResponse {
	wrapper, ok := s.resilience.Get(ServiceMedical)
	if ok {
		var resp *MedicalResponse
		start := time.Now()
		err := wrapper.Do(ctx, func(ctx context.Context) error {
			var innerErr error
			resp, innerErr = s.medical.Analyze(ctx, symptoms, patient)
			return innerErr
		})
		s.metrics.ObserveAdapterCall(ServiceMedical, start, err)
		if err == nil {
			return resp
		}
		s.logger.Warn("medical model unavailable, using keyword fallback",
			zap.Error(err))
	}

	resp, err := s.fallback.Analyze(ctx, symptoms, patient)
	if err != nil {
		// The fallback cannot fail for non-empty symptom text; guard anyway.
		resp = &MedicalResponse{
			ResponseText: "Unable to analyze symptoms right now. Please consult a healthcare provider.",
			Urgency:      UrgencyMedium,
			ModelUsed:    s.fallback.Name(),
			CreatedAt:    time.Now(),
		}
	}
	return resp
}

func (s *Service) save(ctx context.Context, c *Consultation) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Save(ctx, c); err != nil {
		s.logger.Error("failed to persist consultation",
			zap.String("consultation_id", c.ID.String()),
			zap.Error(err))
	}
}

func (s *Service) escalateIfEmergency(c *Consultation) {
	if s.reportSvc == nil || c.Response == nil || !c.Response.IsEmergency() {
		return
	}
	go func(c Consultation) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.reportSvc.SendEmergencyReport(ctx, &c); err != nil {
			s.logger.Error("emergency escalation failed",
				zap.String("consultation_id", c.ID.String()),
				zap.Error(err))
		}
	}(*c)
}
