package diagnosis

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"medconsult/internal/consultation"
	"medconsult/internal/progress"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("diagnosis session not found")

const (
	sessionMaxAge     = 2 * time.Hour
	questionsPerRound = 2
	initialConfidence = 0.3
)

// Analyzer produces the final assessment once questioning is done.
type Analyzer interface {
	Analyze(ctx context.Context, symptoms *consultation.Symptoms, patient *consultation.Patient) (*consultation.MedicalResponse, error)
}

// AnalyzerFunc adapts a function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, symptoms *consultation.Symptoms, patient *consultation.Patient) (*consultation.MedicalResponse, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, symptoms *consultation.Symptoms, patient *consultation.Patient) (*consultation.MedicalResponse, error) {
	return f(ctx, symptoms, patient)
}

// Broadcaster pushes the completion event to WebSocket clients.
type Broadcaster interface {
	Broadcast(eventType string, data interface{})
}

type answer struct {
	QuestionID string    `json:"question_id"`
	Answer     string    `json:"answer"`
	AnsweredAt time.Time `json:"answered_at"`
}

type session struct {
	id         string
	symptoms   *consultation.Symptoms
	patient    *consultation.Patient
	pending    []Question
	asked      int
	answers    []answer
	confidence float64
	startedAt  time.Time
}

// Progress reports how far along a session is.
type Progress struct {
	Percentage  float64 `json:"percentage"`
	CurrentStep string  `json:"current_step"`
	Confidence  float64 `json:"confidence"`
}

// SessionSummary recaps a finished session.
type SessionSummary struct {
	DurationSeconds   float64 `json:"duration_seconds"`
	QuestionsAnswered int     `json:"questions_answered"`
	FinalConfidence   float64 `json:"final_confidence"`
}

// Round is returned by Start and Answer: the next questions to ask, or
// the final diagnosis when the session is complete.
type Round struct {
	SessionID              string                        `json:"session_id"`
	Questions              []Question                    `json:"questions,omitempty"`
	Progress               Progress                      `json:"progress"`
	IsComplete             bool                          `json:"is_complete"`
	FinalDiagnosis         *consultation.MedicalResponse `json:"final_diagnosis,omitempty"`
	RiskFactors            []string                      `json:"risk_factors,omitempty"`
	SessionSummary         *SessionSummary               `json:"session_summary,omitempty"`
	EstimatedTimeRemaining string                        `json:"estimated_time_remaining,omitempty"`
}

// Service runs interactive diagnosis sessions: a few rounds of targeted
// questions, then a final model assessment enriched with the answers.
type Service struct {
	analyzer    Analyzer
	broadcaster Broadcaster
	logger      *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

func NewService(analyzer Analyzer, broadcaster Broadcaster, logger *zap.Logger) *Service {
	return &Service{
		analyzer:    analyzer,
		broadcaster: broadcaster,
		logger:      logger,
		sessions:    make(map[string]*session),
	}
}

// Start opens a session and returns the first round of questions.
func (s *Service) Start(ctx context.Context, symptoms *consultation.Symptoms, patient *consultation.Patient) (*Round, error) {
	questions := contextualQuestions(symptoms, patient)

	sess := &session{
		id:         uuid.NewString(),
		symptoms:   symptoms,
		patient:    patient,
		pending:    questions,
		confidence: initialConfidence,
		startedAt:  time.Now(),
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	first := sess.take(questionsPerRound)
	initial := sess.progress("Initial Assessment")
	s.mu.Unlock()

	s.logger.Info("interactive diagnosis session started",
		zap.String("session_id", sess.id),
		zap.Int("planned_questions", len(questions)))

	return &Round{
		SessionID:              sess.id,
		Questions:              first,
		Progress:               initial,
		EstimatedTimeRemaining: "2-3 minutes",
	}, nil
}

// Answer records a response and returns the next round. When no questions
// remain, it completes the session with a final assessment.
func (s *Service) Answer(ctx context.Context, sessionID, questionID, answerText string) (*Round, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}

	sess.answers = append(sess.answers, answer{
		QuestionID: questionID,
		Answer:     answerText,
		AnsweredAt: time.Now(),
	})
	if sess.confidence < 0.9 {
		sess.confidence += 0.1
	}

	// Answer-driven follow-ups go to the front of the queue.
	if extra := followUpFor(questionID, answerText); len(extra) > 0 {
		sess.pending = append(extra, sess.pending...)
	}

	// The next batch is released only once every delivered question has
	// an answer; until then the client still has questions outstanding.
	var next []Question
	if len(sess.answers) >= sess.asked {
		next = sess.take(questionsPerRound)
	}
	done := len(next) == 0 && len(sess.pending) == 0 && len(sess.answers) >= sess.asked
	p := sess.progress("Gathering Details")
	s.mu.Unlock()

	if done {
		return s.complete(ctx, sessionID)
	}

	return &Round{
		SessionID:              sessionID,
		Questions:              next,
		Progress:               p,
		EstimatedTimeRemaining: estimateRemaining(p.Percentage),
	}, nil
}

func (s *Service) complete(ctx context.Context, sessionID string) (*Round, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	if s.broadcaster != nil {
		s.broadcaster.Broadcast("consultation_progress", progress.Update{
			SessionID:          sessionID,
			Stage:              progress.StageProcessingResponses,
			Message:            "Processing your responses...",
			ProgressPercentage: 95,
			Timestamp:          time.Now(),
		})
	}

	enriched, err := enrichSymptoms(sess)
	if err != nil {
		return nil, err
	}
	final, err := s.analyzer.Analyze(ctx, enriched, sess.patient)
	if err != nil {
		return nil, errors.Wrap(err, "final diagnosis failed")
	}

	risks := riskFactors(sess.answers)
	for _, r := range risks {
		final.AddRedFlag(r)
	}

	round := &Round{
		SessionID:      sessionID,
		IsComplete:     true,
		FinalDiagnosis: final,
		RiskFactors:    risks,
		SessionSummary: &SessionSummary{
			DurationSeconds:   time.Since(sess.startedAt).Seconds(),
			QuestionsAnswered: len(sess.answers),
			FinalConfidence:   sess.confidence,
		},
		Progress: Progress{
			Percentage:  100,
			CurrentStep: "Diagnosis Complete",
			Confidence:  final.Confidence,
		},
	}

	if s.broadcaster != nil {
		s.broadcaster.Broadcast("diagnosis_complete", round)
	}
	s.logger.Info("interactive diagnosis session completed",
		zap.String("session_id", sessionID),
		zap.Int("questions_answered", len(sess.answers)),
		zap.Duration("elapsed", time.Since(sess.startedAt)))
	return round, nil
}

// Status reports progress of an active session.
func (s *Service) Status(sessionID string) (*Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	p := sess.progress("Gathering Details")
	return &Round{
		SessionID:              sessionID,
		Progress:               p,
		EstimatedTimeRemaining: estimateRemaining(p.Percentage),
	}, nil
}

// Cancel drops an active session.
func (s *Service) Cancel(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return false
	}
	delete(s.sessions, sessionID)
	return true
}

// CleanupExpired drops sessions older than the max age. Runs on a ticker
// from main.
func (s *Service) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []string
	for id, sess := range s.sessions {
		if time.Since(sess.startedAt) > sessionMaxAge {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(s.sessions, id)
	}
	if len(expired) > 0 {
		s.logger.Info("expired diagnosis sessions removed", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// ActiveSessions reports the number of sessions in flight.
func (s *Service) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// take pops up to n pending questions. Caller holds the lock.
func (sess *session) take(n int) []Question {
	if n > len(sess.pending) {
		n = len(sess.pending)
	}
	out := sess.pending[:n]
	sess.pending = sess.pending[n:]
	sess.asked += len(out)
	return out
}

func (sess *session) progress(step string) Progress {
	total := sess.asked + len(sess.pending)
	pct := 0.0
	if total > 0 {
		pct = float64(len(sess.answers)) / float64(total) * 100
		if pct > 100 {
			pct = 100
		}
	}
	return Progress{Percentage: pct, CurrentStep: step, Confidence: sess.confidence}
}

// enrichSymptoms folds the Q&A transcript into the symptom text so the
// final model call sees everything the patient reported.
func enrichSymptoms(sess *session) (*consultation.Symptoms, error) {
	var b strings.Builder
	b.WriteString(sess.symptoms.RawText)
	for _, a := range sess.answers {
		b.WriteString("\n")
		b.WriteString(a.QuestionID)
		b.WriteString(": ")
		b.WriteString(a.Answer)
	}
	return consultation.ParseSymptoms(b.String())
}

func riskFactors(answers []answer) []string {
	var risks []string
	for _, a := range answers {
		if strings.Contains(a.QuestionID, "pain") {
			if level, err := strconv.Atoi(strings.TrimSpace(a.Answer)); err == nil && level >= 7 {
				risks = append(risks, "High pain level reported")
			}
		}
		if strings.Contains(a.QuestionID, "fever") {
			if level, err := strconv.Atoi(strings.TrimSpace(a.Answer)); err == nil && level >= 8 {
				risks = append(risks, "High fever reported")
			}
		}
		if strings.Contains(a.QuestionID, "progression") && strings.Contains(strings.ToLower(a.Answer), "worse") {
			risks = append(risks, "Symptoms worsening")
		}
	}
	return risks
}

func estimateRemaining(pct float64) string {
	switch {
	case pct >= 90:
		return "Less than 1 minute"
	case pct >= 70:
		return "1-2 minutes"
	case pct >= 50:
		return "2-3 minutes"
	default:
		return "3-5 minutes"
	}
}
