package progress

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Stage identifies a phase of consultation processing.
type Stage string

const (
	StageInitializing              Stage = "initializing"
	StageAnalyzingSymptoms         Stage = "analyzing_symptoms"
	StageCheckingMedicalDatabase   Stage = "checking_medical_database"
	StageGeneratingQuestions       Stage = "generating_questions"
	StageProcessingResponses       Stage = "processing_responses"
	StageFindingMedications        Stage = "finding_medications"
	StageGeneratingRecommendations Stage = "generating_recommendations"
	StageFinalizingAssessment      Stage = "finalizing_assessment"
	StageComplete                  Stage = "complete"
)

type step struct {
	stage       Stage
	message     string
	estimated   time.Duration
	startedAt   time.Time
	completedAt time.Time
}

func (s *step) done() bool { return !s.completedAt.IsZero() }

func defaultSteps() []*step {
	return []*step{
		{stage: StageInitializing, message: "Initializing medical analysis...", estimated: 500 * time.Millisecond},
		{stage: StageAnalyzingSymptoms, message: "Analyzing your symptoms...", estimated: 2000 * time.Millisecond},
		{stage: StageCheckingMedicalDatabase, message: "Checking medical database...", estimated: 1500 * time.Millisecond},
		{stage: StageGeneratingQuestions, message: "Generating follow-up questions...", estimated: 1000 * time.Millisecond},
		{stage: StageFindingMedications, message: "Finding medication recommendations...", estimated: 1200 * time.Millisecond},
		{stage: StageGeneratingRecommendations, message: "Generating medical recommendations...", estimated: 800 * time.Millisecond},
		{stage: StageFinalizingAssessment, message: "Finalizing assessment...", estimated: 300 * time.Millisecond},
	}
}

// Update is what gets pushed to WebSocket subscribers.
type Update struct {
	SessionID            string    `json:"session_id"`
	Stage                Stage     `json:"stage"`
	Message              string    `json:"message"`
	ProgressPercentage   float64   `json:"progress"`
	EstimatedRemainingMs int64     `json:"estimated_time_remaining_ms"`
	Timestamp            time.Time `json:"timestamp"`
}

// Publisher receives progress updates. The WebSocket hub implements this.
type Publisher interface {
	PublishProgress(update Update)
}

type session struct {
	id        string
	steps     []*step
	startedAt time.Time
	total     time.Duration
}

// Tracker reports per-session progress during consultation processing.
// Percentage is weighted by each stage's estimated duration and capped at
// 95 until Complete is called.
type Tracker struct {
	mu        sync.Mutex
	sessions  map[string]*session
	publisher Publisher
	logger    *zap.Logger
}

func NewTracker(publisher Publisher, logger *zap.Logger) *Tracker {
	return &Tracker{
		sessions:  make(map[string]*session),
		publisher: publisher,
		logger:    logger,
	}
}

// Start begins tracking a consultation session.
func (t *Tracker) Start(sessionID string) {
	steps := defaultSteps()
	var total time.Duration
	for _, s := range steps {
		total += s.estimated
	}

	t.mu.Lock()
	t.sessions[sessionID] = &session{
		id:        sessionID,
		steps:     steps,
		startedAt: time.Now(),
		total:     total,
	}
	t.mu.Unlock()

	t.publish(Update{
		SessionID:            sessionID,
		Stage:                StageInitializing,
		Message:              "Starting medical analysis...",
		ProgressPercentage:   0,
		EstimatedRemainingMs: total.Milliseconds(),
		Timestamp:            time.Now(),
	})
}

// Advance marks the session as having reached the given stage.
func (t *Tracker) Advance(sessionID string, stage Stage) {
	t.mu.Lock()
	sess, ok := t.sessions[sessionID]
	if !ok {
		t.mu.Unlock()
		t.logger.Warn("progress update for unknown session", zap.String("session_id", sessionID))
		return
	}

	now := time.Now()
	idx := -1
	for i, s := range sess.steps {
		if s.stage == stage {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.mu.Unlock()
		return
	}

	current := sess.steps[idx]
	if current.startedAt.IsZero() {
		current.startedAt = now
		for _, prev := range sess.steps[:idx] {
			if !prev.done() {
				prev.completedAt = now
			}
		}
	}

	completed := time.Duration(0)
	for _, s := range sess.steps[:idx] {
		if s.done() {
			completed += s.estimated
		}
	}
	elapsed := now.Sub(current.startedAt)
	if elapsed > current.estimated {
		elapsed = current.estimated
	}
	completed += elapsed

	pct := float64(completed) / float64(sess.total) * 100
	if pct > 95 {
		pct = 95
	}
	remaining := sess.total - completed
	if remaining < 0 {
		remaining = 0
	}
	message := current.message
	t.mu.Unlock()

	t.publish(Update{
		SessionID:            sessionID,
		Stage:                stage,
		Message:              message,
		ProgressPercentage:   pct,
		EstimatedRemainingMs: remaining.Milliseconds(),
		Timestamp:            now,
	})
}

// Complete finishes the session at 100% and forgets it.
func (t *Tracker) Complete(sessionID, finalMessage string) {
	if finalMessage == "" {
		finalMessage = "Analysis complete"
	}

	t.mu.Lock()
	sess, ok := t.sessions[sessionID]
	if ok {
		delete(t.sessions, sessionID)
	}
	t.mu.Unlock()
	if !ok {
		return
	}

	t.publish(Update{
		SessionID:          sessionID,
		Stage:              StageComplete,
		Message:            finalMessage,
		ProgressPercentage: 100,
		Timestamp:          time.Now(),
	})
	t.logger.Debug("progress tracking completed",
		zap.String("session_id", sessionID),
		zap.Duration("elapsed", time.Since(sess.startedAt)))
}

// ActiveSessions reports how many consultations are currently in flight.
func (t *Tracker) ActiveSessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

func (t *Tracker) publish(u Update) {
	if t.publisher != nil {
		t.publisher.PublishProgress(u)
	}
}
