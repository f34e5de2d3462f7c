package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captivePublisher struct {
	updates []Update
}

func (p *captivePublisher) PublishProgress(u Update) {
	p.updates = append(p.updates, u)
}

func (p *captivePublisher) last() Update {
	return p.updates[len(p.updates)-1]
}

func TestTracker_StartPublishesInitialUpdate(t *testing.T) {
	pub := &captivePublisher{}
	tracker := NewTracker(pub, zap.NewNop())

	tracker.Start("sess-1")

	require.Len(t, pub.updates, 1)
	u := pub.updates[0]
	assert.Equal(t, "sess-1", u.SessionID)
	assert.Equal(t, StageInitializing, u.Stage)
	assert.Equal(t, float64(0), u.ProgressPercentage)
	assert.Greater(t, u.EstimatedRemainingMs, int64(0))
	assert.Equal(t, 1, tracker.ActiveSessions())
}

func TestTracker_AdvanceIncreasesPercentage(t *testing.T) {
	pub := &captivePublisher{}
	tracker := NewTracker(pub, zap.NewNop())
	tracker.Start("sess-2")

	tracker.Advance("sess-2", StageAnalyzingSymptoms)
	first := pub.last()
	assert.Equal(t, StageAnalyzingSymptoms, first.Stage)
	assert.Equal(t, "Analyzing your symptoms...", first.Message)

	tracker.Advance("sess-2", StageFinalizingAssessment)
	later := pub.last()
	assert.Equal(t, StageFinalizingAssessment, later.Stage)
	assert.Greater(t, later.ProgressPercentage, first.ProgressPercentage)
	assert.LessOrEqual(t, later.ProgressPercentage, float64(95))
}

func TestTracker_PercentageCappedBeforeComplete(t *testing.T) {
	pub := &captivePublisher{}
	tracker := NewTracker(pub, zap.NewNop())
	tracker.Start("sess-3")

	for _, stage := range []Stage{
		StageAnalyzingSymptoms,
		StageCheckingMedicalDatabase,
		StageGeneratingQuestions,
		StageFindingMedications,
		StageGeneratingRecommendations,
		StageFinalizingAssessment,
	} {
		tracker.Advance("sess-3", stage)
	}
	// Advancing past the final stage marks everything before it complete.
	tracker.Advance("sess-3", StageFinalizingAssessment)

	assert.LessOrEqual(t, pub.last().ProgressPercentage, float64(95))
}

func TestTracker_CompleteReports100AndForgets(t *testing.T) {
	pub := &captivePublisher{}
	tracker := NewTracker(pub, zap.NewNop())
	tracker.Start("sess-4")

	tracker.Complete("sess-4", "")

	u := pub.last()
	assert.Equal(t, StageComplete, u.Stage)
	assert.Equal(t, float64(100), u.ProgressPercentage)
	assert.Equal(t, "Analysis complete", u.Message)
	assert.Equal(t, 0, tracker.ActiveSessions())

	// Completing again is a no-op.
	before := len(pub.updates)
	tracker.Complete("sess-4", "")
	assert.Equal(t, before, len(pub.updates))
}

func TestTracker_UnknownSessionIsSafe(t *testing.T) {
	pub := &captivePublisher{}
	tracker := NewTracker(pub, zap.NewNop())

	tracker.Advance("ghost", StageAnalyzingSymptoms)
	tracker.Complete("ghost", "")
	assert.Empty(t, pub.updates)
}

func TestTracker_NilPublisher(t *testing.T) {
	tracker := NewTracker(nil, zap.NewNop())
	tracker.Start("sess-5")
	tracker.Advance("sess-5", StageAnalyzingSymptoms)
	tracker.Complete("sess-5", "done")
	assert.Equal(t, 0, tracker.ActiveSessions())
}
