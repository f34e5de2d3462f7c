package consultation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSymptoms_ExtractsKnownSymptoms(t *testing.T) {
	s, err := ParseSymptoms("I have a headache and fever since yesterday, also some nausea")
	require.NoError(t, err)

	assert.Contains(t, s.Extracted, "headache")
	assert.Contains(t, s.Extracted, "fever")
	assert.Contains(t, s.Extracted, "nausea")
}

func TestParseSymptoms_EmptyText(t *testing.T) {
	_, err := ParseSymptoms("   ")
	require.Error(t, err)
}

func TestParseSymptoms_SeverityFromContext(t *testing.T) {
	s, err := ParseSymptoms("I have a severe headache that started suddenly this morning and has not improved at all even after resting quietly, plus a mild cough")
	require.NoError(t, err)

	assert.Equal(t, SeveritySevere, s.Severity["headache"])
	assert.Equal(t, SeverityMild, s.Severity["cough"])
}

func TestParseSymptoms_DefaultSeverityIsModerate(t *testing.T) {
	s, err := ParseSymptoms("I have a headache")
	require.NoError(t, err)
	assert.Equal(t, SeverityModerate, s.Severity["headache"])
}

func TestParseSymptoms_Duration(t *testing.T) {
	s, err := ParseSymptoms("persistent cough for 3 days")
	require.NoError(t, err)
	assert.NotEmpty(t, s.Duration["cough"])
}

func TestSymptoms_EmergencyIndicators(t *testing.T) {
	cases := []struct {
		text      string
		emergency bool
	}{
		{"crushing chest pain radiating to my arm", true},
		{"difficulty breathing after climbing stairs", true},
		{"sudden loss of consciousness this morning", true},
		{"a mild headache and runny nose", false},
		{"sore throat and fatigue", false},
	}
	for _, tc := range cases {
		s, err := ParseSymptoms(tc.text)
		require.NoError(t, err)
		assert.Equal(t, tc.emergency, s.HasEmergencyIndicators(), tc.text)
	}
}

func TestSymptoms_EmergencyMatches(t *testing.T) {
	s, err := ParseSymptoms("chest pain and shortness of breath")
	require.NoError(t, err)

	matches := s.EmergencyMatches()
	assert.Contains(t, matches, "chest pain")
	assert.Contains(t, matches, "shortness of breath")
}

func TestSymptoms_Categories(t *testing.T) {
	s, err := ParseSymptoms("I have chest pain, a cough, and nausea")
	require.NoError(t, err)

	categories := s.Categories()
	assert.Equal(t, CategoryCardiovascular, categories["chest pain"])
	assert.Equal(t, CategoryRespiratory, categories["cough"])
	assert.Equal(t, CategoryGastrointestinal, categories["nausea"])
}

func TestSymptoms_HighSeveritySymptoms(t *testing.T) {
	s, err := ParseSymptoms("excruciating back pain that began after lifting boxes in the garage two days ago, and separately some slight dizziness when standing")
	require.NoError(t, err)

	high := s.HighSeveritySymptoms()
	assert.Contains(t, high, "back pain")
	assert.NotContains(t, high, "dizziness")
}
