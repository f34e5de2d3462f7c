package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medconsult/internal/consultation"
)

func symptomsFor(t *testing.T, text string) *consultation.Symptoms {
	t.Helper()
	s, err := consultation.ParseSymptoms(text)
	require.NoError(t, err)
	return s
}

func TestFallback_MatchedKeywordAdvice(t *testing.T) {
	client := NewFallbackClient()

	resp, err := client.Analyze(context.Background(), symptomsFor(t, "I have a headache and some fatigue"), nil)
	require.NoError(t, err)

	assert.Equal(t, "keyword_fallback", resp.ModelUsed)
	assert.Contains(t, resp.ResponseText, "Regarding headache:")
	assert.Contains(t, resp.ResponseText, "Regarding fatigue:")
	assert.InDelta(t, 0.3, resp.Confidence, 0.001)
	assert.Equal(t, consultation.UrgencyLow, resp.Urgency)
	assert.Contains(t, resp.Recommendations, "Monitor your symptoms over the next 24-48 hours.")

	// Matched advice is emitted in keyword order, so repeated calls for
	// the same symptoms produce identical text.
	assert.Less(t,
		strings.Index(resp.ResponseText, "Regarding fatigue:"),
		strings.Index(resp.ResponseText, "Regarding headache:"))
	again, err := client.Analyze(context.Background(), symptomsFor(t, "I have a headache and some fatigue"), nil)
	require.NoError(t, err)
	assert.Equal(t, resp.ResponseText, again.ResponseText)
}

func TestFallback_UnmatchedSymptoms(t *testing.T) {
	client := NewFallbackClient()

	resp, err := client.Analyze(context.Background(), symptomsFor(t, "a strange tingling in my ear"), nil)
	require.NoError(t, err)
	assert.Contains(t, resp.ResponseText, "could not match your symptoms")
}

func TestFallback_EmergencyIndicatorsEscalate(t *testing.T) {
	client := NewFallbackClient()

	resp, err := client.Analyze(context.Background(), symptomsFor(t, "sudden chest pain and difficulty breathing"), nil)
	require.NoError(t, err)

	assert.Equal(t, consultation.UrgencyCritical, resp.Urgency)
	assert.True(t, resp.Urgency.IsEmergency())
	assert.Contains(t, resp.ResponseText, "medical emergency")

	foundFlag := false
	for _, flag := range resp.RedFlags {
		if strings.HasPrefix(flag, "Emergency indicator:") {
			foundFlag = true
		}
	}
	assert.True(t, foundFlag)
	assert.Contains(t, resp.Recommendations, "Call emergency services or go to the nearest emergency department immediately.")
}

func TestFallback_Ping(t *testing.T) {
	assert.NoError(t, NewFallbackClient().Ping(context.Background()))
}

func TestParseAssessment_PlainJSON(t *testing.T) {
	a, err := parseAssessment(`{"response_text": "Rest and fluids.", "confidence": 0.7, "urgency": "low"}`)
	require.NoError(t, err)
	assert.Equal(t, "Rest and fluids.", a.ResponseText)
	assert.Equal(t, 0.7, a.Confidence)
	assert.Equal(t, "low", a.Urgency)
}

func TestParseAssessment_MarkdownFenced(t *testing.T) {
	content := "```json\n{\"response_text\": \"See a doctor.\", \"confidence\": 0.5, \"urgency\": \"high\"}\n```"
	a, err := parseAssessment(content)
	require.NoError(t, err)
	assert.Equal(t, "See a doctor.", a.ResponseText)
	assert.Equal(t, "high", a.Urgency)
}

func TestParseAssessment_Malformed(t *testing.T) {
	_, err := parseAssessment("the patient should rest")
	assert.Error(t, err)
}

func TestUrgencyFromModel(t *testing.T) {
	cases := map[string]consultation.UrgencyLevel{
		"low":       consultation.UrgencyLow,
		"medium":    consultation.UrgencyMedium,
		"moderate":  consultation.UrgencyMedium,
		"high":      consultation.UrgencyHigh,
		"critical":  consultation.UrgencyCritical,
		"EMERGENCY": consultation.UrgencyCritical,
		"unknown":   consultation.UrgencyMedium,
	}
	for input, want := range cases {
		assert.Equal(t, want, urgencyFromModel(input), input)
	}
}
