package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"medconsult/internal/consultation"
)

const fallbackModelName = "keyword_fallback"

// fallbackAdvice maps symptom keywords to canned guidance used when the
// medical model is unreachable.
var fallbackAdvice = map[string]string{
	"fever":        "Rest, stay hydrated, and monitor your temperature. Paracetamol can help reduce fever.",
	"headache":     "Rest in a quiet, dark room and stay hydrated. Over-the-counter pain relief may help.",
	"cough":        "Stay hydrated and rest. Warm fluids with honey can soothe the throat.",
	"sore throat":  "Gargle with warm salt water and stay hydrated. Lozenges may provide relief.",
	"nausea":       "Eat small, bland meals and sip clear fluids. Avoid strong smells and fatty foods.",
	"vomiting":     "Sip small amounts of clear fluids frequently to avoid dehydration.",
	"abdominal":    "Avoid solid food for a few hours, then reintroduce bland foods slowly.",
	"stomach pain": "Avoid solid food for a few hours, then reintroduce bland foods slowly.",
	"back pain":    "Apply heat or cold, keep gently active, and avoid heavy lifting.",
	"joint pain":   "Rest the affected joint and apply ice. Anti-inflammatory medication may help.",
	"muscle pain":  "Rest, gentle stretching, and warm compresses usually help.",
	"rash":         "Keep the area clean and dry. Avoid scratching and known irritants.",
	"dizziness":    "Sit or lie down until it passes. Stand up slowly and stay hydrated.",
	"fatigue":      "Prioritize sleep, eat regular meals, and stay hydrated.",
}

// FallbackClient is a degraded-mode MedicalClient used when the model
// service is down. It never fails.
type FallbackClient struct{}

func NewFallbackClient() *FallbackClient { return &FallbackClient{} }

func (f *FallbackClient) Name() string { return fallbackModelName }

func (f *FallbackClient) Ping(ctx context.Context) error { return nil }

func (f *FallbackClient) Analyze(ctx context.Context, symptoms *consultation.Symptoms, patient *consultation.Patient) (*consultation.MedicalResponse, error) {
	urgency := consultation.UrgencyLow
	if len(symptoms.HighSeveritySymptoms()) > 0 {
		urgency = consultation.UrgencyMedium
	}
	if symptoms.HasEmergencyIndicators() {
		urgency = consultation.UrgencyCritical
	}

	text := f.buildText(symptoms)
	resp, err := consultation.NewMedicalResponse(text, 0.3, urgency, fallbackModelName)
	if err != nil {
		return nil, err
	}

	if urgency == consultation.UrgencyCritical {
		for _, kw := range symptoms.EmergencyMatches() {
			resp.AddRedFlag(fmt.Sprintf("Emergency indicator: %s", kw))
		}
		resp.AddRecommendation("Call emergency services or go to the nearest emergency department immediately.")
	} else {
		resp.AddRecommendation("Consult a healthcare provider if symptoms persist or worsen.")
		resp.AddRecommendation("Monitor your symptoms over the next 24-48 hours.")
	}
	return resp, nil
}

func (f *FallbackClient) buildText(symptoms *consultation.Symptoms) string {
	if symptoms.HasEmergencyIndicators() {
		return "Your description contains symptoms that may indicate a medical emergency. Please seek immediate medical attention."
	}

	var b strings.Builder
	b.WriteString("The medical analysis service is temporarily unavailable, so this is basic guidance only.\n")

	keywords := make([]string, 0, len(fallbackAdvice))
	for keyword := range fallbackAdvice {
		keywords = append(keywords, keyword)
	}
	sort.Strings(keywords)

	matched := false
	lower := strings.ToLower(symptoms.RawText)
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			fmt.Fprintf(&b, "\nRegarding %s: %s", keyword, fallbackAdvice[keyword])
			matched = true
		}
	}
	if !matched {
		b.WriteString("\nWe could not match your symptoms to specific guidance. Please consult a healthcare provider for an assessment.")
	}
	return b.String()
}
