package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"medconsult/internal/consultation"
)

// MedicalClient produces a medical assessment for extracted symptoms.
type MedicalClient interface {
	Analyze(ctx context.Context, symptoms *consultation.Symptoms, patient *consultation.Patient) (*consultation.MedicalResponse, error)
	Ping(ctx context.Context) error
	Name() string
}

const medicalSystemPrompt = `You are a medical assistant providing preliminary symptom assessments.
You are not a doctor and must always recommend professional consultation.
Respond with a single JSON object and nothing else:
{
  "response_text": "plain-language assessment of the symptoms",
  "confidence": 0.0-1.0,
  "urgency": "low" | "medium" | "high" | "critical",
  "recommendations": ["..."],
  "red_flags": ["..."],
  "follow_up_questions": ["..."]
}`

type modelAssessment struct {
	ResponseText      string   `json:"response_text"`
	Confidence        float64  `json:"confidence"`
	Urgency           string   `json:"urgency"`
	Recommendations   []string `json:"recommendations"`
	RedFlags          []string `json:"red_flags"`
	FollowUpQuestions []string `json:"follow_up_questions"`
}

type llmClient struct {
	client *openai.Client
	model  string
}

// NewMedicalLLMClient talks to an OpenAI-compatible chat endpoint hosting
// the medical model. baseURL points at the local inference sidecar.
func NewMedicalLLMClient(baseURL, apiKey, model string) MedicalClient {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	return &llmClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (c *llmClient) Name() string { return c.model }

func (c *llmClient) Analyze(ctx context.Context, symptoms *consultation.Symptoms, patient *consultation.Patient) (*consultation.MedicalResponse, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: medicalSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(symptoms, patient)},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "medical model request failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("medical model returned no choices")
	}

	assessment, err := parseAssessment(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	result, err := consultation.NewMedicalResponse(
		assessment.ResponseText,
		assessment.Confidence,
		urgencyFromModel(assessment.Urgency),
		c.model,
	)
	if err != nil {
		return nil, errors.Wrap(err, "medical model returned invalid assessment")
	}
	for _, rec := range assessment.Recommendations {
		result.AddRecommendation(rec)
	}
	for _, flag := range assessment.RedFlags {
		result.AddRedFlag(flag)
	}
	result.FollowUpQuestions = assessment.FollowUpQuestions

	// Emergency keywords in the raw text override a lenient model.
	if symptoms.HasEmergencyIndicators() && !result.Urgency.IsEmergency() {
		result.Urgency = consultation.UrgencyCritical
		result.AddRedFlag("Emergency symptoms detected in description. Call emergency services if symptoms are acute.")
	}
	return result, nil
}

func (c *llmClient) Ping(ctx context.Context) error {
	_, err := c.client.ListModels(ctx)
	return errors.Wrap(err, "medical model unreachable")
}

func buildPrompt(symptoms *consultation.Symptoms, patient *consultation.Patient) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Patient describes: %s\n", symptoms.RawText)

	if len(symptoms.Extracted) > 0 {
		fmt.Fprintf(&b, "Identified symptoms: %s\n", strings.Join(symptoms.Extracted, ", "))
	}
	for symptom, sev := range symptoms.Severity {
		if sev == consultation.SeveritySevere || sev == consultation.SeverityCritical {
			fmt.Fprintf(&b, "Note: %s appears %s\n", symptom, sev)
		}
	}

	if patient != nil {
		if patient.Age > 0 {
			fmt.Fprintf(&b, "Patient age: %d\n", patient.Age)
		}
		if patient.Gender != "" {
			fmt.Fprintf(&b, "Gender: %s\n", patient.Gender)
		}
		if len(patient.MedicalHistory) > 0 {
			fmt.Fprintf(&b, "Medical history: %s\n", strings.Join(patient.MedicalHistory, ", "))
		}
		if len(patient.CurrentMedications) > 0 {
			fmt.Fprintf(&b, "Current medications: %s\n", strings.Join(patient.CurrentMedications, ", "))
		}
		if patient.IsPregnant {
			b.WriteString("Patient is pregnant\n")
		}
	}
	return b.String()
}

// parseAssessment tolerates models that wrap the JSON in markdown fences.
func parseAssessment(content string) (*modelAssessment, error) {
	content = strings.TrimSpace(content)
	if start := strings.Index(content, "{"); start >= 0 {
		if end := strings.LastIndex(content, "}"); end > start {
			content = content[start : end+1]
		}
	}
	var a modelAssessment
	if err := json.Unmarshal([]byte(content), &a); err != nil {
		return nil, errors.Wrap(err, "medical model returned malformed JSON")
	}
	return &a, nil
}

func urgencyFromModel(s string) consultation.UrgencyLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "emergency":
		return consultation.UrgencyCritical
	case "high":
		return consultation.UrgencyHigh
	case "medium", "moderate":
		return consultation.UrgencyMedium
	case "low":
		return consultation.UrgencyLow
	default:
		return consultation.UrgencyMedium
	}
}
