package consultation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UrgencyLevel is the categorical severity attached to a consultation result.
type UrgencyLevel string

const (
	UrgencyLow      UrgencyLevel = "low"
	UrgencyMedium   UrgencyLevel = "medium"
	UrgencyHigh     UrgencyLevel = "high"
	UrgencyCritical UrgencyLevel = "critical"
)

// IsEmergency reports whether the level requires immediate attention.
func (u UrgencyLevel) IsEmergency() bool {
	return u == UrgencyHigh || u == UrgencyCritical
}

// Patient holds optional demographics supplied with a consultation request.
// Consultations are anonymous by default.
type Patient struct {
	Age                int      `json:"age,omitempty"`
	Gender             string   `json:"gender,omitempty"`
	MedicalHistory     []string `json:"medical_history,omitempty"`
	Allergies          []string `json:"allergies,omitempty"`
	CurrentMedications []string `json:"current_medications,omitempty"`
	IsPregnant         bool     `json:"is_pregnant,omitempty"`
}

// NewPatient builds a Patient from raw form values. The medical history
// field arrives as a comma-separated list.
func NewPatient(age int, gender, medicalHistory string) *Patient {
	p := &Patient{Age: age, Gender: gender}
	for _, item := range strings.Split(medicalHistory, ",") {
		if item = strings.TrimSpace(item); item != "" {
			p.MedicalHistory = append(p.MedicalHistory, item)
		}
	}
	return p
}

// MedicalResponse is the analysis returned by a medical model adapter.
type MedicalResponse struct {
	ResponseText      string       `json:"response_text"`
	Confidence        float64      `json:"confidence"`
	Urgency           UrgencyLevel `json:"urgency"`
	Recommendations   []string     `json:"recommendations"`
	RedFlags          []string     `json:"red_flags"`
	ModelUsed         string       `json:"model_used"`
	ProcessingTimeMs  int64        `json:"processing_time_ms,omitempty"`
	FollowUpQuestions []string     `json:"follow_up_questions,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
}

// NewMedicalResponse validates and builds a response.
func NewMedicalResponse(text string, confidence float64, urgency UrgencyLevel, modelUsed string) (*MedicalResponse, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("response text cannot be empty")
	}
	if confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("confidence must be between 0.0 and 1.0, got %v", confidence)
	}
	return &MedicalResponse{
		ResponseText: strings.TrimSpace(text),
		Confidence:   confidence,
		Urgency:      urgency,
		ModelUsed:    modelUsed,
		CreatedAt:    time.Now(),
	}, nil
}

// IsEmergency reports whether the analysis flagged an emergency.
func (m *MedicalResponse) IsEmergency() bool {
	return m.Urgency.IsEmergency()
}

// AddRecommendation appends a recommendation, skipping blanks and duplicates.
func (m *MedicalResponse) AddRecommendation(rec string) {
	rec = strings.TrimSpace(rec)
	if rec == "" {
		return
	}
	for _, existing := range m.Recommendations {
		if existing == rec {
			return
		}
	}
	m.Recommendations = append(m.Recommendations, rec)
}

// AddRedFlag appends a red flag warning, skipping blanks and duplicates.
func (m *MedicalResponse) AddRedFlag(warning string) {
	warning = strings.TrimSpace(warning)
	if warning == "" {
		return
	}
	for _, existing := range m.RedFlags {
		if existing == warning {
			return
		}
	}
	m.RedFlags = append(m.RedFlags, warning)
}

// PatientFriendlyText renders the response for direct display to the patient.
func (m *MedicalResponse) PatientFriendlyText() string {
	var b strings.Builder
	b.WriteString(m.ResponseText)
	b.WriteString("\n\n")

	switch m.Urgency {
	case UrgencyCritical:
		b.WriteString("**EMERGENCY**: Seek immediate medical attention!")
	case UrgencyHigh:
		b.WriteString("**HIGH PRIORITY**: Please consult a healthcare provider soon.")
	case UrgencyMedium:
		b.WriteString("**MEDIUM**: Consider consulting a healthcare provider.")
	default:
		b.WriteString("**LOW PRIORITY**: Monitor symptoms and seek care if they worsen.")
	}
	b.WriteString("\n")

	if len(m.Recommendations) > 0 {
		b.WriteString("\n**Recommendations:**\n")
		for i, rec := range m.Recommendations {
			fmt.Fprintf(&b, "%d. %s\n", i+1, rec)
		}
	}
	if len(m.RedFlags) > 0 {
		b.WriteString("\n**Important Warnings:**\n")
		for _, flag := range m.RedFlags {
			fmt.Fprintf(&b, "- %s\n", flag)
		}
	}

	fmt.Fprintf(&b, "\n**Confidence Level**: %d%%\n", int(m.Confidence*100))
	b.WriteString("\n**Disclaimer**: This is an AI-generated assessment and should not replace professional medical advice. Always consult with a qualified healthcare provider for proper diagnosis and treatment.")
	return b.String()
}

// Consultation represents the aggregate root persisted per request.
type Consultation struct {
	ID            uuid.UUID        `json:"id" db:"id"`
	Patient       *Patient         `json:"patient,omitempty" db:"patient"`
	Symptoms      string           `json:"symptoms" db:"symptoms"`
	Transcription string           `json:"transcription,omitempty" db:"transcription"`
	Response      *MedicalResponse `json:"response,omitempty" db:"response"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	CompletedAt   time.Time        `json:"completed_at,omitempty" db:"completed_at"`
}

// NewConsultation starts a consultation for the given symptom text.
func NewConsultation(symptoms string, patient *Patient) *Consultation {
	return &Consultation{
		ID:        uuid.New(),
		Patient:   patient,
		Symptoms:  symptoms,
		CreatedAt: time.Now(),
	}
}

// Complete attaches the final analysis and stamps the completion time.
func (c *Consultation) Complete(resp *MedicalResponse) {
	c.Response = resp
	c.CompletedAt = time.Now()
	if resp != nil && !c.CreatedAt.IsZero() {
		resp.ProcessingTimeMs = c.CompletedAt.Sub(c.CreatedAt).Milliseconds()
	}
}
