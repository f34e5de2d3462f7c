package diagnosis

import (
	"fmt"
	"strings"

	"medconsult/internal/consultation"
)

type QuestionType string

const (
	QuestionYesNo          QuestionType = "yes_no"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionScale          QuestionType = "scale"
	QuestionText           QuestionType = "text"
)

// Question is a follow-up question presented to the patient.
type Question struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"question_type"`
	Options []string     `json:"options,omitempty"`
	Context string       `json:"context,omitempty"`
}

var scaleOptions = []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}

var questionTemplates = map[string]Question{
	"symptom_duration": {
		ID:      "symptom_duration",
		Text:    "How long have you been experiencing these symptoms?",
		Type:    QuestionMultipleChoice,
		Options: []string{"Less than 1 day", "1-3 days", "4-7 days", "1-2 weeks", "More than 2 weeks"},
		Context: "duration assessment",
	},
	"symptom_progression": {
		ID:      "symptom_progression",
		Text:    "Are your symptoms getting better, worse, or staying the same?",
		Type:    QuestionMultipleChoice,
		Options: []string{"Getting better", "Getting worse", "Staying the same", "Fluctuating"},
		Context: "progression assessment",
	},
	"fever_severity": {
		ID:      "fever_severity",
		Text:    "How would you rate your fever on a scale of 1-10?",
		Type:    QuestionScale,
		Options: scaleOptions,
		Context: "fever assessment",
	},
	"pain_location": {
		ID:      "pain_location",
		Text:    "Where exactly is your pain located?",
		Type:    QuestionMultipleChoice,
		Options: []string{"Head", "Chest", "Abdomen", "Back", "Arms", "Legs", "Other"},
		Context: "pain assessment",
	},
	"medication_taken": {
		ID:      "medication_taken",
		Text:    "Have you taken any medications for these symptoms?",
		Type:    QuestionYesNo,
		Context: "medication history",
	},
}

// contextualQuestions builds the initial question list for the session.
// Duration, progression, and medication questions are always asked;
// fever and pain questions only when the symptoms mention them.
func contextualQuestions(symptoms *consultation.Symptoms, patient *consultation.Patient) []Question {
	text := strings.ToLower(symptoms.RawText)
	questions := []Question{
		questionTemplates["symptom_duration"],
		questionTemplates["symptom_progression"],
	}

	if containsAny(text, "fever", "temperature", "hot") {
		questions = append(questions, questionTemplates["fever_severity"])
	}
	if containsAny(text, "pain", "ache", "hurt") {
		questions = append(questions, questionTemplates["pain_location"])
	}

	questions = append(questions, questionTemplates["medication_taken"])

	if patient != nil {
		switch {
		case patient.Age > 65:
			questions = append(questions, Question{
				ID:      "elderly_specific",
				Text:    "Have you experienced any falls or dizziness recently?",
				Type:    QuestionYesNo,
				Context: "elderly assessment",
			})
		case patient.Age > 0 && patient.Age < 18:
			questions = append(questions, Question{
				ID:      "pediatric_specific",
				Text:    "Has the child been eating and drinking normally?",
				Type:    QuestionYesNo,
				Context: "pediatric assessment",
			})
		}
	}
	return questions
}

// followUpFor generates questions triggered by a specific answer.
func followUpFor(questionID, answer string) []Question {
	switch {
	case questionID == "pain_location" && answer != "Other":
		loc := strings.ToLower(answer)
		return []Question{{
			ID:      "pain_severity_" + loc,
			Text:    fmt.Sprintf("How severe is your %s pain on a scale of 1-10?", loc),
			Type:    QuestionScale,
			Options: scaleOptions,
			Context: loc + " pain assessment",
		}}
	case questionID == "medication_taken" && isYes(answer):
		return []Question{{
			ID:      "medications_list",
			Text:    "What medications have you taken?",
			Type:    QuestionText,
			Context: "medication details",
		}}
	case questionID == "symptom_progression" && answer == "Getting worse":
		return []Question{{
			ID:      "worsening_rate",
			Text:    "How quickly are your symptoms getting worse?",
			Type:    QuestionMultipleChoice,
			Options: []string{"Very rapidly (hours)", "Gradually (days)", "Slowly (weeks)"},
			Context: "progression rate",
		}}
	}
	return nil
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "yes", "true", "y":
		return true
	}
	return false
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
