package consultation

import (
	"fmt"
	"regexp"
	"strings"
)

// SymptomSeverity grades an individual extracted symptom.
type SymptomSeverity string

const (
	SeverityMild     SymptomSeverity = "mild"
	SeverityModerate SymptomSeverity = "moderate"
	SeveritySevere   SymptomSeverity = "severe"
	SeverityCritical SymptomSeverity = "critical"
)

// SymptomCategory groups symptoms by body system.
type SymptomCategory string

const (
	CategoryPain             SymptomCategory = "pain"
	CategoryRespiratory      SymptomCategory = "respiratory"
	CategoryCardiovascular   SymptomCategory = "cardiovascular"
	CategoryNeurological     SymptomCategory = "neurological"
	CategoryGastrointestinal SymptomCategory = "gastrointestinal"
	CategoryMusculoskeletal  SymptomCategory = "musculoskeletal"
	CategoryGeneral          SymptomCategory = "general"
	CategoryOther            SymptomCategory = "other"
)

var symptomPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:chest|heart)\s+pain\b`),
	regexp.MustCompile(`\bshortness\s+of\s+breath\b`),
	regexp.MustCompile(`\bdifficulty\s+breathing\b`),
	regexp.MustCompile(`\bheadache\b`),
	regexp.MustCompile(`\bnausea\b`),
	regexp.MustCompile(`\bvomiting\b`),
	regexp.MustCompile(`\bfever\b`),
	regexp.MustCompile(`\bchills\b`),
	regexp.MustCompile(`\bdizziness\b`),
	regexp.MustCompile(`\bfatigue\b`),
	regexp.MustCompile(`\bweakness\b`),
	regexp.MustCompile(`\bcough\b`),
	regexp.MustCompile(`\bsore\s+throat\b`),
	regexp.MustCompile(`\babdominal\s+pain\b`),
	regexp.MustCompile(`\bstomach\s+pain\b`),
	regexp.MustCompile(`\bback\s+pain\b`),
	regexp.MustCompile(`\bjoint\s+pain\b`),
	regexp.MustCompile(`\bmuscle\s+pain\b`),
	regexp.MustCompile(`\brash\b`),
	regexp.MustCompile(`\bswelling\b`),
	regexp.MustCompile(`\bnumbness\b`),
	regexp.MustCompile(`\btingling\b`),
	regexp.MustCompile(`\bblurred\s+vision\b`),
	regexp.MustCompile(`\bconfusion\b`),
	regexp.MustCompile(`\bpalpitations\b`),
}

// emergencyKeywords trigger the emergency path regardless of model output.
var emergencyKeywords = []string{
	"chest pain",
	"difficulty breathing",
	"shortness of breath",
	"severe headache",
	"confusion",
	"loss of consciousness",
}

var (
	criticalKeywords = []string{"critical", "emergency", "life-threatening", "urgent"}
	severeKeywords   = []string{"severe", "intense", "excruciating", "unbearable", "worst"}
	moderateKeywords = []string{"moderate", "significant", "noticeable", "concerning"}
	mildKeywords     = []string{"mild", "slight", "minor", "little"}
)

var durationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`for\s+\d+\s+(?:minutes?|hours?|days?|weeks?|months?)`),
	regexp.MustCompile(`since\s+(?:yesterday|today|this\s+morning|last\s+week)`),
	regexp.MustCompile(`\d+\s+(?:minutes?|hours?|days?|weeks?|months?)\s+ago`),
	regexp.MustCompile(`\b(?:sudden|suddenly|gradual|gradually)\b`),
	regexp.MustCompile(`\b(?:chronic|acute|persistent|intermittent)\b`),
}

var locationKeywords = []string{
	"left", "right", "center", "upper", "lower", "front", "back",
	"chest", "abdomen", "head", "neck", "arm", "leg", "hand", "foot",
}

var categoryKeywords = []struct {
	category SymptomCategory
	keywords []string
}{
	{CategoryCardiovascular, []string{"chest pain", "heart", "palpitations"}},
	{CategoryRespiratory, []string{"breath", "breathing", "cough", "wheeze"}},
	{CategoryNeurological, []string{"headache", "dizziness", "numbness", "confusion"}},
	{CategoryGastrointestinal, []string{"nausea", "vomiting", "abdominal", "stomach"}},
	{CategoryMusculoskeletal, []string{"joint", "muscle", "back pain"}},
	{CategoryGeneral, []string{"fever", "fatigue", "weakness", "chills"}},
	{CategoryPain, []string{"pain", "ache", "hurt", "sore"}},
}

// Symptoms is an immutable value object built from the patient's free text.
type Symptoms struct {
	RawText   string                     `json:"raw_text"`
	Extracted []string                   `json:"extracted_symptoms"`
	Severity  map[string]SymptomSeverity `json:"severity_indicators"`
	Duration  map[string]string          `json:"duration_indicators"`
	Location  map[string]string          `json:"location_indicators"`
}

// ParseSymptoms extracts symptoms and their qualifiers from raw text.
func ParseSymptoms(text string) (*Symptoms, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("symptom text cannot be empty")
	}

	lower := strings.ToLower(text)
	extracted := extractSymptoms(lower)

	s := &Symptoms{
		RawText:   text,
		Extracted: extracted,
		Severity:  make(map[string]SymptomSeverity, len(extracted)),
		Duration:  make(map[string]string),
		Location:  make(map[string]string),
	}
	for _, symptom := range extracted {
		ctx := symptomContext(lower, symptom, 10)
		s.Severity[symptom] = severityFromContext(ctx)
		if d := durationFromContext(ctx); d != "" {
			s.Duration[symptom] = d
		}
		if l := locationFromContext(ctx); l != "" {
			s.Location[symptom] = l
		}
	}
	return s, nil
}

func extractSymptoms(lower string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, pattern := range symptomPatterns {
		for _, match := range pattern.FindAllString(lower, -1) {
			if !seen[match] {
				seen[match] = true
				out = append(out, match)
			}
		}
	}
	return out
}

// symptomContext returns the words surrounding the symptom so severity and
// duration qualifiers are attributed to the right symptom.
func symptomContext(lower, symptom string, contextWords int) string {
	words := strings.Fields(lower)
	symptomWords := strings.Fields(symptom)

	for i := 0; i+len(symptomWords) <= len(words); i++ {
		matched := true
		for j, sw := range symptomWords {
			if !strings.Contains(words[i+j], sw) {
				matched = false
				break
			}
		}
		if matched {
			start := max(0, i-contextWords)
			end := min(len(words), i+len(symptomWords)+contextWords)
			return strings.Join(words[start:end], " ")
		}
	}
	return lower
}

func severityFromContext(ctx string) SymptomSeverity {
	switch {
	case containsAny(ctx, criticalKeywords):
		return SeverityCritical
	case containsAny(ctx, severeKeywords):
		return SeveritySevere
	case containsAny(ctx, moderateKeywords):
		return SeverityModerate
	case containsAny(ctx, mildKeywords):
		return SeverityMild
	default:
		return SeverityModerate
	}
}

func durationFromContext(ctx string) string {
	for _, pattern := range durationPatterns {
		if match := pattern.FindString(ctx); match != "" {
			return match
		}
	}
	return ""
}

func locationFromContext(ctx string) string {
	var found []string
	for _, loc := range locationKeywords {
		if strings.Contains(ctx, loc) {
			found = append(found, loc)
		}
	}
	return strings.Join(found, ", ")
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Categories maps each extracted symptom to its body-system category.
func (s *Symptoms) Categories() map[string]SymptomCategory {
	out := make(map[string]SymptomCategory, len(s.Extracted))
	for _, symptom := range s.Extracted {
		out[symptom] = CategoryOther
		for _, entry := range categoryKeywords {
			if containsAny(symptom, entry.keywords) {
				out[symptom] = entry.category
				break
			}
		}
	}
	return out
}

// HighSeveritySymptoms lists symptoms graded severe or critical.
func (s *Symptoms) HighSeveritySymptoms() []string {
	var out []string
	for _, symptom := range s.Extracted {
		if sev := s.Severity[symptom]; sev == SeveritySevere || sev == SeverityCritical {
			out = append(out, symptom)
		}
	}
	return out
}

// HasEmergencyIndicators scans the raw text against the emergency keyword list.
func (s *Symptoms) HasEmergencyIndicators() bool {
	return containsAny(strings.ToLower(s.RawText), emergencyKeywords)
}

// EmergencyMatches returns which emergency keywords appear in the text.
func (s *Symptoms) EmergencyMatches() []string {
	lower := strings.ToLower(s.RawText)
	var out []string
	for _, kw := range emergencyKeywords {
		if strings.Contains(lower, kw) {
			out = append(out, kw)
		}
	}
	return out
}
