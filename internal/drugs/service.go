package drugs

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"medconsult/internal/consultation"
)

// Recommendation is a single drug suggestion with patient-specific safety.
type Recommendation struct {
	GenericName          string      `json:"generic_name"`
	BrandNames           []string    `json:"brand_names"`
	Category             Category    `json:"category"`
	Dosage               string      `json:"dosage"`
	Frequency            string      `json:"frequency"`
	Duration             string      `json:"duration"`
	Route                string      `json:"route"`
	SafetyLevel          SafetyLevel `json:"safety_level"`
	IsSafe               bool        `json:"is_safe"`
	Warnings             []string    `json:"warnings,omitempty"`
	Contraindications    []string    `json:"contraindications"`
	SideEffects          []string    `json:"side_effects"`
	PediatricDosage      string      `json:"pediatric_dosage,omitempty"`
	CostRange            string      `json:"cost_range"`
	AvailabilityScore    float64     `json:"availability_score"`
	PrescriptionRequired bool        `json:"prescription_required"`
}

// InteractionReport lists interactions among a set of drugs and the
// patient's current medications.
type InteractionReport struct {
	Interactions []string `json:"interactions"`
	RiskLevel    string   `json:"risk_level"`
}

// Service recommends medications from the static Indian drug table.
type Service struct {
	logger *zap.Logger
}

func NewService(logger *zap.Logger) *Service {
	return &Service{logger: logger}
}

// Recommend returns up to max drug recommendations for a diagnosis and
// symptom set, safest and most available first.
func (s *Service) Recommend(diagnosis string, symptoms *consultation.Symptoms, patient *consultation.Patient, max int) []Recommendation {
	if max <= 0 {
		max = 3
	}
	candidates := candidateDrugs(diagnosis, symptoms)
	s.logger.Debug("drug candidates selected",
		zap.String("diagnosis", diagnosis),
		zap.Strings("candidates", candidates))

	recs := make([]Recommendation, 0, len(candidates))
	for _, name := range candidates {
		info, ok := drugDatabase[name]
		if !ok {
			continue
		}
		safe, warnings := checkSafety(info, patient)
		rec := Recommendation{
			GenericName:          info.GenericName,
			BrandNames:           top(info.BrandNames, 3),
			Category:             info.Category,
			Dosage:               info.StandardDosage,
			Frequency:            info.Frequency,
			Duration:             info.Duration,
			Route:                info.Route,
			SafetyLevel:          info.SafetyLevel,
			IsSafe:               safe,
			Warnings:             warnings,
			Contraindications:    info.Contraindications,
			SideEffects:          top(info.SideEffects, 3),
			CostRange:            info.CostRangeINR,
			AvailabilityScore:    info.AvailabilityScore,
			PrescriptionRequired: info.SafetyLevel == SafetyPrescriptionRequired,
		}
		if patient != nil && patient.Age > 0 && patient.Age < 18 {
			rec.PediatricDosage = info.PediatricDosage
		}
		recs = append(recs, rec)
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].IsSafe != recs[j].IsSafe {
			return recs[i].IsSafe
		}
		if recs[i].AvailabilityScore != recs[j].AvailabilityScore {
			return recs[i].AvailabilityScore > recs[j].AvailabilityScore
		}
		return len(recs[i].Warnings) < len(recs[j].Warnings)
	})

	if len(recs) > max {
		recs = recs[:max]
	}
	return recs
}

// CheckInteractions inspects a set of drugs against each other and the
// patient's current medications.
func (s *Service) CheckInteractions(drugNames, patientMedications []string) InteractionReport {
	var interactions []string

	for i, a := range drugNames {
		infoA, okA := drugDatabase[normalize(a)]
		if !okA {
			continue
		}
		for _, b := range drugNames[i+1:] {
			infoB, okB := drugDatabase[normalize(b)]
			if !okB {
				continue
			}
			for _, interaction := range infoA.DrugInteractions {
				if strings.Contains(strings.ToLower(interaction), strings.ToLower(infoB.GenericName)) {
					interactions = append(interactions,
						fmt.Sprintf("%s + %s: %s", infoA.GenericName, infoB.GenericName, interaction))
				}
			}
		}
	}

	for _, name := range drugNames {
		info, ok := drugDatabase[normalize(name)]
		if !ok {
			continue
		}
		for _, med := range patientMedications {
			for _, interaction := range info.DrugInteractions {
				if strings.Contains(strings.ToLower(interaction), strings.ToLower(med)) {
					interactions = append(interactions,
						fmt.Sprintf("%s + %s: %s", info.GenericName, med, interaction))
				}
			}
		}
	}

	risk := "low"
	if len(interactions) > 0 {
		risk = "high"
	}
	return InteractionReport{Interactions: interactions, RiskLevel: risk}
}

// Alternatives lists other drugs in the same category.
func (s *Service) Alternatives(drugName string) []Recommendation {
	original, ok := drugDatabase[normalize(drugName)]
	if !ok {
		return nil
	}

	var out []Recommendation
	for key, info := range drugDatabase {
		if key == normalize(drugName) || info.Category != original.Category || info.SafetyLevel == SafetyContraindicated {
			continue
		}
		out = append(out, Recommendation{
			GenericName:       info.GenericName,
			BrandNames:        top(info.BrandNames, 2),
			Category:          info.Category,
			CostRange:         info.CostRangeINR,
			AvailabilityScore: info.AvailabilityScore,
			SafetyLevel:       info.SafetyLevel,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AvailabilityScore > out[j].AvailabilityScore })
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

// Lookup returns the database entry for a generic name.
func (s *Service) Lookup(drugName string) (DrugInfo, bool) {
	info, ok := drugDatabase[normalize(drugName)]
	return info, ok
}

func candidateDrugs(diagnosis string, symptoms *consultation.Symptoms) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(names []string) {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}

	diagnosisLower := strings.ToLower(diagnosis)
	for condition, names := range conditionDrugs {
		if strings.Contains(diagnosisLower, strings.ReplaceAll(condition, "_", " ")) ||
			strings.Contains(diagnosisLower, condition) {
			add(names)
		}
	}

	if symptoms != nil {
		for _, symptom := range symptoms.Extracted {
			for key, names := range symptomDrugs {
				if strings.Contains(symptom, key) {
					add(names)
				}
			}
		}
		rawLower := strings.ToLower(symptoms.RawText)
		for key, names := range symptomDrugs {
			if strings.Contains(rawLower, key) {
				add(names)
			}
		}
	}

	sort.Strings(out)
	return out
}

// checkSafety applies age, pregnancy, allergy, and current-medication rules.
func checkSafety(info DrugInfo, patient *consultation.Patient) (bool, []string) {
	if patient == nil {
		return true, nil
	}
	var warnings []string

	if patient.Age > 0 && patient.Age < 18 && info.PediatricDosage == "" {
		warnings = append(warnings, "Pediatric dosage not established")
	}
	if patient.Age > 65 && info.GeriatricConsiderations != "" {
		warnings = append(warnings, "Geriatric consideration: "+info.GeriatricConsiderations)
	}
	if patient.IsPregnant && (info.PregnancyCategory == "D" || info.PregnancyCategory == "X") {
		warnings = append(warnings, "Not recommended during pregnancy")
		return false, warnings
	}
	for _, allergy := range patient.Allergies {
		if strings.Contains(strings.ToLower(info.GenericName), strings.ToLower(allergy)) {
			warnings = append(warnings, "Patient allergic to "+allergy)
			return false, warnings
		}
	}
	for _, med := range patient.CurrentMedications {
		for _, interaction := range info.DrugInteractions {
			if strings.Contains(strings.ToLower(interaction), strings.ToLower(med)) {
				warnings = append(warnings, "Interaction with "+med)
			}
		}
	}

	return len(warnings) == 0 || info.SafetyLevel != SafetyContraindicated, warnings
}

func normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

func top(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
