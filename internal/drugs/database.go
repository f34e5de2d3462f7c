package drugs

// Category organizes drugs by therapeutic class.
type Category string

const (
	CategoryAnalgesic     Category = "analgesic"
	CategoryAntibiotic    Category = "antibiotic"
	CategoryAntipyretic   Category = "antipyretic"
	CategoryAntacid       Category = "antacid"
	CategoryAntihistamine Category = "antihistamine"
	CategoryVitamin       Category = "vitamin"
)

// SafetyLevel grades over-the-counter suitability.
type SafetyLevel string

const (
	SafetySafe                 SafetyLevel = "safe"
	SafetyCaution              SafetyLevel = "caution"
	SafetyPrescriptionRequired SafetyLevel = "prescription_required"
	SafetyContraindicated      SafetyLevel = "contraindicated"
)

// DrugInfo describes a drug as sold in the Indian market.
type DrugInfo struct {
	GenericName             string
	BrandNames              []string
	Category                Category
	DosageForms             []string
	StandardDosage          string
	Frequency               string
	Duration                string
	Route                   string
	SafetyLevel             SafetyLevel
	Contraindications       []string
	SideEffects             []string
	DrugInteractions        []string
	PregnancyCategory       string
	PediatricDosage         string
	GeriatricConsiderations string
	CostRangeINR            string
	AvailabilityScore       float64
}

// drugDatabase covers common over-the-counter and first-line prescription
// drugs with Indian brand names and pricing.
var drugDatabase = map[string]DrugInfo{
	"paracetamol": {
		GenericName:       "Paracetamol",
		BrandNames:        []string{"Crocin", "Dolo", "Calpol", "Metacin", "Pyrigesic"},
		Category:          CategoryAntipyretic,
		DosageForms:       []string{"tablet", "syrup", "drops"},
		StandardDosage:    "500mg",
		Frequency:         "Every 6-8 hours",
		Duration:          "As needed, max 3 days",
		Route:             "Oral",
		SafetyLevel:       SafetySafe,
		Contraindications: []string{"Severe liver disease"},
		SideEffects:       []string{"Rare: liver damage with overdose"},
		DrugInteractions:  []string{"Warfarin (increased bleeding risk)"},
		PregnancyCategory: "B",
		PediatricDosage:   "10-15mg/kg every 6 hours",
		CostRangeINR:      "₹2-8 per tablet",
		AvailabilityScore: 1.0,
	},
	"ibuprofen": {
		GenericName:             "Ibuprofen",
		BrandNames:              []string{"Brufen", "Combiflam", "Advil", "Ibugesic"},
		Category:                CategoryAnalgesic,
		DosageForms:             []string{"tablet", "syrup", "gel"},
		StandardDosage:          "400mg",
		Frequency:               "Every 6-8 hours",
		Duration:                "As needed, max 5 days",
		Route:                   "Oral",
		SafetyLevel:             SafetyCaution,
		Contraindications:       []string{"Peptic ulcer", "kidney disease", "heart failure"},
		SideEffects:             []string{"Stomach upset", "kidney problems", "increased bleeding"},
		DrugInteractions:        []string{"Warfarin", "ACE inhibitors", "Lithium"},
		PregnancyCategory:       "C",
		PediatricDosage:         "5-10mg/kg every 6-8 hours",
		GeriatricConsiderations: "Use lowest effective dose",
		CostRangeINR:            "₹3-12 per tablet",
		AvailabilityScore:       0.9,
	},
	"amoxicillin": {
		GenericName:       "Amoxicillin",
		BrandNames:        []string{"Novamox", "Amoxil", "Moxikind", "Amoxyclav"},
		Category:          CategoryAntibiotic,
		DosageForms:       []string{"capsule", "tablet", "syrup"},
		StandardDosage:    "500mg",
		Frequency:         "Every 8 hours",
		Duration:          "5-7 days",
		Route:             "Oral",
		SafetyLevel:       SafetyPrescriptionRequired,
		Contraindications: []string{"Penicillin allergy"},
		SideEffects:       []string{"Diarrhea", "nausea", "rash", "yeast infections"},
		DrugInteractions:  []string{"Methotrexate", "Oral contraceptives"},
		PregnancyCategory: "B",
		PediatricDosage:   "20-40mg/kg/day divided into 3 doses",
		CostRangeINR:      "₹5-15 per capsule",
		AvailabilityScore: 0.95,
	},
	"azithromycin": {
		GenericName:       "Azithromycin",
		BrandNames:        []string{"Azithral", "Zithromax", "Azee", "Azax"},
		Category:          CategoryAntibiotic,
		DosageForms:       []string{"tablet", "syrup"},
		StandardDosage:    "500mg",
		Frequency:         "Once daily",
		Duration:          "3-5 days",
		Route:             "Oral",
		SafetyLevel:       SafetyPrescriptionRequired,
		Contraindications: []string{"Liver disease", "QT prolongation"},
		SideEffects:       []string{"Nausea", "diarrhea", "abdominal pain"},
		DrugInteractions:  []string{"Warfarin", "Digoxin", "Antacids"},
		PregnancyCategory: "B",
		PediatricDosage:   "10mg/kg once daily",
		CostRangeINR:      "₹15-25 per tablet",
		AvailabilityScore: 0.9,
	},
	"vitamin_c": {
		GenericName:       "Vitamin C (Ascorbic Acid)",
		BrandNames:        []string{"Limcee", "Celin", "Redoxon", "C-Vit"},
		Category:          CategoryVitamin,
		DosageForms:       []string{"tablet", "chewable", "effervescent"},
		StandardDosage:    "500mg",
		Frequency:         "Once daily",
		Duration:          "5-10 days",
		Route:             "Oral",
		SafetyLevel:       SafetySafe,
		Contraindications: []string{"Kidney stones (high doses)"},
		SideEffects:       []string{"Stomach upset (high doses)", "diarrhea"},
		DrugInteractions:  []string{"Iron supplements (enhances absorption)"},
		PregnancyCategory: "A",
		PediatricDosage:   "100-200mg daily",
		CostRangeINR:      "₹1-5 per tablet",
		AvailabilityScore: 1.0,
	},
	"omeprazole": {
		GenericName:             "Omeprazole",
		BrandNames:              []string{"Omez", "Prilosec", "Omepraz", "Ocid"},
		Category:                CategoryAntacid,
		DosageForms:             []string{"capsule", "tablet"},
		StandardDosage:          "20mg",
		Frequency:               "Once daily before breakfast",
		Duration:                "2-4 weeks",
		Route:                   "Oral",
		SafetyLevel:             SafetyCaution,
		Contraindications:       []string{"Severe liver disease"},
		SideEffects:             []string{"Headache", "nausea", "diarrhea", "vitamin B12 deficiency"},
		DrugInteractions:        []string{"Clopidogrel", "Warfarin", "Phenytoin"},
		PregnancyCategory:       "C",
		PediatricDosage:         "0.7-3.3mg/kg daily",
		GeriatricConsiderations: "Monitor for bone fractures with long-term use",
		CostRangeINR:            "₹8-20 per capsule",
		AvailabilityScore:       0.95,
	},
	"cetirizine": {
		GenericName:             "Cetirizine",
		BrandNames:              []string{"Zyrtec", "Alerid", "Cetrizine", "Okacet"},
		Category:                CategoryAntihistamine,
		DosageForms:             []string{"tablet", "syrup"},
		StandardDosage:          "10mg",
		Frequency:               "Once daily",
		Duration:                "As needed",
		Route:                   "Oral",
		SafetyLevel:             SafetySafe,
		Contraindications:       []string{"Severe kidney disease"},
		SideEffects:             []string{"Drowsiness", "dry mouth", "fatigue"},
		DrugInteractions:        []string{"Alcohol", "CNS depressants"},
		PregnancyCategory:       "B",
		PediatricDosage:         "2.5-5mg daily (age dependent)",
		GeriatricConsiderations: "May cause more drowsiness",
		CostRangeINR:            "₹2-8 per tablet",
		AvailabilityScore:       0.95,
	},
}

var conditionDrugs = map[string][]string{
	"common_cold":           {"paracetamol", "vitamin_c", "cetirizine"},
	"viral_infection":       {"paracetamol", "vitamin_c"},
	"fever":                 {"paracetamol", "ibuprofen"},
	"headache":              {"paracetamol", "ibuprofen"},
	"body_ache":             {"paracetamol", "ibuprofen"},
	"bacterial_infection":   {"amoxicillin", "azithromycin"},
	"respiratory_infection": {"azithromycin", "amoxicillin"},
	"gastritis":             {"omeprazole"},
	"acidity":               {"omeprazole"},
	"allergic_reaction":     {"cetirizine"},
	"runny_nose":            {"cetirizine"},
	"sneezing":              {"cetirizine"},
}

var symptomDrugs = map[string][]string{
	"fever":        {"paracetamol", "ibuprofen"},
	"headache":     {"paracetamol", "ibuprofen"},
	"pain":         {"paracetamol", "ibuprofen"},
	"cough":        {"vitamin_c"},
	"cold":         {"paracetamol", "vitamin_c", "cetirizine"},
	"runny nose":   {"cetirizine"},
	"sneezing":     {"cetirizine"},
	"stomach pain": {"omeprazole"},
	"acidity":      {"omeprazole"},
	"nausea":       {"omeprazole"},
	"allergy":      {"cetirizine"},
	"itching":      {"cetirizine"},
}
