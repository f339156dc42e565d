package feed

import "github.com/poiesic/termbridge/core"

// Seed returns one Static provider per system holding a small demonstration
// vocabulary around fever, headache, cough and vital signs.
func Seed() []Provider {
	return []Provider{
		NewStatic("seed:namaste", core.SystemNAMASTE, seedNAMASTE),
		NewStatic("seed:icd11-tm2", core.SystemICD11TM2, seedTM2),
		NewStatic("seed:icd11-biomedicine", core.SystemICD11Biomedicine, seedBiomedicine),
		NewStatic("seed:snomed-ct", core.SystemSNOMEDCT, seedSNOMED),
		NewStatic("seed:loinc", core.SystemLOINC, seedLOINC),
	}
}

var seedNAMASTE = []core.RawConcept{
	{
		Code:         "NAMC001",
		Display:      "Jvara",
		Definition:   "Abnormal elevation of body temperature",
		Synonyms:     []string{"Jwara", "Fever", "Pyrexia"},
		SemanticTags: []string{"finding", "clinical"},
	},
	{
		Code:         "NAMC002",
		Display:      "Shiroroga",
		Definition:   "Pain in the head or upper neck",
		Synonyms:     []string{"Shirah Shool", "Headache", "Cephalgia"},
		SemanticTags: []string{"finding", "pain"},
	},
	{
		Code:         "NAMC003",
		Display:      "Kasa",
		Definition:   "Sudden expulsion of air from the lungs",
		Synonyms:     []string{"Kaasa", "Cough", "Tussis"},
		SemanticTags: []string{"finding", "respiratory"},
	},
}

var seedTM2 = []core.RawConcept{
	{
		Code:         "TM2.A01",
		Display:      "Jvara (Traditional Medicine)",
		Definition:   "Abnormal elevation of body temperature",
		Synonyms:     []string{"Jwara", "Fever", "Traditional fever"},
		SemanticTags: []string{"finding", "clinical"},
	},
}

var seedBiomedicine = []core.RawConcept{
	{
		Code:         "MG30",
		Display:      "Fever, unspecified",
		Definition:   "Abnormal elevation of body temperature",
		Synonyms:     []string{"Pyrexia", "Febrile state"},
		SemanticTags: []string{"finding", "clinical"},
	},
	{
		Code:         "MB40",
		Display:      "Headache",
		Definition:   "Pain in the head or upper neck",
		Synonyms:     []string{"Cephalgia"},
		SemanticTags: []string{"finding", "pain"},
	},
}

var seedSNOMED = []core.RawConcept{
	{
		Code:         "386661006",
		Display:      "Fever",
		Definition:   "Abnormal elevation of body temperature",
		Synonyms:     []string{"Pyrexia", "Febrile", "Hyperthermia"},
		SemanticTags: []string{"finding", "clinical"},
	},
	{
		Code:         "25064002",
		Display:      "Headache",
		Definition:   "Pain in the head or upper neck",
		Synonyms:     []string{"Cephalgia", "Head pain"},
		SemanticTags: []string{"finding", "pain"},
	},
	{
		Code:         "49727002",
		Display:      "Cough",
		Definition:   "Sudden expulsion of air from the lungs",
		Synonyms:     []string{"Tussis", "Coughing"},
		SemanticTags: []string{"finding", "respiratory"},
	},
}

var seedLOINC = []core.RawConcept{
	{
		Code:         "8310-5",
		Display:      "Body temperature",
		Definition:   "Measurement of body temperature",
		Synonyms:     []string{"Temperature", "Temp"},
		SemanticTags: []string{"observation", "vital-sign"},
	},
	{
		Code:         "8480-6",
		Display:      "Systolic blood pressure",
		Definition:   "Measurement of systolic blood pressure",
		Synonyms:     []string{"SBP", "Systolic BP"},
		SemanticTags: []string{"observation", "vital-sign"},
	},
	{
		Code:         "8462-4",
		Display:      "Diastolic blood pressure",
		Definition:   "Measurement of diastolic blood pressure",
		Synonyms:     []string{"DBP", "Diastolic BP"},
		SemanticTags: []string{"observation", "vital-sign"},
	},
}
