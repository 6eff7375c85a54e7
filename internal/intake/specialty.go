package intake

import (
	"regexp"
	"strings"
)

// Specialty is a medical specialty used as a clinic search keyword.
type Specialty string

const (
	SpecialtyGeneral       Specialty = "general practitioner"
	SpecialtyDermatology   Specialty = "dermatologist"
	SpecialtyCardiology    Specialty = "cardiologist"
	SpecialtyOrthopedics   Specialty = "orthopedist"
	SpecialtyENT           Specialty = "otolaryngologist"
	SpecialtyOphthalmology Specialty = "ophthalmologist"
	SpecialtyDental        Specialty = "dentist"
	SpecialtyPediatrics    Specialty = "pediatrician"
	SpecialtyGastro        Specialty = "gastroenterologist"
	SpecialtyNeurology     Specialty = "neurologist"
	SpecialtyPsychiatry    Specialty = "psychiatrist"
	SpecialtyGynecology    Specialty = "gynecologist"
)

// specialtyPatterns is a fixed keyword table; first hit in declaration order
// wins. Patterns match whole words so "smear" never hits "ear". This is
// deliberately not a triage system.
var specialtyPatterns = []struct {
	specialty Specialty
	pattern   *regexp.Regexp
}{
	{SpecialtyDermatology, regexp.MustCompile(`(?i)\b(skin|rash|acne|moles?|eczema|psoriasis|itch\w*)\b`)},
	{SpecialtyCardiology, regexp.MustCompile(`(?i)\b(heart|chest pain|palpitations?|blood pressure|hypertension)\b`)},
	{SpecialtyOrthopedics, regexp.MustCompile(`(?i)\b(bones?|joints?|knees?|shoulders?|back pain|fractures?|sprains?)\b`)},
	{SpecialtyENT, regexp.MustCompile(`(?i)\b(ears?|sinus(es)?|throat|hearing|tonsils?|nose)\b`)},
	{SpecialtyOphthalmology, regexp.MustCompile(`(?i)\b(eyes?|vision|blurry|glasses|cataracts?)\b`)},
	{SpecialtyDental, regexp.MustCompile(`(?i)\b(tooth|teeth|gums?|dental|cavity|toothaches?)\b`)},
	{SpecialtyPediatrics, regexp.MustCompile(`(?i)\b(child|baby|infant|toddler|my (son|daughter))\b`)},
	{SpecialtyGastro, regexp.MustCompile(`(?i)\b(stomach|abdominal|nausea|digestion|heartburn|bowels?)\b`)},
	{SpecialtyNeurology, regexp.MustCompile(`(?i)\b(headaches?|migraines?|dizzy|seizures?|numbness|tingling)\b`)},
	{SpecialtyPsychiatry, regexp.MustCompile(`(?i)\b(anxiety|depression|panic|insomnia|stress)\b`)},
	{SpecialtyGynecology, regexp.MustCompile(`(?i)\b(pregnan\w*|periods?|menstrual|pap smears?|obgyn)\b`)},
}

// InferSpecialty maps free-text symptoms to a search keyword. Unmatched text
// falls back to a general practitioner.
func InferSpecialty(symptoms string) Specialty {
	symptoms = strings.TrimSpace(symptoms)
	if symptoms == "" {
		return SpecialtyGeneral
	}
	for _, entry := range specialtyPatterns {
		if entry.pattern.MatchString(symptoms) {
			return entry.specialty
		}
	}
	return SpecialtyGeneral
}
