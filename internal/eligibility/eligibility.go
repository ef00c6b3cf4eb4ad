// Package eligibility evaluates the disability pension questionnaire.
package eligibility

// Role of the person filling in the questionnaire.
type Role string

// Roles.
const (
	RoleSelf      Role = "self"
	RoleCaregiver Role = "caregiver"
)

// Answers holds the yes/no questionnaire. An unanswered question counts as no.
type Answers struct {
	Role           Role `json:"role,omitempty"`
	Vision         bool `json:"vision"`
	Locomotor      bool `json:"locomotor"`
	AcidAttack     bool `json:"acid_attack"`
	Hearing        bool `json:"hearing"`
	MentalNeuro    bool `json:"mental_neuro"`
	SpeechLanguage bool `json:"speech_language"`
	ChronicBlood   bool `json:"chronic_blood"`
	ChronicNeuro   bool `json:"chronic_neuro"`
	Severity40     bool `json:"severity_40"` // certificate showing at least 40% disability
	Severity80     bool `json:"severity_80"` // at least 80%, high support needs
}

// Result of an evaluation. Amounts are monthly, in rupees.
type Result struct {
	Eligible            bool     `json:"eligible"`
	Categories          []string `json:"categories"`
	MonthlyAmount       int      `json:"monthly_amount"`
	AdditionalAllowance int      `json:"additional_allowance"`
	TotalAmount         int      `json:"total_amount"`
}

// PersonalAssistanceAllowance is added for high support needs.
const PersonalAssistanceAllowance = 1000

type condition struct {
	label  string
	amount int
	picked func(Answers) bool
}

// conditions in questionnaire order.
var conditions = []condition{
	{"Visual Impairment (Blindness/Low-Vision)", 1000, func(a Answers) bool { return a.Vision }},
	{"Locomotor Disability / Muscular Dystrophy", 1500, func(a Answers) bool { return a.Locomotor }},
	{"Acid Attack Victim", 1000, func(a Answers) bool { return a.AcidAttack }},
	{"Hearing Impairment", 1000, func(a Answers) bool { return a.Hearing }},
	{"Intellectual Disability / Autism / Mental Illness", 1500, func(a Answers) bool { return a.MentalNeuro }},
	{"Speech & Language Disability", 1000, func(a Answers) bool { return a.SpeechLanguage }},
	{"Blood Disorder (Haemophilia/Thalassemia/Sickle Cell)", 2000, func(a Answers) bool { return a.ChronicBlood }},
	{"Chronic Neurological (Parkinson's/Multiple Sclerosis)", 2000, func(a Answers) bool { return a.ChronicNeuro }},
}

// Evaluate computes eligibility. The base amount is that of the best-paying condition;
// nothing is paid unless at least one condition applies and severity reaches 40%.
func Evaluate(a Answers) Result {
	r := Result{Categories: []string{}}
	for _, c := range conditions {
		if !c.picked(a) {
			continue
		}
		r.Categories = append(r.Categories, c.label)
		r.MonthlyAmount = max(r.MonthlyAmount, c.amount)
	}
	if a.Severity80 {
		r.AdditionalAllowance = PersonalAssistanceAllowance
	}
	r.Eligible = len(r.Categories) > 0 && a.Severity40
	if r.Eligible {
		r.TotalAmount = r.MonthlyAmount + r.AdditionalAllowance
	}
	return r
}
