package report

import (
	"strings"
	"time"

	"github.com/ashureev/neuroscanx/internal/domain"
)

// Tab selects the audience of the detailed report.
type Tab string

const (
	TabPatient   Tab = "patient"
	TabClinician Tab = "clinician"
)

// ParseTab maps a query value to a Tab. Empty selects the patient tab.
func ParseTab(s string) (Tab, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "patient":
		return TabPatient, true
	case "clinician", "doctor":
		return TabClinician, true
	default:
		return "", false
	}
}

// MedicineNote qualifies every medicine identification.
const MedicineNote = "Tentative ID only. Verify with pharmacist."

// Section is one titled block of the report.
type Section struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Body  string   `json:"body,omitempty"`
	Items []string `json:"items,omitempty"`
	Note  string   `json:"note,omitempty"`
}

// TabHeader names a tab.
type TabHeader struct {
	ID     Tab    `json:"id"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

// Action is a user action offered by the report.
type Action struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// View is the renderable report for one result.
type View struct {
	ReportID    string      `json:"report_id"`
	Date        string      `json:"date"`
	GeneratedAt time.Time   `json:"generated_at"`
	Badge       Badge       `json:"badge"`
	Reasoning   Section     `json:"reasoning"`
	Radar       Radar       `json:"radar"`
	Alerts      *Section    `json:"alerts,omitempty"`
	Cards       []Section   `json:"cards"`
	Tabs        []TabHeader `json:"tabs"`
	Sections    []Section   `json:"sections"`
	Export      Action      `json:"export"`
	Back        Action      `json:"back"`
}

// Build renders rep with tab active.
func Build(rep *domain.Report, tab Tab) View {
	res := rep.Result
	badge, _ := BadgeFor(res.TriageLevel)

	v := View{
		ReportID:    rep.ID,
		Date:        rep.CreatedAt.Format("2006-01-02"),
		GeneratedAt: rep.CreatedAt,
		Badge:       badge,
		Reasoning:   Section{ID: "reasoning", Title: "AI Clinical Reasoning", Body: res.TriageReasoning},
		Radar:       RadarGeometry(res.HealthRadar),
		Cards:       Cards(res),
		Tabs: []TabHeader{
			{ID: TabPatient, Title: "Patient Summary", Active: tab != TabClinician},
			{ID: TabClinician, Title: "Clinician SOAP Note", Active: tab == TabClinician},
		},
		Export: Action{Label: "Download Clinical PDF", Href: "/api/report/pdf"},
		Back:   Action{Label: "Return to Input", Href: "/api/results/back"},
	}
	if res.HasRedFlags() {
		v.Alerts = &Section{ID: "red_flags", Title: "Critical Alerts Detected", Items: res.RedFlags}
	}
	if tab == TabClinician {
		v.Sections = ClinicianSections(res)
	} else {
		v.Sections = PatientSections(res)
	}
	return v
}

// Cards returns the feature cards for the optional analyses that are present.
func Cards(res *domain.AnalysisResult) []Section {
	cards := []Section{}
	if present(res.TimelineAnalysis) {
		cards = append(cards, Section{ID: "timeline", Title: "Trend Analysis", Body: res.TimelineAnalysis})
	}
	if present(res.ImageComparison) {
		cards = append(cards, Section{ID: "comparison", Title: "Visual Comparison", Body: res.ImageComparison})
	}
	if present(res.MedicineAnalysis) {
		cards = append(cards, Section{ID: "medicine", Title: "Safe Medicine ID", Body: res.MedicineAnalysis, Note: MedicineNote})
	}
	return cards
}

// PatientSections is the patient-oriented summary.
func PatientSections(res *domain.AnalysisResult) []Section {
	s := []Section{{ID: "chief_complaint", Title: "Chief Complaint", Body: res.ChiefComplaint}}
	if present(res.VisualObservations) {
		s = append(s, Section{ID: "visual", Title: "Visual Findings", Body: res.VisualObservations})
	}
	return append(s,
		Section{ID: "symptoms", Title: "Symptom Breakdown", Body: res.SymptomAnalysis},
		Section{ID: "differentials", Title: "Differential Considerations", Items: res.Differentials},
		Section{ID: "home_care", Title: "Recommended Action", Items: res.HomeCare},
	)
}

// ClinicianSections is the SOAP note view.
func ClinicianSections(res *domain.AnalysisResult) []Section {
	var s []Section
	if present(res.VoiceSummary) {
		s = append(s, Section{ID: "voice", Title: "Voice Transcript Summary", Body: res.VoiceSummary})
	}
	return append(s,
		Section{ID: "subjective", Title: "S - Subjective", Body: res.Soap.Subjective},
		Section{ID: "objective", Title: "O - Objective", Body: res.Soap.Objective},
		Section{ID: "assessment", Title: "A - Assessment", Body: res.Soap.Assessment},
		Section{ID: "plan", Title: "P - Plan", Body: res.Soap.Plan},
	)
}

func present(s string) bool {
	return strings.TrimSpace(s) != ""
}
