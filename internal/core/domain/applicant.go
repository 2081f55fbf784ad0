package domain

type Applicant struct {
	ID               string `json:"id,omitempty"`
	FullName         string `json:"fullName"`
	NIK              string `json:"nik,omitempty"`
	BirthDate        string `json:"birthDate,omitempty"`
	EducationLevel   string `json:"educationLevel,omitempty"`
	Major            string `json:"major,omitempty"`
	DomicileProvince string `json:"domicileProvince,omitempty"`
}

// Formasi is an open civil-service position with its eligibility bounds.
type Formasi struct {
	ID              string   `json:"id,omitempty"`
	Title           string   `json:"title"`
	Agency          string   `json:"agency,omitempty"`
	EducationLevels []string `json:"educationLevels,omitempty"`
	Majors          []string `json:"majors,omitempty"`
	MinAge          int      `json:"minAge,omitempty"`
	MaxAge          int      `json:"maxAge,omitempty"`
	Province        string   `json:"province,omitempty"`
}

type Province struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DocumentSummary is the part of a verification report the checklist reads.
type DocumentSummary struct {
	Type         DocumentType      `json:"type"`
	Status       VerdictStatus     `json:"status"`
	Completeness float64           `json:"completeness"`
	Fields       map[string]string `json:"fields,omitempty"`
}

func SummarizeReport(t DocumentType, report VerificationReport) DocumentSummary {
	return DocumentSummary{
		Type:         t,
		Status:       report.Verdict.Status,
		Completeness: report.Analysis.Analysis.Completeness,
		Fields:       report.Analysis.Analysis.Fields,
	}
}
