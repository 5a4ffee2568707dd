package domain

// Framework is a compliance regime a document set can be checked against.
type Framework string

const (
	FrameworkSOC2  Framework = "SOC2"
	FrameworkHIPAA Framework = "HIPAA"
	FrameworkPCI   Framework = "PCI_DSS"
)

// Requirement names a documentation category a framework expects, with a
// weight reflecting how heavily auditors lean on it.
type Requirement struct {
	Category string
	Weight   float64
}

// frameworkRequirements is the static requirement catalog. Categories match
// the Category field on documentation entries.
var frameworkRequirements = map[Framework][]Requirement{
	FrameworkSOC2: {
		{Category: "access_control", Weight: 2},
		{Category: "change_management", Weight: 1},
		{Category: "backup_recovery", Weight: 2},
		{Category: "incident_response", Weight: 1},
		{Category: "monitoring", Weight: 1},
	},
	FrameworkHIPAA: {
		{Category: "access_control", Weight: 2},
		{Category: "audit_logging", Weight: 1},
		{Category: "encryption", Weight: 2},
		{Category: "incident_response", Weight: 1},
		{Category: "business_associate", Weight: 1},
	},
	FrameworkPCI: {
		{Category: "network_security", Weight: 2},
		{Category: "access_control", Weight: 2},
		{Category: "encryption", Weight: 2},
		{Category: "vulnerability_management", Weight: 1},
		{Category: "monitoring", Weight: 1},
	},
}

// Requirements returns the catalog entries for a framework, nil for an
// unknown one.
func Requirements(framework Framework) []Requirement {
	return frameworkRequirements[framework]
}

// ComplianceReport grades a client's documentation set against a framework.
type ComplianceReport struct {
	Framework Framework `json:"framework"`
	Score     float64   `json:"score"`
	Missing   []string  `json:"missing,omitempty"`
}

// ScoreCompliance computes the weighted coverage of the framework's required
// categories. Score is 0..100 rounded to one decimal.
func ScoreCompliance(framework Framework, coveredCategories map[string]bool) ComplianceReport {
	report := ComplianceReport{Framework: framework}

	requirements := Requirements(framework)
	if len(requirements) == 0 {
		return report
	}

	var total, covered float64
	for _, req := range requirements {
		total += req.Weight
		if coveredCategories[req.Category] {
			covered += req.Weight
		} else {
			report.Missing = append(report.Missing, req.Category)
		}
	}

	report.Score = float64(int(covered/total*1000+0.5)) / 10
	return report
}
