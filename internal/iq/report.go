package iq

// Policy actions reported by the IQ server.
const (
	ActionNone    = "None"
	ActionWarn    = "Warn"
	ActionFailure = "Failure"
)

// ComponentCounts groups component totals by threat level.
type ComponentCounts struct {
	Critical int `json:"critical"`
	Severe   int `json:"severe"`
	Moderate int `json:"moderate"`
}

// Report is the scan status document served at a status location.
type Report struct {
	PolicyAction                  string          `json:"policyAction"`
	ReportHTMLURL                 string          `json:"reportHtmlUrl"`
	EmbeddableReportHTMLURL       string          `json:"embeddableReportHtmlUrl,omitempty"`
	ReportPDFURL                  string          `json:"reportPdfUrl,omitempty"`
	ReportDataURL                 string          `json:"reportDataUrl,omitempty"`
	IsError                       bool            `json:"isError"`
	ErrorMessage                  string          `json:"errorMessage,omitempty"`
	ComponentsAffected            ComponentCounts `json:"componentsAffected"`
	OpenPolicyViolations          ComponentCounts `json:"openPolicyViolations"`
	GrandfatheredPolicyViolations int             `json:"grandfatheredPolicyViolations"`
}

// ReportPending is the default "not yet finished" predicate: the server only
// publishes a report link once evaluation completed.
func ReportPending(r Report) bool {
	return r.ReportHTMLURL == ""
}

// PolicyFailed reports whether the evaluation asked to fail the build.
func (r Report) PolicyFailed() bool {
	return r.PolicyAction == ActionFailure
}

func (r Report) PolicyWarned() bool {
	return r.PolicyAction == ActionWarn
}
