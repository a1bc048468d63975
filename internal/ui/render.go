// Package ui prints audit results for humans.
package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"iqaudit/internal/coordinate"
	"iqaudit/internal/iq"
)

const devHint = "We noticed you had 0 dependencies, we exclude devDependencies by default, " +
	"try running with --dev if you want to include those as well"

// Renderer writes audit output. In quiet mode only the verdict and errors are
// printed.
type Renderer struct {
	w     io.Writer
	quiet bool
}

func NewRenderer(w io.Writer, quiet bool) *Renderer {
	return &Renderer{w: w, quiet: quiet}
}

func (r *Renderer) printLine(style lipgloss.Style, format string, args ...any) {
	if r.quiet {
		return
	}
	fmt.Fprintln(r.w, style.Render(fmt.Sprintf(format, args...)))
}

// Coordinates prints the dependency count, the --dev hint when there are
// none, and one numbered line per coordinate in canonical order.
func (r *Renderer) Coordinates(coords []coordinate.Coordinate) {
	total := len(coords)
	r.printLine(headerStyle, "Total dependencies audited: %d", total)
	if total == 0 {
		r.printLine(hintStyle, "%s", devHint)
		return
	}

	sorted := append([]coordinate.Coordinate(nil), coords...)
	coordinate.Sort(sorted)
	for i, c := range sorted {
		r.printLine(itemStyle, "[%d/%d] - %s", i+1, total, c)
	}
}

// Submitted announces the status URL handed back by the server.
func (r *Renderer) Submitted(statusURL string) {
	r.printLine(hintStyle, "Submitted to IQ server, waiting for the policy evaluation...")
	r.printLine(hintStyle, "Status: %s", statusURL)
}

// Verdict prints the outcome of a completed evaluation.
func (r *Renderer) Verdict(report iq.Report) {
	var style lipgloss.Style
	switch {
	case report.PolicyFailed():
		style = failureStyle
	case report.PolicyWarned():
		style = warnStyle
	default:
		style = successStyle
	}

	action := report.PolicyAction
	if action == "" {
		action = iq.ActionNone
	}
	fmt.Fprintln(r.w, style.Render("Policy action: "+action))

	if c := report.ComponentsAffected; c != (iq.ComponentCounts{}) {
		fmt.Fprintf(r.w, "Components affected: critical %d, severe %d, moderate %d\n", c.Critical, c.Severe, c.Moderate)
	}
	if report.ReportHTMLURL != "" {
		fmt.Fprintln(r.w, "Report: "+linkStyle.Render(report.ReportHTMLURL))
	}
}

// Failure prints an audit error.
func (r *Renderer) Failure(err error) {
	fmt.Fprintln(r.w, failureStyle.Render("Audit failed: "+err.Error()))
}
