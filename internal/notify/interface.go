package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"iqaudit/internal/history"
)

// Notifier announces the verdict of an audit run.
type Notifier interface {
	Notify(ctx context.Context, run history.Run) error
}

// Multi fans a run out to several notifiers and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, run history.Run) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, run); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Summary renders a one-line, plain-text description of the run.
func Summary(run history.Run) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "IQ audit of %s (%s stage, %d dependencies): ", run.PublicAppID, run.Stage, run.Components)

	if run.Outcome == history.OutcomeDone {
		action := run.PolicyAction
		if action == "" {
			action = "unknown"
		}
		fmt.Fprintf(&sb, "policy action %s", action)
		if run.ReportURL != "" {
			fmt.Fprintf(&sb, " - %s", run.ReportURL)
		}
		return sb.String()
	}

	sb.WriteString(run.Outcome)
	if run.Error != "" {
		fmt.Fprintf(&sb, " - %s", run.Error)
	}
	return sb.String()
}

func color(run history.Run) string {
	switch {
	case run.Outcome != history.OutcomeDone:
		return "#808080"
	case run.PolicyAction == "Failure":
		return "danger"
	case run.PolicyAction == "Warn":
		return "warning"
	default:
		return "good"
	}
}
