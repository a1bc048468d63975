package iq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"iqaudit/internal/polling"
)

// Poll fetches statusURL until notFinished reports false, then calls onDone
// exactly once with that report. A nil notFinished means ReportPending.
//
// Transport failures and "not ready" responses are retried until the
// configured timeout, measured from the call, runs out. Undecodable or
// error-flagged reports stop the loop at once. If ctx is canceled the loop
// stops without calling onDone and issues no further requests.
func (o *Orchestrator) Poll(ctx context.Context, statusURL string, notFinished func(Report) bool, onDone func(Report)) error {
	if onDone == nil {
		return errors.New("iq: result handler is required")
	}
	if notFinished == nil {
		notFinished = ReportPending
	}

	target, err := o.statusEndpoint(statusURL)
	if err != nil {
		o.metrics.RecordOutcome(KindPollMalformed.String())
		return err
	}

	poller := polling.NewPoller(&polling.Config{
		Interval: o.cfg.PollInterval,
		Timeout:  o.cfg.Timeout,
	}, o.logger)

	var final Report
	err = poller.Run(ctx, func(stepCtx context.Context) (polling.State, error) {
		o.metrics.IncPollAttempt()
		report, err := o.fetchReport(stepCtx, target)
		state, err := nextState(report, err, notFinished)
		if state == polling.Done {
			final = report
		}
		return state, err
	})

	switch {
	case err == nil:
		o.logger.Info("scan report ready", "policy_action", final.PolicyAction, "report_url", final.ReportHTMLURL)
		o.metrics.RecordOutcome("done")
		o.metrics.RecordPolicyAction(final.PolicyAction)
		onDone(final)
		return nil
	case errors.Is(err, polling.ErrTimedOut):
		err = &Error{Kind: KindTimeout, Message: fmt.Sprintf("timed out after %s waiting for the IQ scan report", o.cfg.Timeout), Err: err}
		o.logger.Error("scan report not ready in time", "error", err)
		o.metrics.RecordOutcome(KindTimeout.String())
		return err
	case ctx.Err() != nil:
		o.logger.Info("polling canceled", "error", err)
		o.metrics.RecordOutcome("canceled")
		return err
	default:
		o.logger.Error("scan report unusable", "error", err)
		o.metrics.RecordOutcome(KindOf(err).String())
		return err
	}
}

// nextState holds the transition guards of the poll loop.
func nextState(report Report, err error, notFinished func(Report) bool) (polling.State, error) {
	switch {
	case errors.Is(err, ErrPollTransport):
		return polling.Polling, err
	case err != nil:
		return polling.Failed, err
	case report.IsError:
		msg := report.ErrorMessage
		if msg == "" {
			msg = "no error message"
		}
		return polling.Failed, &Error{
			Kind:    KindPollMalformed,
			Message: "IQ server failed to evaluate the scan",
			Err:     errors.New(msg),
		}
	case notFinished(report):
		return polling.Polling, nil
	default:
		return polling.Done, nil
	}
}

func (o *Orchestrator) statusEndpoint(statusURL string) (string, error) {
	ref, err := url.Parse(statusURL)
	if err != nil || statusURL == "" {
		if err == nil {
			err = errors.New("empty status location")
		}
		return "", &Error{Kind: KindPollMalformed, Message: "invalid status location", Err: err}
	}
	return o.base.ResolveReference(ref).String(), nil
}

func (o *Orchestrator) fetchReport(ctx context.Context, target string) (Report, error) {
	req, err := o.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Report{}, newError(KindPollMalformed, 0, err)
	}

	resp, body, err := o.do(req, stepPoll)
	if errors.Is(err, errBodyTooLarge) {
		return Report{}, newError(KindPollMalformed, resp.StatusCode, err)
	}
	if err != nil {
		return Report{}, newError(KindPollTransport, 0, err)
	}

	switch {
	case isTransient(resp.StatusCode):
		return Report{}, newError(KindPollTransport, resp.StatusCode, nil)
	case !isSuccess(resp.StatusCode):
		return Report{}, newError(KindPollMalformed, resp.StatusCode, bodyError(body))
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Report{}, newError(KindPollMalformed, resp.StatusCode, errors.New("empty report"))
	}

	var report Report
	if err := json.Unmarshal(trimmed, &report); err != nil {
		return Report{}, newError(KindPollMalformed, resp.StatusCode, fmt.Errorf("failed to decode report: %w", err))
	}
	return report, nil
}

// isTransient covers the statuses the server uses while a scan is still
// running (404) or while it is briefly unavailable.
func isTransient(status int) bool {
	return status == http.StatusNotFound ||
		status == http.StatusTooManyRequests ||
		status >= 500
}
