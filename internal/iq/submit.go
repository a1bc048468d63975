package iq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"iqaudit/internal/coordinate"
)

type scanManifest struct {
	Components []scanComponent `json:"components"`
}

type scanComponent struct {
	Coordinates coordinate.Coordinate `json:"coordinates"`
}

type submitResponse struct {
	StatusURL string `json:"statusUrl"`
}

// Submit resolves the application and submits coords for evaluation. It
// returns the server's status location unmodified. Every call creates a new
// scan on the server.
func (o *Orchestrator) Submit(ctx context.Context, coords []coordinate.Coordinate) (string, error) {
	appID, err := o.ResolveApplicationID(ctx)
	if err != nil {
		o.logger.Error("application lookup failed", "error", err)
		o.metrics.RecordOutcome(KindOf(err).String())
		return "", err
	}

	statusURL, err := o.submit(ctx, appID, coords)
	if err != nil {
		o.logger.Error("scan submission failed", "internal_id", appID, "error", err)
		o.metrics.RecordOutcome(KindOf(err).String())
		return "", err
	}
	return statusURL, nil
}

func (o *Orchestrator) submit(ctx context.Context, appID string, coords []coordinate.Coordinate) (string, error) {
	u := o.endpoint("api", "v2", "scan", "applications", appID, "sources", o.cfg.SourceID)
	q := u.Query()
	q.Set("stageId", o.cfg.Stage)
	u.RawQuery = q.Encode()

	manifest := scanManifest{Components: make([]scanComponent, 0, len(coords))}
	for _, c := range coords {
		manifest.Components = append(manifest.Components, scanComponent{Coordinates: c})
	}

	body, err := json.Marshal(manifest)
	if err != nil {
		return "", newError(KindSubmissionRejected, 0, fmt.Errorf("failed to marshal manifest: %w", err))
	}

	req, err := o.newRequest(ctx, http.MethodPost, u.String(), body)
	if err != nil {
		return "", newError(KindSubmissionRejected, 0, err)
	}

	resp, respBody, err := o.do(req, stepSubmit)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return "", newError(KindSubmissionRejected, status, err)
	}

	if !isSuccess(resp.StatusCode) {
		return "", newError(KindSubmissionRejected, resp.StatusCode, bodyError(respBody))
	}

	var result submitResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", newError(KindSubmissionRejected, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}
	if result.StatusURL == "" {
		return "", newError(KindSubmissionRejected, resp.StatusCode, errors.New("response did not include a statusUrl"))
	}

	o.logger.Info("submitted scan", "internal_id", appID, "components", len(coords), "status_url", result.StatusURL)
	return result.StatusURL, nil
}
