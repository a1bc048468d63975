package iq

import (
	"context"
	"encoding/json"
	"net/http"
)

type applicationsResponse struct {
	Applications []struct {
		ID       string `json:"id"`
		PublicID string `json:"publicId"`
		Name     string `json:"name"`
	} `json:"applications"`
}

// ResolveApplicationID looks up the internal ID of the configured public
// application ID. It makes exactly one request and never retries.
func (o *Orchestrator) ResolveApplicationID(ctx context.Context) (string, error) {
	u := o.endpoint("api", "v2", "applications")
	q := u.Query()
	q.Set("publicId", o.cfg.PublicAppID)
	u.RawQuery = q.Encode()

	req, err := o.newRequest(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", newError(KindResolutionTransport, 0, err)
	}

	resp, body, err := o.do(req, stepResolve)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return "", newError(KindResolutionTransport, status, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return "", newError(KindResolutionNotFound, resp.StatusCode, nil)
	}
	if !isSuccess(resp.StatusCode) {
		return "", newError(KindResolutionTransport, resp.StatusCode, bodyError(body))
	}

	var payload applicationsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", newError(KindResolutionNotFound, resp.StatusCode, err)
	}

	id := pickApplicationID(payload, o.cfg.PublicAppID)
	if id == "" {
		return "", newError(KindResolutionNotFound, 0, nil)
	}

	o.logger.Info("resolved application", "internal_id", id)
	return id, nil
}

// pickApplicationID prefers the match whose public ID equals the requested
// one; a single unlabelled match is accepted as is.
func pickApplicationID(payload applicationsResponse, publicID string) string {
	for _, app := range payload.Applications {
		if app.PublicID == publicID && app.ID != "" {
			return app.ID
		}
	}
	if len(payload.Applications) == 1 {
		return payload.Applications[0].ID
	}
	return ""
}
