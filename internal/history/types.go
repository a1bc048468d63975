// Package history keeps a record of audit runs.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Outcomes stored alongside a run, besides the error kinds of package iq.
const (
	OutcomeDone     = "done"
	OutcomeCanceled = "canceled"
)

// Run is one audit of one application.
type Run struct {
	ID           string    `json:"id"`
	PublicAppID  string    `json:"public_app_id"`
	Stage        string    `json:"stage"`
	Components   int       `json:"components"`
	StatusURL    string    `json:"status_url,omitempty"`
	Outcome      string    `json:"outcome"`
	PolicyAction string    `json:"policy_action,omitempty"`
	ReportURL    string    `json:"report_url,omitempty"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// NewRun starts a run record with a fresh ID.
func NewRun(publicAppID, stage string, components int) Run {
	return Run{
		ID:          uuid.NewString(),
		PublicAppID: publicAppID,
		Stage:       stage,
		Components:  components,
		StartedAt:   time.Now().UTC(),
	}
}

// Store persists runs.
type Store interface {
	Close() error
	SaveRun(ctx context.Context, run Run) error
	RecentRuns(ctx context.Context, publicAppID string, limit int) ([]Run, error)
}
