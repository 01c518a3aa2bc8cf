package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// JobState is the lifecycle of a price refresh job.
type JobState string

const (
	JobIdle            JobState = "idle"
	JobRunning         JobState = "running"
	JobCompleted       JobState = "completed"
	JobPartiallyFailed JobState = "partiallyFailed"
	JobCancelled       JobState = "cancelled"
	JobFailed          JobState = "failed"
)

// Terminal reports whether no further transition can happen.
func (s JobState) Terminal() bool {
	switch s {
	case JobCompleted, JobPartiallyFailed, JobCancelled, JobFailed:
		return true
	}
	return false
}

// TickerState is the per-ticker outcome inside a refresh job.
type TickerState string

const (
	TickerPending TickerState = "pending"
	TickerOK      TickerState = "ok"
	TickerError   TickerState = "error"
)

// TickerStatus is one ticker of a refresh job. Unavailable marks the
// informational "price unavailable" outcome as opposed to a real failure.
type TickerStatus struct {
	Ticker      string           `json:"ticker"`
	State       TickerState      `json:"state"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Reason      string           `json:"reason,omitempty"`
	Unavailable bool             `json:"unavailable,omitempty"`
}

// JobStatus is a snapshot of a refresh job, safe to hand to the renderer.
type JobStatus struct {
	ID         string         `json:"id"`
	Scope      Scope          `json:"scope"`
	State      JobState       `json:"state"`
	Progress   int            `json:"progress"`
	Cancelled  bool           `json:"cancelled"`
	Tickers    []TickerStatus `json:"tickers"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// Unavailable lists the tickers the provider had no quote for.
func (s JobStatus) Unavailable() []string {
	var out []string
	for _, t := range s.Tickers {
		if t.Unavailable {
			out = append(out, t.Ticker)
		}
	}
	return out
}
