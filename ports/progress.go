package ports

import (
	"time"

	"epicalib/domain/core"
)

// ProgressEventType identifies a progress notification
type ProgressEventType string

const (
	EventSuiteStarted     ProgressEventType = "suite_started"
	EventScenarioStarted  ProgressEventType = "scenario_started"
	EventTrialCompleted   ProgressEventType = "trial_completed"
	EventScenarioFinished ProgressEventType = "scenario_finished"
	EventSuiteFinished    ProgressEventType = "suite_finished"
)

// ProgressEvent is broadcast while a suite runs
type ProgressEvent struct {
	Type      ProgressEventType `json:"type"`
	SuiteID   core.SuiteID      `json:"suite_id"`
	RunID     core.RunID        `json:"run_id,omitempty"`
	Scenario  string            `json:"scenario,omitempty"`
	Trial     int               `json:"trial,omitempty"`
	Trials    int               `json:"trials,omitempty"`
	Status    string            `json:"status,omitempty"`
	Message   string            `json:"message,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// ProgressReporter receives progress events. Publish must not block the caller.
type ProgressReporter interface {
	Publish(event ProgressEvent)
}

// NopProgress discards every event
type NopProgress struct{}

func (NopProgress) Publish(ProgressEvent) {}
