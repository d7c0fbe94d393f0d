package logging

import "time"

// #region decision-entry
// DecisionEntry is a single row in the decisions table. One row per successful dispatch.
type DecisionEntry struct {
	ID                    string
	CreatedAt             time.Time
	Label                 string
	Confidence            float64
	ChosenText            string // text as dispatched, after enrichment
	BankText              string // candidate text as stored in the tip bank
	UsedExternalFormatter bool
	SourceRef             string // snapshot timestamp, or "forced"
}

// #endregion decision-entry

// #region feedback-entry
// FeedbackEntry is a single row in the feedback table.
type FeedbackEntry struct {
	DecisionTimestamp float64 // timestamp the client associates with the decision
	Label             string
	Accepted          bool
	ReceivedAt        time.Time
}

// #endregion feedback-entry
