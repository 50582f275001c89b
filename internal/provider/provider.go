package provider

import (
	"context"
	"time"
)

// MailTransport is the outbound email delivery port.
type MailTransport interface {
	Send(ctx context.Context, msg Message) error
}

// Message is one email to a single recipient.
type Message struct {
	ToAddress   string
	ToName      string
	Subject     string
	Body        string
	Attachments []Attachment
}

type Attachment struct {
	FileName    string
	ContentType string
	Data        []byte
}

// CompletionNotifier tells internal teams that a batch reached its terminal state.
type CompletionNotifier interface {
	NotifyCompletion(ctx context.Context, summary CompletionSummary) error
}

// CompletionSummary is the payload posted when a batch completes.
type CompletionSummary struct {
	BatchID       string     `json:"batchId"`
	Intent        string     `json:"intent"`
	Initiator     string     `json:"initiator"`
	Total         int        `json:"total"`
	Succeeded     int        `json:"succeeded"`
	Failed        int        `json:"failed"`
	FailedUnitIDs []string   `json:"failedUnitIds"`
	StartedAt     time.Time  `json:"startedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}
