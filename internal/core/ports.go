package core

import (
	"context"
)

// ModelClient defines the interface for interacting with an inference backend
type ModelClient interface {
	// Generate produces a completion for an already formatted prompt
	Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error)

	// Ping checks that the backend is reachable and the model is served
	Ping(ctx context.Context) error
}

// Generator is the model-facing port used by the channel adapters
type Generator interface {
	// Generate answers a user question with the given sampling parameters
	Generate(ctx context.Context, question string, params GenerationParams) (string, error)

	// Describe reports the loaded model
	Describe() ModelInfo
}

// ReplyLedger remembers which messages already received a reply
type ReplyLedger interface {
	// Seen reports whether a live entry exists for the key
	Seen(ctx context.Context, key string) (bool, error)

	// Record stores an entry
	Record(ctx context.Context, entry *LedgerEntry) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}

// Mailbox is one authenticated session against the inbound mail server
type Mailbox interface {
	// FetchUnseen returns every message without the processed marker, without setting it
	FetchUnseen(ctx context.Context) ([]*RawMessage, error)

	// MarkSeen sets the processed marker on a message
	MarkSeen(ctx context.Context, uid uint32) error

	// Close ends the session
	Close() error
}

// MailboxDialer opens fresh mailbox sessions
type MailboxDialer interface {
	Dial(ctx context.Context) (Mailbox, error)
}

// MailSender delivers outgoing replies
type MailSender interface {
	Send(ctx context.Context, reply *OutgoingReply) error
}
