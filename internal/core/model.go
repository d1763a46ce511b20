package core

import (
	"time"
)

// Channel names carried on requests and log lines
const (
	ChannelTelegram = "telegram"
	ChannelEmail    = "email"
	ChannelCLI      = "cli"
)

// GenerationParams holds the sampling parameters for one generation
type GenerationParams struct {
	MaxTokens         int
	Temperature       float32
	TopP              float32
	TopK              int
	RepetitionPenalty float32
}

// GenerationRequest is what the model service hands to a backend
type GenerationRequest struct {
	Prompt    string
	Params    GenerationParams
	Channel   string
	RequestID string
}

// GenerationResult is the raw backend output before cleaning
type GenerationResult struct {
	Text         string
	ModelUsed    string
	ProcessingID string
	GeneratedAt  time.Time
}

// ModelInfo describes the loaded model for status reporting
type ModelInfo struct {
	Provider     string
	Name         string
	Device       string
	Quantization string
	Loaded       bool
	LoadedAt     time.Time
}

// RawMessage is an unseen message as fetched from the mailbox
type RawMessage struct {
	UID uint32
	Raw []byte
}

// IncomingMessage represents a question received on any channel
type IncomingMessage struct {
	Channel    string
	ChatID     int64
	UID        uint32
	MessageID  string
	From       string
	ReplyTo    string
	Subject    string
	Body       string
	References []string
	Headers    map[string][]string
	ReceivedAt time.Time
}

// OutgoingReply represents an email answer ready for delivery
type OutgoingReply struct {
	From       string
	To         string
	Subject    string
	Body       string
	InReplyTo  string
	References []string
}

// LedgerEntry records that a reply was dispatched for a message
type LedgerEntry struct {
	MessageKey string
	Sender     string
	Subject    string
	RepliedAt  time.Time
	ExpiresAt  time.Time
}
