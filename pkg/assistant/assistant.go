// Package assistant turns conversation transcripts into reply text.
package assistant

import (
	"context"
	"time"
)

type MsgRole string

const (
	USER      MsgRole = "user"
	ASSISTANT MsgRole = "assistant"
	SYSTEM    MsgRole = "system"
)

type Message struct {
	MsgRole   MsgRole   `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Responder produces the assistant's reply for a conversation so far.
type Responder interface {
	Respond(ctx context.Context, msgs []Message) (string, error)
}
