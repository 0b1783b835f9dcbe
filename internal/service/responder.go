package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Rrens/apex-chat/internal/domain"
)

// Responder produces the assistant's reply to a user turn
type Responder interface {
	Reply(ctx context.Context, history []domain.ChatMessage, prompt string) (string, error)
}

// EchoResponder answers by echoing the prompt after an optional delay
type EchoResponder struct {
	Delay time.Duration
}

func (r EchoResponder) Reply(ctx context.Context, history []domain.ChatMessage, prompt string) (string, error) {
	if r.Delay > 0 {
		timer := time.NewTimer(r.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	turns := 0
	for _, m := range history {
		if m.Role == domain.RoleUser {
			turns++
		}
	}

	reply := "You said: " + strings.TrimSpace(prompt)
	if turns > 1 {
		reply += fmt.Sprintf(" (message %d in this chat)", turns)
	}
	return reply, nil
}
