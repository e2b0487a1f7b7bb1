package bot

import (
	"context"
	"fmt"
	"time"

	"supportchat/pkg/models"
)

// Responder produces the support-side reply for a conversation. The canned
// implementation below stands in for a real inference backend; swapping in
// one is a matter of providing another Responder.
type Responder interface {
	Reply(ctx context.Context, history []models.Message) (string, error)
}

// Canned acknowledges the newest user message after a fixed delay,
// simulating backend latency.
type Canned struct {
	Delay time.Duration
}

// NewCanned creates a canned responder with the given simulated latency.
func NewCanned(delay time.Duration) *Canned {
	return &Canned{Delay: delay}
}

// Reply waits out the configured delay, then echoes the last user message in
// a support-desk acknowledgement.
func (c *Canned) Reply(ctx context.Context, history []models.Message) (string, error) {
	if c.Delay > 0 {
		select {
		case <-time.After(c.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return fmt.Sprintf("Thank you for your message: %q. Our AI support team is analyzing your request and will provide a solution shortly. In the meantime, you can share any additional details or upload documents to help us assist you faster.", lastUserText(history)), nil
}

func lastUserText(history []models.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Sender == models.SenderUser {
			return history[i].Text
		}
	}
	return ""
}
