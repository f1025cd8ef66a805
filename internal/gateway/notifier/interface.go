package notifier

import "context"

// TextNotifier is the only thing the reconciler needs from a chat channel.
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}

// Nop drops every message; used when no channel is configured.
type Nop struct{}

func (Nop) SendText(context.Context, string) error { return nil }
